package parser

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEinoPDFTextExtractor(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	extractor, err := NewEinoPDFTextExtractor(ctx)
	require.NoError(t, err, "创建PDF提取器不应返回错误")
	require.NotNil(t, extractor.parser, "PDF提取器内部的parser不应为nil")
	require.NotNil(t, extractor.logger, "PDF提取器应该有默认的logger")
	assert.Equal(t, 30*time.Second, extractor.timeout)

	customLogger := log.New(os.Stdout, "[测试PDF提取器] ", log.LstdFlags)
	custom, err := NewEinoPDFTextExtractor(ctx, WithEinoLogger(customLogger), WithEinoTimeout(time.Second))
	require.NoError(t, err)
	assert.Equal(t, customLogger, custom.logger, "应该使用提供的自定义logger")
	assert.Equal(t, time.Second, custom.timeout)

	ignored, err := NewEinoPDFTextExtractor(ctx, WithEinoTimeout(0))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, ignored.timeout, "非正数超时应被忽略")
}

// 使用 testdata 下的真实简历，没有则跳过
func TestExtractTextFromBytes_RealPDF(t *testing.T) {
	var data []byte
	for _, p := range []string{"testdata/resume.pdf", "../../testdata/resume.pdf"} {
		if b, err := os.ReadFile(p); err == nil {
			data = b
			break
		}
	}
	if data == nil {
		t.Skip("找不到测试PDF文件，跳过测试")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	extractor, err := NewEinoPDFTextExtractor(ctx)
	require.NoError(t, err)

	text, err := extractor.ExtractTextFromBytes(ctx, data, "resume.pdf")
	require.NoError(t, err, "从PDF提取文本不应返回错误")
	assert.NotEmpty(t, text)
}
