package parser

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

var (
	docxParagraphEnd = regexp.MustCompile(`</w:p>`)
	docxTab          = regexp.MustCompile(`<w:tab/>|<w:br/>`)
	docxTag          = regexp.MustCompile(`<[^>]+>`)
)

// DocxTextExtractor 从 .docx 中提取段落文本
type DocxTextExtractor struct{}

// NewDocxTextExtractor 创建 DOCX 提取器
func NewDocxTextExtractor() *DocxTextExtractor {
	return &DocxTextExtractor{}
}

// ExtractTextFromBytes 读取 word/document.xml 并去掉标签
func (d *DocxTextExtractor) ExtractTextFromBytes(_ context.Context, data []byte, uri string) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("读取DOCX失败 (%s): %w", uri, err)
	}
	defer r.Close()

	return docxXMLToText(r.Editable().GetContent()), nil
}

// docxXMLToText 段落结束换行，制表与换行标签转空格，其余标签删除
func docxXMLToText(xml string) string {
	s := docxParagraphEnd.ReplaceAllString(xml, "\n")
	s = docxTab.ReplaceAllString(s, " ")
	s = docxTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, "\n")
}
