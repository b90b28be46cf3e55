package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Format 简历文件格式
type Format string

const (
	FormatUnknown Format = ""
	FormatPDF     Format = "pdf"
	FormatDOCX    Format = "docx"
)

var (
	pdfSignature = []byte("%PDF")
	zipSignature = []byte("PK\x03\x04")
)

// BytesExtractor 单一格式的文本提取
type BytesExtractor interface {
	ExtractTextFromBytes(ctx context.Context, data []byte, uri string) (string, error)
}

// ResumeTextExtractor 按扩展名和文件签名选择解析器，识别失败时依次尝试 PDF 与 DOCX
type ResumeTextExtractor struct {
	pdf  BytesExtractor
	docx BytesExtractor
}

// NewResumeTextExtractor 创建简历文本提取器
func NewResumeTextExtractor(pdf, docx BytesExtractor) *ResumeTextExtractor {
	return &ResumeTextExtractor{pdf: pdf, docx: docx}
}

// DetectFormat 扩展名优先，其次看文件头
func DetectFormat(filename string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF
	case ".docx", ".doc":
		return FormatDOCX
	}
	switch {
	case bytes.HasPrefix(data, pdfSignature):
		return FormatPDF
	case bytes.HasPrefix(data, zipSignature):
		return FormatDOCX
	}
	return FormatUnknown
}

// Extract 提取原始文本（未清洗）
func (r *ResumeTextExtractor) Extract(ctx context.Context, data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty resume file")
	}

	switch DetectFormat(filename, data) {
	case FormatPDF:
		return r.pdf.ExtractTextFromBytes(ctx, data, filename)
	case FormatDOCX:
		return r.docx.ExtractTextFromBytes(ctx, data, filename)
	}

	text, pdfErr := r.pdf.ExtractTextFromBytes(ctx, data, filename)
	if pdfErr == nil {
		return text, nil
	}
	text, docxErr := r.docx.ExtractTextFromBytes(ctx, data, filename)
	if docxErr == nil {
		return text, nil
	}
	return "", fmt.Errorf("Unsupported resume format. Only PDF and DOCX files are supported. PDF parse error: %v; DOCX parse error: %v", pdfErr, docxErr)
}

// ExtractClean 提取并清洗
func (r *ResumeTextExtractor) ExtractClean(ctx context.Context, data []byte, filename string) (string, error) {
	text, err := r.Extract(ctx, data, filename)
	if err != nil {
		return "", err
	}
	return CleanResumeText(text), nil
}
