package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ai-hiring-go/internal/parser"
	"ai-hiring-go/internal/tracing"
)

// readInput 读取文件并创建文本提取器
func readInput(ctx context.Context) ([]byte, string, *parser.EinoPDFTextExtractor, *parser.ResumeTextExtractor) {
	absPath, err := filepath.Abs(*inputFile)
	if err != nil {
		fmt.Printf("无法获取文件的绝对路径: %v\n", err)
		os.Exit(1)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		fmt.Printf("无法读取文件 %s: %v\n", absPath, err)
		os.Exit(1)
	}
	fmt.Printf("准备处理文件: %s (%d 字节, 格式 %s)\n", absPath, len(data), parser.DetectFormat(absPath, data))

	pdf, err := parser.NewEinoPDFTextExtractor(ctx)
	if err != nil {
		fmt.Printf("创建PDF提取器失败: %v\n", err)
		os.Exit(1)
	}
	return data, absPath, pdf, parser.NewResumeTextExtractor(pdf, parser.NewDocxTextExtractor())
}

// 处理提取文本命令
func handleExtractCommand() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	data, path, _, extractor := readInput(ctx)
	start := time.Now()
	text, err := extractor.ExtractClean(ctx, data, path)
	if err != nil {
		fmt.Printf("提取文本失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("提取完成，耗时 %v，清洗后 %d 字符\n", time.Since(start), len([]rune(text)))

	if *asJSON {
		printJSON(map[string]any{"file": path, "characters": len([]rune(text)), "text": text})
		return
	}
	fmt.Println("------------------------------------------------")
	fmt.Println(preview(text))
}

func preview(text string) string {
	if *maxLen < 0 {
		return text
	}
	return tracing.TruncateString(text, *maxLen)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Printf("输出JSON失败: %v\n", err)
		os.Exit(1)
	}
}
