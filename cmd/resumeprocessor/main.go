// resumeprocessor 本地调试简历提取、评分和面试转写稿解析
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

// 命令行参数定义
var (
	configPath = pflag.StringP("config", "c", "internal/config/config.yaml", "配置文件路径 (score 命令需要)")
	inputFile  = pflag.StringP("file", "f", "", "简历或转写稿文件路径 (必填)")
	maxLen     = pflag.Int("maxlen", 1000, "显示的文本最大长度，设为-1显示全部")
	command    = pflag.String("cmd", "extract", "执行的命令: extract=提取并清洗文本, score=按岗位评分, transcript=解析面试转写稿")
	jobTitle   = pflag.String("job-title", "", "score 命令使用的岗位标题")
	jobDesc    = pflag.String("job-desc", "", "score 命令使用的岗位描述")
	asJSON     = pflag.Bool("json", false, "以 JSON 输出结果")
)

func main() {
	pflag.Parse()

	if *inputFile == "" {
		fmt.Println("错误: 必须提供文件路径，使用 -f 参数。")
		pflag.Usage()
		os.Exit(1)
	}

	switch *command {
	case "extract":
		handleExtractCommand()
	case "score":
		handleScoreCommand()
	case "transcript":
		handleTranscriptCommand()
	default:
		fmt.Printf("错误: 未知命令 '%s'。支持的命令: extract, score, transcript\n", *command)
		pflag.Usage()
		os.Exit(1)
	}
}
