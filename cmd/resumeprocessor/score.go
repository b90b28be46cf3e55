package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"ai-hiring-go/internal/bootstrap"
	"ai-hiring-go/internal/config"
	"ai-hiring-go/internal/constants"
	"ai-hiring-go/internal/evaluator"
	"ai-hiring-go/internal/parser"
)

// 处理评分命令：使用配置的评分模型，对本地简历按给定岗位打分
func handleScoreCommand() {
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	llm, err := bootstrap.ChatModel(cfg, bootstrap.TaskScorer)
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.RabbitMQ.JobTimeout, 600*time.Second))
	defer cancel()

	data, path, _, extractor := readInput(ctx)
	text, err := extractor.ExtractClean(ctx, data, path)
	if err != nil {
		fmt.Printf("提取文本失败: %v\n", err)
		os.Exit(1)
	}

	job := evaluator.JobContext{Title: *jobTitle, Description: *jobDesc}
	if job.Title == "" {
		job.Title = constants.DefaultJobContext
	}
	score, err := evaluator.NewResumeScorer(llm).Score(ctx, job, text)
	if err != nil {
		fmt.Printf("评分失败: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		printJSON(score)
		return
	}
	fmt.Printf("岗位: %s\n得分: %d\n建议: %s\n摘要: %s\n", job.Title, score.Score, score.Recommendation, score.Summary)
}

// 处理转写稿命令：提取 PDF 文本并切分为问答对
func handleTranscriptCommand() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	data, path, pdf, _ := readInput(ctx)
	text, err := pdf.ExtractTextFromBytes(ctx, data, path)
	if err != nil {
		fmt.Printf("提取转写稿失败: %v\n", err)
		os.Exit(1)
	}
	pairs := parser.ParseTranscript(text)
	if *asJSON {
		printJSON(pairs)
		return
	}
	fmt.Printf("共 %d 组问答\n", len(pairs))
	for i, p := range pairs {
		fmt.Printf("\n[%d] Q: %s\n    A: %s\n", i+1, p.Question, preview(p.Answer))
	}
}
