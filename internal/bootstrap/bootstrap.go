// Package bootstrap API 服务和评估 worker 共用的初始化
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"ai-hiring-go/internal/config"
	"ai-hiring-go/internal/jobs"
	"ai-hiring-go/internal/logger"
	"ai-hiring-go/internal/parser"
	"ai-hiring-go/internal/storage"
	"ai-hiring-go/pkg/agent"
	"ai-hiring-go/pkg/ratelimit"

	"github.com/cloudwego/eino/components/model"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
)

// 模型任务名，对应 aliyun.task_models 的键
const (
	TaskScorer    = "scorer"
	TaskGrader    = "grader"
	TaskQuestions = "questions"
)

// InitLogging 初始化 zerolog，并让 Hertz 的 hlog 写到同一个 logger
func InitLogging(cfg config.LoggerConfig) {
	logger.Init(logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		TimeFormat:   cfg.TimeFormat,
		ReportCaller: cfg.ReportCaller,
	})
	glog.SetLogger(hertzadapter.From(logger.Logger))
	if cfg.Level == "debug" {
		glog.SetLevel(glog.LevelDebug)
	} else {
		glog.SetLevel(glog.LevelInfo)
	}
}

// StdLogger 给只接受 *log.Logger 的组件使用；非 debug 级别时丢弃输出
func StdLogger(cfg *config.Config, prefix string) *log.Logger {
	if cfg.Logger.Level != "debug" {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stderr, prefix, log.LstdFlags|log.Lshortfile)
}

// ChatModel 按任务选择模型，并套上 QPM 限流与重试
func ChatModel(cfg *config.Config, task string) (model.ToolCallingChatModel, error) {
	name := cfg.GetModelForTask(task)
	m, err := agent.NewAliyunQwenChatModel(cfg.Aliyun.APIKey, name, cfg.Aliyun.APIURL,
		config.GetDuration(cfg.Aliyun.Timeout, 120*time.Second))
	if err != nil {
		return nil, fmt.Errorf("初始化模型 %s (%s) 失败: %w", name, task, err)
	}
	retryWait := time.Duration(cfg.Aliyun.RetryWaitSeconds) * time.Second
	return ratelimit.NewLLMWithRateLimit(m, name, cfg.ModelQPMLimits, cfg.Aliyun.MaxRetries, retryWait), nil
}

// TextExtractors 返回 PDF 提取器和按格式分派的简历提取器
func TextExtractors(ctx context.Context, cfg *config.Config) (*parser.EinoPDFTextExtractor, *parser.ResumeTextExtractor, error) {
	pdf, err := parser.NewEinoPDFTextExtractor(ctx, parser.WithEinoLogger(StdLogger(cfg, "[EinoPDF] ")))
	if err != nil {
		return nil, nil, fmt.Errorf("创建PDF提取器失败: %w", err)
	}
	return pdf, parser.NewResumeTextExtractor(pdf, parser.NewDocxTextExtractor()), nil
}

// JobService Redis 不可用时不使用缓存
func JobService(s *storage.Storage) *jobs.Service {
	if s.Redis == nil {
		return jobs.NewService(s.MySQL, nil)
	}
	return jobs.NewService(s.MySQL, s.Redis)
}
