// 评估 worker：消费评估队列，提取简历文本并调用模型打分
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"ai-hiring-go/internal/bootstrap"
	"ai-hiring-go/internal/config"
	"ai-hiring-go/internal/evaluation"
	"ai-hiring-go/internal/evaluator"
	"ai-hiring-go/internal/httpclient"
	"ai-hiring-go/internal/logger"
	"ai-hiring-go/internal/outbox"
	"ai-hiring-go/internal/storage"
	"ai-hiring-go/internal/tracing"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}
	bootstrap.InitLogging(cfg.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing, "worker")
	if err != nil {
		logger.Warn().Err(err).Msg("初始化链路追踪失败，继续运行")
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()
	if storageManager.RabbitMQ == nil {
		logger.Fatal().Msg("RabbitMQ不可用，worker 无法消费评估队列")
	}

	_, resumeExtractor, err := bootstrap.TextExtractors(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化文本提取失败")
	}
	scorerModel, err := bootstrap.ChatModel(cfg, bootstrap.TaskScorer)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化评分模型失败")
	}
	downloader, err := httpclient.New(60 * time.Second)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化下载客户端失败")
	}

	worker := evaluation.NewWorker(
		storageManager.MySQL,
		evaluation.NewResumeFetcher(storageManager.MinIO, downloader, 60*time.Second),
		resumeExtractor,
		bootstrap.JobService(storageManager),
		evaluator.NewResumeScorer(scorerModel),
		config.GetDuration(cfg.RabbitMQ.JobTimeout, 600*time.Second),
	)

	// worker 也补发 outbox，API 进程缺席时任务不会积压
	relay := outbox.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ)
	relay.Start()
	defer relay.Stop()

	n := cfg.WorkerCount("evaluation_workers")
	prefetch := cfg.RabbitMQ.PrefetchCount
	if prefetch <= 0 {
		prefetch = 1
	}
	logger.Info().Int("workers", n).Str("queue", cfg.RabbitMQ.EvaluationQueue).Msg("评估 worker 启动")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			return storageManager.RabbitMQ.Consume(gctx, cfg.RabbitMQ.EvaluationQueue, prefetch, worker.HandleDelivery)
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("评估消费者退出")
		return
	}
	logger.Info().Msg("评估 worker 已退出")
}
