// data_repair 重新投递卡住的简历评估
//
//	go run ./cmd/data_repair -c config.yaml --older-than 1h --include-failed
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"ai-hiring-go/internal/bootstrap"
	"ai-hiring-go/internal/config"
	"ai-hiring-go/internal/evaluation"
	"ai-hiring-go/internal/logger"
	"ai-hiring-go/internal/storage"

	"github.com/spf13/pflag"
)

func main() {
	var (
		configPath    string
		olderThan     time.Duration
		includeFailed bool
		limit         int
		concurrency   int
		dryRun        bool
	)
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.DurationVar(&olderThan, "older-than", 30*time.Minute, "PENDING evaluations older than this are requeued")
	pflag.BoolVar(&includeFailed, "include-failed", false, "Also requeue FAILED evaluations")
	pflag.IntVar(&limit, "limit", 500, "Maximum candidates per run, 0 for no limit")
	pflag.IntVar(&concurrency, "concurrency", 5, "Concurrent requeues")
	pflag.BoolVar(&dryRun, "dry-run", false, "Only list what would be requeued")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}
	bootstrap.InitLogging(cfg.Logger)

	ctx := context.Background()
	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()

	var publisher evaluation.Publisher
	if storageManager.RabbitMQ != nil {
		publisher = storageManager.RabbitMQ
	}
	dispatcher := evaluation.NewDispatcher(publisher, storageManager.MySQL, cfg.RabbitMQ)

	res, err := dispatcher.Repair(ctx, storageManager.MySQL, evaluation.RepairOptions{
		PendingOlderThan: olderThan,
		IncludeFailed:    includeFailed,
		Limit:            limit,
		Concurrency:      concurrency,
		DryRun:           dryRun,
	})
	if err != nil {
		logger.Error().Err(err).Msg("评估修复失败")
		os.Exit(1)
	}

	fmt.Printf("扫描: %d, 重新排队: %d, 失败: %d\n", res.Scanned, res.Requeued, res.Failed)
	for _, e := range res.Errors {
		fmt.Println("  ", e)
	}
	if res.Failed > 0 {
		os.Exit(1)
	}
}
