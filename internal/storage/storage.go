package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"ai-hiring-go/internal/config"
)

// Storage 存储管理器，聚合所有存储相关依赖
type Storage struct {
	// 对象存储
	MinIO *MinIO

	// 消息队列
	RabbitMQ *RabbitMQ

	// 关系型数据库
	MySQL *MySQL

	// 键值存储，只用于锁和缓存，可以缺失
	Redis *Redis
}

// NewStorage 创建存储管理器。MySQL 与 MinIO 必须可用，RabbitMQ、Redis 失败只记警告
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	s := &Storage{}
	var err error

	var minioLogger *log.Logger
	if cfg.Logger.Level == "debug" {
		minioLogger = log.New(os.Stderr, "[MinIOStorage] ", log.LstdFlags|log.Lshortfile)
	} else {
		minioLogger = log.New(io.Discard, "", 0)
	}

	s.MySQL, err = NewMySQL(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("初始化MySQL失败: %w", err)
	}

	s.MinIO, err = NewMinIO(&cfg.MinIO, minioLogger)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("初始化MinIO失败: %w", err)
	}
	log.Println("MinIO客户端初始化成功")

	if cfg.RabbitMQ.URL != "" {
		s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			// 评估任务会落到 outbox，由 relay 在 MQ 恢复后补发
			log.Printf("警告: 初始化RabbitMQ失败: %v", err)
		} else if err := s.RabbitMQ.SetupEvaluationTopology(); err != nil {
			log.Printf("警告: 声明评估队列失败: %v", err)
		}
	}

	if cfg.Redis.Address != "" {
		s.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			log.Printf("警告: 初始化Redis失败: %v", err)
			s.Redis = nil
		}
	} else {
		log.Printf("Redis未配置, 跳过初始化.")
	}

	return s, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			log.Printf("关闭RabbitMQ连接失败: %v", err)
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			log.Printf("关闭MySQL连接失败: %v", err)
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Printf("关闭Redis连接失败: %v", err)
		}
	}
}
