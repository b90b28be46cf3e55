package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-hiring-go/internal/api/handler"
	"ai-hiring-go/internal/api/router"
	"ai-hiring-go/internal/bootstrap"
	"ai-hiring-go/internal/candidates"
	"ai-hiring-go/internal/config"
	"ai-hiring-go/internal/evaluation"
	"ai-hiring-go/internal/evaluator"
	"ai-hiring-go/internal/grading"
	"ai-hiring-go/internal/intake"
	"ai-hiring-go/internal/interview"
	"ai-hiring-go/internal/notify"
	"ai-hiring-go/internal/outbox"
	"ai-hiring-go/internal/storage"
	"ai-hiring-go/internal/token"
	"ai-hiring-go/internal/tracing"
	"ai-hiring-go/pkg/agent"

	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("加载配置失败: %v", err)
	}
	bootstrap.InitLogging(cfg.Logger)
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing, "api")
	if err != nil {
		glog.Warnf("初始化链路追踪失败，继续运行: %v", err)
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	// 直接投递失败的评估任务由 relay 补发
	var relay *outbox.MessageRelay
	if storageManager.RabbitMQ != nil {
		relay = outbox.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ)
		relay.Start()
		glog.Info("消息中继服务已启动")
	} else {
		glog.Warn("RabbitMQ不可用，评估任务暂存在 outbox")
	}

	var publisher evaluation.Publisher
	if storageManager.RabbitMQ != nil {
		publisher = storageManager.RabbitMQ
	}
	dispatcher := evaluation.NewDispatcher(publisher, storageManager.MySQL, cfg.RabbitMQ)

	sender, err := notify.NewMailgunSender(cfg.Mail)
	if err != nil {
		glog.Fatalf("初始化邮件发送器失败: %v", err)
	}
	notifier := notify.NewNotifier(sender, cfg.Server.AppURL)

	pdfExtractor, resumeExtractor, err := bootstrap.TextExtractors(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化文本提取失败: %v", err)
	}

	graderModel, err := bootstrap.ChatModel(cfg, bootstrap.TaskGrader)
	if err != nil {
		glog.Fatalf("%v", err)
	}
	questionModel, err := bootstrap.ChatModel(cfg, bootstrap.TaskQuestions)
	if err != nil {
		glog.Fatalf("%v", err)
	}

	jobService := bootstrap.JobService(storageManager)
	tokenService := token.NewService(storageManager.MySQL, notifier,
		config.GetDuration(cfg.Token.TTL, 48*time.Hour))
	intakeService := intake.NewService(storageManager.MySQL, tokenService, storageManager.MinIO,
		resumeExtractor, dispatcher, cfg.MinIO.ResumesBucket)

	orchestrator := grading.NewOrchestrator(storageManager.MySQL, storageManager.MinIO, pdfExtractor,
		jobService, evaluator.NewInterviewGrader(graderModel), cfg.MinIO.TranscriptsBucket)

	deps := interview.Deps{
		Store:     storageManager.MySQL,
		Jobs:      jobService,
		Generator: evaluator.NewQuestionGenerator(questionModel, 0),
		Objects:   storageManager.MinIO,
		Grader:    orchestrator,
	}
	if storageManager.Redis != nil {
		deps.Locker = storageManager.Redis
	}
	if cfg.Aliyun.TranscriptionURL != "" {
		transcriber, err := agent.NewTranscriber(cfg.Aliyun.APIKey, cfg.Aliyun.TranscriptionURL,
			cfg.Aliyun.TranscribeModel, config.GetDuration(cfg.Aliyun.Timeout, 120*time.Second))
		if err != nil {
			glog.Fatalf("初始化语音转写失败: %v", err)
		}
		deps.Transcriber = transcriber
	}
	interviewService := interview.NewService(deps, interview.Config{
		MediaBucket:       cfg.MinIO.MediaBucket,
		TranscriptsBucket: cfg.MinIO.TranscriptsBucket,
		LockTTL:           config.GetDuration(cfg.Redis.QuestionLockTTL, 2*time.Minute),
	})

	candidateService := candidates.NewService(candidates.Deps{
		Store:      storageManager.MySQL,
		Jobs:       jobService,
		Presigner:  storageManager.MinIO,
		Interviews: interviewService,
		Notifier:   notifier,
		Requeuer:   dispatcher,
	}, candidates.Config{
		MediaBucket:       cfg.MinIO.MediaBucket,
		TranscriptsBucket: cfg.MinIO.TranscriptsBucket,
	})

	maxUploadMB := cfg.Server.MaxUploadMB
	if maxUploadMB <= 0 {
		maxUploadMB = 200
	}
	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		tracer,
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		server.WithMaxRequestBodySize(maxUploadMB*1024*1024),
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	interviewHandler := handler.NewInterviewHandler(interviewService, orchestrator)
	if cfg.Aliyun.SpeechURL != "" {
		speaker, err := agent.NewSpeaker(cfg.Aliyun.APIKey, cfg.Aliyun.SpeechURL, cfg.Aliyun.SpeechModel,
			cfg.Aliyun.SpeechVoice, config.GetDuration(cfg.Aliyun.Timeout, 60*time.Second))
		if err != nil {
			glog.Fatalf("初始化题目朗读失败: %v", err)
		}
		interviewHandler.WithSpeaker(speaker)
	}

	router.RegisterRoutes(h, router.Handlers{
		Invites:    handler.NewInviteHandler(tokenService),
		Apply:      handler.NewApplyHandler(tokenService, intakeService, jobService),
		Jobs:       handler.NewJobHandler(jobService),
		Candidates: handler.NewCandidateHandler(candidateService),
		Interview:  interviewHandler,
	}, cfg.Server.AdminAPIKey)
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	if relay != nil {
		relay.Stop()
		glog.Info("消息中继服务已停止")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		glog.Warnf("关闭链路追踪失败: %v", err)
	}
	glog.Info("优雅退出完成")
}
