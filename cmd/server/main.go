package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/spf13/pflag"

	"resume-builder-go/internal/agent"
	"resume-builder-go/internal/analysis"
	"resume-builder-go/internal/api/handler"
	"resume-builder-go/internal/api/router"
	"resume-builder-go/internal/config"
	appLogger "resume-builder-go/internal/logger"
	"resume-builder-go/internal/outbox"
	"resume-builder-go/internal/parser"
	"resume-builder-go/internal/resume"
	"resume-builder-go/internal/service"
	"resume-builder-go/internal/storage"
	"resume-builder-go/internal/tracing"
)

var (
	version     = "1.0.0"              //nolint:gochecknoglobals
	serviceName = "resume-builder-api" //nolint:gochecknoglobals
)

func main() {
	var (
		configPath string
		initConfig bool
	)
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.BoolVar(&initConfig, "init-config", false, "Write a sample config to --config and exit")
	pflag.Parse()

	if initConfig {
		if err := config.CreateSampleConfig(configPath); err != nil {
			appLogger.Fatal().Err(err).Msg("生成示例配置失败")
		}
		appLogger.Info().Str("path", configPath).Msg("示例配置已生成")
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("加载配置失败")
	}
	initLogger(cfg)
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = serviceName
	}
	shutdownTracing, err := tracing.InitProvider(ctx, &cfg.Tracing, version)
	if err != nil {
		glog.Warnf("初始化链路追踪失败，继续运行: %v", err)
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	var relay *outbox.MessageRelay
	if cfg.Outbox.Enabled && storageManager.RabbitMQ != nil {
		relay = outbox.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ,
			outbox.WithPollingInterval(config.GetDuration(cfg.Outbox.PollInterval, 2*time.Second)),
			outbox.WithBatchSize(cfg.Outbox.BatchSize),
		)
		relay.Start()
		glog.Info("消息中继服务已启动")
	} else {
		glog.Info("未启用消息中继，事件仅写入outbox表")
	}

	engine := resume.NewEngine(resume.NewDefaultRegistry())
	policy := agent.RetryPolicy{
		MaxRetries:  cfg.OpenAI.MaxRetries,
		RetryDelay:  agent.DefaultRetryPolicy().RetryDelay,
		CallTimeout: config.GetDuration(cfg.OpenAI.RequestTimeout, agent.DefaultRetryPolicy().CallTimeout),
	}
	factory := &agent.OpenAIFactory{
		APIURL:      cfg.OpenAI.APIURL,
		Temperature: cfg.OpenAI.Temperature,
		HTTPClient:  &http.Client{Timeout: policy.CallTimeout + 5*time.Second},
	}

	opts := []service.Option{
		service.WithModelNames(cfg.OpenAI.ImportModel, cfg.OpenAI.AnalysisModel),
		service.WithImporter(parser.NewTextImporter(engine,
			parser.WithImportRetryPolicy(policy),
			parser.WithMinChars(cfg.Import.MinExtractedChar),
		)),
		service.WithAnalyzer(analysis.NewAnalyzer(engine,
			analysis.WithRetryPolicy(policy),
			analysis.WithTemperature(cfg.OpenAI.Temperature),
		)),
	}
	if storageManager.MinIO != nil {
		opts = append(opts, service.WithTextArchive(storageManager.MinIO))
	}
	resumeService := service.NewResumeService(engine, storageManager.MySQL, factory, opts...)

	// 接口值不能持有 nil 的 *storage.Redis
	var sessionCache service.SessionCache
	if storageManager.Redis != nil {
		sessionCache = storageManager.Redis
	}
	sessionService := service.NewSessionService(storageManager.MySQL, sessionCache)

	serverTracer, tracerCfg := hertztracing.NewServerTracer()
	maxBody := cfg.Server.MaxRequestBodySize
	if maxBody <= 0 {
		maxBody = cfg.Import.MaxTextBytes + 1024
	}
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		server.WithMaxRequestBodySize(maxBody),
		server.WithExitWaitTime(config.GetDuration(cfg.Server.ShutdownTimeout, 5*time.Second)),
		serverTracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))
	h.Use(router.CORS(cfg.Server.AllowOrigins))
	h.Use(router.AccessLog())

	router.RegisterRoutes(h,
		handler.NewResumeHandler(resumeService, cfg.Import.MaxTextBytes),
		handler.NewSessionHandler(sessionService),
	)
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

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(),
		config.GetDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			glog.Warnf("关闭链路追踪失败: %v", err)
		}
	}
	glog.Info("优雅退出完成")
}

// initLogger 初始化应用日志，并让 Hertz 的 hlog 复用同一个 zerolog 实例
func initLogger(cfg *config.Config) {
	l := appLogger.Init(appLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	glog.SetLogger(hertzadapter.From(l))
	if cfg.Logger.Level == "debug" {
		glog.SetLevel(glog.LevelDebug)
	} else {
		glog.SetLevel(glog.LevelInfo)
	}
}
