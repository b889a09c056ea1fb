package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"resume-builder-go/internal/config"
	"resume-builder-go/internal/constants"
	appLogger "resume-builder-go/internal/logger"
	"resume-builder-go/internal/resume"
	"resume-builder-go/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  string
		dryRun      bool
		concurrency int
		pageSize    int
	)
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.BoolVar(&dryRun, "dry-run", false, "Only report resumes that would be upgraded")
	pflag.IntVar(&concurrency, "concurrency", defaultConcurrency, "Number of resumes upgraded in parallel")
	pflag.IntVar(&pageSize, "page-size", defaultPageSize, "Number of resumes read per page")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("加载配置失败")
	}
	appLogger.Init(appLogger.Config{Level: cfg.Logger.Level, Format: cfg.Logger.Format, TimeFormat: cfg.Logger.TimeFormat})
	log := appLogger.Component("resume_repair")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()

	// 同一时间只允许一个修复任务写库
	if storageManager.Redis != nil && !dryRun {
		lockValue, err := storageManager.Redis.AcquireLock(ctx, constants.KeyRepairLock, constants.RepairLockTTL)
		if err != nil {
			log.Error().Err(err).Msg("获取修复锁失败")
			return 1
		}
		if lockValue == "" {
			log.Warn().Msg("已有修复任务在运行，退出")
			return 0
		}
		defer func() {
			released, err := storageManager.Redis.ReleaseLock(context.Background(), constants.KeyRepairLock, lockValue)
			if err != nil || !released {
				log.Warn().Err(err).Bool("released", released).Msg("释放修复锁失败")
			}
		}()
	}

	engine := resume.NewEngine(resume.NewDefaultRegistry())
	repairer := NewRepairer(storageManager.MySQL, engine.Upgrader(), concurrency, pageSize, dryRun, log)

	report, err := repairer.Run(ctx)
	event := log.Info()
	if err != nil {
		event = log.Error().Err(err)
	}
	event.
		Bool("dry_run", dryRun).
		Int("scanned", report.Scanned).
		Int("pending", report.Pending).
		Int("unchanged", report.Unchanged).
		Int("upgraded", report.Upgraded).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("简历修复结束")

	if err != nil || report.Failed > 0 {
		return 1
	}
	return 0
}
