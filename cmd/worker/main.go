package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"cscenter/backend/config"
	"cscenter/backend/internal/repository"
	"cscenter/backend/internal/service"
	"cscenter/backend/internal/worker"
	"cscenter/backend/pkg/contest"
	"cscenter/backend/pkg/database"
	applogger "cscenter/backend/pkg/logger"
	"cscenter/backend/pkg/mail"
	"cscenter/backend/pkg/metrics"
	"cscenter/backend/pkg/redis"
	"cscenter/backend/pkg/storage"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger = logger.Named("worker")

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}

	// worker 离不开队列，Redis 不可用时直接退出
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Fatal("Redis 连接失败", zap.Error(err))
	}

	store, err := storage.New(&cfg.Storage)
	if err != nil {
		logger.Fatal("初始化附件存储失败", zap.Error(err))
	}

	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, service.Deps{
		Tokens:  rdb,
		Queue:   rdb,
		Storage: store,
		Contest: contest.NewFactory(&cfg.Contest),
		Mail:    mail.NewSender(&cfg.Mail, logger),
	}, logger)

	w := worker.New(&cfg.Worker, rdb, logger)
	w.RegisterServices(svc.Contest, svc.PersonalAssignment)
	scheduler := worker.NewScheduler(cfg.Worker.ImportInterval, svc.Task, rdb, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled && cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("指标服务已启动", zap.String("addr", metricsSrv.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("指标服务异常", zap.Error(err))
			}
		}()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := w.Run(ctx); err != nil {
			logger.Error("worker 异常退出", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("收到关闭信号，等待当前任务结束...")
	wg.Wait()

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	sqlDB.Close()
	rdb.Close()
	logger.Info("worker 已关闭")
}
