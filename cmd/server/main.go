package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"cscenter/backend/config"
	"cscenter/backend/internal/api/handler"
	"cscenter/backend/internal/api/router"
	"cscenter/backend/internal/rbac"
	"cscenter/backend/internal/repository"
	"cscenter/backend/internal/service"
	"cscenter/backend/pkg/contest"
	"cscenter/backend/pkg/database"
	"cscenter/backend/pkg/jwt"
	applogger "cscenter/backend/pkg/logger"
	"cscenter/backend/pkg/mail"
	"cscenter/backend/pkg/redis"
	"cscenter/backend/pkg/storage"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.Int64("site_id", cfg.Site.ID),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，Token 黑名单、限流与后台任务将不可用", zap.Error(err))
		rdb = nil
	}

	// 5. 附件存储
	store, err := storage.New(&cfg.Storage)
	if err != nil {
		logger.Fatal("初始化附件存储失败", zap.Error(err))
	}

	// 6. 依赖注入: Repository → Service → Handler
	deps := service.Deps{
		JWT:     jwt.NewManager(&cfg.Auth),
		Storage: store,
		Contest: contest.NewFactory(&cfg.Contest),
		Mail:    mail.NewSender(&cfg.Mail, logger),
	}
	if rdb != nil {
		deps.Tokens = rdb
		deps.Queue = rdb
	}

	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, deps, logger)
	registry := rbac.NewDefaultRegistry()
	h := handler.NewHandler(cfg, svc, registry)

	// 7. 初始化路由
	engine := router.Setup(cfg, h, router.Options{
		JWT:      deps.JWT,
		Redis:    rdb,
		Access:   svc.Access,
		Registry: registry,
		Branches: repo.City,
	}, logger)

	// 8. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 9. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	sqlDB.Close()
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
