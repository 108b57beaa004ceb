// cscctl 管理命令：数据库迁移、成绩导入导出、后台任务、用户管理
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cscenter/backend/config"
	"cscenter/backend/internal/repository"
	"cscenter/backend/internal/service"
	"cscenter/backend/pkg/contest"
	"cscenter/backend/pkg/database"
	applogger "cscenter/backend/pkg/logger"
	"cscenter/backend/pkg/mail"
	"cscenter/backend/pkg/redis"
	"cscenter/backend/pkg/storage"
)

var configPath string

// app 命令共享的依赖
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	sqlDB  *sql.DB
	rdb    *redis.Client
	repo   *repository.Repository
	svc    *service.Service
}

// newApp 连接数据库；needQueue 为 true 时 Redis 必须可用
func newApp(needQueue bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	logger = logger.Named("cscctl")

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, db: db, sqlDB: sqlDB, repo: repository.NewRepository(db)}

	deps := service.Deps{
		Contest: contest.NewFactory(&cfg.Contest),
		Mail:    mail.NewSender(&cfg.Mail, logger),
	}
	if store, err := storage.New(&cfg.Storage); err == nil {
		deps.Storage = store
	} else {
		logger.Warn("附件存储不可用", zap.Error(err))
	}
	if rdb, err := redis.NewClient(&cfg.Redis, logger); err == nil {
		a.rdb = rdb
		deps.Tokens = rdb
		deps.Queue = rdb
	} else if needQueue {
		sqlDB.Close()
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	a.svc = service.NewService(cfg, a.repo, deps, logger)
	return a, nil
}

func (a *app) Close() {
	if a.rdb != nil {
		a.rdb.Close()
	}
	a.sqlDB.Close()
	_ = a.logger.Sync()
}

// withApp 包装需要依赖的命令
func withApp(needQueue bool, run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(needQueue)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, a, args)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cscctl",
		Short:         "CS center backend management commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径")

	root.AddCommand(
		newMigrateCmd(),
		newAdmissionCmd(),
		newTasksCmd(),
		newExportCmd(),
		newUsersCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
