package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cscenter/backend/internal/model"
	"cscenter/backend/internal/service"
)

const importLockName = "schedule:" + service.JobImportTestingResults

// Locker 分布式锁，多个 worker 实例只有一个执行调度
type Locker interface {
	AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
}

// ImportScheduler 定期安排榜单导入
type ImportScheduler interface {
	ScheduleImport(ctx context.Context) (*model.Task, error)
}

// Scheduler 定时创建 import_testing_results 任务
type Scheduler struct {
	tasks    ImportScheduler
	locker   Locker
	interval time.Duration
	owner    string
	logger   *zap.Logger
}

// NewScheduler 创建调度器；locker 为 nil 时不加锁
func NewScheduler(interval time.Duration, tasks ImportScheduler, locker Locker, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		tasks:    tasks,
		locker:   locker,
		interval: interval,
		owner:    uuid.New().String(),
		logger:   logger,
	}
}

// Run 每个周期调度一次，interval <= 0 时直接返回
func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("榜单导入调度已关闭")
		return
	}
	s.logger.Info("榜单导入调度已启动", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick 执行一次调度，返回是否创建了任务
// 锁在本周期内不释放，其它实例同一周期内拿不到锁
func (s *Scheduler) Tick(ctx context.Context) bool {
	if s.locker != nil {
		ok, err := s.locker.AcquireLock(ctx, importLockName, s.owner, s.interval)
		if err != nil {
			s.logger.Error("获取调度锁失败", zap.Error(err))
			return false
		}
		if !ok {
			return false
		}
	}

	task, err := s.tasks.ScheduleImport(ctx)
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		if task != nil {
			fields = append(fields, zap.Int64("task_id", task.ID))
		}
		s.logger.Error("安排榜单导入失败", fields...)
		return false
	}
	s.logger.Info("已安排榜单导入", zap.Int64("task_id", task.ID))
	return true
}
