// Package worker 后台任务消费与定时调度
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"cscenter/backend/config"
	"cscenter/backend/internal/service"
	applogger "cscenter/backend/pkg/logger"
	"cscenter/backend/pkg/metrics"
	"cscenter/backend/pkg/redis"
)

// ErrUnknownJob 没有注册处理函数的任务
var ErrUnknownJob = errors.New("未知的任务类型")

// Queue 任务出队（Redis 实现）
type Queue interface {
	Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*redis.Job, error)
}

// HandlerFunc 任务处理函数
type HandlerFunc func(ctx context.Context, job *redis.Job) error

// Worker 从 Redis 队列取任务并分发给处理函数
// 队列按 queues 顺序优先出队（high 先于 default）
type Worker struct {
	queue       Queue
	queues      []string
	pollTimeout time.Duration
	jobTimeout  time.Duration
	retryDelay  time.Duration

	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	logger *zap.Logger
}

// New 创建 Worker
func New(cfg *config.WorkerConfig, queue Queue, logger *zap.Logger) *Worker {
	queues := cfg.Queues
	if len(queues) == 0 {
		queues = []string{redis.QueueHigh, redis.QueueDefault}
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &Worker{
		queue:       queue,
		queues:      queues,
		pollTimeout: pollTimeout,
		jobTimeout:  cfg.JobTimeout,
		retryDelay:  time.Second,
		handlers:    make(map[string]HandlerFunc),
		logger:      logger,
	}
}

// Register 注册任务处理函数，同名覆盖
func (w *Worker) Register(name string, h HandlerFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[name] = h
}

// RegisterServices 注册内置任务
func (w *Worker) RegisterServices(contest service.ContestService, sa service.PersonalAssignmentService) {
	w.Register(service.JobRegisterInContest, func(ctx context.Context, job *redis.Job) error {
		var args service.RegisterInContestArgs
		if err := job.Decode(&args); err != nil {
			return err
		}
		return contest.RegisterInContest(ctx, args.ApplicantID)
	})
	w.Register(service.JobImportTestingResults, func(ctx context.Context, job *redis.Job) error {
		var args service.ImportTestingResultsArgs
		if err := job.Decode(&args); err != nil {
			return err
		}
		return contest.ImportTestingResults(ctx, args.TaskID)
	})
	w.Register(service.JobUpdateStudentAssignmentStats, func(ctx context.Context, job *redis.Job) error {
		var args service.StudentAssignmentStatsArgs
		if err := job.Decode(&args); err != nil {
			return err
		}
		return sa.UpdateStats(ctx, args.StudentAssignmentID)
	})
}

// Run 循环消费任务直到 ctx 取消
// 任务失败只记录日志，不重新入队
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker 已启动", zap.Strings("queues", w.queues))
	for {
		if ctx.Err() != nil {
			w.logger.Info("worker 已停止")
			return nil
		}

		job, err := w.queue.Dequeue(ctx, w.queues, w.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error("任务出队失败", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(w.retryDelay):
			}
			continue
		}
		if job == nil {
			continue
		}

		// 关闭信号不打断执行中的任务，由 jobTimeout 兜底
		_ = w.Process(context.WithoutCancel(ctx), job)
	}
}

// Process 执行单个任务：超时控制、panic 恢复、指标
func (w *Worker) Process(ctx context.Context, job *redis.Job) (err error) {
	log := applogger.ForJob(w.logger, job.Name, job.ID).With(zap.String("queue", job.Queue))

	w.mu.RLock()
	h, ok := w.handlers[job.Name]
	w.mu.RUnlock()
	if !ok {
		metrics.JobsFailed.WithLabelValues(job.Name).Inc()
		log.Error("未注册的任务")
		return fmt.Errorf("%w: %s", ErrUnknownJob, job.Name)
	}

	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("任务 panic: %v", r)
		}
		elapsed := time.Since(start)
		metrics.JobDuration.WithLabelValues(job.Name).Observe(elapsed.Seconds())
		if err != nil {
			metrics.JobsFailed.WithLabelValues(job.Name).Inc()
			log.Error("任务执行失败", zap.Duration("elapsed", elapsed), zap.Error(err))
			return
		}
		metrics.JobsProcessed.WithLabelValues(job.Name).Inc()
		log.Info("任务执行完成", zap.Duration("elapsed", elapsed))
	}()

	log.Info("开始执行任务")
	return h(ctx, job)
}
