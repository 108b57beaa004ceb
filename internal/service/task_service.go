package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cscenter/backend/internal/model"
	"cscenter/backend/internal/repository"
	pkgredis "cscenter/backend/pkg/redis"
)

// ErrQueueUnavailable Redis 未连接，任务无法入队
var ErrQueueUnavailable = errors.New("任务队列不可用")

// defaultPendingLimit 待核对任务列表的默认条数
const defaultPendingLimit = 50

// TaskService 持久化后台任务：先写 tasks 表再入队，超时未完成的任务留待人工核对
type TaskService interface {
	// ScheduleImport 创建榜单导入任务并放入队列
	// 入队失败时仍返回已写入的任务记录
	ScheduleImport(ctx context.Context) (*model.Task, error)
	// EnqueueContestRegistration 将申请人注册到测试竞赛（高优先级队列）
	EnqueueContestRegistration(ctx context.Context, applicantID int64) (string, error)
	// ListPending 未处理的任务；name 为空表示全部
	ListPending(ctx context.Context, name string, limit int) ([]model.Task, error)
}

type taskService struct {
	repo   *repository.Repository
	queue  JobQueue
	logger *zap.Logger
}

// NewTaskService 创建 TaskService 实例
func NewTaskService(repo *repository.Repository, queue JobQueue, logger *zap.Logger) TaskService {
	return &taskService{repo: repo, queue: queue, logger: logger}
}

func (s *taskService) ScheduleImport(ctx context.Context) (*model.Task, error) {
	task := &model.Task{
		Name:    JobImportTestingResults,
		Payload: datatypes.JSONMap{},
	}
	if err := s.repo.Task.Create(ctx, task); err != nil {
		s.logger.Error("创建导入任务失败", zap.Error(err))
		return nil, err
	}

	if s.queue == nil {
		return task, ErrQueueUnavailable
	}
	jobID, err := s.queue.Enqueue(ctx, pkgredis.QueueDefault, JobImportTestingResults, ImportTestingResultsArgs{TaskID: task.ID})
	if err != nil {
		// 任务记录保留，processed_at 为空，可人工重新入队
		s.logger.Error("导入任务入队失败", zap.Int64("task_id", task.ID), zap.Error(err))
		return task, err
	}

	s.logger.Info("已计划榜单导入",
		zap.Int64("task_id", task.ID),
		zap.String("job_id", jobID),
	)
	return task, nil
}

func (s *taskService) EnqueueContestRegistration(ctx context.Context, applicantID int64) (string, error) {
	if _, err := s.repo.Admission.GetApplicant(ctx, applicantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrApplicantNotFound
		}
		s.logger.Error("查询申请人失败", zap.Int64("applicant_id", applicantID), zap.Error(err))
		return "", err
	}
	if s.queue == nil {
		return "", ErrQueueUnavailable
	}
	jobID, err := s.queue.Enqueue(ctx, pkgredis.QueueHigh, JobRegisterInContest, RegisterInContestArgs{ApplicantID: applicantID})
	if err != nil {
		s.logger.Error("注册任务入队失败", zap.Int64("applicant_id", applicantID), zap.Error(err))
		return "", err
	}
	return jobID, nil
}

func (s *taskService) ListPending(ctx context.Context, name string, limit int) ([]model.Task, error) {
	if limit <= 0 {
		limit = defaultPendingLimit
	}
	list, err := s.repo.Task.ListUnprocessed(ctx, name, limit)
	if err != nil {
		s.logger.Error("查询未处理任务失败", zap.String("name", name), zap.Error(err))
		return nil, err
	}
	return list, nil
}
