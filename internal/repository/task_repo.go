package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"cscenter/backend/internal/model"
	pkgerrors "cscenter/backend/pkg/errors"
)

// TaskRepository 后台任务记录数据访问接口
type TaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	GetUnlocked(ctx context.Context, id int64, now time.Time) (*model.Task, error)
	Lock(ctx context.Context, id int64, lockedBy string, now time.Time) error
	MarkProcessed(ctx context.Context, id int64, now time.Time) error
	ListUnprocessed(ctx context.Context, name string, limit int) ([]model.Task, error)
}

// lockTTL 超过该时长的锁视为失效
const lockTTL = time.Hour

type taskRepo struct {
	db *gorm.DB
}

// NewTaskRepo 创建 TaskRepository 实例
func NewTaskRepo(db *gorm.DB) TaskRepository {
	return &taskRepo{db: db}
}

func (r *taskRepo) Create(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// GetUnlocked 未加锁（或锁已过期）且未处理的任务
func (r *taskRepo) GetUnlocked(ctx context.Context, id int64, now time.Time) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).
		Where("id = ? AND processed_at IS NULL", id).
		Where("locked_at IS NULL OR locked_at < ?", now.Add(-lockTTL)).
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// Lock 抢占任务锁；锁已被他人持有时返回 ErrTaskLocked
func (r *taskRepo) Lock(ctx context.Context, id int64, lockedBy string, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.Task{}).
		Where("id = ? AND processed_at IS NULL", id).
		Where("locked_at IS NULL OR locked_at < ?", now.Add(-lockTTL)).
		Updates(map[string]interface{}{
			"locked_at": now,
			"locked_by": lockedBy,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrTaskLocked
	}
	return nil
}

func (r *taskRepo) MarkProcessed(ctx context.Context, id int64, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Task{}).
		Where("id = ?", id).
		Update("processed_at", now).Error
}

// ListUnprocessed 需要人工核对的任务
func (r *taskRepo) ListUnprocessed(ctx context.Context, name string, limit int) ([]model.Task, error) {
	var list []model.Task
	q := r.db.WithContext(ctx).Where("processed_at IS NULL")
	if name != "" {
		q = q.Where("name = ?", name)
	}
	err := q.Order("created_at DESC").Limit(limit).Find(&list).Error
	return list, err
}
