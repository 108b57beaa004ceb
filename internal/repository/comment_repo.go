package repository

import (
	"context"

	"gorm.io/gorm"

	"cscenter/backend/internal/model"
)

// CommentRepository 作业评论/解答数据访问接口
type CommentRepository interface {
	Create(ctx context.Context, c *model.AssignmentComment) error
	Update(ctx context.Context, c *model.AssignmentComment) error
	GetByID(ctx context.Context, id int64) (*model.AssignmentComment, error)
	GetDraft(ctx context.Context, studentAssignmentID, authorID int64, commentType string) (*model.AssignmentComment, error)
	GetLatestPublished(ctx context.Context, studentAssignmentID int64) (*model.AssignmentComment, error)
	CountPublished(ctx context.Context, studentAssignmentID int64, commentType string) (int64, error)
	CountPublishedByAuthor(ctx context.Context, studentAssignmentID, authorID int64) (int64, error)
	ListPublished(ctx context.Context, studentAssignmentID int64) ([]model.AssignmentComment, error)
}

type commentRepo struct {
	db *gorm.DB
}

// NewCommentRepo 创建 CommentRepository 实例
func NewCommentRepo(db *gorm.DB) CommentRepository {
	return &commentRepo{db: db}
}

func (r *commentRepo) Create(ctx context.Context, c *model.AssignmentComment) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *commentRepo) Update(ctx context.Context, c *model.AssignmentComment) error {
	return r.db.WithContext(ctx).
		Model(&model.AssignmentComment{}).
		Where("id = ?", c.ID).
		Updates(map[string]interface{}{
			"text":           c.Text,
			"attachment_key": c.AttachmentKey,
			"is_published":   c.IsPublished,
			"created_at":     c.CreatedAt,
		}).Error
}

func (r *commentRepo) GetByID(ctx context.Context, id int64) (*model.AssignmentComment, error) {
	var c model.AssignmentComment
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetDraft 作者在该个人作业下未发布的草稿
func (r *commentRepo) GetDraft(ctx context.Context, studentAssignmentID, authorID int64, commentType string) (*model.AssignmentComment, error) {
	var c model.AssignmentComment
	err := r.db.WithContext(ctx).
		Where("student_assignment_id = ? AND author_id = ? AND type = ? AND is_published = ?",
			studentAssignmentID, authorID, commentType, false).
		Order("id DESC").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetLatestPublished 最近一次已发布的提交
func (r *commentRepo) GetLatestPublished(ctx context.Context, studentAssignmentID int64) (*model.AssignmentComment, error) {
	var c model.AssignmentComment
	err := r.db.WithContext(ctx).
		Where("student_assignment_id = ? AND is_published = ?", studentAssignmentID, true).
		Order("created_at DESC, id DESC").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *commentRepo) CountPublished(ctx context.Context, studentAssignmentID int64, commentType string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.AssignmentComment{}).
		Where("student_assignment_id = ? AND type = ? AND is_published = ?", studentAssignmentID, commentType, true).
		Count(&n).Error
	return n, err
}

func (r *commentRepo) CountPublishedByAuthor(ctx context.Context, studentAssignmentID, authorID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.AssignmentComment{}).
		Where("student_assignment_id = ? AND author_id = ? AND is_published = ?", studentAssignmentID, authorID, true).
		Count(&n).Error
	return n, err
}

func (r *commentRepo) ListPublished(ctx context.Context, studentAssignmentID int64) ([]model.AssignmentComment, error) {
	var list []model.AssignmentComment
	err := r.db.WithContext(ctx).
		Where("student_assignment_id = ? AND is_published = ?", studentAssignmentID, true).
		Order("created_at, id").
		Find(&list).Error
	return list, err
}
