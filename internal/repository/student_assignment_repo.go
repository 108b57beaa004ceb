package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cscenter/backend/internal/model"
)

// StudentAssignmentRepository 学生个人作业数据访问接口
type StudentAssignmentRepository interface {
	GetByID(ctx context.Context, id int64) (*model.StudentAssignment, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.StudentAssignment, error)
	Get(ctx context.Context, assignmentID, studentID int64) (*model.StudentAssignment, error)
	CreateMissing(ctx context.Context, assignmentIDs, studentIDs []int64) error
	Restore(ctx context.Context, assignmentIDs []int64, studentID int64) error
	SoftDeleteByCourse(ctx context.Context, courseID, studentID int64) error
	ListByCourse(ctx context.Context, courseID int64, studentIDs []int64) ([]model.StudentAssignment, error)
	UpdateScore(ctx context.Context, id int64, score *float64) error
	UpdateScoreIfUnchanged(ctx context.Context, id int64, prior, score *float64) (bool, error)
	UpdateMeta(ctx context.Context, id int64, meta datatypes.JSONMap) error
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	SetAssignee(ctx context.Context, id int64, assigneeID *int64, triggerAutoAssign bool) error
	CreateAuditLog(ctx context.Context, log *model.AssignmentScoreAuditLog) error
	ListAuditLogs(ctx context.Context, studentAssignmentID int64) ([]model.AssignmentScoreAuditLog, error)
}

type studentAssignmentRepo struct {
	db *gorm.DB
}

// NewStudentAssignmentRepo 创建 StudentAssignmentRepository 实例
func NewStudentAssignmentRepo(db *gorm.DB) StudentAssignmentRepository {
	return &studentAssignmentRepo{db: db}
}

func (r *studentAssignmentRepo) GetByID(ctx context.Context, id int64) (*model.StudentAssignment, error) {
	var sa model.StudentAssignment
	err := r.db.WithContext(ctx).
		Preload("Assignment").
		Preload("Assignment.Course").
		Preload("Student").
		Where("id = ? AND is_deleted = ?", id, false).
		First(&sa).Error
	if err != nil {
		return nil, err
	}
	return &sa, nil
}

// GetByIDForUpdate 加行锁读取（需在事务中调用）
func (r *studentAssignmentRepo) GetByIDForUpdate(ctx context.Context, id int64) (*model.StudentAssignment, error) {
	var sa model.StudentAssignment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&sa).Error
	if err != nil {
		return nil, err
	}
	return &sa, nil
}

func (r *studentAssignmentRepo) Get(ctx context.Context, assignmentID, studentID int64) (*model.StudentAssignment, error) {
	var sa model.StudentAssignment
	err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
		First(&sa).Error
	if err != nil {
		return nil, err
	}
	return &sa, nil
}

// CreateMissing 为 (作业 × 学生) 组合批量创建个人作业，已存在的忽略
func (r *studentAssignmentRepo) CreateMissing(ctx context.Context, assignmentIDs, studentIDs []int64) error {
	if len(assignmentIDs) == 0 || len(studentIDs) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]model.StudentAssignment, 0, len(assignmentIDs)*len(studentIDs))
	for _, aid := range assignmentIDs {
		for _, sid := range studentIDs {
			rows = append(rows, model.StudentAssignment{
				AssignmentID:      aid,
				StudentID:         sid,
				TriggerAutoAssign: true,
				ModifiedAt:        now,
				CreatedAt:         now,
			})
		}
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "assignment_id"}, {Name: "student_id"}},
			DoNothing: true,
		}).
		CreateInBatches(rows, 500).Error
}

// Restore 重新选课时恢复被软删除的个人作业
func (r *studentAssignmentRepo) Restore(ctx context.Context, assignmentIDs []int64, studentID int64) error {
	if len(assignmentIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.StudentAssignment{}).
		Where("assignment_id IN ? AND student_id = ? AND is_deleted = ?", assignmentIDs, studentID, true).
		Update("is_deleted", false).Error
}

// SoftDeleteByCourse 退课时软删除学生在该课程下的个人作业
func (r *studentAssignmentRepo) SoftDeleteByCourse(ctx context.Context, courseID, studentID int64) error {
	assignments := r.db.Model(&model.Assignment{}).Select("id").Where("course_id = ?", courseID)
	return r.db.WithContext(ctx).
		Model(&model.StudentAssignment{}).
		Where("student_id = ? AND assignment_id IN (?)", studentID, assignments).
		Update("is_deleted", true).Error
}

// ListByCourse 课程内指定学生的个人作业（成绩单矩阵）
func (r *studentAssignmentRepo) ListByCourse(ctx context.Context, courseID int64, studentIDs []int64) ([]model.StudentAssignment, error) {
	var list []model.StudentAssignment
	if len(studentIDs) == 0 {
		return list, nil
	}
	err := r.db.WithContext(ctx).
		Joins("JOIN assignments ON assignments.id = student_assignments.assignment_id").
		Where("assignments.course_id = ?", courseID).
		Where("student_assignments.student_id IN ? AND student_assignments.is_deleted = ?", studentIDs, false).
		Order("student_assignments.id").
		Find(&list).Error
	return list, err
}

func (r *studentAssignmentRepo) UpdateScore(ctx context.Context, id int64, score *float64) error {
	return r.db.WithContext(ctx).
		Model(&model.StudentAssignment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"score":       score,
			"modified_at": time.Now(),
		}).Error
}

// UpdateScoreIfUnchanged 条件更新作业分数
// 仅当库中分数仍为 prior 或已等于 score 时写入（NULL 安全比较）；返回是否命中
func (r *studentAssignmentRepo) UpdateScoreIfUnchanged(ctx context.Context, id int64, prior, score *float64) (bool, error) {
	cond, args, err := unchangedSince("score", nullableFloat(prior), nullableFloat(score))
	if err != nil {
		return false, err
	}
	result := r.db.WithContext(ctx).
		Model(&model.StudentAssignment{}).
		Where("id = ?", id).
		Where(cond, args...).
		Updates(map[string]interface{}{
			"score":       score,
			"modified_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *studentAssignmentRepo) UpdateMeta(ctx context.Context, id int64, meta datatypes.JSONMap) error {
	return r.db.WithContext(ctx).
		Model(&model.StudentAssignment{}).
		Where("id = ?", id).
		Update("meta", meta).Error
}

// UpdateFields 更新派生字段（modified_at / first_student_comment_at / last_comment_from）
func (r *studentAssignmentRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.StudentAssignment{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *studentAssignmentRepo) SetAssignee(ctx context.Context, id int64, assigneeID *int64, triggerAutoAssign bool) error {
	return r.db.WithContext(ctx).
		Model(&model.StudentAssignment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"assignee_id":         assigneeID,
			"trigger_auto_assign": triggerAutoAssign,
		}).Error
}

func (r *studentAssignmentRepo) CreateAuditLog(ctx context.Context, log *model.AssignmentScoreAuditLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *studentAssignmentRepo) ListAuditLogs(ctx context.Context, studentAssignmentID int64) ([]model.AssignmentScoreAuditLog, error) {
	var logs []model.AssignmentScoreAuditLog
	err := r.db.WithContext(ctx).
		Where("student_assignment_id = ?", studentAssignmentID).
		Order("id").
		Find(&logs).Error
	return logs, err
}
