package repository

import (
	"context"

	"gorm.io/gorm"

	"cscenter/backend/internal/model"
	pkgerrors "cscenter/backend/pkg/errors"
)

// EnrollmentRepository 选课数据访问接口
type EnrollmentRepository interface {
	Create(ctx context.Context, e *model.Enrollment) error
	GetByID(ctx context.Context, id int64) (*model.Enrollment, error)
	GetActive(ctx context.Context, studentID, courseID int64) (*model.Enrollment, error)
	GetAny(ctx context.Context, studentID, courseID int64) (*model.Enrollment, error)
	Update(ctx context.Context, e *model.Enrollment) error
	ListActiveByCourse(ctx context.Context, courseID int64, groupID *int64) ([]model.Enrollment, error)
	ListActiveByStudent(ctx context.Context, studentID int64) ([]model.Enrollment, error)
	UpdateGradeIfUnchanged(ctx context.Context, id int64, prior *string, grade string) (bool, error)
}

type enrollmentRepo struct {
	db *gorm.DB
}

// NewEnrollmentRepo 创建 EnrollmentRepository 实例
func NewEnrollmentRepo(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepo{db: db}
}

func (r *enrollmentRepo) Create(ctx context.Context, e *model.Enrollment) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *enrollmentRepo) GetByID(ctx context.Context, id int64) (*model.Enrollment, error) {
	var e model.Enrollment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *enrollmentRepo) GetActive(ctx context.Context, studentID, courseID int64) (*model.Enrollment, error) {
	var e model.Enrollment
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND course_id = ? AND is_deleted = ?", studentID, courseID, false).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetAny 返回任意状态的选课记录（用于重新选课时复用）
func (r *enrollmentRepo) GetAny(ctx context.Context, studentID, courseID int64) (*model.Enrollment, error) {
	var e model.Enrollment
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Order("is_deleted, id DESC").
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Update 乐观锁更新
func (r *enrollmentRepo) Update(ctx context.Context, e *model.Enrollment) error {
	oldVersion := e.Version
	result := r.db.WithContext(ctx).
		Model(&model.Enrollment{}).
		Where("id = ? AND version = ?", e.ID, oldVersion).
		Updates(map[string]interface{}{
			"student_group_id": e.StudentGroupID,
			"grade":            e.Grade,
			"is_deleted":       e.IsDeleted,
			"reason_entry":     e.ReasonEntry,
			"reason_leave":     e.ReasonLeave,
			"version":          oldVersion + 1,
			"updated_at":       gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	e.Version = oldVersion + 1
	return nil
}

// ListActiveByCourse 列出课程的有效选课（含学生与分组），可按分组过滤
func (r *enrollmentRepo) ListActiveByCourse(ctx context.Context, courseID int64, groupID *int64) ([]model.Enrollment, error) {
	var list []model.Enrollment
	q := r.db.WithContext(ctx).
		Preload("Student").
		Preload("StudentGroup").
		Joins("JOIN users ON users.id = enrollments.student_id").
		Where("enrollments.course_id = ? AND enrollments.is_deleted = ?", courseID, false)
	if groupID != nil {
		q = q.Where("enrollments.student_group_id = ?", *groupID)
	}
	err := q.Order("users.last_name, users.first_name, enrollments.id").Find(&list).Error
	return list, err
}

func (r *enrollmentRepo) ListActiveByStudent(ctx context.Context, studentID int64) ([]model.Enrollment, error) {
	var list []model.Enrollment
	err := r.db.WithContext(ctx).
		Preload("Course").
		Preload("Course.Semester").
		Where("student_id = ? AND is_deleted = ?", studentID, false).
		Order("id").
		Find(&list).Error
	return list, err
}

// UpdateGradeIfUnchanged 条件更新期末成绩
// 仅当库中成绩仍为 prior 或已等于 grade 时写入；返回是否命中
func (r *enrollmentRepo) UpdateGradeIfUnchanged(ctx context.Context, id int64, prior *string, grade string) (bool, error) {
	cond, args, err := unchangedSince("grade", nullableString(prior), grade)
	if err != nil {
		return false, err
	}
	result := r.db.WithContext(ctx).
		Model(&model.Enrollment{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Where(cond, args...).
		Updates(map[string]interface{}{
			"grade":      grade,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
