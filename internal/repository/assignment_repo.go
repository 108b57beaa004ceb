package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"cscenter/backend/internal/model"
)

// AssignmentRepository 作业数据访问接口
type AssignmentRepository interface {
	Create(ctx context.Context, a *model.Assignment) error
	GetByID(ctx context.Context, id int64) (*model.Assignment, error)
	ListByCourse(ctx context.Context, courseID int64) ([]model.Assignment, error)
	ListDeadlinesForStudent(ctx context.Context, studentID int64, from, to time.Time) ([]model.Assignment, error)
	ListDeadlinesForTeacher(ctx context.Context, teacherID int64, from, to time.Time) ([]model.Assignment, error)
}

type assignmentRepo struct {
	db *gorm.DB
}

// NewAssignmentRepo 创建 AssignmentRepository 实例
func NewAssignmentRepo(db *gorm.DB) AssignmentRepository {
	return &assignmentRepo{db: db}
}

func (r *assignmentRepo) Create(ctx context.Context, a *model.Assignment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *assignmentRepo) GetByID(ctx context.Context, id int64) (*model.Assignment, error) {
	var a model.Assignment
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListByCourse 按截止时间排序
func (r *assignmentRepo) ListByCourse(ctx context.Context, courseID int64) ([]model.Assignment, error) {
	var list []model.Assignment
	err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("deadline_at, id").
		Find(&list).Error
	return list, err
}

// ListDeadlinesForStudent 学生在时间区间内的作业截止
func (r *assignmentRepo) ListDeadlinesForStudent(ctx context.Context, studentID int64, from, to time.Time) ([]model.Assignment, error) {
	var list []model.Assignment
	err := r.db.WithContext(ctx).
		Preload("Course").
		Joins("JOIN student_assignments sa ON sa.assignment_id = assignments.id").
		Where("sa.student_id = ? AND sa.is_deleted = ?", studentID, false).
		Where("assignments.deadline_at >= ? AND assignments.deadline_at < ?", from, to).
		Order("assignments.deadline_at").
		Find(&list).Error
	return list, err
}

// ListDeadlinesForTeacher 教师所授课程在时间区间内的作业截止
func (r *assignmentRepo) ListDeadlinesForTeacher(ctx context.Context, teacherID int64, from, to time.Time) ([]model.Assignment, error) {
	var list []model.Assignment
	err := r.db.WithContext(ctx).
		Preload("Course").
		Joins("JOIN course_teachers ct ON ct.course_id = assignments.course_id").
		Where("ct.teacher_id = ?", teacherID).
		Where("assignments.deadline_at >= ? AND assignments.deadline_at < ?", from, to).
		Order("assignments.deadline_at").
		Find(&list).Error
	return list, err
}
