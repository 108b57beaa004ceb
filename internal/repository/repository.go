package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	City              CityRepository
	User              UserRepository
	Semester          SemesterRepository
	Course            CourseRepository
	Enrollment        EnrollmentRepository
	Assignment        AssignmentRepository
	StudentAssignment StudentAssignmentRepository
	Comment           CommentRepository
	Admission         AdmissionRepository
	Task              TaskRepository
	Stats             StatsRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:                db,
		City:              NewCityRepo(db),
		User:              NewUserRepo(db),
		Semester:          NewSemesterRepo(db),
		Course:            NewCourseRepo(db),
		Enrollment:        NewEnrollmentRepo(db),
		Assignment:        NewAssignmentRepo(db),
		StudentAssignment: NewStudentAssignmentRepo(db),
		Comment:           NewCommentRepo(db),
		Admission:         NewAdmissionRepo(db),
		Task:              NewTaskRepo(db),
		Stats:             NewStatsRepo(db),
	}
}

// BeginTx 开启事务
// 未绑定数据库（单元测试中的 mock 聚合）时返回 nil，调用方需判空
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	if r.db == nil {
		return nil, nil
	}
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return tx, nil
}

// WithTx 返回绑定到事务的 Repository 聚合；tx 为 nil 时返回自身
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}
