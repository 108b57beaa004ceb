package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cscenter/backend/internal/model"
)

// SemesterRepository 学期数据访问接口
type SemesterRepository interface {
	Create(ctx context.Context, semester *model.Semester) error
	GetByID(ctx context.Context, id int64) (*model.Semester, error)
	// GetByTerm 按年份与学期类型查找，不存在时返回 gorm.ErrRecordNotFound
	GetByTerm(ctx context.Context, year int, term string) (*model.Semester, error)
	// List 按学期序号倒序
	List(ctx context.Context) ([]model.Semester, error)
	// UpdateEnrollmentPeriod 只写选课期两列，nil 写入 NULL
	UpdateEnrollmentPeriod(ctx context.Context, semester *model.Semester) error
}

type semesterRepo struct {
	db *gorm.DB
}

// NewSemesterRepo 创建 SemesterRepository 实例
func NewSemesterRepo(db *gorm.DB) SemesterRepository {
	return &semesterRepo{db: db}
}

func (r *semesterRepo) Create(ctx context.Context, semester *model.Semester) error {
	if semester.Index == 0 {
		semester.Index = model.SemesterIndex(semester.Year, semester.Type)
	}
	return r.db.WithContext(ctx).Create(semester).Error
}

func (r *semesterRepo) GetByID(ctx context.Context, id int64) (*model.Semester, error) {
	var semester model.Semester
	if err := r.db.WithContext(ctx).Take(&semester, id).Error; err != nil {
		return nil, err
	}
	return &semester, nil
}

func (r *semesterRepo) GetByTerm(ctx context.Context, year int, term string) (*model.Semester, error) {
	var semester model.Semester
	err := r.db.WithContext(ctx).
		Where("year = ? AND type = ?", year, term).
		Take(&semester).Error
	if err != nil {
		return nil, err
	}
	return &semester, nil
}

func (r *semesterRepo) List(ctx context.Context) ([]model.Semester, error) {
	var semesters []model.Semester
	err := r.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "index"}, Desc: true}).
		Find(&semesters).Error
	return semesters, err
}

func (r *semesterRepo) UpdateEnrollmentPeriod(ctx context.Context, semester *model.Semester) error {
	return r.db.WithContext(ctx).
		Model(semester).
		Select("enrollment_start_at", "enrollment_end_at").
		Updates(semester).Error
}
