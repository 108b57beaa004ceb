package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cscenter/backend/internal/model"
)

// CourseRepository 课程数据访问接口
type CourseRepository interface {
	Create(ctx context.Context, course *model.Course) error
	GetByID(ctx context.Context, id int64) (*model.Course, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Course, error)
	RefreshLearnersCount(ctx context.Context, courseID int64) error

	AddTeacher(ctx context.Context, ct *model.CourseTeacher) error
	GetCourseTeacher(ctx context.Context, courseID, teacherID int64) (*model.CourseTeacher, error)
	ListTeachers(ctx context.Context, courseID int64) ([]model.CourseTeacher, error)

	CreateGroup(ctx context.Context, group *model.StudentGroup) error
	ListGroups(ctx context.Context, courseID int64) ([]model.StudentGroup, error)
	AddGroupAssignee(ctx context.Context, a *model.StudentGroupAssignee) error
	ListGroupAssignees(ctx context.Context, groupID int64, assignmentID *int64) ([]model.StudentGroupAssignee, error)
}

type courseRepo struct {
	db *gorm.DB
}

// NewCourseRepo 创建 CourseRepository 实例
func NewCourseRepo(db *gorm.DB) CourseRepository {
	return &courseRepo{db: db}
}

func (r *courseRepo) Create(ctx context.Context, course *model.Course) error {
	return r.db.WithContext(ctx).Create(course).Error
}

func (r *courseRepo) GetByID(ctx context.Context, id int64) (*model.Course, error) {
	var course model.Course
	err := r.db.WithContext(ctx).
		Preload("Semester").
		Where("id = ?", id).
		First(&course).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// GetByIDForUpdate 加行锁读取课程（需在事务中调用）
func (r *courseRepo) GetByIDForUpdate(ctx context.Context, id int64) (*model.Course, error) {
	var course model.Course
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&course).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// RefreshLearnersCount 按有效选课重新计算学生人数
func (r *courseRepo) RefreshLearnersCount(ctx context.Context, courseID int64) error {
	active := r.db.Model(&model.Enrollment{}).
		Select("COUNT(*)").
		Where("course_id = ? AND is_deleted = ?", courseID, false)
	return r.db.WithContext(ctx).
		Model(&model.Course{}).
		Where("id = ?", courseID).
		Update("learners_count", active).Error
}

func (r *courseRepo) AddTeacher(ctx context.Context, ct *model.CourseTeacher) error {
	return r.db.WithContext(ctx).Create(ct).Error
}

func (r *courseRepo) GetCourseTeacher(ctx context.Context, courseID, teacherID int64) (*model.CourseTeacher, error) {
	var ct model.CourseTeacher
	err := r.db.WithContext(ctx).
		Where("course_id = ? AND teacher_id = ?", courseID, teacherID).
		First(&ct).Error
	if err != nil {
		return nil, err
	}
	return &ct, nil
}

func (r *courseRepo) ListTeachers(ctx context.Context, courseID int64) ([]model.CourseTeacher, error) {
	var teachers []model.CourseTeacher
	err := r.db.WithContext(ctx).
		Preload("Teacher").
		Where("course_id = ?", courseID).
		Order("id").
		Find(&teachers).Error
	return teachers, err
}

func (r *courseRepo) CreateGroup(ctx context.Context, group *model.StudentGroup) error {
	return r.db.WithContext(ctx).Create(group).Error
}

func (r *courseRepo) ListGroups(ctx context.Context, courseID int64) ([]model.StudentGroup, error) {
	var groups []model.StudentGroup
	err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("name").
		Find(&groups).Error
	return groups, err
}

func (r *courseRepo) AddGroupAssignee(ctx context.Context, a *model.StudentGroupAssignee) error {
	return r.db.WithContext(ctx).Create(a).Error
}

// ListGroupAssignees 查询分组负责人
// assignmentID 为 nil 时返回分组默认负责人，否则返回指定作业的负责人
func (r *courseRepo) ListGroupAssignees(ctx context.Context, groupID int64, assignmentID *int64) ([]model.StudentGroupAssignee, error) {
	var assignees []model.StudentGroupAssignee
	q := r.db.WithContext(ctx).Where("student_group_id = ?", groupID)
	if assignmentID == nil {
		q = q.Where("assignment_id IS NULL")
	} else {
		q = q.Where("assignment_id = ?", *assignmentID)
	}
	err := q.Order("id").Find(&assignees).Error
	return assignees, err
}
