package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"cscenter/backend/internal/rbac"
	"cscenter/backend/internal/repository"
)

// AccessService 为权限判断加载对象上下文
type AccessService interface {
	// CourseAccess 当前用户与课程的关系（是否教师、是否在读）
	CourseAccess(ctx context.Context, courseID, userID int64) (*rbac.CourseAccess, error)
	// StudentAssignmentAccess 当前用户与个人作业的关系
	StudentAssignmentAccess(ctx context.Context, studentAssignmentID, userID int64) (*rbac.StudentAssignmentAccess, error)
}

type accessService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewAccessService 创建 AccessService 实例
func NewAccessService(repo *repository.Repository, logger *zap.Logger) AccessService {
	return &accessService{repo: repo, logger: logger}
}

func (s *accessService) CourseAccess(ctx context.Context, courseID, userID int64) (*rbac.CourseAccess, error) {
	if _, err := s.repo.Course.GetByID(ctx, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		s.logger.Error("查询课程失败", zap.Int64("course_id", courseID), zap.Error(err))
		return nil, err
	}

	access := &rbac.CourseAccess{CourseID: courseID}

	ct, err := s.repo.Course.GetCourseTeacher(ctx, courseID, userID)
	switch {
	case err == nil:
		access.IsTeacher = true
		access.TeacherRoles = ct.Roles
	case !errors.Is(err, gorm.ErrRecordNotFound):
		s.logger.Error("查询课程教师失败", zap.Int64("course_id", courseID), zap.Error(err))
		return nil, err
	}

	_, err = s.repo.Enrollment.GetActive(ctx, userID, courseID)
	switch {
	case err == nil:
		access.IsEnrolled = true
	case !errors.Is(err, gorm.ErrRecordNotFound):
		s.logger.Error("查询选课记录失败", zap.Int64("course_id", courseID), zap.Error(err))
		return nil, err
	}
	return access, nil
}

func (s *accessService) StudentAssignmentAccess(ctx context.Context, studentAssignmentID, userID int64) (*rbac.StudentAssignmentAccess, error) {
	sa, err := s.repo.StudentAssignment.GetByID(ctx, studentAssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentAssignmentNotFound
		}
		s.logger.Error("查询个人作业失败", zap.Int64("student_assignment_id", studentAssignmentID), zap.Error(err))
		return nil, err
	}
	if sa.Assignment == nil {
		return nil, ErrStudentAssignmentNotFound
	}

	course, err := s.CourseAccess(ctx, sa.Assignment.CourseID, userID)
	if err != nil {
		return nil, err
	}
	// 学生本人是否在读以作业所属学生为准
	if userID != sa.StudentID {
		course.IsEnrolled = false
	}
	return &rbac.StudentAssignmentAccess{StudentID: sa.StudentID, Course: *course}, nil
}
