package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"cscenter/backend/config"
	"cscenter/backend/internal/dto"
	"cscenter/backend/internal/model"
	"cscenter/backend/internal/repository"
)

// ── 选课模块业务错误 ──

var (
	ErrEnrollmentClosed   = errors.New("当前不在选课时间内")
	ErrCourseIsFull       = errors.New("课程名额已满")
	ErrCourseNotAvailable = errors.New("课程不对该学生所在分校开放")
	ErrAlreadyEnrolled    = errors.New("已选该课程")
	ErrNotEnrolled        = errors.New("未选该课程")
	ErrStudentInactive    = errors.New("学生已被开除")
	ErrUnknownGrade       = errors.New("未知的成绩")
	ErrSemesterNotFound   = errors.New("当前学期尚未创建")
)

// dateLayout 选课/退课原因前的日期
const dateLayout = "02.01.2006"

// EnrollmentService 选课业务接口
type EnrollmentService interface {
	Enroll(ctx context.Context, studentID, courseID int64, reason string) (*dto.EnrollmentResponse, error)
	Leave(ctx context.Context, studentID, courseID int64, reason string) error
	ListForStudent(ctx context.Context, studentID int64) ([]dto.EnrollmentResponse, error)
	CreateAssignment(ctx context.Context, courseID int64, req *dto.CreateAssignmentRequest) (*dto.AssignmentResponse, error)
	CurrentSemester(ctx context.Context, cityCode string) (*dto.SemesterResponse, error)
}

type enrollmentService struct {
	cfg    *config.Config
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewEnrollmentService 创建 EnrollmentService 实例
func NewEnrollmentService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) EnrollmentService {
	return &enrollmentService{cfg: cfg, repo: repo, logger: logger, now: time.Now}
}

// ── 学期与成绩工具函数 ──

// TermAt 返回给定时刻所在的学期（年份 + 类型）
// 春季 1 月 1 日起，夏季 7 月 1 日起，秋季 9 月 1 日起
func TermAt(t time.Time) (int, string) {
	switch {
	case t.Month() >= time.September:
		return t.Year(), model.SemesterAutumn
	case t.Month() >= time.July:
		return t.Year(), model.SemesterSummer
	default:
		return t.Year(), model.SemesterSpring
	}
}

// GradeToMark 将期末成绩转换为可比较的数值，不及格 > 未评定
func GradeToMark(grade string) (int, error) {
	switch grade {
	case model.GradeNotGraded:
		return 0, nil
	case model.GradeUnsatisfactory:
		return 1, nil
	case model.GradeCredit:
		return 2, nil
	case model.GradeGood:
		return 3, nil
	case model.GradeExcellent:
		return 4, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownGrade, grade)
}

// IsNegativeGrade 是否不及格
func IsNegativeGrade(grade string) bool {
	return grade == model.GradeUnsatisfactory
}

// CourseFailedByStudent 学生是否未通过已结束的课程（开放课程不计）
func CourseFailedByStudent(course *model.Course, enrollment *model.Enrollment, today time.Time) bool {
	if course.IsOpen || !course.IsCompleted(today) || enrollment == nil {
		return false
	}
	return enrollment.Grade == model.GradeUnsatisfactory || enrollment.Grade == model.GradeNotGraded
}

// prependReason 在原因前加上日期，追加到已有记录之前
func prependReason(today time.Time, reason, old string) string {
	return fmt.Sprintf("%s\n%s\n\n%s", today.Format(dateLayout), reason, old)
}

// localNow 课程所在城市的当前时间
func (s *enrollmentService) localNow(cityCode string) time.Time {
	return cityTime(&s.cfg.Site, cityCode, s.now())
}

// cityTime 换算到城市时区；未配置的城市保持原时区
func cityTime(site *config.SiteConfig, cityCode string, t time.Time) time.Time {
	tz, ok := site.Cities[cityCode]
	if !ok {
		return t
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return t
	}
	return t.In(loc)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// enrollmentOpen 课程是否在本学期且处于选课期
func enrollmentOpen(course *model.Course, now time.Time) bool {
	if course.Semester == nil {
		return false
	}
	year, term := TermAt(now)
	if course.Semester.Year != year || course.Semester.Type != term {
		return false
	}
	return inEnrollmentPeriod(course.Semester, now) && !course.IsCompleted(dateOnly(now))
}

// inEnrollmentPeriod 未设置的边界视为不限
func inEnrollmentPeriod(semester *model.Semester, now time.Time) bool {
	today := dateOnly(now)
	if start := semester.EnrollmentStartAt; start != nil && today.Before(dateOnly(*start)) {
		return false
	}
	if end := semester.EnrollmentEndAt; end != nil && today.After(dateOnly(*end)) {
		return false
	}
	return true
}

// availableFor 非函授课程只对同分校（或同城市）的学生开放
func availableFor(course *model.Course, student *model.User) bool {
	if course.IsCorrespondence {
		return true
	}
	if course.BranchID != nil && student.BranchID != nil {
		return *course.BranchID == *student.BranchID
	}
	return student.CityCode != nil && *student.CityCode == course.CityCode
}

// ────────────────────── CurrentSemester ──────────────────────

func (s *enrollmentService) CurrentSemester(ctx context.Context, cityCode string) (*dto.SemesterResponse, error) {
	now := s.localNow(cityCode)
	year, term := TermAt(now)
	semester, err := s.repo.Semester.GetByTerm(ctx, year, term)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSemesterNotFound
		}
		s.logger.Error("查询学期失败", zap.Int("year", year), zap.String("term", term), zap.Error(err))
		return nil, err
	}

	return toSemesterResponse(semester, now), nil
}

// toSemesterResponse 只有当前学期可能处于选课期
func toSemesterResponse(semester *model.Semester, now time.Time) *dto.SemesterResponse {
	year, term := TermAt(now)
	return &dto.SemesterResponse{
		ID:                semester.ID,
		Year:              semester.Year,
		Type:              semester.Type,
		EnrollmentStartAt: semester.EnrollmentStartAt,
		EnrollmentEndAt:   semester.EnrollmentEndAt,
		EnrollmentOpen:    semester.Year == year && semester.Type == term && inEnrollmentPeriod(semester, now),
	}
}

// ────────────────────── Enroll ──────────────────────

func (s *enrollmentService) Enroll(ctx context.Context, studentID, courseID int64, reason string) (*dto.EnrollmentResponse, error) {
	course, err := s.repo.Course.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		s.logger.Error("查询课程失败", zap.Int64("course_id", courseID), zap.Error(err))
		return nil, err
	}
	student, err := s.repo.User.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询学生失败", zap.Int64("student_id", studentID), zap.Error(err))
		return nil, err
	}

	now := s.localNow(course.CityCode)
	if student.IsExpelled() {
		return nil, ErrStudentInactive
	}
	if !enrollmentOpen(course, now) {
		return nil, ErrEnrollmentClosed
	}
	if !availableFor(course, student) {
		return nil, ErrCourseNotAvailable
	}

	var enrollment *model.Enrollment
	err = inTx(ctx, s.repo, func(txRepo *repository.Repository) error {
		locked, err := txRepo.Course.GetByIDForUpdate(ctx, courseID)
		if err != nil {
			return err
		}

		existing, err := txRepo.Enrollment.GetAny(ctx, studentID, courseID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if existing != nil && !existing.IsDeleted {
			return ErrAlreadyEnrolled
		}
		if locked.IsCapacityLimited() && locked.LearnersCount >= locked.Capacity {
			return ErrCourseIsFull
		}

		if existing != nil {
			existing.IsDeleted = false
			if reason != "" {
				existing.ReasonEntry = prependReason(now, reason, existing.ReasonEntry)
			}
			if err := txRepo.Enrollment.Update(ctx, existing); err != nil {
				return err
			}
			enrollment = existing
		} else {
			enrollment = &model.Enrollment{
				CourseID:    courseID,
				StudentID:   studentID,
				Grade:       model.GradeNotGraded,
				ReasonEntry: reason,
			}
			if err := txRepo.Enrollment.Create(ctx, enrollment); err != nil {
				return err
			}
		}

		assignments, err := txRepo.Assignment.ListByCourse(ctx, courseID)
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(assignments))
		for _, a := range assignments {
			ids = append(ids, a.ID)
		}
		if err := txRepo.StudentAssignment.Restore(ctx, ids, studentID); err != nil {
			return err
		}
		if err := txRepo.StudentAssignment.CreateMissing(ctx, ids, []int64{studentID}); err != nil {
			return err
		}
		return txRepo.Course.RefreshLearnersCount(ctx, courseID)
	})
	if err != nil {
		if isBusinessError(err) {
			return nil, err
		}
		s.logger.Error("选课失败",
			zap.Int64("student_id", studentID),
			zap.Int64("course_id", courseID),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("学生选课",
		zap.Int64("student_id", studentID),
		zap.Int64("course_id", courseID),
	)
	enrollment.Course = course
	return toEnrollmentResponse(enrollment), nil
}

// ────────────────────── Leave ──────────────────────

func (s *enrollmentService) Leave(ctx context.Context, studentID, courseID int64, reason string) error {
	course, err := s.repo.Course.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCourseNotFound
		}
		s.logger.Error("查询课程失败", zap.Int64("course_id", courseID), zap.Error(err))
		return err
	}
	now := s.localNow(course.CityCode)

	err = inTx(ctx, s.repo, func(txRepo *repository.Repository) error {
		enrollment, err := txRepo.Enrollment.GetActive(ctx, studentID, courseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotEnrolled
			}
			return err
		}
		enrollment.IsDeleted = true
		if reason != "" {
			enrollment.ReasonLeave = prependReason(now, reason, enrollment.ReasonLeave)
		}
		if err := txRepo.Enrollment.Update(ctx, enrollment); err != nil {
			return err
		}
		if err := txRepo.StudentAssignment.SoftDeleteByCourse(ctx, courseID, studentID); err != nil {
			return err
		}
		return txRepo.Course.RefreshLearnersCount(ctx, courseID)
	})
	if err != nil {
		if isBusinessError(err) {
			return err
		}
		s.logger.Error("退课失败",
			zap.Int64("student_id", studentID),
			zap.Int64("course_id", courseID),
			zap.Error(err),
		)
		return err
	}

	s.logger.Info("学生退课",
		zap.Int64("student_id", studentID),
		zap.Int64("course_id", courseID),
	)
	return nil
}

// ────────────────────── ListForStudent ──────────────────────

func (s *enrollmentService) ListForStudent(ctx context.Context, studentID int64) ([]dto.EnrollmentResponse, error) {
	list, err := s.repo.Enrollment.ListActiveByStudent(ctx, studentID)
	if err != nil {
		s.logger.Error("查询学生选课失败", zap.Int64("student_id", studentID), zap.Error(err))
		return nil, err
	}
	result := make([]dto.EnrollmentResponse, 0, len(list))
	for i := range list {
		result = append(result, *toEnrollmentResponse(&list[i]))
	}
	return result, nil
}

// ────────────────────── CreateAssignment ──────────────────────

// CreateAssignment 新建作业并为在读且未被开除的学生生成个人作业
func (s *enrollmentService) CreateAssignment(ctx context.Context, courseID int64, req *dto.CreateAssignmentRequest) (*dto.AssignmentResponse, error) {
	if _, err := s.repo.Course.GetByID(ctx, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		s.logger.Error("查询课程失败", zap.Int64("course_id", courseID), zap.Error(err))
		return nil, err
	}
	if req.PassingScore > req.MaximumScore {
		return nil, ErrScoreOutOfRange
	}

	assignment := &model.Assignment{
		CourseID:       courseID,
		Title:          req.Title,
		MaximumScore:   req.MaximumScore,
		PassingScore:   req.PassingScore,
		DeadlineAt:     req.DeadlineAt,
		SubmissionType: req.SubmissionType,
	}
	var students int
	err := inTx(ctx, s.repo, func(txRepo *repository.Repository) error {
		if err := txRepo.Assignment.Create(ctx, assignment); err != nil {
			return err
		}
		enrollments, err := txRepo.Enrollment.ListActiveByCourse(ctx, courseID, nil)
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(enrollments))
		for _, e := range enrollments {
			if e.Student != nil && e.Student.IsExpelled() {
				continue
			}
			ids = append(ids, e.StudentID)
		}
		students = len(ids)
		return txRepo.StudentAssignment.CreateMissing(ctx, []int64{assignment.ID}, ids)
	})
	if err != nil {
		s.logger.Error("创建作业失败", zap.Int64("course_id", courseID), zap.Error(err))
		return nil, err
	}

	return &dto.AssignmentResponse{
		ID:             assignment.ID,
		CourseID:       assignment.CourseID,
		Title:          assignment.Title,
		MaximumScore:   assignment.MaximumScore,
		PassingScore:   assignment.PassingScore,
		DeadlineAt:     assignment.DeadlineAt,
		SubmissionType: assignment.SubmissionType,
		StudentsTotal:  students,
	}, nil
}

// ── 辅助函数 ──

func isBusinessError(err error) bool {
	for _, target := range []error{
		ErrAlreadyEnrolled, ErrCourseIsFull, ErrNotEnrolled, ErrEnrollmentClosed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func toEnrollmentResponse(e *model.Enrollment) *dto.EnrollmentResponse {
	resp := &dto.EnrollmentResponse{
		ID:             e.ID,
		CourseID:       e.CourseID,
		StudentGroupID: e.StudentGroupID,
		Grade:          e.Grade,
	}
	if e.Course != nil {
		resp.CourseName = e.Course.Name
		if e.Course.Semester != nil {
			resp.Semester = fmt.Sprintf("%d %s", e.Course.Semester.Year, e.Course.Semester.Type)
		}
	}
	return resp
}
