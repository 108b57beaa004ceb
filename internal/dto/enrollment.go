package dto

import "time"

// ── 选课模块 DTO ──

// EnrollRequest 选课 / 退课请求
type EnrollRequest struct {
	Reason string `json:"reason" binding:"max=1000"`
}

// EnrollmentResponse 选课记录
type EnrollmentResponse struct {
	ID             int64  `json:"id"`
	CourseID       int64  `json:"course_id"`
	CourseName     string `json:"course_name"`
	StudentGroupID *int64 `json:"student_group_id"`
	Grade          string `json:"grade"`
	Semester       string `json:"semester,omitempty"`
}

// SemesterResponse 当前学期及选课期
type SemesterResponse struct {
	ID                int64      `json:"id"`
	Year              int        `json:"year"`
	Type              string     `json:"type"`
	EnrollmentStartAt *time.Time `json:"enrollment_start_at,omitempty"`
	EnrollmentEndAt   *time.Time `json:"enrollment_end_at,omitempty"`
	EnrollmentOpen    bool       `json:"enrollment_open"`
}

// CreateSemesterRequest 新建学期；选课期日期格式 2006-01-02，可留空
type CreateSemesterRequest struct {
	Year              int    `json:"year"                validate:"required,min=2000,max=2100"`
	Type              string `json:"type"                validate:"required,oneof=spring summer autumn"`
	EnrollmentStartAt string `json:"enrollment_start_at" validate:"omitempty,datetime=2006-01-02"`
	EnrollmentEndAt   string `json:"enrollment_end_at"   validate:"omitempty,datetime=2006-01-02"`
}

// UpdateEnrollmentPeriodRequest 修改选课期，空值表示不限
type UpdateEnrollmentPeriodRequest struct {
	EnrollmentStartAt string `json:"enrollment_start_at" validate:"omitempty,datetime=2006-01-02"`
	EnrollmentEndAt   string `json:"enrollment_end_at"   validate:"omitempty,datetime=2006-01-02"`
}

// CreateAssignmentRequest 新建课程作业
type CreateAssignmentRequest struct {
	Title          string    `json:"title"           binding:"required,max=140"`
	MaximumScore   int       `json:"maximum_score"   binding:"required,min=1,max=1000"`
	PassingScore   int       `json:"passing_score"   binding:"min=0"`
	DeadlineAt     time.Time `json:"deadline_at"     binding:"required"`
	SubmissionType string    `json:"submission_type" binding:"required,oneof=online offline external code"`
}

// AssignmentResponse 课程作业
type AssignmentResponse struct {
	ID             int64     `json:"id"`
	CourseID       int64     `json:"course_id"`
	Title          string    `json:"title"`
	MaximumScore   int       `json:"maximum_score"`
	PassingScore   int       `json:"passing_score"`
	DeadlineAt     time.Time `json:"deadline_at"`
	SubmissionType string    `json:"submission_type"`
	StudentsTotal  int       `json:"students_total"`
}
