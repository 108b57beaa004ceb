package model

import (
	"time"

	"gorm.io/datatypes"
)

// ── 作业提交方式 ──

const (
	SubmissionOnline   = "online"
	SubmissionOffline  = "offline"
	SubmissionExternal = "external"
	SubmissionCode     = "code"
)

// Assignment 课程作业 — 对应 assignments
type Assignment struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"                 json:"id"`
	CourseID       int64     `gorm:"not null;index"                           json:"course_id"`
	Title          string    `gorm:"type:varchar(255);not null"               json:"title"`
	MaximumScore   int       `gorm:"not null;default:5"                       json:"maximum_score"`
	PassingScore   int       `gorm:"not null;default:2"                       json:"passing_score"`
	DeadlineAt     time.Time `gorm:"not null"                                 json:"deadline_at"`
	SubmissionType string    `gorm:"type:varchar(42);not null;default:'online'" json:"submission_type"`
	BaseModel

	Course *Course `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}

func (Assignment) TableName() string { return "assignments" }

// IsOnline 学生是否通过站点提交作业
func (a *Assignment) IsOnline() bool { return a.SubmissionType == SubmissionOnline }

// ── 最近一次评论来源 ──

const (
	CommentFromNone    = 0
	CommentFromStudent = 1
	CommentFromTeacher = 2
)

// StudentAssignment 学生个人作业 — 对应 student_assignments
type StudentAssignment struct {
	ID                    int64             `gorm:"primaryKey;autoIncrement"      json:"id"`
	AssignmentID          int64             `gorm:"not null;uniqueIndex:uniq_student_assignment" json:"assignment_id"`
	StudentID             int64             `gorm:"not null;uniqueIndex:uniq_student_assignment;index" json:"student_id"`
	Score                 *float64          `gorm:"type:numeric(6,2)"             json:"score"`
	AssigneeID            *int64            `                                     json:"assignee_id,omitempty"` // course_teachers.id
	TriggerAutoAssign     bool              `gorm:"not null;default:true"         json:"trigger_auto_assign"`
	Meta                  datatypes.JSONMap `gorm:"type:jsonb"                    json:"meta,omitempty"`
	FirstStudentCommentAt *time.Time        `                                     json:"first_student_comment_at,omitempty"`
	LastCommentFrom       int               `gorm:"not null;default:0"            json:"last_comment_from"`
	ModifiedAt            time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"modified_at"`
	IsDeleted             bool              `gorm:"not null;default:false"        json:"is_deleted"`
	CreatedAt             time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	Assignment *Assignment `gorm:"foreignKey:AssignmentID" json:"assignment,omitempty"`
	Student    *User       `gorm:"foreignKey:StudentID"    json:"student,omitempty"`
}

func (StudentAssignment) TableName() string { return "student_assignments" }

// ── 提交类型 ──

const (
	SubmissionTypeSolution = "solution"
	SubmissionTypeComment  = "comment"
)

// AssignmentComment 作业评论/解答 — 对应 assignment_comments
type AssignmentComment struct {
	ID                  int64          `gorm:"primaryKey;autoIncrement"          json:"id"`
	StudentAssignmentID int64          `gorm:"not null;index"                    json:"student_assignment_id"`
	AuthorID            int64          `gorm:"not null"                          json:"author_id"`
	Type                string         `gorm:"type:varchar(42);not null"         json:"type"`
	IsPublished         bool           `gorm:"not null;default:true"             json:"is_published"`
	Text                string         `gorm:"type:text;not null;default:''"     json:"text"`
	AttachmentKey       string         `gorm:"type:varchar(255);not null;default:''" json:"attachment_key,omitempty"`
	ExecutionTime       *time.Duration `                                         json:"execution_time,omitempty"`
	CreatedAt           time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (AssignmentComment) TableName() string { return "assignment_comments" }

// ── 成绩修改来源 ──

const (
	ScoreSourceForm      = "form"
	ScoreSourceGradebook = "gradebook"
	ScoreSourceCSVImport = "csv"
	ScoreSourceAPI       = "api"
	ScoreSourceChecker   = "checker"
)

// AssignmentScoreAuditLog 作业成绩变更审计 — 对应 assignment_score_audit_logs
type AssignmentScoreAuditLog struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement"          json:"id"`
	StudentAssignmentID int64     `gorm:"not null;index"                    json:"student_assignment_id"`
	ChangedBy           int64     `gorm:"not null"                          json:"changed_by"`
	ScoreOld            *float64  `gorm:"type:numeric(6,2)"                 json:"score_old"`
	ScoreNew            *float64  `gorm:"type:numeric(6,2)"                 json:"score_new"`
	Source              string    `gorm:"type:varchar(20);not null"         json:"source"`
	CreatedAt           time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (AssignmentScoreAuditLog) TableName() string { return "assignment_score_audit_logs" }
