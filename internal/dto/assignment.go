package dto

import "time"

// ── 个人作业模块 DTO ──

// CreateSubmissionRequest 提交解答或评论（multipart/form-data，附件字段名 attachment）
type CreateSubmissionRequest struct {
	Text          string `form:"text"           binding:"max=10000"`
	IsDraft       bool   `form:"is_draft"`
	ExecutionTime string `form:"execution_time"` // 如 "1h30m"，仅解答使用
}

// UpdateScoreRequest 修改个人作业分数；Score 为空表示清除
type UpdateScoreRequest struct {
	Score *string `json:"score"`
}

// SubmissionResponse 提交记录
type SubmissionResponse struct {
	ID            int64     `json:"id"`
	AuthorID      int64     `json:"author_id"`
	Type          string    `json:"type"`
	IsPublished   bool      `json:"is_published"`
	Text          string    `json:"text"`
	HasAttachment bool      `json:"has_attachment"`
	ExecutionTime string    `json:"execution_time,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// StudentAssignmentResponse 个人作业
type StudentAssignmentResponse struct {
	ID                    int64                  `json:"id"`
	AssignmentID          int64                  `json:"assignment_id"`
	AssignmentTitle       string                 `json:"assignment_title"`
	StudentID             int64                  `json:"student_id"`
	StudentName           string                 `json:"student_name"`
	Score                 *float64               `json:"score"`
	MaximumScore          int                    `json:"maximum_score"`
	AssigneeID            *int64                 `json:"assignee_id"`
	FirstStudentCommentAt *time.Time             `json:"first_student_comment_at,omitempty"`
	LastCommentFrom       int                    `json:"last_comment_from"`
	Stats                 map[string]interface{} `json:"stats,omitempty"`
	Submissions           []SubmissionResponse   `json:"submissions"`
}
