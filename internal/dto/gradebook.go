package dto

import "time"

// ── 成绩单模块 DTO ──

// GradebookQuery 成绩单查询参数
type GradebookQuery struct {
	StudentGroup *int64 `form:"student_group"`
}

// GradebookSubmitRequest 成绩单提交
// Values 同时包含字段值与其影子字段 initial-<name>
type GradebookSubmitRequest struct {
	StudentGroup *int64            `json:"student_group"`
	Values       map[string]string `json:"values" binding:"required"`
}

// GradebookGroupOption 分组筛选项
type GradebookGroupOption struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// GradebookAssignmentResponse 成绩单列头
type GradebookAssignmentResponse struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	MaximumScore int       `json:"maximum_score"`
	PassingScore int       `json:"passing_score"`
	DeadlineAt   time.Time `json:"deadline_at"`
	IsOnline     bool      `json:"is_online"`
}

// GradebookCellResponse 单元格；Field 为空表示不可编辑
type GradebookCellResponse struct {
	StudentAssignmentID *int64   `json:"student_assignment_id"`
	Score               *float64 `json:"score"`
	Field               string   `json:"field,omitempty"`
}

// GradebookStudentResponse 成绩单中的一行
type GradebookStudentResponse struct {
	EnrollmentID    int64                   `json:"enrollment_id"`
	StudentID       int64                   `json:"student_id"`
	FullName        string                  `json:"full_name"`
	StudentGroup    string                  `json:"student_group"`
	FinalGrade      string                  `json:"final_grade"`
	FinalGradeField string                  `json:"final_grade_field"`
	TotalScore      float64                 `json:"total_score"`
	Cells           []GradebookCellResponse `json:"cells"`
}

// GradebookResponse 成绩单页面状态
type GradebookResponse struct {
	CourseID        int64                         `json:"course_id"`
	CourseName      string                        `json:"course_name"`
	Readonly        bool                          `json:"readonly"`
	ScoreReadonly   bool                          `json:"score_readonly"`
	ShowGroupFilter bool                          `json:"show_group_filter"`
	Groups          []GradebookGroupOption        `json:"groups"`
	GradeChoices    []string                      `json:"grade_choices"`
	Assignments     []GradebookAssignmentResponse `json:"assignments"`
	Students        []GradebookStudentResponse    `json:"students"`
	Initial         map[string]string             `json:"initial"`
}

// GradebookConflict 未能保存的字段
type GradebookConflict struct {
	FieldName    string      `json:"field_name"`
	UnsavedValue interface{} `json:"unsaved_value"`
}

// GradebookSubmitResponse 提交结果
type GradebookSubmitResponse struct {
	Saved     int                 `json:"saved"`
	Conflicts []GradebookConflict `json:"conflicts"`
}
