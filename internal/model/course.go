package model

import "time"

// ── 学期类型 ──

const (
	SemesterSpring = "spring"
	SemesterSummer = "summer"
	SemesterAutumn = "autumn"
)

// ── 成绩（期末评定）──

const (
	GradeNotGraded      = "not_graded"
	GradeUnsatisfactory = "unsatisfactory"
	GradeCredit         = "pass"
	GradeGood           = "good"
	GradeExcellent      = "excellent"
)

// ── 课程评分方式 ──

const (
	GradingTypeDefault = "default"
	GradingTypeBinary  = "binary"
)

// GradeChoices 按评分方式返回可选的期末成绩
func GradeChoices(gradingType string) []string {
	if gradingType == GradingTypeBinary {
		return []string{GradeNotGraded, GradeUnsatisfactory, GradeCredit}
	}
	return []string{GradeNotGraded, GradeUnsatisfactory, GradeCredit, GradeGood, GradeExcellent}
}

// SemesterIndex 学期序号，用于跨年份排序（同一年内 春 < 夏 < 秋）
func SemesterIndex(year int, term string) int {
	order := 0
	switch term {
	case SemesterSummer:
		order = 1
	case SemesterAutumn:
		order = 2
	}
	return year*3 + order
}

// Semester 学期表 — 对应 semesters
type Semester struct {
	ID                int64      `gorm:"primaryKey;autoIncrement"      json:"id"`
	Year              int        `gorm:"not null"                      json:"year"`
	Type              string     `gorm:"type:varchar(10);not null"     json:"type"`
	Index             int        `gorm:"not null"                      json:"index"`
	EnrollmentStartAt *time.Time `gorm:"type:date"                     json:"enrollment_start_at,omitempty"`
	EnrollmentEndAt   *time.Time `gorm:"type:date"                     json:"enrollment_end_at,omitempty"`
	BaseModel
}

func (Semester) TableName() string { return "semesters" }

// Course 课程（某学期开设的课程）— 对应 courses
type Course struct {
	ID               int64      `gorm:"primaryKey;autoIncrement"                   json:"id"`
	Name             string     `gorm:"type:varchar(255);not null"                 json:"name"`
	SemesterID       int64      `gorm:"not null;index"                             json:"semester_id"`
	CityCode         string     `gorm:"type:varchar(6);not null"                   json:"city_code"`
	BranchID         *int64     `                                                  json:"branch_id,omitempty"`
	IsOpen           bool       `gorm:"not null;default:false"                     json:"is_open"`
	IsCorrespondence bool       `gorm:"not null;default:false"                     json:"is_correspondence"`
	Capacity         int        `gorm:"not null;default:0"                         json:"capacity"` // 0 表示不限
	LearnersCount    int        `gorm:"not null;default:0"                         json:"learners_count"`
	CompletedAt      *time.Time `gorm:"type:date"                                  json:"completed_at,omitempty"`
	GradingType      string     `gorm:"type:varchar(20);not null;default:'default'" json:"grading_type"`
	BaseModel

	Semester *Semester `gorm:"foreignKey:SemesterID" json:"semester,omitempty"`
}

func (Course) TableName() string { return "courses" }

// IsCapacityLimited 是否限制选课人数
func (c *Course) IsCapacityLimited() bool { return c.Capacity > 0 }

// PlacesLeft 剩余名额（不限人数时返回 -1）
func (c *Course) PlacesLeft() int {
	if !c.IsCapacityLimited() {
		return -1
	}
	left := c.Capacity - c.LearnersCount
	if left < 0 {
		return 0
	}
	return left
}

// IsCompleted 课程在给定日期是否已结束
func (c *Course) IsCompleted(today time.Time) bool {
	return c.CompletedAt != nil && !today.Before(*c.CompletedAt)
}

// ── 教师在课程中的职责（位掩码）──

const (
	TeacherRoleLecturer  = 1 << iota // 讲师
	TeacherRoleReviewer              // 作业批改
	TeacherRoleSeminar               // 研讨课
	TeacherRoleOrganizer             // 组织者
	TeacherRoleSpectator             // 旁听
)

// CourseTeacher 课程教师关联表 — 对应 course_teachers
type CourseTeacher struct {
	ID        int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	CourseID  int64 `gorm:"not null;index"           json:"course_id"`
	TeacherID int64 `gorm:"not null;index"           json:"teacher_id"`
	Roles     int   `gorm:"not null;default:0"       json:"roles"`

	Teacher *User `gorm:"foreignKey:TeacherID" json:"teacher,omitempty"`
}

func (CourseTeacher) TableName() string { return "course_teachers" }

// HasRole 是否具有指定职责
func (ct *CourseTeacher) HasRole(role int) bool { return ct.Roles&role != 0 }

// StudentGroup 学生分组 — 对应 student_groups
type StudentGroup struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"   json:"id"`
	CourseID int64  `gorm:"not null;index"             json:"course_id"`
	Name     string `gorm:"type:varchar(255);not null" json:"name"`
	BranchID *int64 `                                  json:"branch_id,omitempty"`
}

func (StudentGroup) TableName() string { return "student_groups" }

// StudentGroupAssignee 分组负责教师 — 对应 student_group_assignees
// AssignmentID 为空表示分组默认负责人
type StudentGroupAssignee struct {
	ID              int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	StudentGroupID  int64  `gorm:"not null;index"           json:"student_group_id"`
	AssignmentID    *int64 `                                json:"assignment_id,omitempty"`
	CourseTeacherID int64  `gorm:"not null"                 json:"course_teacher_id"`

	CourseTeacher *CourseTeacher `gorm:"foreignKey:CourseTeacherID" json:"course_teacher,omitempty"`
}

func (StudentGroupAssignee) TableName() string { return "student_group_assignees" }
