package model

// Enrollment 选课记录 — 对应 enrollments
// 约束：同一学生在同一课程下最多一条 is_deleted = false 的记录
type Enrollment struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"                          json:"id"`
	CourseID       int64  `gorm:"not null;index"                                    json:"course_id"`
	StudentID      int64  `gorm:"not null;index"                                    json:"student_id"`
	StudentGroupID *int64 `                                                         json:"student_group_id,omitempty"`
	Grade          string `gorm:"type:varchar(100);not null;default:'not_graded'"   json:"grade"`
	IsDeleted      bool   `gorm:"not null;default:false"                            json:"is_deleted"`
	ReasonEntry    string `gorm:"type:text;not null;default:''"                     json:"reason_entry"`
	ReasonLeave    string `gorm:"type:text;not null;default:''"                     json:"reason_leave"`
	VersionedModel

	Student      *User         `gorm:"foreignKey:StudentID"      json:"student,omitempty"`
	Course       *Course       `gorm:"foreignKey:CourseID"       json:"course,omitempty"`
	StudentGroup *StudentGroup `gorm:"foreignKey:StudentGroupID" json:"student_group,omitempty"`
}

func (Enrollment) TableName() string { return "enrollments" }
