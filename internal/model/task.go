package model

import (
	"time"

	"gorm.io/datatypes"
)

// Task 后台任务记录 — 对应 tasks
// processed_at 为空的任务需要人工核对（例如执行超时被中断）
type Task struct {
	ID          int64             `gorm:"primaryKey;autoIncrement"           json:"id"`
	Name        string            `gorm:"type:varchar(100);not null"         json:"name"`
	Payload     datatypes.JSONMap `gorm:"type:jsonb"                         json:"payload,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	LockedAt    *time.Time        `                                          json:"locked_at,omitempty"`
	LockedBy    string            `gorm:"type:varchar(100);not null;default:''" json:"locked_by"`
	ProcessedAt *time.Time        `                                          json:"processed_at,omitempty"`
}

func (Task) TableName() string { return "tasks" }
