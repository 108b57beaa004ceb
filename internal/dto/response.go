package dto

import "time"

// ── 认证模块响应 ──

// TokenResponse Token 对响应
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	ExpiresIn    int          `json:"expires_in"` // Access Token 有效期（秒）
	User         UserResponse `json:"user"`
}

// ── 用户模块响应 ──

// UserResponse 用户信息响应（脱敏）
type UserResponse struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	FullName string   `json:"full_name"`
	Email    string   `json:"email"`
	CityCode string   `json:"city_code,omitempty"`
	Roles    []string `json:"roles"`
}

// ── 后台任务 ──

// TaskListRequest 未处理任务查询参数
type TaskListRequest struct {
	Name  string `form:"name"  binding:"omitempty,max=100"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

// TaskResponse 后台任务记录
type TaskResponse struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	LockedAt  *time.Time `json:"locked_at,omitempty"`
	LockedBy  string     `json:"locked_by,omitempty"`
}

// EnqueueResponse 入队结果
type EnqueueResponse struct {
	JobID  string `json:"job_id"`
	TaskID int64  `json:"task_id,omitempty"`
}
