package dto

// ── 用户模块 DTO ──

// CreateUserRequest 创建用户（管理命令）
type CreateUserRequest struct {
	Username   string   `json:"username"    validate:"required,max=150"`
	Email      string   `json:"email"       validate:"required,email"`
	FirstName  string   `json:"first_name"  validate:"max=30"`
	LastName   string   `json:"last_name"   validate:"max=150"`
	Patronymic string   `json:"patronymic"  validate:"max=100"`
	CityCode   string   `json:"city_code"   validate:"omitempty,max=6"`
	Roles      []string `json:"roles"       validate:"dive,oneof=student volunteer teacher curator graduate invited interviewer"`
}

// CreateUserResponse 创建用户结果，附带一次性临时密码
type CreateUserResponse struct {
	User         UserResponse `json:"user"`
	TempPassword string       `json:"temp_password"`
}

// ResetPasswordResponse 重置密码响应
type ResetPasswordResponse struct {
	TempPassword string `json:"temp_password"`
}

// AssignRoleRequest 分配角色
type AssignRoleRequest struct {
	Role string `json:"role" binding:"required,max=30"`
}
