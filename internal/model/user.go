package model

import "strings"

// ── 角色编码 ──

const (
	RoleStudent     = "student"
	RoleVolunteer   = "volunteer"
	RoleTeacher     = "teacher"
	RoleCurator     = "curator"
	RoleGraduate    = "graduate"
	RoleInvited     = "invited"
	RoleInterviewer = "interviewer"
)

// ── 学生状态 ──

const (
	StudentStatusNormal       = ""
	StudentStatusExpelled     = "expelled"
	StudentStatusReinstated   = "reinstated"
	StudentStatusWillGraduate = "will_graduate"
)

// User 用户表 — 对应 users
type User struct {
	ID           int64   `gorm:"primaryKey;autoIncrement"           json:"id"`
	Username     string  `gorm:"type:varchar(150);not null;unique"  json:"username"`
	Email        string  `gorm:"type:varchar(254);not null"         json:"email"`
	FirstName    string  `gorm:"type:varchar(30)"                   json:"first_name"`
	LastName     string  `gorm:"type:varchar(150)"                  json:"last_name"`
	Patronymic   string  `gorm:"type:varchar(100)"                  json:"patronymic"`
	YandexLogin  string  `gorm:"type:varchar(80)"                   json:"yandex_login"`
	PasswordHash string  `gorm:"type:varchar(255);not null"         json:"-"`
	CityCode     *string `gorm:"type:varchar(6)"                    json:"city_code,omitempty"`
	BranchID     *int64  `                                          json:"branch_id,omitempty"`
	Status       string  `gorm:"type:varchar(15);not null;default:''" json:"status"`
	IsActive     bool    `gorm:"not null;default:true"              json:"is_active"`
	BaseModel

	Roles []UserRole `gorm:"foreignKey:UserID" json:"roles,omitempty"`
}

func (User) TableName() string { return "users" }

// FullName 返回 "姓 名 父称" 形式的全名
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{u.LastName, u.FirstName, u.Patronymic} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// IsExpelled 是否已被开除
func (u *User) IsExpelled() bool { return u.Status == StudentStatusExpelled }

// RoleCodes 返回指定站点下的角色编码集合
func (u *User) RoleCodes(siteID int64) []string {
	codes := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		if r.SiteID == siteID {
			codes = append(codes, r.Role)
		}
	}
	return codes
}

// UserRole 用户角色表 — 对应 user_roles（user, role, site 唯一）
type UserRole struct {
	ID     int64  `gorm:"primaryKey;autoIncrement"                       json:"id"`
	UserID int64  `gorm:"not null;uniqueIndex:uniq_user_role_site"       json:"user_id"`
	Role   string `gorm:"type:varchar(20);not null;uniqueIndex:uniq_user_role_site" json:"role"`
	SiteID int64  `gorm:"not null;uniqueIndex:uniq_user_role_site"       json:"site_id"`
}

func (UserRole) TableName() string { return "user_roles" }
