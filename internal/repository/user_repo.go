package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cscenter/backend/internal/model"
)

// UserRepository 用户数据访问接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	AddRole(ctx context.Context, userID int64, role string, siteID int64) error
	UpdatePassword(ctx context.Context, userID int64, hash string) error
	ListActiveStudents(ctx context.Context, siteID int64) ([]model.User, error)
}

type userRepo struct {
	db *gorm.DB
}

// NewUserRepo 创建 UserRepository 实例
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Preload("Roles").
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Preload("Roles").
		Where("username = ?", username).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// AddRole 为用户添加站点角色（已存在时忽略）
func (r *userRepo) AddRole(ctx context.Context, userID int64, role string, siteID int64) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.UserRole{UserID: userID, Role: role, SiteID: siteID}).Error
}

func (r *userRepo) UpdatePassword(ctx context.Context, userID int64, hash string) error {
	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Update("password_hash", hash).Error
}

// ListActiveStudents 列出站点内未被开除的学生（含有效选课）
func (r *userRepo) ListActiveStudents(ctx context.Context, siteID int64) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Joins("JOIN user_roles ON user_roles.user_id = users.id").
		Where("user_roles.role = ? AND user_roles.site_id = ?", model.RoleStudent, siteID).
		Where("users.is_active = ? AND users.status <> ?", true, model.StudentStatusExpelled).
		Order("users.last_name, users.first_name").
		Find(&users).Error
	return users, err
}
