package repository

import (
	"context"

	"gorm.io/gorm"

	"cscenter/backend/internal/model"
)

// CityRepository 城市/分校数据访问接口
type CityRepository interface {
	List(ctx context.Context) ([]model.City, error)
	GetByCode(ctx context.Context, code string) (*model.City, error)
	GetBranch(ctx context.Context, cityCode string, siteID int64) (*model.Branch, error)
	ListBranches(ctx context.Context, siteID int64) ([]model.Branch, error)
}

type cityRepo struct {
	db *gorm.DB
}

// NewCityRepo 创建 CityRepository 实例
func NewCityRepo(db *gorm.DB) CityRepository {
	return &cityRepo{db: db}
}

func (r *cityRepo) List(ctx context.Context) ([]model.City, error) {
	var cities []model.City
	err := r.db.WithContext(ctx).Order("code").Find(&cities).Error
	return cities, err
}

func (r *cityRepo) GetByCode(ctx context.Context, code string) (*model.City, error) {
	var city model.City
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&city).Error; err != nil {
		return nil, err
	}
	return &city, nil
}

// GetBranch 按城市与站点查找分校（同一城市取编码最小的有效分校）
func (r *cityRepo) GetBranch(ctx context.Context, cityCode string, siteID int64) (*model.Branch, error) {
	var branch model.Branch
	err := r.db.WithContext(ctx).
		Where("city_code = ? AND site_id = ? AND is_active = ?", cityCode, siteID, true).
		Order("code").
		First(&branch).Error
	if err != nil {
		return nil, err
	}
	return &branch, nil
}

func (r *cityRepo) ListBranches(ctx context.Context, siteID int64) ([]model.Branch, error) {
	var branches []model.Branch
	err := r.db.WithContext(ctx).
		Where("site_id = ? AND is_active = ?", siteID, true).
		Order("city_code, code").
		Find(&branches).Error
	return branches, err
}
