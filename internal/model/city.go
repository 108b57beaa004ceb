package model

// City 城市表 — 对应 cities
type City struct {
	Code     string `gorm:"type:varchar(6);primaryKey"   json:"code"`
	Name     string `gorm:"type:varchar(255);not null"   json:"name"`
	TimeZone string `gorm:"type:varchar(63);not null"    json:"time_zone"`
}

func (City) TableName() string { return "cities" }

// Branch 分校表 — 对应 branches
// 同一城市在不同站点下可以有各自的分校
type Branch struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"    json:"id"`
	Code     string `gorm:"type:varchar(8);not null"    json:"code"`
	Name     string `gorm:"type:varchar(255);not null"  json:"name"`
	CityCode string `gorm:"type:varchar(6);not null"    json:"city_code"`
	SiteID   int64  `gorm:"not null"                    json:"site_id"`
	IsActive bool   `gorm:"not null;default:true"       json:"is_active"`
}

func (Branch) TableName() string { return "branches" }
