package handler

import (
	"sort"

	"github.com/gin-gonic/gin"

	"cscenter/backend/config"
	"cscenter/backend/internal/api/middleware"
	"cscenter/backend/internal/model"
	"cscenter/backend/pkg/response"
)

// SiteHandler 当前站点与城市
type SiteHandler struct {
	site *config.SiteConfig
}

// NewSiteHandler 创建 SiteHandler
func NewSiteHandler(site *config.SiteConfig) *SiteHandler {
	return &SiteHandler{site: site}
}

// CurrentCity 城市中间件识别出的城市与分校
// GET /api/v1/site
// GET /api/v1/cities/:city_code/site
func (h *SiteHandler) CurrentCity(c *gin.Context) {
	cities := make([]string, 0, len(h.site.Cities))
	for code := range h.site.Cities {
		cities = append(cities, code)
	}
	sort.Strings(cities)

	data := gin.H{
		"site_id":   h.site.ID,
		"is_club":   h.site.IsClub,
		"city_code": c.GetString(middleware.CtxCityCode),
		"time_zone": h.site.Cities[c.GetString(middleware.CtxCityCode)],
		"cities":    cities,
		"branch":    nil,
	}
	if v, ok := c.Get(middleware.CtxBranch); ok {
		if b, ok := v.(*model.Branch); ok {
			data["branch"] = b
		}
	}
	response.OK(c, data)
}
