package middleware

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cscenter/backend/config"
	"cscenter/backend/internal/model"
	"cscenter/backend/pkg/response"
)

// ErrCityNotFound 城市无法识别
var ErrCityNotFound = errors.New("城市不存在")

// CityRoute 路由与城市参数的关系
// Aware: 路由带 :city_code 参数
// UseDelimiter: 非默认城市还需要 :city_delimiter 参数，默认城市不能带分隔符
type CityRoute struct {
	Aware        bool
	UseDelimiter bool
}

// CityParams 请求中与城市相关的输入
type CityParams struct {
	Code      string
	Delimiter string
	Host      string
}

// ResolveCity 确定当前请求的城市编码
func ResolveCity(site *config.SiteConfig, route CityRoute, p CityParams) (string, error) {
	if route.Aware && !site.IsClub {
		if p.Code == "" {
			if route.UseDelimiter && p.Delimiter != "" {
				return "", ErrCityNotFound
			}
			return site.DefaultCityCode, nil
		}
		if _, ok := site.Cities[p.Code]; !ok || (route.UseDelimiter && p.Delimiter == "") {
			return "", ErrCityNotFound
		}
		return p.Code, nil
	}

	if route.Aware && (p.Code != "" || p.Delimiter != "") {
		return "", ErrCityNotFound
	}

	if sub := subDomain(p.Host); sub != "" {
		if _, ok := site.Cities[sub]; ok {
			return sub, nil
		}
	}
	return site.DefaultCityCode, nil
}

// subDomain 去掉最后两级域名，只有二级域名时返回空串
func subDomain(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	labels := strings.Split(host, ".")
	if len(labels) < 3 {
		return ""
	}
	return strings.ToLower(strings.Join(labels[:len(labels)-2], "."))
}

// BranchLookup 按城市与站点查找分校
type BranchLookup interface {
	GetBranch(ctx context.Context, cityCode string, siteID int64) (*model.Branch, error)
}

// City 城市/分校识别中间件
// 结果写入上下文 city_code 与 branch（分校不存在时为 nil）
func City(site *config.SiteConfig, route CityRoute, branches BranchLookup, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		code, err := ResolveCity(site, route, CityParams{
			Code:      c.Param("city_code"),
			Delimiter: c.Param("city_delimiter"),
			Host:      c.Request.Host,
		})
		if err != nil {
			response.NotFound(c, 10007, "城市不存在")
			c.Abort()
			return
		}
		c.Set(CtxCityCode, code)

		if branches != nil {
			branch, err := branches.GetBranch(c.Request.Context(), code, site.ID)
			switch {
			case err == nil:
				c.Set(CtxBranch, branch)
			case !errors.Is(err, gorm.ErrRecordNotFound):
				logger.Error("查询分校失败", zap.String("city_code", code), zap.Error(err))
			}
		}

		c.Next()
	}
}
