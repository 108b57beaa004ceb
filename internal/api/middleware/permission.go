package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cscenter/backend/internal/rbac"
	"cscenter/backend/pkg/response"
)

// ErrObjectNotFound 权限对象不存在，加载器返回该错误时响应 404
var ErrObjectNotFound = errors.New("对象不存在")

// ObjectLoader 为权限判断加载被访问的对象，不需要对象时可为 nil
type ObjectLoader func(c *gin.Context, s *rbac.Subject) (interface{}, error)

// CtxPermObject 加载出的权限对象，handler 可复用
const CtxPermObject = "perm_object"

// SubjectFromContext 由认证信息构造权限主体；未认证时返回匿名主体
func SubjectFromContext(c *gin.Context) *rbac.Subject {
	s := &rbac.Subject{}
	if v, ok := c.Get(CtxUserID); ok {
		s.UserID, _ = v.(int64)
	}
	if v, ok := c.Get(CtxRoles); ok {
		s.Roles, _ = v.([]string)
	}
	if v, ok := c.Get(CtxCityCode); ok {
		s.CityCode, _ = v.(string)
	}
	return s
}

// RequirePermission 权限中间件
func RequirePermission(reg *rbac.Registry, perm string, load ObjectLoader, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := SubjectFromContext(c)

		var obj interface{}
		if load != nil {
			var err error
			obj, err = load(c, subject)
			if err != nil {
				if errors.Is(err, ErrObjectNotFound) {
					response.NotFound(c, 10006, "资源不存在")
				} else {
					logger.Error("加载权限对象失败", zap.String("perm", perm), zap.Error(err))
					response.InternalError(c)
				}
				c.Abort()
				return
			}
			c.Set(CtxPermObject, obj)
		}

		if !reg.HasPerm(subject, perm, obj) {
			if subject.IsAnonymous() {
				response.Unauthorized(c, 10002, "未认证")
			} else {
				response.Forbidden(c, 10003, "无权限访问")
			}
			c.Abort()
			return
		}

		c.Next()
	}
}
