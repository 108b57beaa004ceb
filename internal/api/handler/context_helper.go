package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"cscenter/backend/internal/api/middleware"
	"cscenter/backend/internal/rbac"
	"cscenter/backend/internal/service"
	"cscenter/backend/pkg/jwt"
	"cscenter/backend/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (int64, bool) {
	v, exists := c.Get(middleware.CtxUserID)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return 0, false
	}
	id, ok := v.(int64)
	if !ok || id == 0 {
		response.Unauthorized(c, 10002, "未认证")
		return 0, false
	}
	return id, true
}

// GetRoles 当前用户的角色编码，未认证时为空
func GetRoles(c *gin.Context) []string {
	v, _ := c.Get(middleware.CtxRoles)
	roles, _ := v.([]string)
	return roles
}

// MustGetClaims 当前请求的 Access Token 声明
func MustGetClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, exists := c.Get(middleware.CtxClaims)
	claims, ok := v.(*jwt.Claims)
	if !exists || !ok {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	return claims, true
}

// ParamID 解析路径中的整数 ID，失败时写入 400 响应
func ParamID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, 10001, name+" 无效")
		return 0, false
	}
	return id, true
}

// ── 权限对象加载器 ──

// CourseLoader 按 :course_id 加载当前用户与课程的关系
func CourseLoader(access service.AccessService) middleware.ObjectLoader {
	return func(c *gin.Context, s *rbac.Subject) (interface{}, error) {
		id, err := strconv.ParseInt(c.Param("course_id"), 10, 64)
		if err != nil {
			return nil, middleware.ErrObjectNotFound
		}
		ca, err := access.CourseAccess(c.Request.Context(), id, s.UserID)
		if errors.Is(err, service.ErrCourseNotFound) {
			return nil, middleware.ErrObjectNotFound
		}
		return ca, err
	}
}

// StudentAssignmentLoader 按 :id 加载当前用户与个人作业的关系
func StudentAssignmentLoader(access service.AccessService) middleware.ObjectLoader {
	return func(c *gin.Context, s *rbac.Subject) (interface{}, error) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			return nil, middleware.ErrObjectNotFound
		}
		sa, err := access.StudentAssignmentAccess(c.Request.Context(), id, s.UserID)
		if errors.Is(err, service.ErrStudentAssignmentNotFound) || errors.Is(err, service.ErrCourseNotFound) {
			return nil, middleware.ErrObjectNotFound
		}
		return sa, err
	}
}

// StudentAssignmentCourseLoader 个人作业所属课程，用于成绩相关权限
func StudentAssignmentCourseLoader(access service.AccessService) middleware.ObjectLoader {
	load := StudentAssignmentLoader(access)
	return func(c *gin.Context, s *rbac.Subject) (interface{}, error) {
		obj, err := load(c, s)
		if err != nil {
			return nil, err
		}
		sa := obj.(*rbac.StudentAssignmentAccess)
		return &sa.Course, nil
	}
}
