package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"cscenter/backend/internal/api/middleware"
	"cscenter/backend/internal/dto"
	"cscenter/backend/internal/rbac"
	"cscenter/backend/internal/service"
	"cscenter/backend/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GradebookHandler 成绩单模块 HTTP 处理器
// 路由需挂载 learning.view_gradebook 权限中间件
type GradebookHandler struct {
	gradebookSvc service.GradebookService
	reg          *rbac.Registry
}

// NewGradebookHandler 创建 GradebookHandler
func NewGradebookHandler(gradebookSvc service.GradebookService, reg *rbac.Registry) *GradebookHandler {
	return &GradebookHandler{gradebookSvc: gradebookSvc, reg: reg}
}

// isReadonly 能查看但不能修改成绩时为只读
func (h *GradebookHandler) isReadonly(c *gin.Context) bool {
	obj, _ := c.Get(middleware.CtxPermObject)
	return !h.reg.HasPerm(middleware.SubjectFromContext(c), rbac.PermEditGradebook, obj)
}

// GetGradebook 成绩单页面状态
// GET /api/v1/teaching/gradebook/:course_id?student_group=
func (h *GradebookHandler) GetGradebook(c *gin.Context) {
	courseID, ok := ParamID(c, "course_id")
	if !ok {
		return
	}
	var q dto.GradebookQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.gradebookSvc.Get(c.Request.Context(), courseID, q.StudentGroup, h.isReadonly(c))
	if err != nil {
		h.handleGradebookError(c, err)
		return
	}

	response.OK(c, result)
}

// SubmitGradebook 保存成绩单
// POST /api/v1/teaching/gradebook/:course_id
// 存在冲突时返回 409，data 中列出未保存的字段与值
func (h *GradebookHandler) SubmitGradebook(c *gin.Context) {
	courseID, ok := ParamID(c, "course_id")
	if !ok {
		return
	}
	var req dto.GradebookSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.gradebookSvc.Submit(c.Request.Context(), courseID, &req, h.isReadonly(c))
	if err != nil {
		h.handleGradebookError(c, err)
		return
	}

	if len(result.Conflicts) > 0 {
		response.Conflict(c, 12004, "部分单元格已被他人修改", result)
		return
	}
	response.OK(c, result)
}

// ExportGradebook 导出成绩单
// GET /api/v1/teaching/gradebook/:course_id/export
func (h *GradebookHandler) ExportGradebook(c *gin.Context) {
	courseID, ok := ParamID(c, "course_id")
	if !ok {
		return
	}

	buf, filename, err := h.gradebookSvc.Export(c.Request.Context(), courseID)
	if err != nil {
		h.handleGradebookError(c, err)
		return
	}

	sendFile(c, filename, xlsxContentType, buf.Bytes())
}

func (h *GradebookHandler) handleGradebookError(c *gin.Context, err error) {
	var verr *service.GradebookValidationError
	switch {
	case errors.As(err, &verr):
		response.UnprocessableEntity(c, 12001, "成绩单提交数据校验失败", verr.Errors)
	case errors.Is(err, service.ErrCourseNotFound):
		response.NotFound(c, 12002, "课程不存在")
	case errors.Is(err, service.ErrGradebookReadonly):
		response.Forbidden(c, 12003, "成绩单为只读")
	default:
		response.InternalError(c)
	}
}

// sendFile 以附件形式返回文件
func sendFile(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
	c.Data(http.StatusOK, contentType, data)
}
