package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"cscenter/backend/internal/service"
	"cscenter/backend/pkg/response"
)

// ExportHandler 报表导出 HTTP 处理器
type ExportHandler struct {
	exportSvc   service.ExportService
	calendarSvc service.CalendarService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService, calendarSvc service.CalendarService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc, calendarSvc: calendarSvc}
}

// ExportStudents 导出在读学生及选课记录
// GET /api/v1/export/students
func (h *ExportHandler) ExportStudents(c *gin.Context) {
	buf, filename, err := h.exportSvc.ExportStudents(c.Request.Context())
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	sendFile(c, filename, xlsxContentType, buf.Bytes())
}

// DeadlineCalendar 当前用户的作业截止日历
// GET /api/v1/export/calendar.ics
func (h *ExportHandler) DeadlineCalendar(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	raw, filename, err := h.calendarSvc.Deadlines(c.Request.Context(), userID, GetRoles(c))
	if err != nil {
		response.InternalError(c)
		return
	}

	sendFile(c, filename, "text/calendar; charset=utf-8", raw)
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoStudents):
		response.NotFound(c, 16101, "没有在读学生")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		response.InternalError(c)
	}
}
