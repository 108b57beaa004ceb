package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"cscenter/backend/internal/dto"
	"cscenter/backend/internal/service"
	"cscenter/backend/pkg/response"
)

// SemesterHandler 学期管理 HTTP 处理器
type SemesterHandler struct {
	semesterSvc service.SemesterService
}

// NewSemesterHandler 创建 SemesterHandler
func NewSemesterHandler(semesterSvc service.SemesterService) *SemesterHandler {
	return &SemesterHandler{semesterSvc: semesterSvc}
}

// ListSemesters 学期列表，新学期在前
// GET /api/v1/semesters
func (h *SemesterHandler) ListSemesters(c *gin.Context) {
	semesters, err := h.semesterSvc.List(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": semesters})
}

// CreateSemester 新建学期
// POST /api/v1/semesters
func (h *SemesterHandler) CreateSemester(c *gin.Context) {
	var req dto.CreateSemesterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	semester, err := h.semesterSvc.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleSemesterError(c, err)
		return
	}

	response.Created(c, semester)
}

// UpdateEnrollmentPeriod 修改选课期
// PUT /api/v1/semesters/:id/enrollment-period
func (h *SemesterHandler) UpdateEnrollmentPeriod(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateEnrollmentPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	semester, err := h.semesterSvc.UpdateEnrollmentPeriod(c.Request.Context(), id, &req)
	if err != nil {
		h.handleSemesterError(c, err)
		return
	}

	response.OK(c, semester)
}

func (h *SemesterHandler) handleSemesterError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSemesterNotFound):
		response.NotFound(c, 14010, "学期不存在")
	case errors.Is(err, service.ErrInvalidSemester):
		response.ErrorWithDetails(c, 400, 14013, "学期参数无效", err.Error())
	case errors.Is(err, service.ErrEnrollmentPeriodInvalid):
		response.BadRequest(c, 14011, "选课结束日期不能早于开始日期")
	case errors.Is(err, service.ErrSemesterExists):
		response.Conflict(c, 14012, "该学期已存在", nil)
	default:
		response.InternalError(c)
	}
}
