package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"cscenter/backend/internal/api/middleware"
	"cscenter/backend/internal/dto"
	"cscenter/backend/internal/service"
	"cscenter/backend/pkg/response"
)

// EnrollmentHandler 选课模块 HTTP 处理器
type EnrollmentHandler struct {
	enrollmentSvc service.EnrollmentService
}

// NewEnrollmentHandler 创建 EnrollmentHandler
func NewEnrollmentHandler(enrollmentSvc service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollmentSvc: enrollmentSvc}
}

// Enroll 选课
// POST /api/v1/learning/courses/:course_id/enroll
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	courseID, ok := ParamID(c, "course_id")
	if !ok {
		return
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.enrollmentSvc.Enroll(c.Request.Context(), userID, courseID, req.Reason)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	response.Created(c, result)
}

// Leave 退课
// POST /api/v1/learning/courses/:course_id/leave
func (h *EnrollmentHandler) Leave(c *gin.Context) {
	courseID, ok := ParamID(c, "course_id")
	if !ok {
		return
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := h.enrollmentSvc.Leave(c.Request.Context(), userID, courseID, req.Reason); err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	response.OK(c, nil)
}

// ListMyEnrollments 当前学生的选课记录
// GET /api/v1/learning/enrollments
func (h *EnrollmentHandler) ListMyEnrollments(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.enrollmentSvc.ListForStudent(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// CurrentSemester 当前城市所在学期与选课期
// GET /api/v1/learning/semester
func (h *EnrollmentHandler) CurrentSemester(c *gin.Context) {
	result, err := h.enrollmentSvc.CurrentSemester(c.Request.Context(), c.GetString(middleware.CtxCityCode))
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}
	response.OK(c, result)
}

// CreateAssignment 新建作业，并为在读学生生成个人作业
// POST /api/v1/teaching/courses/:course_id/assignments
func (h *EnrollmentHandler) CreateAssignment(c *gin.Context) {
	courseID, ok := ParamID(c, "course_id")
	if !ok {
		return
	}

	var req dto.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.enrollmentSvc.CreateAssignment(c.Request.Context(), courseID, &req)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	response.Created(c, result)
}

func (h *EnrollmentHandler) handleEnrollmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCourseNotFound):
		response.NotFound(c, 14001, "课程不存在")
	case errors.Is(err, service.ErrEnrollmentClosed):
		response.BadRequest(c, 14002, "当前不在选课时间内")
	case errors.Is(err, service.ErrCourseIsFull):
		response.Conflict(c, 14003, "课程名额已满", nil)
	case errors.Is(err, service.ErrCourseNotAvailable):
		response.Forbidden(c, 14004, "课程不对该学生所在分校开放")
	case errors.Is(err, service.ErrAlreadyEnrolled):
		response.Conflict(c, 14005, "已选该课程", nil)
	case errors.Is(err, service.ErrNotEnrolled):
		response.BadRequest(c, 14006, "未选该课程")
	case errors.Is(err, service.ErrStudentInactive):
		response.Forbidden(c, 14007, "学生已被开除")
	case errors.Is(err, service.ErrSemesterNotFound):
		response.NotFound(c, 14009, "当前学期尚未创建")
	case errors.Is(err, service.ErrScoreOutOfRange):
		response.BadRequest(c, 14008, "及格分不能大于满分")
	default:
		response.InternalError(c)
	}
}
