package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cscenter/backend/internal/dto"
	"cscenter/backend/internal/service"
	"cscenter/backend/pkg/response"
)

// AdmissionHandler 招生模块 HTTP 处理器（成绩导入导出、统计、竞赛注册）
type AdmissionHandler struct {
	admissionSvc service.AdmissionService
	statsSvc     service.StatsService
	taskSvc      service.TaskService
}

// NewAdmissionHandler 创建 AdmissionHandler
func NewAdmissionHandler(admissionSvc service.AdmissionService, statsSvc service.StatsService, taskSvc service.TaskService) *AdmissionHandler {
	return &AdmissionHandler{admissionSvc: admissionSvc, statsSvc: statsSvc, taskSvc: taskSvc}
}

// ImportScores 导入成绩（multipart 字段 file）
// POST /api/v1/admission/campaigns/:id/import/:kind?dry_run=1
func (h *AdmissionHandler) ImportScores(c *gin.Context) {
	campaignID, ok := ParamID(c, "id")
	if !ok {
		return
	}
	var q dto.ImportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, 10001, "请上传文件")
		return
	}
	format, err := service.DetectFormat(fh.Filename, fh.Header.Get("Content-Type"))
	if err != nil {
		h.handleAdmissionError(c, err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, 10001, "文件读取失败")
		return
	}
	defer f.Close()

	result, err := h.admissionSvc.ImportScores(c.Request.Context(), campaignID, c.Param("kind"), format, f, q.DryRun)
	if err != nil {
		h.handleAdmissionError(c, err)
		return
	}

	if len(result.Errors) > 0 {
		response.UnprocessableEntity(c, 15006, "存在行错误，未写入数据", result)
		return
	}
	response.OK(c, result)
}

// ExportScores 导出成绩
// GET /api/v1/admission/campaigns/:id/export/:kind?format=xlsx|csv
func (h *AdmissionHandler) ExportScores(c *gin.Context) {
	campaignID, ok := ParamID(c, "id")
	if !ok {
		return
	}
	var q dto.ExportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	buf, filename, err := h.admissionSvc.ExportScores(c.Request.Context(), campaignID, c.Param("kind"), q.Format)
	if err != nil {
		h.handleAdmissionError(c, err)
		return
	}

	contentType := xlsxContentType
	if q.Format == service.FormatCSV {
		contentType = "text/csv; charset=utf-8"
	}
	sendFile(c, filename, contentType, buf.Bytes())
}

// Stats 招生统计
// GET /api/v1/admission/campaigns/:id/stats
func (h *AdmissionHandler) Stats(c *gin.Context) {
	campaignID, ok := ParamID(c, "id")
	if !ok {
		return
	}

	result, err := h.statsSvc.AdmissionStats(c.Request.Context(), campaignID)
	if err != nil {
		h.handleAdmissionError(c, err)
		return
	}

	response.OK(c, result)
}

// RegisterInContest 将申请人注册到测试竞赛（异步）
// POST /api/v1/admission/applicants/:id/register-in-contest
func (h *AdmissionHandler) RegisterInContest(c *gin.Context) {
	applicantID, ok := ParamID(c, "id")
	if !ok {
		return
	}

	jobID, err := h.taskSvc.EnqueueContestRegistration(c.Request.Context(), applicantID)
	if err != nil {
		h.handleAdmissionError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, response.Response{Code: 0, Message: "success", Data: dto.EnqueueResponse{JobID: jobID}})
}

func (h *AdmissionHandler) handleAdmissionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCampaignNotFound):
		response.NotFound(c, 15001, "招生季不存在")
	case errors.Is(err, service.ErrApplicantNotFound):
		response.NotFound(c, 15002, "申请人不存在")
	case errors.Is(err, service.ErrUnknownScoreKind):
		response.NotFound(c, 15003, "未知的成绩类型")
	case errors.Is(err, service.ErrUnsupportedFormat):
		response.BadRequest(c, 15004, "不支持的文件格式，仅支持 csv / xlsx")
	case errors.Is(err, service.ErrImportMissingApplicant), errors.Is(err, service.ErrImportEmpty):
		response.ErrorWithDetails(c, http.StatusBadRequest, 15005, "导入文件无效", err.Error())
	case errors.Is(err, service.ErrQueueUnavailable):
		response.Error(c, http.StatusServiceUnavailable, 17001, "任务队列不可用")
	default:
		response.InternalError(c)
	}
}
