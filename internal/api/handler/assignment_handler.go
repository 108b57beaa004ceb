package handler

import (
	"errors"
	"io"
	"math"
	"mime"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"cscenter/backend/internal/api/middleware"
	"cscenter/backend/internal/dto"
	"cscenter/backend/internal/model"
	"cscenter/backend/internal/rbac"
	"cscenter/backend/internal/service"
	"cscenter/backend/pkg/response"
)

// AttachmentMaxBytes 单个附件上限
const AttachmentMaxBytes = 20 << 20

// AssignmentHandler 个人作业（解答、评论、附件、分数）HTTP 处理器
type AssignmentHandler struct {
	saSvc service.PersonalAssignmentService
}

// NewAssignmentHandler 创建 AssignmentHandler
func NewAssignmentHandler(saSvc service.PersonalAssignmentService) *AssignmentHandler {
	return &AssignmentHandler{saSvc: saSvc}
}

// GetStudentAssignment 个人作业详情及已发布的提交记录
// GET /api/v1/assignments/student/:id
func (h *AssignmentHandler) GetStudentAssignment(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	result, err := h.saSvc.Get(c.Request.Context(), id)
	if err != nil {
		h.handleAssignmentError(c, err)
		return
	}

	response.OK(c, result)
}

// CreateSolution 学生提交解答
// POST /api/v1/assignments/student/:id/solutions (multipart/form-data)
func (h *AssignmentHandler) CreateSolution(c *gin.Context) {
	in, closeFn, ok := h.bindSubmission(c)
	if !ok {
		return
	}
	defer closeFn()
	obj, _ := c.Get(middleware.CtxPermObject)
	if sa, isSA := obj.(*rbac.StudentAssignmentAccess); !isSA || sa.StudentID != in.AuthorID {
		response.Forbidden(c, 10003, "只能提交自己的作业")
		return
	}

	solution, err := h.saSvc.CreateSolution(c.Request.Context(), in)
	if err != nil {
		h.handleAssignmentError(c, err)
		return
	}

	response.Created(c, service.ToSubmissionResponse(solution))
}

// CreateComment 发表评论或保存草稿
// POST /api/v1/assignments/student/:id/comments (multipart/form-data)
func (h *AssignmentHandler) CreateComment(c *gin.Context) {
	in, closeFn, ok := h.bindSubmission(c)
	if !ok {
		return
	}
	defer closeFn()
	in.ExecutionTime = nil

	isDraft, _ := strconv.ParseBool(c.PostForm("is_draft"))
	comment, err := h.saSvc.CreateComment(c.Request.Context(), in, isDraft)
	if err != nil {
		h.handleAssignmentError(c, err)
		return
	}

	response.Created(c, service.ToSubmissionResponse(comment))
}

// GetDrafts 当前用户在该作业下的草稿
// GET /api/v1/assignments/student/:id/drafts
func (h *AssignmentHandler) GetDrafts(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	comment, err := h.saSvc.GetDraftComment(ctx, userID, id)
	if err != nil {
		h.handleAssignmentError(c, err)
		return
	}
	solution, err := h.saSvc.GetDraftSolution(ctx, userID, id)
	if err != nil {
		h.handleAssignmentError(c, err)
		return
	}

	result := gin.H{"comment": nil, "solution": nil}
	if comment != nil {
		result["comment"] = service.ToSubmissionResponse(comment)
	}
	if solution != nil {
		result["solution"] = service.ToSubmissionResponse(solution)
	}
	response.OK(c, result)
}

// DownloadAttachment 下载提交附件
// GET /api/v1/assignments/student/:id/attachments/:comment_id
func (h *AssignmentHandler) DownloadAttachment(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	commentID, ok := ParamID(c, "comment_id")
	if !ok {
		return
	}

	r, filename, err := h.saSvc.OpenAttachment(c.Request.Context(), id, commentID)
	if err != nil {
		h.handleAssignmentError(c, err)
		return
	}
	defer r.Close()

	contentType := mime.TypeByExtension(path.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	c.DataFromReader(http.StatusOK, -1, contentType, r, nil)
}

// UpdateScore 修改个人作业分数
// PUT /api/v1/assignments/student/:id/score
func (h *AssignmentHandler) UpdateScore(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	var score *float64
	if req.Score != nil {
		// 上限由 service 按作业满分检查
		parsed, err := service.ParseScore(*req.Score, math.MaxInt32)
		if err != nil {
			response.ErrorWithDetails(c, http.StatusBadRequest, 13003, "分数格式无效", err.Error())
			return
		}
		score = parsed
	}

	sa, err := h.saSvc.UpdateScore(c.Request.Context(), id, userID, score, model.ScoreSourceForm)
	if err != nil {
		h.handleAssignmentError(c, err)
		return
	}

	response.OK(c, gin.H{"id": sa.ID, "score": sa.Score})
}

// bindSubmission 解析 multipart 表单，附件字段名 attachment
// 返回的 closeFn 关闭已打开的附件
func (h *AssignmentHandler) bindSubmission(c *gin.Context) (*service.SubmissionInput, func(), bool) {
	noop := func() {}
	id, ok := ParamID(c, "id")
	if !ok {
		return nil, noop, false
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return nil, noop, false
	}

	var req dto.CreateSubmissionRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return nil, noop, false
	}

	in := &service.SubmissionInput{StudentAssignmentID: id, AuthorID: userID, Text: req.Text}
	if req.ExecutionTime != "" {
		d, err := time.ParseDuration(req.ExecutionTime)
		if err != nil || d < 0 {
			response.BadRequest(c, 10001, "execution_time 格式无效")
			return nil, noop, false
		}
		in.ExecutionTime = &d
	}

	fh, err := c.FormFile("attachment")
	switch {
	case err == nil:
		if fh.Size > AttachmentMaxBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "附件过大")
			return nil, noop, false
		}
		f, err := fh.Open()
		if err != nil {
			response.BadRequest(c, 10001, "附件读取失败")
			return nil, noop, false
		}
		in.Attachment = &service.Attachment{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Body:        f,
		}
	case !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		response.BadRequest(c, 10001, "附件读取失败")
		return nil, noop, false
	}
	if in.Attachment != nil {
		if f, ok := in.Attachment.Body.(io.Closer); ok {
			return in, func() { _ = f.Close() }, true
		}
	}
	return in, noop, true
}

func (h *AssignmentHandler) handleAssignmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrStudentAssignmentNotFound):
		response.NotFound(c, 13001, "个人作业不存在")
	case errors.Is(err, service.ErrAttachmentNotFound):
		response.NotFound(c, 13002, "附件不存在")
	case errors.Is(err, service.ErrScoreOutOfRange):
		response.BadRequest(c, 13003, "分数超出允许范围")
	case errors.Is(err, service.ErrSubmissionEmpty):
		response.BadRequest(c, 13004, "请填写内容或上传文件")
	case errors.Is(err, service.ErrStudentLeftCourse):
		response.Forbidden(c, 13005, "学生已退出课程")
	default:
		response.InternalError(c)
	}
}
