package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cscenter/backend/internal/dto"
	"cscenter/backend/internal/service"
	"cscenter/backend/pkg/response"
)

// TaskHandler 后台任务 HTTP 处理器（策展人）
type TaskHandler struct {
	taskSvc service.TaskService
}

// NewTaskHandler 创建 TaskHandler
func NewTaskHandler(taskSvc service.TaskService) *TaskHandler {
	return &TaskHandler{taskSvc: taskSvc}
}

// ListPending 未处理的任务，用于人工核对超时任务
// GET /api/v1/tasks?name=&limit=
func (h *TaskHandler) ListPending(c *gin.Context) {
	var q dto.TaskListRequest
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	tasks, err := h.taskSvc.ListPending(c.Request.Context(), q.Name, q.Limit)
	if err != nil {
		response.InternalError(c)
		return
	}

	list := make([]dto.TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		list = append(list, dto.TaskResponse{
			ID:        t.ID,
			Name:      t.Name,
			CreatedAt: t.CreatedAt,
			LockedAt:  t.LockedAt,
			LockedBy:  t.LockedBy,
		})
	}
	response.OK(c, gin.H{"list": list})
}

// ScheduleImport 立即安排一次榜单导入
// POST /api/v1/tasks/import-testing-results
func (h *TaskHandler) ScheduleImport(c *gin.Context) {
	task, err := h.taskSvc.ScheduleImport(c.Request.Context())
	if err != nil {
		if task != nil {
			// 任务记录已写入，入队失败
			response.ErrorWithDetails(c, http.StatusServiceUnavailable, 17001, "任务入队失败，可稍后重新入队", err.Error())
			return
		}
		response.InternalError(c)
		return
	}

	c.JSON(http.StatusAccepted, response.Response{Code: 0, Message: "success", Data: dto.EnqueueResponse{TaskID: task.ID}})
}
