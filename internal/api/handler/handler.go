package handler

import (
	"cscenter/backend/config"
	"cscenter/backend/internal/rbac"
	"cscenter/backend/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth       *AuthHandler
	User       *UserHandler
	Site       *SiteHandler
	Gradebook  *GradebookHandler
	Assignment *AssignmentHandler
	Enrollment *EnrollmentHandler
	Semester   *SemesterHandler
	Admission  *AdmissionHandler
	Export     *ExportHandler
	Task       *TaskHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(cfg *config.Config, svc *service.Service, reg *rbac.Registry) *Handler {
	return &Handler{
		Auth:       NewAuthHandler(svc.Auth, cfg),
		User:       NewUserHandler(svc.User),
		Site:       NewSiteHandler(&cfg.Site),
		Gradebook:  NewGradebookHandler(svc.Gradebook, reg),
		Assignment: NewAssignmentHandler(svc.PersonalAssignment),
		Enrollment: NewEnrollmentHandler(svc.Enrollment),
		Semester:   NewSemesterHandler(svc.Semester),
		Admission:  NewAdmissionHandler(svc.Admission, svc.Stats, svc.Task),
		Export:     NewExportHandler(svc.Export, svc.Calendar),
		Task:       NewTaskHandler(svc.Task),
	}
}
