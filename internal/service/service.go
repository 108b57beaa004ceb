package service

import (
	"go.uber.org/zap"

	"cscenter/backend/config"
	"cscenter/backend/internal/repository"
	"cscenter/backend/pkg/contest"
	"cscenter/backend/pkg/jwt"
	"cscenter/backend/pkg/mail"
	"cscenter/backend/pkg/storage"
)

// Deps Service 层的外部依赖
type Deps struct {
	JWT     *jwt.Manager
	Tokens  TokenStore
	Queue   JobQueue
	Storage storage.Storage
	Contest contest.Factory
	Mail    mail.Sender
}

// Service 所有 Service 的聚合入口
type Service struct {
	Auth               AuthService
	User               UserService
	Access             AccessService
	Gradebook          GradebookService
	PersonalAssignment PersonalAssignmentService
	Enrollment         EnrollmentService
	Semester           SemesterService
	Admission          AdmissionService
	Contest            ContestService
	Stats              StatsService
	Export             ExportService
	Calendar           CalendarService
	Task               TaskService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	deps Deps,
	logger *zap.Logger,
) *Service {
	return &Service{
		Auth:               NewAuthService(cfg, repo, deps.JWT, deps.Tokens, logger),
		User:               NewUserService(cfg, repo, logger),
		Access:             NewAccessService(repo, logger),
		Gradebook:          NewGradebookService(cfg, repo, logger),
		PersonalAssignment: NewPersonalAssignmentService(repo, deps.Storage, deps.Queue, logger),
		Enrollment:         NewEnrollmentService(cfg, repo, logger),
		Semester:           NewSemesterService(cfg, repo, logger),
		Admission:          NewAdmissionService(repo, logger),
		Contest:            NewContestService(cfg, repo, deps.Contest, deps.Mail, logger),
		Stats:              NewStatsService(repo, logger),
		Export:             NewExportService(cfg, repo, logger),
		Calendar:           NewCalendarService(repo, logger),
		Task:               NewTaskService(repo, deps.Queue, logger),
	}
}
