package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cscenter/backend/config"
	"cscenter/backend/internal/api/handler"
	"cscenter/backend/internal/api/middleware"
	"cscenter/backend/internal/model"
	"cscenter/backend/internal/rbac"
	"cscenter/backend/internal/service"
	"cscenter/backend/pkg/jwt"
	"cscenter/backend/pkg/metrics"
	"cscenter/backend/pkg/redis"
)

// Options 路由依赖
type Options struct {
	JWT      *jwt.Manager
	Redis    *redis.Client // 为 nil 时不检查黑名单、不限流
	Access   service.AccessService
	Registry *rbac.Registry
	Branches middleware.BranchLookup
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, opts Options, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// Redis 不可用时以 nil 接口传入，中间件降级放行
	var (
		blacklist middleware.TokenBlacklist
		limiter   middleware.RateLimiter
	)
	if opts.Redis != nil {
		blacklist = opts.Redis
		limiter = opts.Redis
	}

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))

	// ── 健康检查与指标 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	if cfg.Metrics.Enabled {
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	perm := func(p string, load middleware.ObjectLoader) gin.HandlerFunc {
		return middleware.RequirePermission(opts.Registry, p, load, logger)
	}
	courseLoader := handler.CourseLoader(opts.Access)
	saLoader := handler.StudentAssignmentLoader(opts.Access)
	saCourseLoader := handler.StudentAssignmentCourseLoader(opts.Access)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.BodyLimit(1 << 20))
	{
		// 城市识别（子域名或 URL 参数）
		v1.GET("/site", middleware.City(&cfg.Site, middleware.CityRoute{}, opts.Branches, logger), h.Site.CurrentCity)
		v1.GET("/cities/:city_code/site", middleware.City(&cfg.Site, middleware.CityRoute{Aware: true}, opts.Branches, logger), h.Site.CurrentCity)

		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/login", middleware.RateLimit(limiter, 10, time.Minute), h.Auth.Login)
			auth.POST("/refresh", middleware.RateLimit(limiter, 30, time.Minute), h.Auth.RefreshToken)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(opts.JWT, blacklist, logger))
		authorized.Use(middleware.City(&cfg.Site, middleware.CityRoute{}, opts.Branches, logger))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)

			// 学习：选课与个人作业
			learning := authorized.Group("/learning")
			{
				learning.GET("/enrollments", h.Enrollment.ListMyEnrollments)
				learning.GET("/semester", h.Enrollment.CurrentSemester)
				learning.POST("/courses/:course_id/enroll", perm(rbac.PermEnrollInCourse, nil), h.Enrollment.Enroll)
				learning.POST("/courses/:course_id/leave", perm(rbac.PermEnrollInCourse, nil), h.Enrollment.Leave)
			}

			// 教学：成绩单与作业
			teaching := authorized.Group("/teaching")
			{
				teaching.GET("/gradebook/:course_id", perm(rbac.PermViewGradebook, courseLoader), h.Gradebook.GetGradebook)
				teaching.POST("/gradebook/:course_id", perm(rbac.PermViewGradebook, courseLoader), h.Gradebook.SubmitGradebook)
				teaching.GET("/gradebook/:course_id/export", perm(rbac.PermViewGradebook, courseLoader), h.Gradebook.ExportGradebook)
				teaching.POST("/courses/:course_id/assignments", perm(rbac.PermEditGradebook, courseLoader), h.Enrollment.CreateAssignment)
			}

			// 个人作业；附件上传单独放宽请求体限制
			sa := authorized.Group("/assignments/student/:id")
			{
				sa.GET("", perm(rbac.PermCreateAssignmentComment, saLoader), h.Assignment.GetStudentAssignment)
				sa.GET("/drafts", perm(rbac.PermCreateAssignmentComment, saLoader), h.Assignment.GetDrafts)
				sa.GET("/attachments/:comment_id", perm(rbac.PermCreateAssignmentComment, saLoader), h.Assignment.DownloadAttachment)
				sa.POST("/comments", middleware.BodyLimit(handler.AttachmentMaxBytes+1<<20), perm(rbac.PermCreateAssignmentComment, saLoader), h.Assignment.CreateComment)
				sa.POST("/solutions", middleware.BodyLimit(handler.AttachmentMaxBytes+1<<20), perm(rbac.PermCreateAssignmentComment, saLoader), h.Assignment.CreateSolution)
				sa.PUT("/score", perm(rbac.PermEditGradebook, saCourseLoader), h.Assignment.UpdateScore)
			}

			// 招生
			admission := authorized.Group("/admission")
			{
				admission.POST("/campaigns/:id/import/:kind", middleware.BodyLimit(16<<20), perm(rbac.PermImportScores, nil), h.Admission.ImportScores)
				admission.GET("/campaigns/:id/export/:kind", perm(rbac.PermImportScores, nil), h.Admission.ExportScores)
				admission.GET("/campaigns/:id/stats", perm(rbac.PermViewAdmissionStats, nil), h.Admission.Stats)
				admission.POST("/applicants/:id/register-in-contest", perm(rbac.PermImportScores, nil), h.Admission.RegisterInContest)
			}

			// 导出
			export := authorized.Group("/export")
			{
				export.GET("/students", middleware.RoleAuth(model.RoleCurator), h.Export.ExportStudents)
				export.GET("/calendar.ics", h.Export.DeadlineCalendar)
			}

			// 后台任务
			tasks := authorized.Group("/tasks", middleware.RoleAuth(model.RoleCurator))
			{
				tasks.GET("", h.Task.ListPending)
				tasks.POST("/import-testing-results", h.Task.ScheduleImport)
			}

			// 学期管理
			semesters := authorized.Group("/semesters", middleware.RoleAuth(model.RoleCurator))
			{
				semesters.GET("", h.Semester.ListSemesters)
				semesters.POST("", h.Semester.CreateSemester)
				semesters.PUT("/:id/enrollment-period", h.Semester.UpdateEnrollmentPeriod)
			}

			// 用户管理
			users := authorized.Group("/users", middleware.RoleAuth(model.RoleCurator))
			{
				users.POST("", h.User.CreateUser)
				users.PUT("/:id/roles", h.User.AssignRole)
				users.POST("/:id/reset-password", h.User.ResetPassword)
			}
		}
	}

	return r
}
