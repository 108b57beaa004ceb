package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"cscenter/backend/internal/api/middleware"
	"cscenter/backend/internal/dto"
	"cscenter/backend/internal/model"
	"cscenter/backend/internal/rbac"
	"cscenter/backend/internal/service"
	"cscenter/backend/pkg/jwt"
	"cscenter/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock AuthService ──

type mockAuthService struct {
	loginResult   *dto.TokenResponse
	loginErr      error
	refreshResult *dto.TokenResponse
	refreshErr    error
	refreshGot    string
	logoutErr     error
	logoutClaims  *jwt.Claims
	meResult      *dto.UserResponse
	meErr         error
}

func (m *mockAuthService) Login(_ context.Context, _ *dto.LoginRequest) (*dto.TokenResponse, error) {
	return m.loginResult, m.loginErr
}
func (m *mockAuthService) Refresh(_ context.Context, token string) (*dto.TokenResponse, error) {
	m.refreshGot = token
	return m.refreshResult, m.refreshErr
}
func (m *mockAuthService) Logout(_ context.Context, claims *jwt.Claims) error {
	m.logoutClaims = claims
	return m.logoutErr
}
func (m *mockAuthService) Me(_ context.Context, _ int64) (*dto.UserResponse, error) {
	return m.meResult, m.meErr
}

// ── Mock GradebookService ──

type mockGradebookService struct {
	getResult    *dto.GradebookResponse
	getReadonly  bool
	submitResult *dto.GradebookSubmitResponse
	submitErr    error
	exportBuf    *bytes.Buffer
	exportErr    error
}

func (m *mockGradebookService) Load(_ context.Context, _ int64, _ *int64) (*service.GradebookData, error) {
	return nil, nil
}
func (m *mockGradebookService) Get(_ context.Context, _ int64, _ *int64, isReadonly bool) (*dto.GradebookResponse, error) {
	m.getReadonly = isReadonly
	return m.getResult, nil
}
func (m *mockGradebookService) Submit(_ context.Context, _ int64, _ *dto.GradebookSubmitRequest, _ bool) (*dto.GradebookSubmitResponse, error) {
	return m.submitResult, m.submitErr
}
func (m *mockGradebookService) Export(_ context.Context, _ int64) (*bytes.Buffer, string, error) {
	return m.exportBuf, "gradebook.xlsx", m.exportErr
}

// ── Mock PersonalAssignmentService ──

type mockPersonalAssignmentService struct {
	commentIn    *service.SubmissionInput
	attachment   string
	isDraft      bool
	scoreGot     *float64
	scoreErr     error
	solutionErr  error
	openBody     string
	openFilename string
	openErr      error
}

func (m *mockPersonalAssignmentService) Get(_ context.Context, id int64) (*dto.StudentAssignmentResponse, error) {
	return &dto.StudentAssignmentResponse{ID: id}, nil
}
func (m *mockPersonalAssignmentService) UpdateStats(_ context.Context, _ int64) error { return nil }
func (m *mockPersonalAssignmentService) CreateSolution(_ context.Context, in *service.SubmissionInput) (*model.AssignmentComment, error) {
	m.commentIn = in
	if m.solutionErr != nil {
		return nil, m.solutionErr
	}
	return &model.AssignmentComment{ID: 1, Type: model.SubmissionTypeSolution, Text: in.Text, IsPublished: true}, nil
}
func (m *mockPersonalAssignmentService) CreateComment(_ context.Context, in *service.SubmissionInput, isDraft bool) (*model.AssignmentComment, error) {
	m.commentIn = in
	m.isDraft = isDraft
	if in.Attachment != nil {
		b, _ := io.ReadAll(in.Attachment.Body)
		m.attachment = string(b)
	}
	return &model.AssignmentComment{ID: 2, Type: model.SubmissionTypeComment, Text: in.Text, IsPublished: !isDraft}, nil
}
func (m *mockPersonalAssignmentService) GetDraftComment(_ context.Context, _, _ int64) (*model.AssignmentComment, error) {
	return &model.AssignmentComment{ID: 3, Text: "черновик"}, nil
}
func (m *mockPersonalAssignmentService) GetDraftSolution(_ context.Context, _, _ int64) (*model.AssignmentComment, error) {
	return nil, nil
}
func (m *mockPersonalAssignmentService) OpenAttachment(_ context.Context, _, _ int64) (io.ReadCloser, string, error) {
	if m.openErr != nil {
		return nil, "", m.openErr
	}
	return io.NopCloser(strings.NewReader(m.openBody)), m.openFilename, nil
}
func (m *mockPersonalAssignmentService) UpdateScore(_ context.Context, id, _ int64, score *float64, _ string) (*model.StudentAssignment, error) {
	m.scoreGot = score
	if m.scoreErr != nil {
		return nil, m.scoreErr
	}
	return &model.StudentAssignment{ID: id, Score: score}, nil
}
func (m *mockPersonalAssignmentService) UpdateDerivableFields(_ context.Context, _ *model.StudentAssignment, _ *model.AssignmentComment) error {
	return nil
}
func (m *mockPersonalAssignmentService) ResolveAssignees(_ context.Context, _ *model.StudentAssignment) ([]int64, error) {
	return nil, nil
}
func (m *mockPersonalAssignmentService) MaybeSetAssignee(_ context.Context, _ *model.StudentAssignment, _ *model.AssignmentComment) error {
	return nil
}

// ── Mock EnrollmentService ──

type mockEnrollmentService struct {
	enrollErr error
	reason    string
}

func (m *mockEnrollmentService) Enroll(_ context.Context, studentID, courseID int64, reason string) (*dto.EnrollmentResponse, error) {
	m.reason = reason
	if m.enrollErr != nil {
		return nil, m.enrollErr
	}
	return &dto.EnrollmentResponse{ID: 1, CourseID: courseID}, nil
}
func (m *mockEnrollmentService) Leave(_ context.Context, _, _ int64, reason string) error {
	m.reason = reason
	return m.enrollErr
}
func (m *mockEnrollmentService) ListForStudent(_ context.Context, _ int64) ([]dto.EnrollmentResponse, error) {
	return []dto.EnrollmentResponse{{ID: 1}}, nil
}
func (m *mockEnrollmentService) CurrentSemester(_ context.Context, cityCode string) (*dto.SemesterResponse, error) {
	if m.enrollErr != nil {
		return nil, m.enrollErr
	}
	return &dto.SemesterResponse{ID: 1, Year: 2024, Type: cityCode}, nil
}
func (m *mockEnrollmentService) CreateAssignment(_ context.Context, courseID int64, req *dto.CreateAssignmentRequest) (*dto.AssignmentResponse, error) {
	return &dto.AssignmentResponse{ID: 1, CourseID: courseID, Title: req.Title}, nil
}

// ── Mock SemesterService ──

type mockSemesterService struct {
	err    error
	gotID  int64
	gotReq *dto.CreateSemesterRequest
}

func (m *mockSemesterService) Create(_ context.Context, req *dto.CreateSemesterRequest) (*dto.SemesterResponse, error) {
	m.gotReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.SemesterResponse{ID: 5, Year: req.Year, Type: req.Type}, nil
}
func (m *mockSemesterService) List(_ context.Context) ([]dto.SemesterResponse, error) {
	return []dto.SemesterResponse{{ID: 5, Year: 2024, Type: model.SemesterAutumn}}, m.err
}
func (m *mockSemesterService) UpdateEnrollmentPeriod(_ context.Context, id int64, _ *dto.UpdateEnrollmentPeriodRequest) (*dto.SemesterResponse, error) {
	m.gotID = id
	if m.err != nil {
		return nil, m.err
	}
	return &dto.SemesterResponse{ID: id}, nil
}

// ── Mock AdmissionService / StatsService / TaskService ──

type mockAdmissionService struct {
	importFormat string
	importBody   string
	importDryRun bool
	importResult *dto.ImportResult
	importErr    error
}

func (m *mockAdmissionService) ImportScores(_ context.Context, _ int64, kind, format string, r io.Reader, dryRun bool) (*dto.ImportResult, error) {
	b, _ := io.ReadAll(r)
	m.importFormat, m.importBody, m.importDryRun = format, string(b), dryRun
	if m.importErr != nil {
		return nil, m.importErr
	}
	res := *m.importResult
	res.Kind = kind
	return &res, nil
}
func (m *mockAdmissionService) ExportScores(_ context.Context, _ int64, kind, format string) (*bytes.Buffer, string, error) {
	return bytes.NewBufferString("applicant,score\n"), kind + "." + format, nil
}

type mockStatsService struct{ err error }

func (m *mockStatsService) AdmissionStats(_ context.Context, id int64) (*dto.AdmissionStatsResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &dto.AdmissionStatsResponse{CampaignID: id}, nil
}

type mockTaskService struct {
	task     *model.Task
	err      error
	jobID    string
	jobErr   error
	pending  []model.Task
	gotLimit int
}

func (m *mockTaskService) ScheduleImport(_ context.Context) (*model.Task, error) {
	return m.task, m.err
}
func (m *mockTaskService) EnqueueContestRegistration(_ context.Context, _ int64) (string, error) {
	return m.jobID, m.jobErr
}
func (m *mockTaskService) ListPending(_ context.Context, _ string, limit int) ([]model.Task, error) {
	m.gotLimit = limit
	return m.pending, nil
}

// ── Mock ExportService / CalendarService ──

type mockExportService struct {
	buf *bytes.Buffer
	err error
}

func (m *mockExportService) ExportStudents(_ context.Context) (*bytes.Buffer, string, error) {
	return m.buf, "students_2024-10-10.xlsx", m.err
}

type mockCalendarService struct{ roles []string }

func (m *mockCalendarService) Deadlines(_ context.Context, _ int64, roles []string) ([]byte, string, error) {
	m.roles = roles
	return []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"), "deadlines.ics", nil
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

func setAuth(c *gin.Context, roles ...string) {
	c.Set(middleware.CtxUserID, int64(42))
	c.Set(middleware.CtxRoles, roles)
	c.Set(middleware.CtxClaims, &jwt.Claims{UserID: 42, Roles: roles, TokenType: "access"})
}

// withAuth 注入认证信息（以及可选的权限对象）后调用 handler
func withAuth(h gin.HandlerFunc, obj interface{}, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		setAuth(c, roles...)
		if obj != nil {
			c.Set(middleware.CtxPermObject, obj)
		}
		h(c)
	}
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func jsonRequest(method, path string, v interface{}) *http.Request {
	req := httptest.NewRequest(method, path, jsonBody(v))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, path string, fields map[string]string, fileField, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(content))
	}
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

// ═══════════════════════════════════════════════════════════
// AuthHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAuthHandler_Login_Success(t *testing.T) {
	mock := &mockAuthService{
		loginResult: &dto.TokenResponse{AccessToken: "test-access-token", RefreshToken: "test-refresh-token", ExpiresIn: 900},
	}
	h := NewAuthHandler(mock, nil)

	r := gin.New()
	r.POST("/auth/login", h.Login)
	w := serve(r, jsonRequest(http.MethodPost, "/auth/login", dto.LoginRequest{Username: "ivan", Password: "secret"}))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 0 {
		t.Errorf("expected code 0, got %d", resp.Code)
	}
	found := false
	for _, c := range w.Result().Cookies() {
		if c.Name == "refresh_token" {
			found = true
			if c.Value != "test-refresh-token" || !c.HttpOnly {
				t.Errorf("unexpected refresh cookie: %+v", c)
			}
		}
	}
	if !found {
		t.Error("expected refresh_token cookie to be set")
	}
}

func TestAuthHandler_Login_BadJSON(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil)

	r := gin.New()
	r.POST("/auth/login", h.Login)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("invalid json"))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{loginErr: service.ErrInvalidCredentials}, nil)

	r := gin.New()
	r.POST("/auth/login", h.Login)
	w := serve(r, jsonRequest(http.MethodPost, "/auth/login", dto.LoginRequest{Username: "ivan", Password: "wrong"}))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 11001 {
		t.Errorf("expected error code 11001, got %d", resp.Code)
	}
}

func TestAuthHandler_RefreshToken(t *testing.T) {
	mock := &mockAuthService{refreshResult: &dto.TokenResponse{AccessToken: "new-access", RefreshToken: "new-refresh"}}
	h := NewAuthHandler(mock, nil)
	r := gin.New()
	r.POST("/auth/refresh", h.RefreshToken)

	w := serve(r, jsonRequest(http.MethodPost, "/auth/refresh", dto.RefreshTokenRequest{RefreshToken: "old-refresh"}))
	if w.Code != http.StatusOK || mock.refreshGot != "old-refresh" {
		t.Errorf("expected 200 with body token, got %d (%q)", w.Code, mock.refreshGot)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "cookie-refresh"})
	w = serve(r, req)
	if w.Code != http.StatusOK || mock.refreshGot != "cookie-refresh" {
		t.Errorf("expected 200 with cookie token, got %d (%q)", w.Code, mock.refreshGot)
	}

	w = serve(r, jsonRequest(http.MethodPost, "/auth/refresh", map[string]string{}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without token, got %d", w.Code)
	}

	mock.refreshErr = service.ErrInvalidToken
	w = serve(r, jsonRequest(http.MethodPost, "/auth/refresh", dto.RefreshTokenRequest{RefreshToken: "used"}))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for revoked token, got %d", w.Code)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	mock := &mockAuthService{}
	h := NewAuthHandler(mock, nil)

	r := gin.New()
	r.POST("/auth/logout", withAuth(h.Logout, nil, model.RoleStudent))
	w := serve(r, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if mock.logoutClaims == nil || mock.logoutClaims.UserID != 42 {
		t.Error("expected claims to be passed to Logout")
	}

	r = gin.New()
	r.POST("/auth/logout", h.Logout)
	if w := serve(r, httptest.NewRequest(http.MethodPost, "/auth/logout", nil)); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without claims, got %d", w.Code)
	}
}

func TestAuthHandler_GetCurrentUser(t *testing.T) {
	mock := &mockAuthService{meResult: &dto.UserResponse{ID: 42, Username: "ivan"}}
	h := NewAuthHandler(mock, nil)

	r := gin.New()
	r.GET("/auth/me", withAuth(h.GetCurrentUser, nil))
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/auth/me", nil)); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	mock.meErr = service.ErrUserNotFound
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/auth/me", nil)); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// GradebookHandler Tests
// ═══════════════════════════════════════════════════════════

func TestGradebookHandler_Get_Readonly(t *testing.T) {
	mock := &mockGradebookService{getResult: &dto.GradebookResponse{CourseID: 1}}
	h := NewGradebookHandler(mock, rbac.NewDefaultRegistry())

	spectator := &rbac.CourseAccess{CourseID: 1, IsTeacher: true, TeacherRoles: model.TeacherRoleSpectator}
	lecturer := &rbac.CourseAccess{CourseID: 1, IsTeacher: true, TeacherRoles: model.TeacherRoleLecturer}

	r := gin.New()
	r.GET("/spectator/:course_id", withAuth(h.GetGradebook, spectator, model.RoleTeacher))
	r.GET("/lecturer/:course_id", withAuth(h.GetGradebook, lecturer, model.RoleTeacher))

	if w := serve(r, httptest.NewRequest(http.MethodGet, "/spectator/1", nil)); w.Code != http.StatusOK || !mock.getReadonly {
		t.Errorf("spectator should get readonly gradebook: %d %v", w.Code, mock.getReadonly)
	}
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/lecturer/1", nil)); w.Code != http.StatusOK || mock.getReadonly {
		t.Errorf("lecturer should get editable gradebook: %d %v", w.Code, mock.getReadonly)
	}
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/lecturer/abc", nil)); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad course id, got %d", w.Code)
	}
}

func TestGradebookHandler_Submit(t *testing.T) {
	lecturer := &rbac.CourseAccess{CourseID: 1, IsTeacher: true, TeacherRoles: model.TeacherRoleLecturer}
	body := dto.GradebookSubmitRequest{Values: map[string]string{"sa_1": "5", "initial-sa_1": "4"}}

	cases := []struct {
		name   string
		mock   *mockGradebookService
		status int
	}{
		{"saved", &mockGradebookService{submitResult: &dto.GradebookSubmitResponse{Saved: 1, Conflicts: []dto.GradebookConflict{}}}, http.StatusOK},
		{"conflict", &mockGradebookService{submitResult: &dto.GradebookSubmitResponse{
			Conflicts: []dto.GradebookConflict{{FieldName: "sa_1", UnsavedValue: 5.0}},
		}}, http.StatusConflict},
		{"validation", &mockGradebookService{submitErr: &service.GradebookValidationError{Errors: map[string]string{"sa_1": "分数不能大于 10"}}}, http.StatusUnprocessableEntity},
		{"readonly", &mockGradebookService{submitErr: service.ErrGradebookReadonly}, http.StatusForbidden},
		{"not found", &mockGradebookService{submitErr: service.ErrCourseNotFound}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewGradebookHandler(tc.mock, rbac.NewDefaultRegistry())
			r := gin.New()
			r.POST("/gradebook/:course_id", withAuth(h.SubmitGradebook, lecturer, model.RoleTeacher))

			w := serve(r, jsonRequest(http.MethodPost, "/gradebook/1", body))
			if w.Code != tc.status {
				t.Errorf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
			if tc.status == http.StatusConflict && !strings.Contains(w.Body.String(), `"field_name":"sa_1"`) {
				t.Errorf("conflict response should list unsaved fields: %s", w.Body.String())
			}
			if tc.status == http.StatusUnprocessableEntity && !strings.Contains(w.Body.String(), "sa_1") {
				t.Errorf("validation response should list field errors: %s", w.Body.String())
			}
		})
	}
}

func TestGradebookHandler_Export(t *testing.T) {
	h := NewGradebookHandler(&mockGradebookService{exportBuf: bytes.NewBufferString("xlsx")}, rbac.NewDefaultRegistry())
	r := gin.New()
	r.GET("/gradebook/:course_id/export", h.ExportGradebook)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/gradebook/1/export", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "gradebook.xlsx") {
		t.Errorf("unexpected content disposition %q", cd)
	}
}

// ═══════════════════════════════════════════════════════════
// AssignmentHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAssignmentHandler_CreateComment_WithAttachment(t *testing.T) {
	mock := &mockPersonalAssignmentService{}
	h := NewAssignmentHandler(mock)
	r := gin.New()
	r.POST("/sa/:id/comments", withAuth(h.CreateComment, nil, model.RoleTeacher))

	req := multipartRequest(t, "/sa/7/comments", map[string]string{"text": "Посмотрите тесты", "is_draft": "1"}, "attachment", "review.txt", "diff")
	w := serve(r, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if mock.commentIn.StudentAssignmentID != 7 || mock.commentIn.AuthorID != 42 || mock.commentIn.Text != "Посмотрите тесты" {
		t.Errorf("unexpected submission input: %+v", mock.commentIn)
	}
	if !mock.isDraft {
		t.Error("is_draft=1 should create a draft")
	}
	if mock.attachment != "diff" || mock.commentIn.Attachment.Name != "review.txt" {
		t.Errorf("attachment not passed through: %q", mock.attachment)
	}
}

func TestAssignmentHandler_CreateSolution(t *testing.T) {
	mock := &mockPersonalAssignmentService{}
	h := NewAssignmentHandler(mock)

	own := &rbac.StudentAssignmentAccess{StudentID: 42, Course: rbac.CourseAccess{IsEnrolled: true}}
	other := &rbac.StudentAssignmentAccess{StudentID: 43}
	r := gin.New()
	r.POST("/own/:id/solutions", withAuth(h.CreateSolution, own, model.RoleStudent))
	r.POST("/other/:id/solutions", withAuth(h.CreateSolution, other, model.RoleTeacher))

	w := serve(r, multipartRequest(t, "/own/7/solutions", map[string]string{"text": "print(1)", "execution_time": "1h30m"}, "", "", ""))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if mock.commentIn.ExecutionTime == nil || *mock.commentIn.ExecutionTime != 90*time.Minute {
		t.Errorf("execution_time not parsed: %v", mock.commentIn.ExecutionTime)
	}

	w = serve(r, multipartRequest(t, "/own/7/solutions", map[string]string{"execution_time": "soon"}, "", "", ""))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad execution_time, got %d", w.Code)
	}

	w = serve(r, multipartRequest(t, "/other/7/solutions", map[string]string{"text": "x"}, "", "", ""))
	if w.Code != http.StatusForbidden {
		t.Errorf("only the student can submit a solution, got %d", w.Code)
	}

	mock.solutionErr = service.ErrSubmissionEmpty
	w = serve(r, multipartRequest(t, "/own/7/solutions", nil, "", "", ""))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty submission, got %d", w.Code)
	}
}

func TestAssignmentHandler_UpdateScore(t *testing.T) {
	mock := &mockPersonalAssignmentService{}
	h := NewAssignmentHandler(mock)
	r := gin.New()
	r.PUT("/sa/:id/score", withAuth(h.UpdateScore, nil, model.RoleTeacher))

	score := "4,5"
	w := serve(r, jsonRequest(http.MethodPut, "/sa/7/score", dto.UpdateScoreRequest{Score: &score}))
	if w.Code != http.StatusOK || mock.scoreGot == nil || *mock.scoreGot != 4.5 {
		t.Errorf("expected score 4.5, got %d %v", w.Code, mock.scoreGot)
	}

	w = serve(r, jsonRequest(http.MethodPut, "/sa/7/score", dto.UpdateScoreRequest{}))
	if w.Code != http.StatusOK || mock.scoreGot != nil {
		t.Errorf("empty score should clear: %d %v", w.Code, mock.scoreGot)
	}

	bad := "abc"
	w = serve(r, jsonRequest(http.MethodPut, "/sa/7/score", dto.UpdateScoreRequest{Score: &bad}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad score, got %d", w.Code)
	}

	mock.scoreErr = service.ErrScoreOutOfRange
	w = serve(r, jsonRequest(http.MethodPut, "/sa/7/score", dto.UpdateScoreRequest{Score: &score}))
	if resp := parseResponse(w); w.Code != http.StatusBadRequest || resp.Code != 13003 {
		t.Errorf("expected 400/13003, got %d/%d", w.Code, resp.Code)
	}
}

func TestAssignmentHandler_DownloadAttachment(t *testing.T) {
	mock := &mockPersonalAssignmentService{openBody: "%PDF", openFilename: "solution.pdf"}
	h := NewAssignmentHandler(mock)
	r := gin.New()
	r.GET("/sa/:id/attachments/:comment_id", h.DownloadAttachment)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/sa/7/attachments/3", nil))
	if w.Code != http.StatusOK || w.Body.String() != "%PDF" {
		t.Fatalf("expected attachment body, got %d %q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("unexpected content type %q", ct)
	}

	mock.openErr = service.ErrAttachmentNotFound
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/sa/7/attachments/3", nil)); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestAssignmentHandler_GetDrafts(t *testing.T) {
	h := NewAssignmentHandler(&mockPersonalAssignmentService{})
	r := gin.New()
	r.GET("/sa/:id/drafts", withAuth(h.GetDrafts, nil, model.RoleStudent))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/sa/7/drafts", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "черновик") || !strings.Contains(w.Body.String(), `"solution":null`) {
		t.Errorf("unexpected drafts body: %s", w.Body.String())
	}
}

// ═══════════════════════════════════════════════════════════
// EnrollmentHandler Tests
// ═══════════════════════════════════════════════════════════

func TestEnrollmentHandler_Enroll(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{nil, http.StatusCreated},
		{service.ErrCourseIsFull, http.StatusConflict},
		{service.ErrAlreadyEnrolled, http.StatusConflict},
		{service.ErrEnrollmentClosed, http.StatusBadRequest},
		{service.ErrCourseNotAvailable, http.StatusForbidden},
		{service.ErrCourseNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		mock := &mockEnrollmentService{enrollErr: tc.err}
		h := NewEnrollmentHandler(mock)
		r := gin.New()
		r.POST("/courses/:course_id/enroll", withAuth(h.Enroll, nil, model.RoleStudent))

		w := serve(r, jsonRequest(http.MethodPost, "/courses/3/enroll", dto.EnrollRequest{Reason: "интересно"}))
		if w.Code != tc.status {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.status, w.Code)
		}
		if mock.reason != "интересно" {
			t.Errorf("reason not passed: %q", mock.reason)
		}
	}
}

func TestEnrollmentHandler_CurrentSemester(t *testing.T) {
	h := NewEnrollmentHandler(&mockEnrollmentService{})
	r := gin.New()
	r.GET("/semester", func(c *gin.Context) {
		c.Set(middleware.CtxCityCode, "nsk")
		h.CurrentSemester(c)
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/semester", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"type":"nsk"`) {
		t.Errorf("city code not passed: %s", w.Body.String())
	}

	h = NewEnrollmentHandler(&mockEnrollmentService{enrollErr: service.ErrSemesterNotFound})
	r = gin.New()
	r.GET("/semester", h.CurrentSemester)
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/semester", nil)); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestEnrollmentHandler_CreateAssignment_Validation(t *testing.T) {
	h := NewEnrollmentHandler(&mockEnrollmentService{})
	r := gin.New()
	r.POST("/courses/:course_id/assignments", h.CreateAssignment)

	w := serve(r, jsonRequest(http.MethodPost, "/courses/3/assignments", map[string]interface{}{
		"title": "ДЗ 1", "maximum_score": 10, "submission_type": "paper",
		"deadline_at": "2024-10-20T21:00:00Z",
	}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown submission_type should be rejected, got %d", w.Code)
	}

	w = serve(r, jsonRequest(http.MethodPost, "/courses/3/assignments", map[string]interface{}{
		"title": "ДЗ 1", "maximum_score": 10, "submission_type": "offline",
		"deadline_at": "2024-10-20T21:00:00Z",
	}))
	if w.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSemesterHandler(t *testing.T) {
	semesters := &mockSemesterService{}
	h := NewSemesterHandler(semesters)
	r := gin.New()
	r.GET("/semesters", h.ListSemesters)
	r.POST("/semesters", h.CreateSemester)
	r.PUT("/semesters/:id/enrollment-period", h.UpdateEnrollmentPeriod)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/semesters", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"year":2024`) {
		t.Errorf("unexpected list response: %d %s", w.Code, w.Body.String())
	}

	w = serve(r, jsonRequest(http.MethodPost, "/semesters", map[string]interface{}{
		"year": 2025, "type": "spring", "enrollment_start_at": "2025-01-20",
	}))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if semesters.gotReq == nil || semesters.gotReq.EnrollmentStartAt != "2025-01-20" {
		t.Errorf("request not passed through: %+v", semesters.gotReq)
	}

	w = serve(r, jsonRequest(http.MethodPut, "/semesters/5/enrollment-period", map[string]interface{}{
		"enrollment_start_at": "2025-01-20", "enrollment_end_at": "2025-02-01",
	}))
	if w.Code != http.StatusOK || semesters.gotID != 5 {
		t.Errorf("expected 200 for semester 5, got %d (id %d)", w.Code, semesters.gotID)
	}
	if w := serve(r, jsonRequest(http.MethodPut, "/semesters/abc/enrollment-period", map[string]interface{}{})); w.Code != http.StatusBadRequest {
		t.Errorf("non-numeric id should be rejected, got %d", w.Code)
	}

	cases := []struct {
		err  error
		code int
	}{
		{service.ErrSemesterNotFound, http.StatusNotFound},
		{service.ErrEnrollmentPeriodInvalid, http.StatusBadRequest},
		{service.ErrInvalidSemester, http.StatusBadRequest},
		{service.ErrSemesterExists, http.StatusConflict},
	}
	for _, tc := range cases {
		semesters.err = tc.err
		w := serve(r, jsonRequest(http.MethodPut, "/semesters/5/enrollment-period", map[string]interface{}{}))
		if w.Code != tc.code {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.code, w.Code)
		}
	}
}

// ═══════════════════════════════════════════════════════════
// AdmissionHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAdmissionHandler_ImportScores(t *testing.T) {
	mock := &mockAdmissionService{importResult: &dto.ImportResult{Total: 1, Created: 1, Errors: []dto.ImportRowError{}}}
	h := NewAdmissionHandler(mock, &mockStatsService{}, &mockTaskService{})
	r := gin.New()
	r.POST("/campaigns/:id/import/:kind", h.ImportScores)

	w := serve(r, multipartRequest(t, "/campaigns/1/import/test?dry_run=1", nil, "file", "scores.csv", "applicant,score\n1,10\n"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if mock.importFormat != service.FormatCSV || !mock.importDryRun || !strings.HasPrefix(mock.importBody, "applicant") {
		t.Errorf("unexpected import call: %s %v %q", mock.importFormat, mock.importDryRun, mock.importBody)
	}

	w = serve(r, multipartRequest(t, "/campaigns/1/import/test", nil, "file", "scores.pdf", "x"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unsupported format, got %d", w.Code)
	}

	w = serve(r, multipartRequest(t, "/campaigns/1/import/test", nil, "", "", ""))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without file, got %d", w.Code)
	}

	mock.importResult = &dto.ImportResult{Total: 1, Errors: []dto.ImportRowError{{Row: 1, Message: "score 无效"}}}
	w = serve(r, multipartRequest(t, "/campaigns/1/import/test", nil, "file", "scores.csv", "applicant,score\n1,x\n"))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for row errors, got %d", w.Code)
	}

	mock.importErr = service.ErrUnknownScoreKind
	w = serve(r, multipartRequest(t, "/campaigns/1/import/essay", nil, "file", "scores.csv", "applicant\n1\n"))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown kind, got %d", w.Code)
	}
}

func TestAdmissionHandler_ExportScores(t *testing.T) {
	h := NewAdmissionHandler(&mockAdmissionService{}, &mockStatsService{}, &mockTaskService{})
	r := gin.New()
	r.GET("/campaigns/:id/export/:kind", h.ExportScores)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/campaigns/1/export/exam?format=csv", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("unexpected content type %q", ct)
	}

	w = serve(r, httptest.NewRequest(http.MethodGet, "/campaigns/1/export/exam?format=pdf", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad format, got %d", w.Code)
	}
}

func TestAdmissionHandler_StatsAndRegister(t *testing.T) {
	tasks := &mockTaskService{jobID: "job-1"}
	stats := &mockStatsService{}
	h := NewAdmissionHandler(&mockAdmissionService{}, stats, tasks)
	r := gin.New()
	r.GET("/campaigns/:id/stats", h.Stats)
	r.POST("/applicants/:id/register-in-contest", h.RegisterInContest)

	if w := serve(r, httptest.NewRequest(http.MethodGet, "/campaigns/5/stats", nil)); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	stats.err = service.ErrCampaignNotFound
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/campaigns/5/stats", nil)); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}

	w := serve(r, httptest.NewRequest(http.MethodPost, "/applicants/9/register-in-contest", nil))
	if w.Code != http.StatusAccepted || !strings.Contains(w.Body.String(), "job-1") {
		t.Errorf("expected 202 with job id, got %d %s", w.Code, w.Body.String())
	}
	tasks.jobErr = service.ErrApplicantNotFound
	if w := serve(r, httptest.NewRequest(http.MethodPost, "/applicants/9/register-in-contest", nil)); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// ExportHandler / TaskHandler Tests
// ═══════════════════════════════════════════════════════════

func TestExportHandler_ExportStudents(t *testing.T) {
	h := NewExportHandler(&mockExportService{buf: bytes.NewBufferString("xlsx")}, &mockCalendarService{})
	r := gin.New()
	r.GET("/export/students", h.ExportStudents)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/export/students", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	h = NewExportHandler(&mockExportService{err: service.ErrExportNoStudents}, &mockCalendarService{})
	r = gin.New()
	r.GET("/export/students", h.ExportStudents)
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/export/students", nil)); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestExportHandler_DeadlineCalendar(t *testing.T) {
	cal := &mockCalendarService{}
	h := NewExportHandler(&mockExportService{}, cal)
	r := gin.New()
	r.GET("/export/calendar.ics", withAuth(h.DeadlineCalendar, nil, model.RoleStudent, model.RoleTeacher))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/export/calendar.ics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("unexpected content type %q", ct)
	}
	if len(cal.roles) != 2 {
		t.Errorf("roles should be passed to the calendar service: %v", cal.roles)
	}
}

func TestTaskHandler(t *testing.T) {
	tasks := &mockTaskService{
		task:    &model.Task{ID: 11, Name: service.JobImportTestingResults},
		pending: []model.Task{{ID: 3, Name: service.JobImportTestingResults}},
	}
	h := NewTaskHandler(tasks)
	r := gin.New()
	r.GET("/tasks", h.ListPending)
	r.POST("/tasks/import", h.ScheduleImport)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/tasks?limit=5", nil))
	if w.Code != http.StatusOK || tasks.gotLimit != 5 || !strings.Contains(w.Body.String(), `"id":3`) {
		t.Errorf("unexpected list response: %d %s", w.Code, w.Body.String())
	}
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/tasks?limit=1000", nil)); w.Code != http.StatusBadRequest {
		t.Errorf("limit above 500 should be rejected, got %d", w.Code)
	}

	w = serve(r, httptest.NewRequest(http.MethodPost, "/tasks/import", nil))
	if w.Code != http.StatusAccepted || !strings.Contains(w.Body.String(), `"task_id":11`) {
		t.Errorf("expected 202 with task id, got %d %s", w.Code, w.Body.String())
	}

	tasks.err = io.ErrUnexpectedEOF
	w = serve(r, httptest.NewRequest(http.MethodPost, "/tasks/import", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("enqueue failure with stored task should be 503, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// Context helpers / loaders
// ═══════════════════════════════════════════════════════════

type mockAccessService struct {
	course *rbac.CourseAccess
	sa     *rbac.StudentAssignmentAccess
	err    error
}

func (m *mockAccessService) CourseAccess(_ context.Context, _, _ int64) (*rbac.CourseAccess, error) {
	return m.course, m.err
}
func (m *mockAccessService) StudentAssignmentAccess(_ context.Context, _, _ int64) (*rbac.StudentAssignmentAccess, error) {
	return m.sa, m.err
}

func TestLoaders(t *testing.T) {
	access := &mockAccessService{
		course: &rbac.CourseAccess{CourseID: 1, IsTeacher: true},
		sa:     &rbac.StudentAssignmentAccess{StudentID: 5, Course: rbac.CourseAccess{CourseID: 2, IsTeacher: true}},
	}
	subject := &rbac.Subject{UserID: 42}

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "course_id", Value: "1"}, {Key: "id", Value: "7"}}

	obj, err := CourseLoader(access)(c, subject)
	if err != nil || obj.(*rbac.CourseAccess).CourseID != 1 {
		t.Errorf("course loader: %v %v", obj, err)
	}
	obj, err = StudentAssignmentCourseLoader(access)(c, subject)
	if err != nil || obj.(*rbac.CourseAccess).CourseID != 2 {
		t.Errorf("student assignment course loader: %v %v", obj, err)
	}

	access.err = service.ErrStudentAssignmentNotFound
	if _, err := StudentAssignmentLoader(access)(c, subject); err != middleware.ErrObjectNotFound {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
	c.Params = gin.Params{{Key: "course_id", Value: "x"}}
	if _, err := CourseLoader(access)(c, subject); err != middleware.ErrObjectNotFound {
		t.Errorf("expected ErrObjectNotFound for bad id, got %v", err)
	}
}
