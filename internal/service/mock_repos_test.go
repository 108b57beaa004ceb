package service

import (
	"context"
	"sort"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cscenter/backend/internal/model"
	"cscenter/backend/internal/repository"
	pkgerrors "cscenter/backend/pkg/errors"
)

// ── Mock 聚合 ──

type mockRepos struct {
	city       *mockCityRepo
	user       *mockUserRepo
	semester   *mockSemesterRepo
	course     *mockCourseRepo
	enrollment *mockEnrollmentRepo
	assignment *mockAssignmentRepo
	sa         *mockStudentAssignmentRepo
	comment    *mockCommentRepo
	admission  *mockAdmissionRepo
	task       *mockTaskRepo
	stats      *mockStatsRepo
}

// newMockRepository 构造互相关联的 mock 仓储；Repository 未绑定数据库，inTx 直接执行
func newMockRepository() (*repository.Repository, *mockRepos) {
	m := &mockRepos{
		city:      newMockCityRepo(),
		user:      newMockUserRepo(),
		semester:  newMockSemesterRepo(),
		comment:   newMockCommentRepo(),
		admission: newMockAdmissionRepo(),
		task:      newMockTaskRepo(),
		stats:     &mockStatsRepo{},
	}
	m.course = newMockCourseRepo(m)
	m.enrollment = newMockEnrollmentRepo(m)
	m.assignment = newMockAssignmentRepo(m)
	m.sa = newMockStudentAssignmentRepo(m)

	repo := &repository.Repository{
		City:              m.city,
		User:              m.user,
		Semester:          m.semester,
		Course:            m.course,
		Enrollment:        m.enrollment,
		Assignment:        m.assignment,
		StudentAssignment: m.sa,
		Comment:           m.comment,
		Admission:         m.admission,
		Task:              m.task,
		Stats:             m.stats,
	}
	return repo, m
}

// ── Mock CityRepository ──

type mockCityRepo struct {
	cities   map[string]*model.City
	branches []model.Branch
}

func newMockCityRepo() *mockCityRepo {
	return &mockCityRepo{cities: make(map[string]*model.City)}
}

func (m *mockCityRepo) List(_ context.Context) ([]model.City, error) {
	var result []model.City
	for _, c := range m.cities {
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

func (m *mockCityRepo) GetByCode(_ context.Context, code string) (*model.City, error) {
	if c, ok := m.cities[code]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCityRepo) GetBranch(_ context.Context, cityCode string, siteID int64) (*model.Branch, error) {
	for i := range m.branches {
		b := &m.branches[i]
		if b.CityCode == cityCode && b.SiteID == siteID && b.IsActive {
			return b, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCityRepo) ListBranches(_ context.Context, siteID int64) ([]model.Branch, error) {
	var result []model.Branch
	for _, b := range m.branches {
		if b.SiteID == siteID && b.IsActive {
			result = append(result, b)
		}
	}
	return result, nil
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	users  map[int64]*model.User
	nextID int64
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]*model.User), nextID: 1}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if u.Username == user.Username {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.ID == 0 {
		user.ID = m.nextID
		m.nextID++
	} else if user.ID >= m.nextID {
		m.nextID = user.ID + 1
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) AddRole(_ context.Context, userID int64, role string, siteID int64) error {
	u, ok := m.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for _, r := range u.Roles {
		if r.Role == role && r.SiteID == siteID {
			return nil
		}
	}
	u.Roles = append(u.Roles, model.UserRole{UserID: userID, Role: role, SiteID: siteID})
	return nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, userID int64, hash string) error {
	u, ok := m.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *mockUserRepo) ListActiveStudents(_ context.Context, siteID int64) ([]model.User, error) {
	var result []model.User
	for _, u := range m.users {
		if !u.IsActive || u.IsExpelled() {
			continue
		}
		for _, r := range u.Roles {
			if r.Role == model.RoleStudent && r.SiteID == siteID {
				result = append(result, *u)
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ── Mock SemesterRepository ──

type mockSemesterRepo struct {
	semesters map[int64]*model.Semester
	nextID    int64
}

func newMockSemesterRepo() *mockSemesterRepo {
	return &mockSemesterRepo{semesters: make(map[int64]*model.Semester), nextID: 1}
}

func (m *mockSemesterRepo) Create(_ context.Context, semester *model.Semester) error {
	for _, s := range m.semesters {
		if s.Year == semester.Year && s.Type == semester.Type {
			return gorm.ErrDuplicatedKey
		}
	}
	if semester.Index == 0 {
		semester.Index = model.SemesterIndex(semester.Year, semester.Type)
	}
	if semester.ID == 0 {
		semester.ID = m.nextID
		m.nextID++
	}
	m.semesters[semester.ID] = semester
	return nil
}

func (m *mockSemesterRepo) GetByTerm(_ context.Context, year int, term string) (*model.Semester, error) {
	for _, s := range m.semesters {
		if s.Year == year && s.Type == term {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSemesterRepo) GetByID(_ context.Context, id int64) (*model.Semester, error) {
	s, ok := m.semesters[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s, nil
}

func (m *mockSemesterRepo) List(_ context.Context) ([]model.Semester, error) {
	list := make([]model.Semester, 0, len(m.semesters))
	for _, s := range m.semesters {
		list = append(list, *s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Index > list[j].Index })
	return list, nil
}

func (m *mockSemesterRepo) UpdateEnrollmentPeriod(_ context.Context, semester *model.Semester) error {
	s, ok := m.semesters[semester.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.EnrollmentStartAt = semester.EnrollmentStartAt
	s.EnrollmentEndAt = semester.EnrollmentEndAt
	return nil
}

// ── Mock CourseRepository ──

type mockCourseRepo struct {
	all       *mockRepos
	courses   map[int64]*model.Course
	teachers  []model.CourseTeacher
	groups    []model.StudentGroup
	assignees []model.StudentGroupAssignee
	nextID    int64
}

func newMockCourseRepo(all *mockRepos) *mockCourseRepo {
	return &mockCourseRepo{all: all, courses: make(map[int64]*model.Course), nextID: 1}
}

func (m *mockCourseRepo) Create(_ context.Context, course *model.Course) error {
	if course.ID == 0 {
		course.ID = m.nextID
		m.nextID++
	}
	if course.GradingType == "" {
		course.GradingType = model.GradingTypeDefault
	}
	if course.Semester == nil {
		course.Semester = m.all.semester.semesters[course.SemesterID]
	}
	m.courses[course.ID] = course
	return nil
}

func (m *mockCourseRepo) GetByID(_ context.Context, id int64) (*model.Course, error) {
	if c, ok := m.courses[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCourseRepo) GetByIDForUpdate(ctx context.Context, id int64) (*model.Course, error) {
	return m.GetByID(ctx, id)
}

func (m *mockCourseRepo) RefreshLearnersCount(_ context.Context, courseID int64) error {
	c, ok := m.courses[courseID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	n := 0
	for _, e := range m.all.enrollment.items {
		if e.CourseID == courseID && !e.IsDeleted {
			n++
		}
	}
	c.LearnersCount = n
	return nil
}

func (m *mockCourseRepo) AddTeacher(_ context.Context, ct *model.CourseTeacher) error {
	ct.ID = int64(len(m.teachers) + 1)
	m.teachers = append(m.teachers, *ct)
	return nil
}

func (m *mockCourseRepo) GetCourseTeacher(_ context.Context, courseID, teacherID int64) (*model.CourseTeacher, error) {
	for i := range m.teachers {
		if m.teachers[i].CourseID == courseID && m.teachers[i].TeacherID == teacherID {
			ct := m.teachers[i]
			return &ct, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCourseRepo) ListTeachers(_ context.Context, courseID int64) ([]model.CourseTeacher, error) {
	var result []model.CourseTeacher
	for _, ct := range m.teachers {
		if ct.CourseID == courseID {
			result = append(result, ct)
		}
	}
	return result, nil
}

func (m *mockCourseRepo) CreateGroup(_ context.Context, group *model.StudentGroup) error {
	group.ID = int64(len(m.groups) + 1)
	m.groups = append(m.groups, *group)
	return nil
}

func (m *mockCourseRepo) ListGroups(_ context.Context, courseID int64) ([]model.StudentGroup, error) {
	var result []model.StudentGroup
	for _, g := range m.groups {
		if g.CourseID == courseID {
			result = append(result, g)
		}
	}
	return result, nil
}

func (m *mockCourseRepo) AddGroupAssignee(_ context.Context, a *model.StudentGroupAssignee) error {
	a.ID = int64(len(m.assignees) + 1)
	m.assignees = append(m.assignees, *a)
	return nil
}

func (m *mockCourseRepo) ListGroupAssignees(_ context.Context, groupID int64, assignmentID *int64) ([]model.StudentGroupAssignee, error) {
	var result []model.StudentGroupAssignee
	for _, a := range m.assignees {
		if a.StudentGroupID != groupID {
			continue
		}
		if assignmentID == nil && a.AssignmentID == nil {
			result = append(result, a)
		}
		if assignmentID != nil && a.AssignmentID != nil && *a.AssignmentID == *assignmentID {
			result = append(result, a)
		}
	}
	return result, nil
}

// ── Mock EnrollmentRepository ──

type mockEnrollmentRepo struct {
	all    *mockRepos
	items  map[int64]*model.Enrollment
	nextID int64
}

func newMockEnrollmentRepo(all *mockRepos) *mockEnrollmentRepo {
	return &mockEnrollmentRepo{all: all, items: make(map[int64]*model.Enrollment), nextID: 1}
}

// withRelations 模拟 Preload
func (m *mockEnrollmentRepo) withRelations(e *model.Enrollment) model.Enrollment {
	cp := *e
	if u, ok := m.all.user.users[e.StudentID]; ok {
		cp.Student = u
	}
	if c, ok := m.all.course.courses[e.CourseID]; ok {
		cp.Course = c
	}
	if e.StudentGroupID != nil {
		for i := range m.all.course.groups {
			if m.all.course.groups[i].ID == *e.StudentGroupID {
				cp.StudentGroup = &m.all.course.groups[i]
			}
		}
	}
	return cp
}

func (m *mockEnrollmentRepo) Create(_ context.Context, e *model.Enrollment) error {
	for _, other := range m.items {
		if other.StudentID == e.StudentID && other.CourseID == e.CourseID && !other.IsDeleted && !e.IsDeleted {
			return gorm.ErrDuplicatedKey
		}
	}
	if e.ID == 0 {
		e.ID = m.nextID
		m.nextID++
	}
	if e.Grade == "" {
		e.Grade = model.GradeNotGraded
	}
	e.Version = 1
	m.items[e.ID] = e
	return nil
}

func (m *mockEnrollmentRepo) GetByID(_ context.Context, id int64) (*model.Enrollment, error) {
	if e, ok := m.items[id]; ok {
		cp := m.withRelations(e)
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEnrollmentRepo) GetActive(_ context.Context, studentID, courseID int64) (*model.Enrollment, error) {
	for _, e := range m.items {
		if e.StudentID == studentID && e.CourseID == courseID && !e.IsDeleted {
			cp := *e
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEnrollmentRepo) GetAny(_ context.Context, studentID, courseID int64) (*model.Enrollment, error) {
	var found *model.Enrollment
	for _, e := range m.items {
		if e.StudentID == studentID && e.CourseID == courseID {
			if found == nil || e.ID > found.ID {
				found = e
			}
		}
	}
	if found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *found
	return &cp, nil
}

func (m *mockEnrollmentRepo) Update(_ context.Context, e *model.Enrollment) error {
	stored, ok := m.items[e.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if stored.Version != e.Version {
		return pkgerrors.ErrOptimisticLock
	}
	e.Version++
	cp := *e
	cp.Student, cp.Course, cp.StudentGroup = nil, nil, nil
	m.items[e.ID] = &cp
	return nil
}

func (m *mockEnrollmentRepo) sorted(filter func(e *model.Enrollment) bool) []model.Enrollment {
	var result []model.Enrollment
	for _, e := range m.items {
		if filter(e) {
			result = append(result, m.withRelations(e))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *mockEnrollmentRepo) ListActiveByCourse(_ context.Context, courseID int64, groupID *int64) ([]model.Enrollment, error) {
	return m.sorted(func(e *model.Enrollment) bool {
		if e.CourseID != courseID || e.IsDeleted {
			return false
		}
		return groupID == nil || (e.StudentGroupID != nil && *e.StudentGroupID == *groupID)
	}), nil
}

func (m *mockEnrollmentRepo) ListActiveByStudent(_ context.Context, studentID int64) ([]model.Enrollment, error) {
	return m.sorted(func(e *model.Enrollment) bool {
		return e.StudentID == studentID && !e.IsDeleted
	}), nil
}

func (m *mockEnrollmentRepo) UpdateGradeIfUnchanged(_ context.Context, id int64, prior *string, grade string) (bool, error) {
	e, ok := m.items[id]
	if !ok || e.IsDeleted {
		return false, nil
	}
	if e.Grade != grade && (prior == nil || e.Grade != *prior) {
		return false, nil
	}
	e.Grade = grade
	return true, nil
}

// ── Mock AssignmentRepository ──

type mockAssignmentRepo struct {
	all    *mockRepos
	items  map[int64]*model.Assignment
	nextID int64
}

func newMockAssignmentRepo(all *mockRepos) *mockAssignmentRepo {
	return &mockAssignmentRepo{all: all, items: make(map[int64]*model.Assignment), nextID: 1}
}

func (m *mockAssignmentRepo) Create(_ context.Context, a *model.Assignment) error {
	if a.ID == 0 {
		a.ID = m.nextID
		m.nextID++
	}
	if a.SubmissionType == "" {
		a.SubmissionType = model.SubmissionOnline
	}
	m.items[a.ID] = a
	return nil
}

func (m *mockAssignmentRepo) GetByID(_ context.Context, id int64) (*model.Assignment, error) {
	if a, ok := m.items[id]; ok {
		cp := *a
		cp.Course = m.all.course.courses[a.CourseID]
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAssignmentRepo) list(filter func(a *model.Assignment) bool) []model.Assignment {
	var result []model.Assignment
	for _, a := range m.items {
		if filter(a) {
			cp := *a
			cp.Course = m.all.course.courses[a.CourseID]
			result = append(result, cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].DeadlineAt.Equal(result[j].DeadlineAt) {
			return result[i].DeadlineAt.Before(result[j].DeadlineAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (m *mockAssignmentRepo) ListByCourse(_ context.Context, courseID int64) ([]model.Assignment, error) {
	return m.list(func(a *model.Assignment) bool { return a.CourseID == courseID }), nil
}

func inWindow(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}

func (m *mockAssignmentRepo) ListDeadlinesForStudent(_ context.Context, studentID int64, from, to time.Time) ([]model.Assignment, error) {
	return m.list(func(a *model.Assignment) bool {
		if !inWindow(a.DeadlineAt, from, to) {
			return false
		}
		for _, sa := range m.all.sa.items {
			if sa.AssignmentID == a.ID && sa.StudentID == studentID && !sa.IsDeleted {
				return true
			}
		}
		return false
	}), nil
}

func (m *mockAssignmentRepo) ListDeadlinesForTeacher(_ context.Context, teacherID int64, from, to time.Time) ([]model.Assignment, error) {
	return m.list(func(a *model.Assignment) bool {
		if !inWindow(a.DeadlineAt, from, to) {
			return false
		}
		for _, ct := range m.all.course.teachers {
			if ct.CourseID == a.CourseID && ct.TeacherID == teacherID {
				return true
			}
		}
		return false
	}), nil
}

// ── Mock StudentAssignmentRepository ──

type mockStudentAssignmentRepo struct {
	all    *mockRepos
	items  map[int64]*model.StudentAssignment
	audit  []model.AssignmentScoreAuditLog
	nextID int64
}

func newMockStudentAssignmentRepo(all *mockRepos) *mockStudentAssignmentRepo {
	return &mockStudentAssignmentRepo{all: all, items: make(map[int64]*model.StudentAssignment), nextID: 1}
}

// add 直接插入一条个人作业
func (m *mockStudentAssignmentRepo) add(sa *model.StudentAssignment) *model.StudentAssignment {
	if sa.ID == 0 {
		sa.ID = m.nextID
		m.nextID++
	}
	m.items[sa.ID] = sa
	return sa
}

func (m *mockStudentAssignmentRepo) copyOf(sa *model.StudentAssignment) *model.StudentAssignment {
	cp := *sa
	if a, ok := m.all.assignment.items[sa.AssignmentID]; ok {
		ac := *a
		cp.Assignment = &ac
	}
	if u, ok := m.all.user.users[sa.StudentID]; ok {
		cp.Student = u
	}
	return &cp
}

func (m *mockStudentAssignmentRepo) GetByID(_ context.Context, id int64) (*model.StudentAssignment, error) {
	if sa, ok := m.items[id]; ok {
		return m.copyOf(sa), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudentAssignmentRepo) GetByIDForUpdate(ctx context.Context, id int64) (*model.StudentAssignment, error) {
	return m.GetByID(ctx, id)
}

func (m *mockStudentAssignmentRepo) Get(_ context.Context, assignmentID, studentID int64) (*model.StudentAssignment, error) {
	for _, sa := range m.items {
		if sa.AssignmentID == assignmentID && sa.StudentID == studentID {
			return m.copyOf(sa), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudentAssignmentRepo) find(assignmentID, studentID int64) *model.StudentAssignment {
	for _, sa := range m.items {
		if sa.AssignmentID == assignmentID && sa.StudentID == studentID {
			return sa
		}
	}
	return nil
}

func (m *mockStudentAssignmentRepo) CreateMissing(_ context.Context, assignmentIDs, studentIDs []int64) error {
	for _, aID := range assignmentIDs {
		for _, sID := range studentIDs {
			if m.find(aID, sID) != nil {
				continue
			}
			m.add(&model.StudentAssignment{
				AssignmentID:      aID,
				StudentID:         sID,
				TriggerAutoAssign: true,
				ModifiedAt:        time.Now(),
			})
		}
	}
	return nil
}

func (m *mockStudentAssignmentRepo) Restore(_ context.Context, assignmentIDs []int64, studentID int64) error {
	for _, aID := range assignmentIDs {
		if sa := m.find(aID, studentID); sa != nil {
			sa.IsDeleted = false
		}
	}
	return nil
}

func (m *mockStudentAssignmentRepo) SoftDeleteByCourse(_ context.Context, courseID, studentID int64) error {
	for _, sa := range m.items {
		a, ok := m.all.assignment.items[sa.AssignmentID]
		if ok && a.CourseID == courseID && sa.StudentID == studentID {
			sa.IsDeleted = true
		}
	}
	return nil
}

func (m *mockStudentAssignmentRepo) ListByCourse(_ context.Context, courseID int64, studentIDs []int64) ([]model.StudentAssignment, error) {
	wanted := make(map[int64]bool, len(studentIDs))
	for _, id := range studentIDs {
		wanted[id] = true
	}
	var result []model.StudentAssignment
	for _, sa := range m.items {
		a, ok := m.all.assignment.items[sa.AssignmentID]
		if !ok || a.CourseID != courseID || sa.IsDeleted || !wanted[sa.StudentID] {
			continue
		}
		result = append(result, *sa)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockStudentAssignmentRepo) UpdateScore(_ context.Context, id int64, score *float64) error {
	sa, ok := m.items[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	sa.Score = score
	return nil
}

func sameScore(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m *mockStudentAssignmentRepo) UpdateScoreIfUnchanged(_ context.Context, id int64, prior, score *float64) (bool, error) {
	sa, ok := m.items[id]
	if !ok || sa.IsDeleted {
		return false, nil
	}
	if !sameScore(sa.Score, prior) && !sameScore(sa.Score, score) {
		return false, nil
	}
	sa.Score = score
	return true, nil
}

func (m *mockStudentAssignmentRepo) UpdateMeta(_ context.Context, id int64, meta datatypes.JSONMap) error {
	sa, ok := m.items[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	sa.Meta = meta
	return nil
}

func (m *mockStudentAssignmentRepo) UpdateFields(_ context.Context, id int64, fields map[string]interface{}) error {
	sa, ok := m.items[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "modified_at":
			sa.ModifiedAt = v.(time.Time)
		case "last_comment_from":
			sa.LastCommentFrom = v.(int)
		case "first_student_comment_at":
			t := v.(time.Time)
			sa.FirstStudentCommentAt = &t
		}
	}
	return nil
}

func (m *mockStudentAssignmentRepo) SetAssignee(_ context.Context, id int64, assigneeID *int64, triggerAutoAssign bool) error {
	sa, ok := m.items[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	sa.AssigneeID = assigneeID
	sa.TriggerAutoAssign = triggerAutoAssign
	return nil
}

func (m *mockStudentAssignmentRepo) CreateAuditLog(_ context.Context, log *model.AssignmentScoreAuditLog) error {
	log.ID = int64(len(m.audit) + 1)
	m.audit = append(m.audit, *log)
	return nil
}

func (m *mockStudentAssignmentRepo) ListAuditLogs(_ context.Context, studentAssignmentID int64) ([]model.AssignmentScoreAuditLog, error) {
	var result []model.AssignmentScoreAuditLog
	for _, l := range m.audit {
		if l.StudentAssignmentID == studentAssignmentID {
			result = append(result, l)
		}
	}
	return result, nil
}

// ── Mock CommentRepository ──

type mockCommentRepo struct {
	items  map[int64]*model.AssignmentComment
	nextID int64
}

func newMockCommentRepo() *mockCommentRepo {
	return &mockCommentRepo{items: make(map[int64]*model.AssignmentComment), nextID: 1}
}

func (m *mockCommentRepo) Create(_ context.Context, c *model.AssignmentComment) error {
	if c.ID == 0 {
		c.ID = m.nextID
		m.nextID++
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	cp := *c
	m.items[c.ID] = &cp
	return nil
}

func (m *mockCommentRepo) Update(_ context.Context, c *model.AssignmentComment) error {
	if _, ok := m.items[c.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *c
	m.items[c.ID] = &cp
	return nil
}

func (m *mockCommentRepo) GetByID(_ context.Context, id int64) (*model.AssignmentComment, error) {
	if c, ok := m.items[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCommentRepo) GetDraft(_ context.Context, studentAssignmentID, authorID int64, commentType string) (*model.AssignmentComment, error) {
	for _, c := range m.items {
		if c.StudentAssignmentID == studentAssignmentID && c.AuthorID == authorID && c.Type == commentType && !c.IsPublished {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCommentRepo) published(studentAssignmentID int64) []model.AssignmentComment {
	var result []model.AssignmentComment
	for _, c := range m.items {
		if c.StudentAssignmentID == studentAssignmentID && c.IsPublished {
			result = append(result, *c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (m *mockCommentRepo) GetLatestPublished(_ context.Context, studentAssignmentID int64) (*model.AssignmentComment, error) {
	list := m.published(studentAssignmentID)
	if len(list) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	latest := list[len(list)-1]
	return &latest, nil
}

func (m *mockCommentRepo) CountPublished(_ context.Context, studentAssignmentID int64, commentType string) (int64, error) {
	var n int64
	for _, c := range m.published(studentAssignmentID) {
		if c.Type == commentType {
			n++
		}
	}
	return n, nil
}

func (m *mockCommentRepo) CountPublishedByAuthor(_ context.Context, studentAssignmentID, authorID int64) (int64, error) {
	var n int64
	for _, c := range m.published(studentAssignmentID) {
		if c.AuthorID == authorID {
			n++
		}
	}
	return n, nil
}

func (m *mockCommentRepo) ListPublished(_ context.Context, studentAssignmentID int64) ([]model.AssignmentComment, error) {
	return m.published(studentAssignmentID), nil
}

// ── Mock AdmissionRepository ──

type mockAdmissionRepo struct {
	campaigns  map[int64]*model.Campaign
	contests   map[int64]*model.Contest
	applicants map[int64]*model.Applicant
	tests      map[int64]*model.Test // applicant_id → test
	exams      map[int64]*model.Exam
	olympiads  map[int64]*model.Olympiad
	nextID     int64
}

func newMockAdmissionRepo() *mockAdmissionRepo {
	return &mockAdmissionRepo{
		campaigns:  make(map[int64]*model.Campaign),
		contests:   make(map[int64]*model.Contest),
		applicants: make(map[int64]*model.Applicant),
		tests:      make(map[int64]*model.Test),
		exams:      make(map[int64]*model.Exam),
		olympiads:  make(map[int64]*model.Olympiad),
		nextID:     1,
	}
}

func (m *mockAdmissionRepo) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *mockAdmissionRepo) CreateCampaign(_ context.Context, c *model.Campaign) error {
	if c.ID == 0 {
		c.ID = m.id()
	}
	m.campaigns[c.ID] = c
	return nil
}

func (m *mockAdmissionRepo) GetCampaign(_ context.Context, id int64) (*model.Campaign, error) {
	if c, ok := m.campaigns[id]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAdmissionRepo) ListCurrentCampaigns(_ context.Context) ([]model.Campaign, error) {
	var result []model.Campaign
	for _, c := range m.campaigns {
		if c.Current {
			result = append(result, *c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockAdmissionRepo) CreateContest(_ context.Context, c *model.Contest) error {
	if c.ID == 0 {
		c.ID = m.id()
	}
	m.contests[c.ID] = c
	return nil
}

func (m *mockAdmissionRepo) ListContests(_ context.Context, campaignID int64, contestType string) ([]model.Contest, error) {
	var result []model.Contest
	for _, c := range m.contests {
		if c.CampaignID == campaignID && c.Type == contestType {
			result = append(result, *c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockAdmissionRepo) UpdateContestDetails(_ context.Context, id int64, details datatypes.JSONMap) error {
	c, ok := m.contests[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.Details = details
	return nil
}

func (m *mockAdmissionRepo) CreateApplicant(_ context.Context, a *model.Applicant) error {
	if a.ID == 0 {
		a.ID = m.id()
	}
	m.applicants[a.ID] = a
	return nil
}

func (m *mockAdmissionRepo) GetApplicant(_ context.Context, id int64) (*model.Applicant, error) {
	a, ok := m.applicants[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	cp.Campaign = m.campaigns[a.CampaignID]
	if t, ok := m.tests[id]; ok {
		tc := *t
		cp.OnlineTest = &tc
	}
	return &cp, nil
}

func (m *mockAdmissionRepo) GetApplicantsByIDs(_ context.Context, ids []int64) (map[int64]*model.Applicant, error) {
	result := make(map[int64]*model.Applicant, len(ids))
	for _, id := range ids {
		if a, ok := m.applicants[id]; ok {
			result[id] = a
		}
	}
	return result, nil
}

func (m *mockAdmissionRepo) CreateTest(_ context.Context, t *model.Test) error {
	if t.ID == 0 {
		t.ID = m.id()
	}
	m.tests[t.ApplicantID] = t
	return nil
}

func (m *mockAdmissionRepo) GetTestByApplicant(_ context.Context, applicantID int64) (*model.Test, error) {
	if t, ok := m.tests[applicantID]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAdmissionRepo) UpdateTestByApplicant(_ context.Context, applicantID int64, fields map[string]interface{}) error {
	t, ok := m.tests[applicantID]
	if !ok {
		return nil
	}
	for k, v := range fields {
		switch k {
		case "status":
			t.Status = v.(string)
		case "contest_status_code":
			code := v.(int)
			t.ContestStatusCode = &code
		case "contest_participant_id":
			switch id := v.(type) {
			case int64:
				t.ContestParticipantID = &id
			case *int64:
				t.ContestParticipantID = id
			}
		}
	}
	return nil
}

func (m *mockAdmissionRepo) FindRegisteredParticipant(_ context.Context, contestID int64, yandexLogin string) (*model.Test, error) {
	var found *model.Test
	for applicantID, t := range m.tests {
		a := m.applicants[applicantID]
		if a == nil || a.YandexLogin != yandexLogin {
			continue
		}
		c := m.campaigns[a.CampaignID]
		if c == nil || !c.Current {
			continue
		}
		if t.YandexContestID == nil || *t.YandexContestID != contestID {
			continue
		}
		if t.ContestStatusCode == nil || *t.ContestStatusCode != 201 {
			continue
		}
		if found == nil || t.ID < found.ID {
			found = t
		}
	}
	if found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *found
	return &cp, nil
}

func (m *mockAdmissionRepo) UpdateTestFromStandings(_ context.Context, campaignID, contestID int64, login string, participantID int64, score int, details datatypes.JSONMap) (int64, error) {
	var updated int64
	for applicantID, t := range m.tests {
		a := m.applicants[applicantID]
		if a == nil || a.CampaignID != campaignID {
			continue
		}
		if t.YandexContestID == nil || *t.YandexContestID != contestID || t.Status != model.ChallengeRegistered {
			continue
		}
		byLogin := a.YandexLogin == login
		byID := t.ContestParticipantID != nil && *t.ContestParticipantID == participantID
		if !byLogin && !byID {
			continue
		}
		s := score
		t.Score = &s
		t.Details = details
		updated++
	}
	return updated, nil
}

func (m *mockAdmissionRepo) ListTests(_ context.Context, campaignID int64) ([]model.Test, error) {
	var result []model.Test
	for applicantID, t := range m.tests {
		a := m.applicants[applicantID]
		if a == nil || a.CampaignID != campaignID {
			continue
		}
		cp := *t
		cp.Applicant = a
		result = append(result, cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockAdmissionRepo) SaveTest(_ context.Context, t *model.Test) error {
	if existing, ok := m.tests[t.ApplicantID]; ok {
		existing.Score = t.Score
		existing.Status = t.Status
		existing.Details = t.Details
		return nil
	}
	cp := *t
	cp.ID = m.id()
	m.tests[t.ApplicantID] = &cp
	return nil
}

func (m *mockAdmissionRepo) GetExamByApplicant(_ context.Context, applicantID int64) (*model.Exam, error) {
	if e, ok := m.exams[applicantID]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAdmissionRepo) ListExams(_ context.Context, campaignID int64) ([]model.Exam, error) {
	var result []model.Exam
	for applicantID, e := range m.exams {
		if a := m.applicants[applicantID]; a != nil && a.CampaignID == campaignID {
			result = append(result, *e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockAdmissionRepo) SaveExam(_ context.Context, e *model.Exam) error {
	if existing, ok := m.exams[e.ApplicantID]; ok {
		existing.Score = e.Score
		existing.Status = e.Status
		existing.Details = e.Details
		return nil
	}
	cp := *e
	cp.ID = m.id()
	m.exams[e.ApplicantID] = &cp
	return nil
}

func (m *mockAdmissionRepo) GetOlympiadByApplicant(_ context.Context, applicantID int64) (*model.Olympiad, error) {
	if o, ok := m.olympiads[applicantID]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAdmissionRepo) ListOlympiads(_ context.Context, campaignID int64) ([]model.Olympiad, error) {
	var result []model.Olympiad
	for applicantID, o := range m.olympiads {
		if a := m.applicants[applicantID]; a != nil && a.CampaignID == campaignID {
			result = append(result, *o)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockAdmissionRepo) SaveOlympiad(_ context.Context, o *model.Olympiad) error {
	if existing, ok := m.olympiads[o.ApplicantID]; ok {
		existing.Score = o.Score
		existing.MathScore = o.MathScore
		existing.Status = o.Status
		existing.Details = o.Details
		return nil
	}
	cp := *o
	cp.ID = m.id()
	m.olympiads[o.ApplicantID] = &cp
	return nil
}

// ── Mock TaskRepository ──

type mockTaskRepo struct {
	items  map[int64]*model.Task
	nextID int64
}

func newMockTaskRepo() *mockTaskRepo {
	return &mockTaskRepo{items: make(map[int64]*model.Task), nextID: 1}
}

func (m *mockTaskRepo) Create(_ context.Context, task *model.Task) error {
	task.ID = m.nextID
	m.nextID++
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	cp := *task
	m.items[task.ID] = &cp
	return nil
}

func (m *mockTaskRepo) GetUnlocked(_ context.Context, id int64, _ time.Time) (*model.Task, error) {
	t, ok := m.items[id]
	if !ok || t.ProcessedAt != nil || t.LockedAt != nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockTaskRepo) Lock(_ context.Context, id int64, lockedBy string, now time.Time) error {
	t, ok := m.items[id]
	if !ok || t.ProcessedAt != nil || t.LockedAt != nil {
		return pkgerrors.ErrTaskLocked
	}
	t.LockedAt = &now
	t.LockedBy = lockedBy
	return nil
}

func (m *mockTaskRepo) MarkProcessed(_ context.Context, id int64, now time.Time) error {
	if t, ok := m.items[id]; ok {
		t.ProcessedAt = &now
	}
	return nil
}

func (m *mockTaskRepo) ListUnprocessed(_ context.Context, name string, limit int) ([]model.Task, error) {
	var result []model.Task
	for _, t := range m.items {
		if t.ProcessedAt == nil && (name == "" || t.Name == name) {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ── Mock StatsRepository ──

type mockStatsRepo struct {
	byStatus []repository.StatusCount
	tests    []repository.ScoreBucket
	exams    []repository.ScoreBucket
}

func (m *mockStatsRepo) ApplicantsByStatus(_ context.Context, _ int64) ([]repository.StatusCount, error) {
	return m.byStatus, nil
}

func (m *mockStatsRepo) TestScoresByUniversity(_ context.Context, _ int64) ([]repository.ScoreBucket, error) {
	return m.tests, nil
}

func (m *mockStatsRepo) ExamScoresByUniversity(_ context.Context, _ int64) ([]repository.ScoreBucket, error) {
	return m.exams, nil
}

// ── Mock 外部依赖 ──

type queuedJob struct {
	Queue string
	Name  string
	Args  interface{}
}

type mockQueue struct {
	jobs []queuedJob
	err  error
}

func (q *mockQueue) Enqueue(_ context.Context, queue, name string, args interface{}) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.jobs = append(q.jobs, queuedJob{Queue: queue, Name: name, Args: args})
	return "job-" + name, nil
}

type mockTokenStore struct {
	revoked map[string]time.Duration
}

func newMockTokenStore() *mockTokenStore {
	return &mockTokenStore{revoked: make(map[string]time.Duration)}
}

func (s *mockTokenStore) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	s.revoked[jti] = ttl
	return nil
}

func (s *mockTokenStore) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	_, ok := s.revoked[jti]
	return ok, nil
}
