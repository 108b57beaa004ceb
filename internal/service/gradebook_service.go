package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cscenter/backend/config"
	"cscenter/backend/internal/dto"
	"cscenter/backend/internal/model"
	"cscenter/backend/internal/repository"
)

// ── 成绩单模块业务错误 ──

var (
	ErrCourseNotFound        = errors.New("课程不存在")
	ErrGradebookExportFailed = errors.New("生成成绩单文件失败")
)

// GradebookValidationError 提交数据的逐字段错误
type GradebookValidationError struct {
	Errors map[string]string
}

func (e *GradebookValidationError) Error() string { return ErrGradebookInvalid.Error() }

func (e *GradebookValidationError) Unwrap() error { return ErrGradebookInvalid }

// GradebookStudent 成绩单中的学生行
type GradebookStudent struct {
	Enrollment model.Enrollment
	TotalScore float64
}

// GradebookData 课程成绩单：学生 × 作业矩阵
// Cells[i][j] 为第 i 个学生第 j 个作业的个人作业，不存在时为 nil
type GradebookData struct {
	Course      *model.Course
	Groups      []model.StudentGroup
	Students    []GradebookStudent
	Assignments []model.Assignment
	Cells       [][]*model.StudentAssignment
}

// NumberOfFields 表单字段总数（含影子字段）
func (d *GradebookData) NumberOfFields() int {
	return 2 * (len(d.Students)*len(d.Assignments) + len(d.Students))
}

// ShowGroupFilter 至少两个分组时才显示分组筛选
func (d *GradebookData) ShowGroupFilter() bool {
	return len(d.Groups) >= 2
}

// GradebookService 成绩单业务接口
type GradebookService interface {
	// Load 加载成绩单数据，groupID 为 nil 表示全部分组
	Load(ctx context.Context, courseID int64, groupID *int64) (*GradebookData, error)
	// Get 返回页面状态；isReadonly 为 true 时不生成分数字段
	Get(ctx context.Context, courseID int64, groupID *int64, isReadonly bool) (*dto.GradebookResponse, error)
	// Submit 绑定并保存提交值，冲突以数据形式返回
	Submit(ctx context.Context, courseID int64, req *dto.GradebookSubmitRequest, isReadonly bool) (*dto.GradebookSubmitResponse, error)
	// Export 导出为 Excel
	Export(ctx context.Context, courseID int64) (*bytes.Buffer, string, error)
}

type gradebookService struct {
	repo    *repository.Repository
	factory *GradebookFormFactory
	logger  *zap.Logger
}

// NewGradebookService 创建 GradebookService 实例
func NewGradebookService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) GradebookService {
	return &gradebookService{
		repo:    repo,
		factory: NewGradebookFormFactory(repo, cfg.Gradebook.MaxFields, cfg.Gradebook.MaxStudents, logger),
		logger:  logger,
	}
}

// ────────────────────── Load ──────────────────────

func (s *gradebookService) Load(ctx context.Context, courseID int64, groupID *int64) (*GradebookData, error) {
	course, err := s.repo.Course.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		s.logger.Error("查询课程失败", zap.Int64("course_id", courseID), zap.Error(err))
		return nil, err
	}

	groups, err := s.repo.Course.ListGroups(ctx, courseID)
	if err != nil {
		s.logger.Error("查询课程分组失败", zap.Int64("course_id", courseID), zap.Error(err))
		return nil, err
	}

	enrollments, err := s.repo.Enrollment.ListActiveByCourse(ctx, courseID, groupID)
	if err != nil {
		s.logger.Error("查询选课记录失败", zap.Int64("course_id", courseID), zap.Error(err))
		return nil, err
	}

	assignments, err := s.repo.Assignment.ListByCourse(ctx, courseID)
	if err != nil {
		s.logger.Error("查询课程作业失败", zap.Int64("course_id", courseID), zap.Error(err))
		return nil, err
	}

	studentIDs := make([]int64, 0, len(enrollments))
	for _, e := range enrollments {
		studentIDs = append(studentIDs, e.StudentID)
	}
	personal, err := s.repo.StudentAssignment.ListByCourse(ctx, courseID, studentIDs)
	if err != nil {
		s.logger.Error("查询个人作业失败", zap.Int64("course_id", courseID), zap.Error(err))
		return nil, err
	}

	type cellKey struct{ assignmentID, studentID int64 }
	index := make(map[cellKey]*model.StudentAssignment, len(personal))
	for i := range personal {
		sa := &personal[i]
		index[cellKey{sa.AssignmentID, sa.StudentID}] = sa
	}

	data := &GradebookData{
		Course:      course,
		Groups:      groups,
		Students:    make([]GradebookStudent, len(enrollments)),
		Assignments: assignments,
		Cells:       make([][]*model.StudentAssignment, len(enrollments)),
	}
	for i, e := range enrollments {
		row := make([]*model.StudentAssignment, len(assignments))
		var total float64
		for j, a := range assignments {
			sa := index[cellKey{a.ID, e.StudentID}]
			row[j] = sa
			if sa != nil && sa.Score != nil {
				total += *sa.Score
			}
		}
		data.Cells[i] = row
		data.Students[i] = GradebookStudent{Enrollment: e, TotalScore: total}
	}
	return data, nil
}

// ────────────────────── Get ──────────────────────

func (s *gradebookService) Get(ctx context.Context, courseID int64, groupID *int64, isReadonly bool) (*dto.GradebookResponse, error) {
	data, err := s.Load(ctx, courseID, groupID)
	if err != nil {
		return nil, err
	}
	form := s.factory.Build(data, isReadonly)
	return toGradebookResponse(data, form), nil
}

// ────────────────────── Submit ──────────────────────

func (s *gradebookService) Submit(ctx context.Context, courseID int64, req *dto.GradebookSubmitRequest, isReadonly bool) (*dto.GradebookSubmitResponse, error) {
	if isReadonly {
		return nil, ErrGradebookReadonly
	}
	data, err := s.Load(ctx, courseID, req.StudentGroup)
	if err != nil {
		return nil, err
	}

	form := s.factory.Build(data, isReadonly)
	if errs := form.Bind(req.Values); len(errs) > 0 {
		return nil, &GradebookValidationError{Errors: errs}
	}

	conflicts, err := form.Save(ctx)
	if err != nil {
		return nil, err
	}

	resp := &dto.GradebookSubmitResponse{
		Saved:     len(form.ChangedFields()) - len(conflicts),
		Conflicts: make([]dto.GradebookConflict, 0, len(conflicts)),
	}
	for _, c := range conflicts {
		resp.Conflicts = append(resp.Conflicts, dto.GradebookConflict{FieldName: c.FieldName, UnsavedValue: c.UnsavedValue})
	}
	if len(conflicts) > 0 {
		s.logger.Info("成绩单保存存在冲突",
			zap.Int64("course_id", courseID),
			zap.Int("conflicts", len(conflicts)),
		)
	}
	return resp, nil
}

// ────────────────────── Export ──────────────────────

func (s *gradebookService) Export(ctx context.Context, courseID int64) (*bytes.Buffer, string, error) {
	data, err := s.Load(ctx, courseID, nil)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Ведомость"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		s.logger.Error("创建 Sheet 失败", zap.Error(err))
		return nil, "", ErrGradebookExportFailed
	}
	f.SetActiveSheet(idx)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})

	headers := []string{"Фамилия", "Имя", "Отчество", "Группа"}
	for _, a := range data.Assignments {
		headers = append(headers, a.Title)
	}
	headers = append(headers, "Итого", "Итоговая оценка")

	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
		_ = f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for i, st := range data.Students {
		r := i + 2
		var student model.User
		if st.Enrollment.Student != nil {
			student = *st.Enrollment.Student
		}
		group := ""
		if st.Enrollment.StudentGroup != nil {
			group = st.Enrollment.StudentGroup.Name
		}
		values := []interface{}{student.LastName, student.FirstName, student.Patronymic, group}
		for j := range data.Assignments {
			sa := data.Cells[i][j]
			if sa == nil || sa.Score == nil {
				values = append(values, "")
				continue
			}
			values = append(values, *sa.Score)
		}
		values = append(values, st.TotalScore, st.Enrollment.Grade)

		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, r)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_ = f.SetColWidth(sheet, "A", "D", 18)

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrGradebookExportFailed
	}

	filename := fmt.Sprintf("gradebook_%d.xlsx", courseID)
	return buf, filename, nil
}

// ── DTO 转换 ──

func toGradebookResponse(data *GradebookData, form *GradebookForm) *dto.GradebookResponse {
	resp := &dto.GradebookResponse{
		CourseID:        data.Course.ID,
		CourseName:      data.Course.Name,
		Readonly:        form.IsReadonly(),
		ScoreReadonly:   form.IsScoreReadonly(),
		ShowGroupFilter: data.ShowGroupFilter(),
		Groups:          make([]dto.GradebookGroupOption, 0, len(data.Groups)),
		GradeChoices:    model.GradeChoices(data.Course.GradingType),
		Assignments:     make([]dto.GradebookAssignmentResponse, 0, len(data.Assignments)),
		Students:        make([]dto.GradebookStudentResponse, 0, len(data.Students)),
		Initial:         form.Initial(),
	}
	for _, g := range data.Groups {
		resp.Groups = append(resp.Groups, dto.GradebookGroupOption{ID: g.ID, Name: g.Name})
	}
	for _, a := range data.Assignments {
		resp.Assignments = append(resp.Assignments, dto.GradebookAssignmentResponse{
			ID:           a.ID,
			Title:        a.Title,
			MaximumScore: a.MaximumScore,
			PassingScore: a.PassingScore,
			DeadlineAt:   a.DeadlineAt,
			IsOnline:     a.IsOnline(),
		})
	}
	for i, st := range data.Students {
		e := st.Enrollment
		row := dto.GradebookStudentResponse{
			EnrollmentID:    e.ID,
			StudentID:       e.StudentID,
			FullName:        e.Student.FullName(),
			FinalGrade:      e.Grade,
			FinalGradeField: FinalGradeFieldName(e.ID),
			TotalScore:      st.TotalScore,
			Cells:           make([]dto.GradebookCellResponse, 0, len(data.Assignments)),
		}
		if e.StudentGroup != nil {
			row.StudentGroup = e.StudentGroup.Name
		}
		for j := range data.Assignments {
			sa := data.Cells[i][j]
			if sa == nil {
				row.Cells = append(row.Cells, dto.GradebookCellResponse{})
				continue
			}
			id := sa.ID
			cell := dto.GradebookCellResponse{StudentAssignmentID: &id, Score: sa.Score}
			if _, ok := form.Field(ScoreFieldName(sa.ID)); ok {
				cell.Field = ScoreFieldName(sa.ID)
			}
			row.Cells = append(row.Cells, cell)
		}
		resp.Students = append(resp.Students, row)
	}
	return resp
}
