package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"cscenter/backend/config"
	"cscenter/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoStudents   = errors.New("没有在读学生")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportStudents 导出当前站点在读学生及其选课记录
	ExportStudents(ctx context.Context) (*bytes.Buffer, string, error)
}

type exportService struct {
	siteID int64
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{siteID: cfg.Site.ID, repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportStudents — 在读学生名单
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "Студенты"
//   - 列：ID | ФИО | Email | Яндекс | Город | Курсы | Количество курсов
//   - 课程列内以 "; " 分隔，附带学期

func (s *exportService) ExportStudents(ctx context.Context) (*bytes.Buffer, string, error) {
	students, err := s.repo.User.ListActiveStudents(ctx, s.siteID)
	if err != nil {
		s.logger.Error("查询在读学生失败", zap.Int64("site_id", s.siteID), zap.Error(err))
		return nil, "", err
	}
	if len(students) == 0 {
		return nil, "", ErrExportNoStudents
	}
	sort.Slice(students, func(i, j int) bool {
		return students[i].FullName() < students[j].FullName()
	})

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Студенты"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 8)
	f.SetColWidth(sheetName, "B", "B", 36)
	f.SetColWidth(sheetName, "C", "D", 24)
	f.SetColWidth(sheetName, "E", "E", 10)
	f.SetColWidth(sheetName, "F", "F", 80)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	headers := []string{"ID", "ФИО", "Email", "Яндекс", "Город", "Курсы", "Количество курсов"}
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), 1), h)
	}
	f.SetCellStyle(sheetName, "A1", cell(colName(len(headers)-1), 1), headerStyle)

	row := 2
	for i := range students {
		st := &students[i]
		enrollments, err := s.repo.Enrollment.ListActiveByStudent(ctx, st.ID)
		if err != nil {
			s.logger.Error("查询学生选课失败", zap.Int64("student_id", st.ID), zap.Error(err))
			return nil, "", err
		}
		courses := make([]string, 0, len(enrollments))
		for _, e := range enrollments {
			if e.Course == nil {
				continue
			}
			name := e.Course.Name
			if e.Course.Semester != nil {
				name = fmt.Sprintf("%s (%s %d)", name, e.Course.Semester.Type, e.Course.Semester.Year)
			}
			courses = append(courses, name)
		}
		city := ""
		if st.CityCode != nil {
			city = *st.CityCode
		}

		f.SetCellValue(sheetName, cell("A", row), st.ID)
		f.SetCellValue(sheetName, cell("B", row), st.FullName())
		f.SetCellValue(sheetName, cell("C", row), st.Email)
		f.SetCellValue(sheetName, cell("D", row), st.YandexLogin)
		f.SetCellValue(sheetName, cell("E", row), city)
		f.SetCellValue(sheetName, cell("F", row), strings.Join(courses, "; "))
		f.SetCellValue(sheetName, cell("G", row), len(courses))
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("students_%s.xlsx", time.Now().Format("2006-01-02"))
	return buf, filename, nil
}

// colName 0-based 列号转列名
func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
