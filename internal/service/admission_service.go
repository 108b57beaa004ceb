package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cscenter/backend/internal/dto"
	"cscenter/backend/internal/model"
	"cscenter/backend/internal/repository"
)

// ── 招生成绩导入导出业务错误 ──

var (
	ErrCampaignNotFound       = errors.New("招生季不存在")
	ErrUnknownScoreKind       = errors.New("未知的成绩类型")
	ErrUnsupportedFormat      = errors.New("不支持的文件格式，仅支持 csv / xlsx")
	ErrImportMissingApplicant = errors.New("缺少 applicant 列")
	ErrImportEmpty            = errors.New("文件中没有数据")
	ErrAdmissionExportFailed  = errors.New("生成导出文件失败")

	// 存在行错误时回滚整个导入
	errImportRollback = errors.New("import rollback")
)

// 成绩类型
const (
	ScoreKindTest     = "test"
	ScoreKindExam     = "exam"
	ScoreKindOlympiad = "olympiad"
)

// 文件格式
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// 以下列不进入 details
var knownScoreColumns = map[string]bool{
	"applicant":    true,
	"score":        true,
	"status":       true,
	"created":      true,
	"yandex_login": true,
}

// 表头包含这些片段的列按顺序收集到 details.scores
var taskScorePatterns = []string{"Задача", "Задание"}

// rowError 行级错误：记录到结果中，不中断导入
type rowError struct{ msg string }

func (e *rowError) Error() string { return e.msg }

func rowErrorf(format string, args ...interface{}) error {
	return &rowError{msg: fmt.Sprintf(format, args...)}
}

// scoreRow 行级基础校验
type scoreRow struct {
	ApplicantID int64  `validate:"required,gt=0"`
	Status      string `validate:"omitempty,oneof=new registered manual passed failed"`
}

// DetectFormat 根据文件名或 Content-Type 判断格式
func DetectFormat(filename, contentType string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	switch {
	case strings.Contains(contentType, "csv"):
		return FormatCSV, nil
	case strings.Contains(contentType, "spreadsheetml"):
		return FormatXLSX, nil
	}
	return "", ErrUnsupportedFormat
}

// AdmissionService 招生成绩导入导出接口
type AdmissionService interface {
	ImportScores(ctx context.Context, campaignID int64, kind, format string, r io.Reader, dryRun bool) (*dto.ImportResult, error)
	ExportScores(ctx context.Context, campaignID int64, kind, format string) (*bytes.Buffer, string, error)
}

type admissionService struct {
	repo     *repository.Repository
	validate *validator.Validate
	logger   *zap.Logger
}

// NewAdmissionService 创建 AdmissionService 实例
func NewAdmissionService(repo *repository.Repository, logger *zap.Logger) AdmissionService {
	return &admissionService{repo: repo, validate: validator.New(), logger: logger}
}

// ────────────────────── ImportScores ──────────────────────

// table 解析后的表格；单元格已去空白，"None" 视为空
type table struct {
	headers []string
	rows    [][]string
}

func (t *table) has(column string) bool {
	for _, h := range t.headers {
		if h == column {
			return true
		}
	}
	return false
}

// record 将一行转换为 列名 → 值
func (t *table) record(i int) map[string]string {
	row := t.rows[i]
	rec := make(map[string]string, len(t.headers))
	for j, h := range t.headers {
		v := ""
		if j < len(row) {
			v = strings.TrimSpace(row[j])
		}
		if v == "None" {
			v = ""
		}
		rec[h] = v
	}
	return rec
}

// details 收集非已知列；任务得分列按列顺序放入 scores
func (t *table) details(i int, known map[string]bool) datatypes.JSONMap {
	rec := t.record(i)
	details := datatypes.JSONMap{}
	var scores []interface{}
	for _, h := range t.headers {
		if known[h] || h == "details" {
			continue
		}
		if isTaskScoreColumn(h) {
			scores = append(scores, rec[h])
			continue
		}
		details[h] = rec[h]
	}
	if len(scores) > 0 {
		details["scores"] = scores
	}
	return details
}

func isTaskScoreColumn(header string) bool {
	for _, p := range taskScorePatterns {
		if strings.Contains(header, p) {
			return true
		}
	}
	return false
}

func readTable(r io.Reader, format string) (*table, error) {
	var records [][]string
	switch format {
	case FormatCSV:
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		list, err := cr.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("解析 CSV 失败: %w", err)
		}
		records = list
	case FormatXLSX:
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, fmt.Errorf("解析 Excel 失败: %w", err)
		}
		defer f.Close()
		rows, err := f.GetRows(f.GetSheetName(0))
		if err != nil {
			return nil, fmt.Errorf("读取 Excel 失败: %w", err)
		}
		records = rows
	default:
		return nil, ErrUnsupportedFormat
	}

	if len(records) < 2 {
		return nil, ErrImportEmpty
	}
	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return &table{headers: headers, rows: records[1:]}, nil
}

func parseDecimal(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("无效的数字 %q", raw)
	}
	return &v, nil
}

func nonNegative(column, raw string) (*float64, error) {
	v, err := parseDecimal(raw)
	if err != nil {
		return nil, rowErrorf("%s: %v", column, err)
	}
	if v != nil && *v < 0 {
		return nil, rowErrorf("%s 不能小于 0", column)
	}
	return v, nil
}

func sameJSON(a, b interface{}) bool {
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ra, rb)
}

func (s *admissionService) ImportScores(ctx context.Context, campaignID int64, kind, format string, r io.Reader, dryRun bool) (*dto.ImportResult, error) {
	if kind != ScoreKindTest && kind != ScoreKindExam && kind != ScoreKindOlympiad {
		return nil, ErrUnknownScoreKind
	}
	if _, err := s.repo.Admission.GetCampaign(ctx, campaignID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		s.logger.Error("查询招生季失败", zap.Int64("campaign_id", campaignID), zap.Error(err))
		return nil, err
	}

	t, err := readTable(r, format)
	if err != nil {
		return nil, err
	}
	if !t.has("applicant") {
		return nil, ErrImportMissingApplicant
	}

	result := &dto.ImportResult{Kind: kind, DryRun: dryRun, Total: len(t.rows), Errors: []dto.ImportRowError{}}

	// 预先解析申请人 ID 并批量加载
	ids := make([]int64, 0, len(t.rows))
	for i := range t.rows {
		if id, err := strconv.ParseInt(t.record(i)["applicant"], 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	applicants, err := s.repo.Admission.GetApplicantsByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("查询申请人失败", zap.Error(err))
		return nil, err
	}

	err = inTx(ctx, s.repo, func(txRepo *repository.Repository) error {
		for i := range t.rows {
			rec := t.record(i)
			err := s.importRow(ctx, txRepo, t, i, rec, kind, campaignID, applicants, dryRun, result)
			var re *rowError
			if errors.As(err, &re) {
				result.Errors = append(result.Errors, dto.ImportRowError{Row: i + 1, Message: re.msg})
				continue
			}
			if err != nil {
				return err
			}
		}
		if dryRun || len(result.Errors) > 0 {
			return errImportRollback
		}
		return nil
	})
	if err != nil && !errors.Is(err, errImportRollback) {
		s.logger.Error("导入成绩失败", zap.Int64("campaign_id", campaignID), zap.String("kind", kind), zap.Error(err))
		return nil, err
	}
	result.Applied = err == nil

	s.logger.Info("导入招生成绩",
		zap.Int64("campaign_id", campaignID),
		zap.String("kind", kind),
		zap.Bool("dry_run", dryRun),
		zap.Int("total", result.Total),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// importRow 处理一行；*rowError 为行级错误，其它错误中断整个导入
func (s *admissionService) importRow(
	ctx context.Context,
	txRepo *repository.Repository,
	t *table,
	i int,
	rec map[string]string,
	kind string,
	campaignID int64,
	applicants map[int64]*model.Applicant,
	dryRun bool,
	result *dto.ImportResult,
) error {
	applicantID, err := strconv.ParseInt(rec["applicant"], 10, 64)
	if err != nil {
		return rowErrorf("applicant: 无效的 ID %q", rec["applicant"])
	}
	if err := s.validate.Struct(&scoreRow{ApplicantID: applicantID, Status: rec["status"]}); err != nil {
		return rowErrorf("校验失败: %v", err)
	}
	applicant, ok := applicants[applicantID]
	if !ok || applicant.CampaignID != campaignID {
		return rowErrorf("申请人 %d 不属于该招生季", applicantID)
	}

	switch kind {
	case ScoreKindTest:
		return s.importTest(ctx, txRepo, t, i, rec, applicantID, dryRun, result)
	case ScoreKindExam:
		return s.importExam(ctx, txRepo, t, i, rec, applicantID, dryRun, result)
	default:
		return s.importOlympiad(ctx, txRepo, t, rec, applicantID, dryRun, result)
	}
}

func (s *admissionService) importTest(ctx context.Context, txRepo *repository.Repository, t *table, i int, rec map[string]string, applicantID int64, dryRun bool, result *dto.ImportResult) error {
	score, err := nonNegative("score", rec["score"])
	if err != nil {
		return err
	}
	var intScore *int
	if score != nil {
		v := int(math.Round(*score))
		intScore = &v
	}
	status := rec["status"]
	if status == "" {
		status = model.ChallengeManual
	}
	details := t.details(i, knownScoreColumns)

	existing, err := txRepo.Admission.GetTestByApplicant(ctx, applicantID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if existing != nil {
		// 保留最低分；任一方为 0 分时不适用，按普通更新处理
		if nonZero(existing.Score) && nonZero(intScore) && *intScore > *existing.Score {
			result.Skipped++
			return nil
		}
		if sameJSON(existing.Score, intScore) && existing.Status == status && sameJSON(existing.Details, details) {
			result.Skipped++
			return nil
		}
	}

	if !dryRun {
		if err := txRepo.Admission.SaveTest(ctx, &model.Test{
			ApplicantID: applicantID,
			Score:       intScore,
			Status:      status,
			Details:     details,
		}); err != nil {
			return err
		}
	}
	countSaved(result, existing != nil)
	return nil
}

func (s *admissionService) importExam(ctx context.Context, txRepo *repository.Repository, t *table, i int, rec map[string]string, applicantID int64, dryRun bool, result *dto.ImportResult) error {
	score, err := nonNegative("score", rec["score"])
	if err != nil {
		return err
	}
	if score == nil {
		return rowErrorf("score 不能为空")
	}
	details := t.details(i, knownScoreColumns)

	existing, err := txRepo.Admission.GetExamByApplicant(ctx, applicantID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	status := rec["status"]
	if status == "" {
		status = model.ChallengeNew
		if existing != nil {
			status = existing.Status
		}
	}
	if existing != nil && sameJSON(existing.Score, score) && existing.Status == status && sameJSON(existing.Details, details) {
		result.Skipped++
		return nil
	}

	if !dryRun {
		if err := txRepo.Admission.SaveExam(ctx, &model.Exam{
			ApplicantID: applicantID,
			Score:       score,
			Status:      status,
			Details:     details,
		}); err != nil {
			return err
		}
	}
	countSaved(result, existing != nil)
	return nil
}

func (s *admissionService) importOlympiad(ctx context.Context, txRepo *repository.Repository, t *table, rec map[string]string, applicantID int64, dryRun bool, result *dto.ImportResult) error {
	score, err := nonNegative("score", rec["score"])
	if err != nil {
		return err
	}
	mathScore, err := nonNegative("math_score", rec["math_score"])
	if err != nil {
		return err
	}

	existing, err := txRepo.Admission.GetOlympiadByApplicant(ctx, applicantID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	status := rec["status"]
	if status == "" {
		status = model.ChallengeNew
		if existing != nil {
			status = existing.Status
		}
	}
	var details datatypes.JSONMap
	if t.has("details") {
		details = parseDetails(rec["details"])
	} else if existing != nil {
		details = existing.Details
	}

	if existing != nil && sameJSON(existing.Score, score) && sameJSON(existing.MathScore, mathScore) &&
		existing.Status == status && sameJSON(existing.Details, details) {
		result.Skipped++
		return nil
	}

	if !dryRun {
		if err := txRepo.Admission.SaveOlympiad(ctx, &model.Olympiad{
			ApplicantID: applicantID,
			Score:       score,
			MathScore:   mathScore,
			Status:      status,
			Details:     details,
		}); err != nil {
			return err
		}
	}
	countSaved(result, existing != nil)
	return nil
}

// parseDetails details 列按 JSON 解析；非对象或无效 JSON 原样放在 value 下
func parseDetails(raw string) datatypes.JSONMap {
	if raw == "" {
		return nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		return obj
	}
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return datatypes.JSONMap{"value": v}
	}
	return datatypes.JSONMap{"value": raw}
}

func nonZero(v *int) bool { return v != nil && *v != 0 }

func countSaved(result *dto.ImportResult, updated bool) {
	if updated {
		result.Updated++
	} else {
		result.Created++
	}
}

// ────────────────────── ExportScores ──────────────────────

func (s *admissionService) ExportScores(ctx context.Context, campaignID int64, kind, format string) (*bytes.Buffer, string, error) {
	if format == "" {
		format = FormatXLSX
	}
	if format != FormatCSV && format != FormatXLSX {
		return nil, "", ErrUnsupportedFormat
	}
	if _, err := s.repo.Admission.GetCampaign(ctx, campaignID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrCampaignNotFound
		}
		s.logger.Error("查询招生季失败", zap.Int64("campaign_id", campaignID), zap.Error(err))
		return nil, "", err
	}

	headers, rows, err := s.exportRows(ctx, campaignID, kind)
	if err != nil {
		return nil, "", err
	}

	buf := new(bytes.Buffer)
	if format == FormatCSV {
		w := csv.NewWriter(buf)
		if err := w.Write(headers); err != nil {
			return nil, "", ErrAdmissionExportFailed
		}
		if err := w.WriteAll(rows); err != nil {
			s.logger.Error("写入 CSV 失败", zap.Error(err))
			return nil, "", ErrAdmissionExportFailed
		}
	} else if err := writeXLSX(buf, kind, headers, rows); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrAdmissionExportFailed
	}

	filename := fmt.Sprintf("%s_campaign_%d.%s", kind, campaignID, format)
	return buf, filename, nil
}

func (s *admissionService) exportRows(ctx context.Context, campaignID int64, kind string) ([]string, [][]string, error) {
	var (
		headers []string
		rows    [][]string
	)
	switch kind {
	case ScoreKindTest:
		list, err := s.repo.Admission.ListTests(ctx, campaignID)
		if err != nil {
			s.logger.Error("查询在线测试成绩失败", zap.Int64("campaign_id", campaignID), zap.Error(err))
			return nil, nil, err
		}
		headers = []string{"applicant", "fio", "yandex_login", "score", "status", "details", "created"}
		for _, t := range list {
			fio, login := "", ""
			if t.Applicant != nil {
				fio, login = t.Applicant.FullName(), t.Applicant.YandexLogin
			}
			score := ""
			if t.Score != nil {
				score = strconv.Itoa(*t.Score)
			}
			rows = append(rows, []string{
				strconv.FormatInt(t.ApplicantID, 10), fio, login, score, t.Status,
				renderDetails(t.Details), t.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}
	case ScoreKindExam:
		list, err := s.repo.Admission.ListExams(ctx, campaignID)
		if err != nil {
			s.logger.Error("查询笔试成绩失败", zap.Int64("campaign_id", campaignID), zap.Error(err))
			return nil, nil, err
		}
		headers = []string{"applicant", "score", "status", "details"}
		for _, e := range list {
			rows = append(rows, []string{
				strconv.FormatInt(e.ApplicantID, 10), FormatScore(e.Score), e.Status, renderDetails(e.Details),
			})
		}
	case ScoreKindOlympiad:
		list, err := s.repo.Admission.ListOlympiads(ctx, campaignID)
		if err != nil {
			s.logger.Error("查询竞赛成绩失败", zap.Int64("campaign_id", campaignID), zap.Error(err))
			return nil, nil, err
		}
		headers = []string{"applicant", "score", "math_score", "status", "details"}
		for _, o := range list {
			rows = append(rows, []string{
				strconv.FormatInt(o.ApplicantID, 10), FormatScore(o.Score), FormatScore(o.MathScore),
				o.Status, renderDetails(o.Details),
			})
		}
	default:
		return nil, nil, ErrUnknownScoreKind
	}
	return headers, rows, nil
}

func renderDetails(details datatypes.JSONMap) string {
	if len(details) == 0 {
		return ""
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return ""
	}
	return string(raw)
}

func writeXLSX(w io.Writer, sheet string, headers []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	_ = f.DeleteSheet("Sheet1")

	write := func(r int, values []string) error {
		cells := make([]interface{}, len(values))
		for i, v := range values {
			cells[i] = v
		}
		cell, _ := excelize.CoordinatesToCellName(1, r)
		return f.SetSheetRow(sheet, cell, &cells)
	}
	if err := write(1, headers); err != nil {
		return err
	}
	for i, row := range rows {
		if err := write(i+2, row); err != nil {
			return err
		}
	}
	return f.Write(w)
}
