package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"cscenter/backend/internal/model"
	"cscenter/backend/internal/repository"
	"cscenter/backend/pkg/metrics"
)

// ── 成绩单表单错误 ──

var (
	ErrGradebookReadonly = errors.New("成绩单为只读")
	ErrGradebookNotBound = errors.New("成绩单表单未绑定提交数据")
	ErrGradebookInvalid  = errors.New("成绩单提交数据校验失败")
)

// 字段名前缀
const (
	ScoreFieldPrefix      = "sa_"
	FinalGradeFieldPrefix = "final_grade_"
	InitialFieldPrefix    = "initial-"
)

// FieldKind 成绩单字段类型
type FieldKind int

const (
	FieldScore FieldKind = iota + 1
	FieldFinalGrade
)

// GradebookField 成绩单中的一个可编辑单元格
// Initial 为渲染页面时的值，客户端需原样回传到 initial-<name>
type GradebookField struct {
	Name     string
	Kind     FieldKind
	ObjectID int64 // student_assignments.id 或 enrollments.id
	Initial  string
	MaxScore int
	Choices  []string
	Disabled bool
}

// ConflictError 保存时检测到的并发修改：库中值已不是页面加载时的值
type ConflictError struct {
	FieldName    string      `json:"field_name"`
	UnsavedValue interface{} `json:"unsaved_value"`
}

// ── 表单工厂 ──

// GradebookFormFactory 根据成绩单数据构造表单
type GradebookFormFactory struct {
	repo        *repository.Repository
	logger      *zap.Logger
	maxFields   int
	maxStudents int
}

// NewGradebookFormFactory 创建表单工厂
func NewGradebookFormFactory(repo *repository.Repository, maxFields, maxStudents int, logger *zap.Logger) *GradebookFormFactory {
	return &GradebookFormFactory{repo: repo, logger: logger, maxFields: maxFields, maxStudents: maxStudents}
}

// Build 构造表单
// 只有线下提交的作业才有分数字段，且仅在分数可编辑时创建；期末成绩字段总是存在
func (f *GradebookFormFactory) Build(data *GradebookData, isReadonly bool) *GradebookForm {
	scoreReadonly := isReadonly ||
		len(data.Students) > f.maxStudents ||
		data.NumberOfFields() > f.maxFields

	form := &GradebookForm{
		repo:          f.repo,
		logger:        f.logger,
		fields:        make(map[string]*GradebookField),
		readonly:      isReadonly,
		scoreReadonly: scoreReadonly,
	}

	if !scoreReadonly {
		for i := range data.Students {
			for j, a := range data.Assignments {
				sa := data.Cells[i][j]
				// 退课学生没有个人作业
				if sa == nil || a.IsOnline() {
					continue
				}
				form.add(&GradebookField{
					Name:     ScoreFieldName(sa.ID),
					Kind:     FieldScore,
					ObjectID: sa.ID,
					Initial:  FormatScore(sa.Score),
					MaxScore: a.MaximumScore,
				})
			}
		}
	}

	choices := model.GradeChoices(data.Course.GradingType)
	for _, st := range data.Students {
		form.add(&GradebookField{
			Name:     FinalGradeFieldName(st.Enrollment.ID),
			Kind:     FieldFinalGrade,
			ObjectID: st.Enrollment.ID,
			Initial:  st.Enrollment.Grade,
			Choices:  choices,
			Disabled: isReadonly,
		})
	}
	return form
}

// ScoreFieldName sa_<id>
func ScoreFieldName(studentAssignmentID int64) string {
	return ScoreFieldPrefix + strconv.FormatInt(studentAssignmentID, 10)
}

// FinalGradeFieldName final_grade_<id>
func FinalGradeFieldName(enrollmentID int64) string {
	return FinalGradeFieldPrefix + strconv.FormatInt(enrollmentID, 10)
}

// FormatScore 分数的文本表示，nil 为空串
func FormatScore(score *float64) string {
	if score == nil {
		return ""
	}
	return strconv.FormatFloat(*score, 'f', -1, 64)
}

// convertScore 只做类型转换，不检查范围与小数位
// 满分下调后库中可能存在超出范围的旧值，它仍需作为条件更新的原值
func convertScore(raw string) (*float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("请输入数字")
	}
	return &v, nil
}

// ParseScore 解析分数：允许逗号小数点，最多两位小数，空串为 nil
func ParseScore(raw string, maxScore int) (*float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	s = strings.Replace(s, ",", ".", 1)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("请输入数字")
	}
	if i := strings.IndexByte(s, '.'); i >= 0 && len(s)-i-1 > 2 {
		return nil, fmt.Errorf("小数位不能超过 2 位")
	}
	if v < 0 {
		return nil, fmt.Errorf("分数不能小于 0")
	}
	if v > float64(maxScore) {
		return nil, fmt.Errorf("分数不能大于 %d", maxScore)
	}
	return &v, nil
}

// ── 表单 ──

// GradebookForm 成绩单表单
type GradebookForm struct {
	repo   *repository.Repository
	logger *zap.Logger

	fields        map[string]*GradebookField
	order         []string
	readonly      bool
	scoreReadonly bool

	bound   bool
	changed []string
	cleaned map[string]interface{}
	priors  map[string]interface{}
	errors  map[string]string

	conflicts bool
}

func (f *GradebookForm) add(field *GradebookField) {
	f.fields[field.Name] = field
	f.order = append(f.order, field.Name)
}

// Fields 按构造顺序返回全部字段
func (f *GradebookForm) Fields() []*GradebookField {
	result := make([]*GradebookField, 0, len(f.order))
	for _, name := range f.order {
		result = append(result, f.fields[name])
	}
	return result
}

// Field 按名称取字段
func (f *GradebookForm) Field(name string) (*GradebookField, bool) {
	field, ok := f.fields[name]
	return field, ok
}

// IsReadonly 整个表单只读
func (f *GradebookForm) IsReadonly() bool { return f.readonly }

// IsScoreReadonly 分数只读（期末成绩可能仍可编辑）
func (f *GradebookForm) IsScoreReadonly() bool { return f.scoreReadonly }

// Initial 渲染页面所需的初始值
func (f *GradebookForm) Initial() map[string]string {
	initial := make(map[string]string, len(f.fields))
	for name, field := range f.fields {
		initial[name] = field.Initial
	}
	return initial
}

// Bind 绑定提交数据并校验，返回逐字段错误
// values 中未出现的字段视为未提交，保持不变；initial-<name> 为页面加载时的值
func (f *GradebookForm) Bind(values map[string]string) map[string]string {
	f.bound = true
	f.changed = nil
	f.cleaned = make(map[string]interface{})
	f.priors = make(map[string]interface{})
	f.errors = make(map[string]string)

	for _, name := range f.order {
		field := f.fields[name]
		raw, submitted := values[name]
		if !submitted || field.Disabled {
			continue
		}

		value, err := field.clean(raw)
		if err != nil {
			f.errors[name] = err.Error()
			continue
		}
		f.cleaned[name] = value

		// 影子字段无法解析时一律视为已修改，且原值未知
		initialRaw, hasInitial := values[InitialFieldPrefix+name]
		if !hasInitial {
			initialRaw = ""
		}
		prior, err := field.convert(initialRaw)
		if err != nil {
			f.priors[name] = nil
			f.changed = append(f.changed, name)
			continue
		}
		f.priors[name] = prior
		if !sameValue(prior, value) {
			f.changed = append(f.changed, name)
		}
	}
	return f.errors
}

// Errors 最近一次 Bind 的校验错误
func (f *GradebookForm) Errors() map[string]string { return f.errors }

// ChangedFields 相对影子初始值发生变化的字段
func (f *GradebookForm) ChangedFields() []string { return f.changed }

// Save 对每个变化字段执行条件更新，返回冲突列表
// 只有当库中值仍等于页面加载时的值（或已等于新值）时才写入
func (f *GradebookForm) Save(ctx context.Context) ([]ConflictError, error) {
	if f.readonly {
		return nil, ErrGradebookReadonly
	}
	if !f.bound {
		return nil, ErrGradebookNotBound
	}
	if len(f.errors) > 0 {
		return nil, ErrGradebookInvalid
	}

	var conflicts []ConflictError
	for _, name := range f.changed {
		field := f.fields[name]
		var (
			updated bool
			err     error
		)
		switch field.Kind {
		case FieldScore:
			prior, _ := f.priors[name].(*float64)
			value, _ := f.cleaned[name].(*float64)
			updated, err = f.repo.StudentAssignment.UpdateScoreIfUnchanged(ctx, field.ObjectID, prior, value)
		case FieldFinalGrade:
			var prior *string
			if p, ok := f.priors[name].(string); ok && p != "" {
				prior = &p
			}
			value, _ := f.cleaned[name].(string)
			updated, err = f.repo.Enrollment.UpdateGradeIfUnchanged(ctx, field.ObjectID, prior, value)
		}
		if err != nil {
			f.logger.Error("保存成绩单失败", zap.String("field", name), zap.Error(err))
			return nil, err
		}
		if !updated {
			conflicts = append(conflicts, ConflictError{FieldName: name, UnsavedValue: f.cleaned[name]})
		}
	}

	f.conflicts = len(conflicts) > 0
	if f.conflicts {
		metrics.GradebookConflicts.Add(float64(len(conflicts)))
	}
	return conflicts, nil
}

// ConflictsOnLastSave 最近一次 Save 是否存在冲突
func (f *GradebookForm) ConflictsOnLastSave() bool { return f.conflicts }

// clean 将原始文本转换为字段值：分数 → *float64，期末成绩 → string
func (field *GradebookField) clean(raw string) (interface{}, error) {
	switch field.Kind {
	case FieldScore:
		return ParseScore(raw, field.MaxScore)
	case FieldFinalGrade:
		v := strings.TrimSpace(raw)
		for _, c := range field.Choices {
			if c == v {
				return v, nil
			}
		}
		return nil, fmt.Errorf("无效的成绩 %q", v)
	}
	return nil, fmt.Errorf("未知字段类型")
}

// convert 解析影子字段中的原值
func (field *GradebookField) convert(raw string) (interface{}, error) {
	switch field.Kind {
	case FieldScore:
		return convertScore(raw)
	case FieldFinalGrade:
		return strings.TrimSpace(raw), nil
	}
	return nil, fmt.Errorf("未知字段类型")
}

func sameValue(a, b interface{}) bool {
	switch av := a.(type) {
	case *float64:
		bv, _ := b.(*float64)
		if av == nil || bv == nil {
			return av == nil && bv == nil
		}
		return *av == *bv
	case string:
		bv, _ := b.(string)
		return av == bv
	}
	return false
}
