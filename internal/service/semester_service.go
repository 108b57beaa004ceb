package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cscenter/backend/config"
	"cscenter/backend/internal/dto"
	"cscenter/backend/internal/model"
	"cscenter/backend/internal/repository"
)

// ── 学期管理业务错误 ──

var (
	ErrInvalidSemester         = errors.New("学期参数无效")
	ErrSemesterExists          = errors.New("该学期已存在")
	ErrEnrollmentPeriodInvalid = errors.New("选课结束日期不能早于开始日期")
)

// SemesterService 学期管理接口（教务）
type SemesterService interface {
	Create(ctx context.Context, req *dto.CreateSemesterRequest) (*dto.SemesterResponse, error)
	List(ctx context.Context) ([]dto.SemesterResponse, error)
	UpdateEnrollmentPeriod(ctx context.Context, id int64, req *dto.UpdateEnrollmentPeriodRequest) (*dto.SemesterResponse, error)
}

type semesterService struct {
	site     *config.SiteConfig
	repo     *repository.Repository
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewSemesterService 创建 SemesterService 实例
func NewSemesterService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) SemesterService {
	return &semesterService{site: &cfg.Site, repo: repo, validate: validator.New(), logger: logger, now: time.Now}
}

// localNow 选课期是否开放按默认城市判断
func (s *semesterService) localNow() time.Time {
	return cityTime(s.site, s.site.DefaultCityCode, s.now())
}

// parseEnrollmentPeriod 空字符串表示该边界不限；起止同一天合法
func parseEnrollmentPeriod(startRaw, endRaw string) (start, end *time.Time, err error) {
	parse := func(raw string) (*time.Time, error) {
		if raw == "" {
			return nil, nil
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSemester, err)
		}
		return &t, nil
	}
	if start, err = parse(startRaw); err != nil {
		return nil, nil, err
	}
	if end, err = parse(endRaw); err != nil {
		return nil, nil, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, nil, ErrEnrollmentPeriodInvalid
	}
	return start, end, nil
}

// ────────────────────── Create ──────────────────────

func (s *semesterService) Create(ctx context.Context, req *dto.CreateSemesterRequest) (*dto.SemesterResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSemester, err)
	}
	start, end, err := parseEnrollmentPeriod(req.EnrollmentStartAt, req.EnrollmentEndAt)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.Semester.GetByTerm(ctx, req.Year, req.Type); err == nil {
		return nil, ErrSemesterExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	semester := &model.Semester{
		Year:              req.Year,
		Type:              req.Type,
		Index:             model.SemesterIndex(req.Year, req.Type),
		EnrollmentStartAt: start,
		EnrollmentEndAt:   end,
	}
	if err := s.repo.Semester.Create(ctx, semester); err != nil {
		// 并发创建同一学期时由唯一约束兜底
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrSemesterExists
		}
		s.logger.Error("创建学期失败", zap.Int("year", req.Year), zap.String("type", req.Type), zap.Error(err))
		return nil, err
	}

	s.logger.Info("学期已创建", zap.Int64("semester_id", semester.ID), zap.Int("year", semester.Year), zap.String("type", semester.Type))
	return toSemesterResponse(semester, s.localNow()), nil
}

// ────────────────────── List ──────────────────────

func (s *semesterService) List(ctx context.Context) ([]dto.SemesterResponse, error) {
	semesters, err := s.repo.Semester.List(ctx)
	if err != nil {
		s.logger.Error("列出学期失败", zap.Error(err))
		return nil, err
	}

	now := s.localNow()
	result := make([]dto.SemesterResponse, 0, len(semesters))
	for i := range semesters {
		result = append(result, *toSemesterResponse(&semesters[i], now))
	}
	return result, nil
}

// ────────────────────── UpdateEnrollmentPeriod ──────────────────────

func (s *semesterService) UpdateEnrollmentPeriod(ctx context.Context, id int64, req *dto.UpdateEnrollmentPeriodRequest) (*dto.SemesterResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSemester, err)
	}
	start, end, err := parseEnrollmentPeriod(req.EnrollmentStartAt, req.EnrollmentEndAt)
	if err != nil {
		return nil, err
	}

	semester, err := s.repo.Semester.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSemesterNotFound
		}
		s.logger.Error("查询学期失败", zap.Int64("semester_id", id), zap.Error(err))
		return nil, err
	}

	semester.EnrollmentStartAt = start
	semester.EnrollmentEndAt = end
	if err := s.repo.Semester.UpdateEnrollmentPeriod(ctx, semester); err != nil {
		s.logger.Error("更新选课期失败", zap.Int64("semester_id", id), zap.Error(err))
		return nil, err
	}

	return toSemesterResponse(semester, s.localNow()), nil
}
