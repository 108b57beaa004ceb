package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"cscenter/backend/internal/dto"
	"cscenter/backend/internal/repository"
)

// StatsService 招生统计
type StatsService interface {
	AdmissionStats(ctx context.Context, campaignID int64) (*dto.AdmissionStatsResponse, error)
}

type statsService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewStatsService 创建 StatsService 实例
func NewStatsService(repo *repository.Repository, logger *zap.Logger) StatsService {
	return &statsService{repo: repo, logger: logger}
}

func (s *statsService) AdmissionStats(ctx context.Context, campaignID int64) (*dto.AdmissionStatsResponse, error) {
	if _, err := s.repo.Admission.GetCampaign(ctx, campaignID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		s.logger.Error("查询招生季失败", zap.Int64("campaign_id", campaignID), zap.Error(err))
		return nil, err
	}

	byStatus, err := s.repo.Stats.ApplicantsByStatus(ctx, campaignID)
	if err != nil {
		s.logger.Error("统计申请人状态失败", zap.Int64("campaign_id", campaignID), zap.Error(err))
		return nil, err
	}
	tests, err := s.repo.Stats.TestScoresByUniversity(ctx, campaignID)
	if err != nil {
		s.logger.Error("统计测试成绩失败", zap.Int64("campaign_id", campaignID), zap.Error(err))
		return nil, err
	}
	exams, err := s.repo.Stats.ExamScoresByUniversity(ctx, campaignID)
	if err != nil {
		s.logger.Error("统计考试成绩失败", zap.Int64("campaign_id", campaignID), zap.Error(err))
		return nil, err
	}

	resp := &dto.AdmissionStatsResponse{
		CampaignID:         campaignID,
		ApplicantsByStatus: byStatus,
		TestScores:         tests,
		ExamScores:         exams,
	}
	// 空结果返回 [] 而不是 null
	if resp.ApplicantsByStatus == nil {
		resp.ApplicantsByStatus = []repository.StatusCount{}
	}
	if resp.TestScores == nil {
		resp.TestScores = []repository.ScoreBucket{}
	}
	if resp.ExamScores == nil {
		resp.ExamScores = []repository.ScoreBucket{}
	}
	return resp, nil
}
