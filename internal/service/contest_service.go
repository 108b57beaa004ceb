package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cscenter/backend/config"
	"cscenter/backend/internal/model"
	"cscenter/backend/internal/repository"
	"cscenter/backend/pkg/contest"
	pkgerrors "cscenter/backend/pkg/errors"
	"cscenter/backend/pkg/mail"
	"cscenter/backend/pkg/metrics"
)

// ── 评测平台任务业务错误 ──

var (
	ErrApplicantNotFound = errors.New("申请人不存在")
	ErrEmptyYandexLogin  = errors.New("申请人未填写 Яндекс 登录名")
	ErrEmptyContestID    = errors.New("申请人未分配竞赛")
)

// taskLockOwner 任务锁持有者
const taskLockOwner = "worker"

// ContestService 与外部评测平台交互的后台任务
type ContestService interface {
	// RegisterInContest 在竞赛中注册申请人并发送通知邮件
	RegisterInContest(ctx context.Context, applicantID int64) error
	// ImportTestingResults 拉取当前招生季全部测试竞赛的榜单并更新成绩；taskID 为 0 时不关联任务记录
	ImportTestingResults(ctx context.Context, taskID int64) error
	// NotifyAdminBadToken 招生季的 access token 失效
	NotifyAdminBadToken(ctx context.Context, campaignID int64)
}

type contestService struct {
	repo     *repository.Repository
	api      contest.Factory
	mail     mail.Sender
	pageSize int
	logger   *zap.Logger
}

// NewContestService 创建 ContestService 实例
func NewContestService(cfg *config.Config, repo *repository.Repository, api contest.Factory, sender mail.Sender, logger *zap.Logger) ContestService {
	pageSize := cfg.Contest.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	return &contestService{repo: repo, api: api, mail: sender, pageSize: pageSize, logger: logger}
}

// ────────────────────── RegisterInContest ──────────────────────

func (s *contestService) RegisterInContest(ctx context.Context, applicantID int64) error {
	applicant, err := s.repo.Admission.GetApplicant(ctx, applicantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("申请人不存在", zap.Int64("applicant_id", applicantID))
			return ErrApplicantNotFound
		}
		return err
	}
	if applicant.YandexLogin == "" {
		s.logger.Error("申请人 Яндекс 登录名为空", zap.Int64("applicant_id", applicantID))
		return ErrEmptyYandexLogin
	}
	if applicant.OnlineTest == nil || applicant.OnlineTest.YandexContestID == nil || *applicant.OnlineTest.YandexContestID == 0 {
		s.logger.Error("申请人未分配竞赛", zap.Int64("applicant_id", applicantID))
		return ErrEmptyContestID
	}
	contestID := *applicant.OnlineTest.YandexContestID
	campaign := applicant.Campaign

	api := s.api(campaign.AccessToken)
	status, participantID, err := api.RegisterParticipant(ctx, contestID, applicant.YandexLogin)
	if err != nil {
		if contest.IsBadToken(err) {
			s.NotifyAdminBadToken(ctx, campaign.ID)
		}
		s.logger.Error("评测平台注册失败",
			zap.Int64("applicant_id", applicantID),
			zap.Int64("contest_id", contestID),
			zap.Error(err),
		)
		return err
	}

	fields := map[string]interface{}{
		"status":              model.ChallengeRegistered,
		"contest_status_code": status,
	}
	if status == contest.StatusCreated {
		fields["contest_participant_id"] = participantID
	} else {
		// 已注册（409）：管理员可能直接在平台上注册过，尝试沿用其他记录中的参赛者 ID
		registered, err := s.repo.Admission.FindRegisteredParticipant(ctx, contestID, applicant.YandexLogin)
		switch {
		case err == nil:
			fields["contest_participant_id"] = registered.ContestParticipantID
		case !errors.Is(err, gorm.ErrRecordNotFound):
			s.logger.Error("查询已注册参赛者失败", zap.Int64("applicant_id", applicantID), zap.Error(err))
			return err
		}
	}
	if err := s.repo.Admission.UpdateTestByApplicant(ctx, applicantID, fields); err != nil {
		s.logger.Error("更新测试记录失败", zap.Int64("applicant_id", applicantID), zap.Error(err))
		return err
	}

	cityName := ""
	if campaign.City != nil {
		cityName = campaign.City.Name
	}
	msg := &mail.Message{
		To:       []string{applicant.Email},
		Template: campaign.TemplateName,
		Context: map[string]interface{}{
			"FIRST_NAME":   applicant.FirstName,
			"SURNAME":      applicant.Surname,
			"PATRONYMIC":   applicant.Patronymic,
			"EMAIL":        applicant.Email,
			"CITY":         cityName,
			"PHONE":        applicant.Phone,
			"CONTEST_ID":   contestID,
			"YANDEX_LOGIN": applicant.YandexLogin,
		},
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		s.logger.Error("发送注册通知失败", zap.Int64("applicant_id", applicantID), zap.Error(err))
		return err
	}

	s.logger.Info("申请人已注册到竞赛",
		zap.Int64("applicant_id", applicantID),
		zap.Int64("contest_id", contestID),
		zap.Int("status_code", status),
	)
	return nil
}

// ────────────────────── ImportTestingResults ──────────────────────

func (s *contestService) ImportTestingResults(ctx context.Context, taskID int64) error {
	if taskID != 0 {
		now := time.Now()
		if _, err := s.repo.Task.GetUnlocked(ctx, taskID, now); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.logger.Error("任务不存在或已锁定", zap.Int64("task_id", taskID))
				return nil
			}
			return err
		}
		if err := s.repo.Task.Lock(ctx, taskID, taskLockOwner, now); err != nil {
			if errors.Is(err, pkgerrors.ErrTaskLocked) {
				s.logger.Warn("任务已被其他 worker 锁定", zap.Int64("task_id", taskID))
				return nil
			}
			return err
		}
	}

	campaigns, err := s.repo.Admission.ListCurrentCampaigns(ctx)
	if err != nil {
		s.logger.Error("查询当前招生季失败", zap.Error(err))
		return err
	}
	if len(campaigns) == 0 {
		// 任务保持未处理状态
		return nil
	}

	for i := range campaigns {
		if err := s.importCampaign(ctx, &campaigns[i]); err != nil {
			return err
		}
	}

	if taskID != 0 {
		if err := s.repo.Task.MarkProcessed(ctx, taskID, time.Now()); err != nil {
			s.logger.Error("标记任务完成失败", zap.Int64("task_id", taskID), zap.Error(err))
			return err
		}
	}
	return nil
}

func (s *contestService) importCampaign(ctx context.Context, campaign *model.Campaign) error {
	contests, err := s.repo.Admission.ListContests(ctx, campaign.ID, model.ContestTypeTest)
	if err != nil {
		s.logger.Error("查询招生季竞赛失败", zap.Int64("campaign_id", campaign.ID), zap.Error(err))
		return err
	}

	api := s.api(campaign.AccessToken)
	for i := range contests {
		if err := s.importContest(ctx, api, campaign, &contests[i]); err != nil {
			return err
		}
	}
	return nil
}

// importContest 分页读取榜单；评测平台错误只中止当前竞赛，数据库错误向上返回
// 榜单在读取过程中可能变化，名次跨页移动的参赛者可能被漏掉
func (s *contestService) importContest(ctx context.Context, api contest.API, campaign *model.Campaign, c *model.Contest) error {
	var scoreboardTotal, updatedTotal int64
	for page := 1; ; page++ {
		standings, err := api.Standings(ctx, c.ContestID, page, s.pageSize)
		if err != nil {
			if contest.IsBadToken(err) {
				s.NotifyAdminBadToken(ctx, campaign.ID)
			}
			s.logger.Error("读取榜单失败",
				zap.Int64("contest_id", c.ContestID),
				zap.Int("page", page),
				zap.Error(err),
			)
			break
		}

		if _, ok := c.Details["titles"]; !ok {
			if c.Details == nil {
				c.Details = datatypes.JSONMap{}
			}
			c.Details["titles"] = standings.TitleNames()
			if err := s.repo.Admission.UpdateContestDetails(ctx, c.ID, c.Details); err != nil {
				s.logger.Error("保存竞赛题目失败", zap.Int64("contest_id", c.ContestID), zap.Error(err))
				return err
			}
		}

		for _, row := range standings.Rows {
			scoreboardTotal++
			score, err := contest.ParseScore(row.Score)
			if err != nil {
				s.logger.Warn("无法解析榜单分数",
					zap.Int64("contest_id", c.ContestID),
					zap.String("login", row.ParticipantInfo.Login),
					zap.Error(err),
				)
				continue
			}
			scores := make([]interface{}, len(row.ProblemResults))
			for i, pr := range row.ProblemResults {
				scores[i] = pr.Score
			}
			updated, err := s.repo.Admission.UpdateTestFromStandings(ctx,
				campaign.ID, c.ContestID,
				row.ParticipantInfo.Login, row.ParticipantInfo.ID,
				score, datatypes.JSONMap{"scores": scores},
			)
			if err != nil {
				s.logger.Error("更新测试成绩失败", zap.Int64("contest_id", c.ContestID), zap.Error(err))
				return err
			}
			updatedTotal += updated
		}

		if len(standings.Rows) < s.pageSize {
			break
		}
	}

	metrics.ContestRowsUpdated.Add(float64(updatedTotal))
	s.logger.Info("榜单导入完成",
		zap.Int64("campaign_id", campaign.ID),
		zap.Int64("contest_id", c.ContestID),
		zap.Int64("scoreboard_total", scoreboardTotal),
		zap.Int64("updated_total", updatedTotal),
	)
	return nil
}

// ────────────────────── NotifyAdminBadToken ──────────────────────

// NotifyAdminBadToken 目前只记录告警日志
func (s *contestService) NotifyAdminBadToken(_ context.Context, campaignID int64) {
	s.logger.Warn(fmt.Sprintf("招生季 %d 的评测平台 token 无效", campaignID), zap.Int64("campaign_id", campaignID))
}
