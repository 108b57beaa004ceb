package repository

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cscenter/backend/internal/model"
)

// AdmissionRepository 招生数据访问接口（招生季、竞赛、申请人及各类成绩）
type AdmissionRepository interface {
	// 招生季
	CreateCampaign(ctx context.Context, c *model.Campaign) error
	GetCampaign(ctx context.Context, id int64) (*model.Campaign, error)
	ListCurrentCampaigns(ctx context.Context) ([]model.Campaign, error)

	// 竞赛
	CreateContest(ctx context.Context, c *model.Contest) error
	ListContests(ctx context.Context, campaignID int64, contestType string) ([]model.Contest, error)
	UpdateContestDetails(ctx context.Context, id int64, details datatypes.JSONMap) error

	// 申请人
	CreateApplicant(ctx context.Context, a *model.Applicant) error
	GetApplicant(ctx context.Context, id int64) (*model.Applicant, error)
	GetApplicantsByIDs(ctx context.Context, ids []int64) (map[int64]*model.Applicant, error)

	// 在线测试
	CreateTest(ctx context.Context, t *model.Test) error
	GetTestByApplicant(ctx context.Context, applicantID int64) (*model.Test, error)
	UpdateTestByApplicant(ctx context.Context, applicantID int64, fields map[string]interface{}) error
	FindRegisteredParticipant(ctx context.Context, contestID int64, yandexLogin string) (*model.Test, error)
	UpdateTestFromStandings(ctx context.Context, campaignID, contestID int64, login string, participantID int64, score int, details datatypes.JSONMap) (int64, error)
	ListTests(ctx context.Context, campaignID int64) ([]model.Test, error)
	SaveTest(ctx context.Context, t *model.Test) error

	// 笔试
	GetExamByApplicant(ctx context.Context, applicantID int64) (*model.Exam, error)
	ListExams(ctx context.Context, campaignID int64) ([]model.Exam, error)
	SaveExam(ctx context.Context, e *model.Exam) error

	// 竞赛成绩
	GetOlympiadByApplicant(ctx context.Context, applicantID int64) (*model.Olympiad, error)
	ListOlympiads(ctx context.Context, campaignID int64) ([]model.Olympiad, error)
	SaveOlympiad(ctx context.Context, o *model.Olympiad) error
}

type admissionRepo struct {
	db *gorm.DB
}

// NewAdmissionRepo 创建 AdmissionRepository 实例
func NewAdmissionRepo(db *gorm.DB) AdmissionRepository {
	return &admissionRepo{db: db}
}

// ── 招生季 ──

func (r *admissionRepo) CreateCampaign(ctx context.Context, c *model.Campaign) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *admissionRepo) GetCampaign(ctx context.Context, id int64) (*model.Campaign, error) {
	var c model.Campaign
	err := r.db.WithContext(ctx).
		Preload("City").
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *admissionRepo) ListCurrentCampaigns(ctx context.Context) ([]model.Campaign, error) {
	var list []model.Campaign
	err := r.db.WithContext(ctx).
		Where("current = ?", true).
		Order("id").
		Find(&list).Error
	return list, err
}

// ── 竞赛 ──

func (r *admissionRepo) CreateContest(ctx context.Context, c *model.Contest) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *admissionRepo) ListContests(ctx context.Context, campaignID int64, contestType string) ([]model.Contest, error) {
	var list []model.Contest
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND type = ?", campaignID, contestType).
		Order("id").
		Find(&list).Error
	return list, err
}

func (r *admissionRepo) UpdateContestDetails(ctx context.Context, id int64, details datatypes.JSONMap) error {
	return r.db.WithContext(ctx).
		Model(&model.Contest{}).
		Where("id = ?", id).
		Update("details", details).Error
}

// ── 申请人 ──

func (r *admissionRepo) CreateApplicant(ctx context.Context, a *model.Applicant) error {
	return r.db.WithContext(ctx).Create(a).Error
}

// GetApplicant 加载申请人及其招生季（含城市）与在线测试
func (r *admissionRepo) GetApplicant(ctx context.Context, id int64) (*model.Applicant, error) {
	var a model.Applicant
	err := r.db.WithContext(ctx).
		Preload("Campaign").
		Preload("Campaign.City").
		Preload("OnlineTest").
		Where("id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *admissionRepo) GetApplicantsByIDs(ctx context.Context, ids []int64) (map[int64]*model.Applicant, error) {
	result := make(map[int64]*model.Applicant, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var list []model.Applicant
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, err
	}
	for i := range list {
		result[list[i].ID] = &list[i]
	}
	return result, nil
}

// ── 在线测试 ──

func (r *admissionRepo) CreateTest(ctx context.Context, t *model.Test) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *admissionRepo) GetTestByApplicant(ctx context.Context, applicantID int64) (*model.Test, error) {
	var t model.Test
	if err := r.db.WithContext(ctx).Where("applicant_id = ?", applicantID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *admissionRepo) UpdateTestByApplicant(ctx context.Context, applicantID int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.Test{}).
		Where("applicant_id = ?", applicantID).
		Updates(fields).Error
}

// FindRegisteredParticipant 在当前招生季中查找同一登录名已成功注册（201）的测试记录
func (r *admissionRepo) FindRegisteredParticipant(ctx context.Context, contestID int64, yandexLogin string) (*model.Test, error) {
	var t model.Test
	err := r.db.WithContext(ctx).
		Joins("JOIN applicants ON applicants.id = online_tests.applicant_id").
		Joins("JOIN campaigns ON campaigns.id = applicants.campaign_id").
		Where("online_tests.yandex_contest_id = ? AND online_tests.contest_status_code = ?", contestID, 201).
		Where("campaigns.current = ? AND applicants.yandex_login = ?", true, yandexLogin).
		Order("online_tests.id").
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTestFromStandings 按榜单行更新仍处于 registered 状态的测试记录
// 通过登录名或参赛者 ID 任一匹配；返回更新行数
func (r *admissionRepo) UpdateTestFromStandings(ctx context.Context, campaignID, contestID int64, login string, participantID int64, score int, details datatypes.JSONMap) (int64, error) {
	applicants := r.db.Model(&model.Applicant{}).
		Select("id").
		Where("campaign_id = ?", campaignID)
	byLogin := r.db.Model(&model.Applicant{}).
		Select("id").
		Where("yandex_login = ?", login)

	result := r.db.WithContext(ctx).
		Model(&model.Test{}).
		Where("applicant_id IN (?)", applicants).
		Where("yandex_contest_id = ? AND status = ?", contestID, model.ChallengeRegistered).
		Where(r.db.Where("applicant_id IN (?)", byLogin).Or("contest_participant_id = ?", participantID)).
		Updates(map[string]interface{}{
			"score":   score,
			"details": details,
		})
	return result.RowsAffected, result.Error
}

func (r *admissionRepo) ListTests(ctx context.Context, campaignID int64) ([]model.Test, error) {
	var list []model.Test
	err := r.db.WithContext(ctx).
		Preload("Applicant").
		Joins("JOIN applicants ON applicants.id = online_tests.applicant_id").
		Where("applicants.campaign_id = ?", campaignID).
		Order("online_tests.id").
		Find(&list).Error
	return list, err
}

// SaveTest 按 applicant_id 新建或覆盖
func (r *admissionRepo) SaveTest(ctx context.Context, t *model.Test) error {
	return r.db.WithContext(ctx).
		Omit("Applicant").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "applicant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "status", "details"}),
		}).
		Create(t).Error
}

// ── 笔试 ──

func (r *admissionRepo) GetExamByApplicant(ctx context.Context, applicantID int64) (*model.Exam, error) {
	var e model.Exam
	if err := r.db.WithContext(ctx).Where("applicant_id = ?", applicantID).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *admissionRepo) ListExams(ctx context.Context, campaignID int64) ([]model.Exam, error) {
	var list []model.Exam
	err := r.db.WithContext(ctx).
		Preload("Applicant").
		Joins("JOIN applicants ON applicants.id = exams.applicant_id").
		Where("applicants.campaign_id = ?", campaignID).
		Order("exams.id").
		Find(&list).Error
	return list, err
}

func (r *admissionRepo) SaveExam(ctx context.Context, e *model.Exam) error {
	return r.db.WithContext(ctx).
		Omit("Applicant").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "applicant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "status", "details"}),
		}).
		Create(e).Error
}

// ── 竞赛成绩 ──

func (r *admissionRepo) GetOlympiadByApplicant(ctx context.Context, applicantID int64) (*model.Olympiad, error) {
	var o model.Olympiad
	if err := r.db.WithContext(ctx).Where("applicant_id = ?", applicantID).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *admissionRepo) ListOlympiads(ctx context.Context, campaignID int64) ([]model.Olympiad, error) {
	var list []model.Olympiad
	err := r.db.WithContext(ctx).
		Preload("Applicant").
		Joins("JOIN applicants ON applicants.id = olympiads.applicant_id").
		Where("applicants.campaign_id = ?", campaignID).
		Order("olympiads.id").
		Find(&list).Error
	return list, err
}

func (r *admissionRepo) SaveOlympiad(ctx context.Context, o *model.Olympiad) error {
	return r.db.WithContext(ctx).
		Omit("Applicant").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "applicant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "math_score", "status", "details"}),
		}).
		Create(o).Error
}
