package repository

import (
	"context"

	"github.com/Masterminds/squirrel"
	"gorm.io/gorm"
)

// StatusCount 按状态分组计数
type StatusCount struct {
	Status string `json:"status"`
	Total  int64  `json:"total"`
}

// ScoreBucket 分数分布
type ScoreBucket struct {
	University string  `json:"university"`
	Score      float64 `json:"score"`
	Total      int64   `json:"total"`
}

// StatsRepository 统计查询接口（squirrel 构造 SQL，gorm 执行）
type StatsRepository interface {
	ApplicantsByStatus(ctx context.Context, campaignID int64) ([]StatusCount, error)
	TestScoresByUniversity(ctx context.Context, campaignID int64) ([]ScoreBucket, error)
	ExamScoresByUniversity(ctx context.Context, campaignID int64) ([]ScoreBucket, error)
}

type statsRepo struct {
	db *gorm.DB
}

// NewStatsRepo 创建 StatsRepository 实例
func NewStatsRepo(db *gorm.DB) StatsRepository {
	return &statsRepo{db: db}
}

func (r *statsRepo) scan(ctx context.Context, b squirrel.SelectBuilder, dest interface{}) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Raw(query, args...).Scan(dest).Error
}

func (r *statsRepo) ApplicantsByStatus(ctx context.Context, campaignID int64) ([]StatusCount, error) {
	var rows []StatusCount
	q := squirrel.Select("status", "COUNT(*) AS total").
		From("applicants").
		Where(squirrel.Eq{"campaign_id": campaignID}).
		GroupBy("status").
		OrderBy("status")
	if err := r.scan(ctx, q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *statsRepo) TestScoresByUniversity(ctx context.Context, campaignID int64) ([]ScoreBucket, error) {
	return r.scoresByUniversity(ctx, "online_tests", campaignID)
}

func (r *statsRepo) ExamScoresByUniversity(ctx context.Context, campaignID int64) ([]ScoreBucket, error) {
	return r.scoresByUniversity(ctx, "exams", campaignID)
}

// scoresByUniversity 按学校统计各分数的人数（未评分不计入）
func (r *statsRepo) scoresByUniversity(ctx context.Context, table string, campaignID int64) ([]ScoreBucket, error) {
	var rows []ScoreBucket
	q := squirrel.Select("a.university AS university", "t.score AS score", "COUNT(*) AS total").
		From(table + " t").
		Join("applicants a ON a.id = t.applicant_id").
		Where(squirrel.Eq{"a.campaign_id": campaignID}).
		Where(squirrel.NotEq{"t.score": nil}).
		GroupBy("a.university", "t.score").
		OrderBy("a.university", "t.score")
	if err := r.scan(ctx, q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
