package dto

import "cscenter/backend/internal/repository"

// ── 招生模块 DTO ──

// ImportQuery 导入参数
type ImportQuery struct {
	DryRun bool `form:"dry_run"`
}

// ExportQuery 导出参数
type ExportQuery struct {
	Format string `form:"format" binding:"omitempty,oneof=xlsx csv"`
}

// ImportRowError 行级错误，Row 从 1 开始（不含表头）
type ImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult 导入结果
// Applied=false 表示未写入数据库（试运行或存在行错误）
type ImportResult struct {
	Kind    string           `json:"kind"`
	DryRun  bool             `json:"dry_run"`
	Applied bool             `json:"applied"`
	Total   int              `json:"total"`
	Created int              `json:"created"`
	Updated int              `json:"updated"`
	Skipped int              `json:"skipped"`
	Errors  []ImportRowError `json:"errors"`
}

// AdmissionStatsResponse 招生统计
type AdmissionStatsResponse struct {
	CampaignID         int64                    `json:"campaign_id"`
	ApplicantsByStatus []repository.StatusCount `json:"applicants_by_status"`
	TestScores         []repository.ScoreBucket `json:"test_scores"`
	ExamScores         []repository.ScoreBucket `json:"exam_scores"`
}
