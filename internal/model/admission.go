package model

import (
	"time"

	"gorm.io/datatypes"
)

// ── 考核状态（测试/考试/竞赛）──

const (
	ChallengeNew        = "new"
	ChallengeRegistered = "registered"
	ChallengeManual     = "manual"
	ChallengePassed     = "passed"
	ChallengeFailed     = "failed"
)

// ── 竞赛类型 ──

const (
	ContestTypeTest = "test"
	ContestTypeExam = "exam"
)

// ── 申请人状态 ──

const (
	ApplicantPending        = "pending"
	ApplicantRejectedByTest = "rejected_test"
	ApplicantRejectedByExam = "rejected_exam"
	ApplicantAccepted       = "accept"
	ApplicantVolunteer      = "volunteer"
)

// Campaign 招生季 — 对应 campaigns
type Campaign struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"          json:"id"`
	CityCode     string `gorm:"type:varchar(6);not null"          json:"city_code"`
	BranchID     *int64 `                                         json:"branch_id,omitempty"`
	Year         int    `gorm:"not null"                          json:"year"`
	Current      bool   `gorm:"not null;default:false"            json:"current"`
	AccessToken  string `gorm:"type:varchar(255);not null;default:''" json:"-"`
	RefreshToken string `gorm:"type:varchar(255);not null;default:''" json:"-"`
	TemplateName string `gorm:"type:varchar(255);not null;default:''" json:"template_name"`
	BaseModel

	City *City `gorm:"foreignKey:CityCode;references:Code" json:"city,omitempty"`
}

func (Campaign) TableName() string { return "campaigns" }

// Contest 招生季关联的外部竞赛 — 对应 contests
type Contest struct {
	ID         int64             `gorm:"primaryKey;autoIncrement"   json:"id"`
	CampaignID int64             `gorm:"not null;index"             json:"campaign_id"`
	ContestID  int64             `gorm:"not null"                   json:"contest_id"`
	Type       string            `gorm:"type:varchar(10);not null"  json:"type"`
	Details    datatypes.JSONMap `gorm:"type:jsonb"                 json:"details,omitempty"`
}

func (Contest) TableName() string { return "contests" }

// Applicant 申请人 — 对应 applicants
type Applicant struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"            json:"id"`
	CampaignID  int64  `gorm:"not null;index"                      json:"campaign_id"`
	FirstName   string `gorm:"type:varchar(255);not null"          json:"first_name"`
	Surname     string `gorm:"type:varchar(255);not null"          json:"surname"`
	Patronymic  string `gorm:"type:varchar(255);not null;default:''" json:"patronymic"`
	Email       string `gorm:"type:varchar(254);not null"          json:"email"`
	Phone       string `gorm:"type:varchar(42);not null;default:''" json:"phone"`
	YandexLogin string `gorm:"type:varchar(80);not null;default:''" json:"yandex_login"`
	StepicID    string `gorm:"type:varchar(80);not null;default:''" json:"stepic_id"`
	University  string `gorm:"type:varchar(255);not null;default:''" json:"university"`
	Course      string `gorm:"type:varchar(35);not null;default:''" json:"course"`
	Status      string `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	BaseModel

	Campaign   *Campaign `gorm:"foreignKey:CampaignID"  json:"campaign,omitempty"`
	OnlineTest *Test     `gorm:"foreignKey:ApplicantID" json:"online_test,omitempty"`
}

func (Applicant) TableName() string { return "applicants" }

// FullName 返回 "姓 名 父称"
func (a *Applicant) FullName() string {
	name := a.Surname + " " + a.FirstName
	if a.Patronymic != "" {
		name += " " + a.Patronymic
	}
	return name
}

// Test 在线测试成绩 — 对应 online_tests
type Test struct {
	ID                   int64             `gorm:"primaryKey;autoIncrement"             json:"id"`
	ApplicantID          int64             `gorm:"not null;uniqueIndex"                 json:"applicant_id"`
	Score                *int              `                                            json:"score"`
	Status               string            `gorm:"type:varchar(15);not null;default:'new'" json:"status"`
	YandexContestID      *int64            `                                            json:"yandex_contest_id,omitempty"`
	ContestParticipantID *int64            `                                            json:"contest_participant_id,omitempty"`
	ContestStatusCode    *int              `                                            json:"contest_status_code,omitempty"`
	Details              datatypes.JSONMap `gorm:"type:jsonb"                           json:"details,omitempty"`
	CreatedAt            time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"   json:"created_at"`

	Applicant *Applicant `gorm:"foreignKey:ApplicantID" json:"applicant,omitempty"`
}

func (Test) TableName() string { return "online_tests" }

// Exam 笔试成绩 — 对应 exams
type Exam struct {
	ID              int64             `gorm:"primaryKey;autoIncrement"             json:"id"`
	ApplicantID     int64             `gorm:"not null;uniqueIndex"                 json:"applicant_id"`
	Score           *float64          `gorm:"type:numeric(6,2)"                    json:"score"`
	Status          string            `gorm:"type:varchar(15);not null;default:'new'" json:"status"`
	YandexContestID *int64            `                                            json:"yandex_contest_id,omitempty"`
	Details         datatypes.JSONMap `gorm:"type:jsonb"                           json:"details,omitempty"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"   json:"created_at"`

	Applicant *Applicant `gorm:"foreignKey:ApplicantID" json:"applicant,omitempty"`
}

func (Exam) TableName() string { return "exams" }

// Olympiad 竞赛成绩 — 对应 olympiads
type Olympiad struct {
	ID          int64             `gorm:"primaryKey;autoIncrement"             json:"id"`
	ApplicantID int64             `gorm:"not null;uniqueIndex"                 json:"applicant_id"`
	Score       *float64          `gorm:"type:numeric(6,2)"                    json:"score"`
	MathScore   *float64          `gorm:"type:numeric(6,2)"                    json:"math_score"`
	Status      string            `gorm:"type:varchar(15);not null;default:'new'" json:"status"`
	Details     datatypes.JSONMap `gorm:"type:jsonb"                           json:"details,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"   json:"created_at"`

	Applicant *Applicant `gorm:"foreignKey:ApplicantID" json:"applicant,omitempty"`
}

func (Olympiad) TableName() string { return "olympiads" }
