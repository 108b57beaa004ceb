package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"cscenter/backend/internal/model"
	"cscenter/backend/internal/repository"
)

// ── 截止日期日历 ──────────────────────────────────────────────
//
// 为当前用户生成 iCalendar (RFC 5545)：
//   - 学生：已选课程的作业截止时间
//   - 教师：所授课程的作业截止时间
//   - 同时具备两种身份时按作业去重
//   - 时间窗口：过去 1 个月到未来 6 个月
// ─────────────────────────────────────────────────────────────

const (
	calendarProductID = "-//cscenter//deadlines//RU"
	calendarUIDDomain = "cscenter"
)

// CalendarService 截止日期日历
type CalendarService interface {
	// Deadlines 返回 .ics 内容与建议文件名
	Deadlines(ctx context.Context, userID int64, roles []string) ([]byte, string, error)
}

type calendarService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(repo *repository.Repository, logger *zap.Logger) CalendarService {
	return &calendarService{repo: repo, logger: logger, now: time.Now}
}

func (s *calendarService) Deadlines(ctx context.Context, userID int64, roles []string) ([]byte, string, error) {
	now := s.now()
	from := now.AddDate(0, -1, 0)
	to := now.AddDate(0, 6, 0)

	seen := make(map[int64]bool)
	var assignments []model.Assignment
	collect := func(items []model.Assignment) {
		for _, a := range items {
			if seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			assignments = append(assignments, a)
		}
	}

	if hasRole(roles, model.RoleStudent) || hasRole(roles, model.RoleVolunteer) {
		items, err := s.repo.Assignment.ListDeadlinesForStudent(ctx, userID, from, to)
		if err != nil {
			s.logger.Error("查询学生作业截止时间失败", zap.Int64("user_id", userID), zap.Error(err))
			return nil, "", err
		}
		collect(items)
	}
	if hasRole(roles, model.RoleTeacher) {
		items, err := s.repo.Assignment.ListDeadlinesForTeacher(ctx, userID, from, to)
		if err != nil {
			s.logger.Error("查询教师作业截止时间失败", zap.Int64("user_id", userID), zap.Error(err))
			return nil, "", err
		}
		collect(items)
	}
	sort.Slice(assignments, func(i, j int) bool {
		if !assignments[i].DeadlineAt.Equal(assignments[j].DeadlineAt) {
			return assignments[i].DeadlineAt.Before(assignments[j].DeadlineAt)
		}
		return assignments[i].ID < assignments[j].ID
	})

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProductID)
	cal.SetXWRCalName("Дедлайны")

	for _, a := range assignments {
		event := cal.AddEvent(fmt.Sprintf("assignment-%d@%s", a.ID, calendarUIDDomain))
		event.SetDtStampTime(now)
		event.SetStartAt(a.DeadlineAt)
		event.SetEndAt(a.DeadlineAt)
		courseName := ""
		if a.Course != nil {
			courseName = a.Course.Name
		}
		if courseName != "" {
			event.SetSummary(fmt.Sprintf("%s: %s", courseName, a.Title))
		} else {
			event.SetSummary(a.Title)
		}
		event.SetDescription(fmt.Sprintf("Срок сдачи задания «%s»", a.Title))
	}

	filename := fmt.Sprintf("deadlines_%d.ics", userID)
	return []byte(cal.Serialize()), filename, nil
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
