package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cscenter/backend/internal/dto"
	"cscenter/backend/internal/model"
	"cscenter/backend/internal/repository"
	pkgredis "cscenter/backend/pkg/redis"
	"cscenter/backend/pkg/storage"
)

// ── 个人作业模块业务错误 ──

var (
	ErrStudentAssignmentNotFound = errors.New("个人作业不存在")
	ErrSubmissionEmpty           = errors.New("请填写内容或上传文件")
	ErrScoreOutOfRange           = errors.New("分数超出允许范围")
	ErrStudentLeftCourse         = errors.New("学生已退出课程")
	ErrAttachmentNotFound        = errors.New("附件不存在")
)

// 最近一次活动类型，写入 meta.stats.activity.code
const (
	ActivitySolution       = "solution"
	ActivityStudentComment = "student_comment"
	ActivityTeacherComment = "teacher_comment"
)

// Attachment 上传的附件
type Attachment struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// SubmissionInput 新建解答或评论的输入
type SubmissionInput struct {
	StudentAssignmentID int64
	AuthorID            int64
	Text                string
	ExecutionTime       *time.Duration
	Attachment          *Attachment
}

// PersonalAssignmentService 个人作业业务接口
type PersonalAssignmentService interface {
	Get(ctx context.Context, studentAssignmentID int64) (*dto.StudentAssignmentResponse, error)
	UpdateStats(ctx context.Context, studentAssignmentID int64) error

	CreateSolution(ctx context.Context, in *SubmissionInput) (*model.AssignmentComment, error)
	CreateComment(ctx context.Context, in *SubmissionInput, isDraft bool) (*model.AssignmentComment, error)
	GetDraftComment(ctx context.Context, userID, studentAssignmentID int64) (*model.AssignmentComment, error)
	GetDraftSolution(ctx context.Context, userID, studentAssignmentID int64) (*model.AssignmentComment, error)
	OpenAttachment(ctx context.Context, studentAssignmentID, commentID int64) (io.ReadCloser, string, error)

	UpdateScore(ctx context.Context, studentAssignmentID, changedBy int64, score *float64, source string) (*model.StudentAssignment, error)
	UpdateDerivableFields(ctx context.Context, sa *model.StudentAssignment, c *model.AssignmentComment) error
	ResolveAssignees(ctx context.Context, sa *model.StudentAssignment) ([]int64, error)
	MaybeSetAssignee(ctx context.Context, sa *model.StudentAssignment, submission *model.AssignmentComment) error
}

type personalAssignmentService struct {
	repo    *repository.Repository
	storage storage.Storage
	queue   JobQueue
	logger  *zap.Logger
}

// NewPersonalAssignmentService 创建 PersonalAssignmentService 实例
func NewPersonalAssignmentService(repo *repository.Repository, store storage.Storage, queue JobQueue, logger *zap.Logger) PersonalAssignmentService {
	return &personalAssignmentService{repo: repo, storage: store, queue: queue, logger: logger}
}

func (s *personalAssignmentService) load(ctx context.Context, id int64) (*model.StudentAssignment, error) {
	sa, err := s.repo.StudentAssignment.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentAssignmentNotFound
		}
		s.logger.Error("查询个人作业失败", zap.Int64("student_assignment_id", id), zap.Error(err))
		return nil, err
	}
	return sa, nil
}

// ────────────────────── Get ──────────────────────

func (s *personalAssignmentService) Get(ctx context.Context, studentAssignmentID int64) (*dto.StudentAssignmentResponse, error) {
	sa, err := s.load(ctx, studentAssignmentID)
	if err != nil {
		return nil, err
	}
	submissions, err := s.repo.Comment.ListPublished(ctx, sa.ID)
	if err != nil {
		s.logger.Error("查询提交记录失败", zap.Int64("student_assignment_id", sa.ID), zap.Error(err))
		return nil, err
	}

	resp := &dto.StudentAssignmentResponse{
		ID:                    sa.ID,
		AssignmentID:          sa.AssignmentID,
		StudentID:             sa.StudentID,
		StudentName:           sa.Student.FullName(),
		Score:                 sa.Score,
		AssigneeID:            sa.AssigneeID,
		FirstStudentCommentAt: sa.FirstStudentCommentAt,
		LastCommentFrom:       sa.LastCommentFrom,
		Submissions:           make([]dto.SubmissionResponse, 0, len(submissions)),
	}
	if sa.Assignment != nil {
		resp.AssignmentTitle = sa.Assignment.Title
		resp.MaximumScore = sa.Assignment.MaximumScore
	}
	if stats, ok := sa.Meta["stats"].(map[string]interface{}); ok {
		resp.Stats = stats
	}
	for i := range submissions {
		resp.Submissions = append(resp.Submissions, ToSubmissionResponse(&submissions[i]))
	}
	return resp, nil
}

// ────────────────────── UpdateStats ──────────────────────

// UpdateStats 根据最近一次已发布的提交重算 meta.stats（整体替换）
// 没有已发布的提交时不做任何修改
func (s *personalAssignmentService) UpdateStats(ctx context.Context, studentAssignmentID int64) error {
	latest, err := s.repo.Comment.GetLatestPublished(ctx, studentAssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		s.logger.Error("查询最近提交失败", zap.Int64("student_assignment_id", studentAssignmentID), zap.Error(err))
		return err
	}

	return inTx(ctx, s.repo, func(txRepo *repository.Repository) error {
		sa, err := txRepo.StudentAssignment.GetByIDForUpdate(ctx, studentAssignmentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStudentAssignmentNotFound
			}
			return err
		}

		comments, err := txRepo.Comment.CountPublished(ctx, sa.ID, model.SubmissionTypeComment)
		if err != nil {
			return err
		}
		solutions, err := txRepo.Comment.CountPublished(ctx, sa.ID, model.SubmissionTypeSolution)
		if err != nil {
			return err
		}

		var code string
		switch {
		case latest.Type == model.SubmissionTypeSolution:
			code = ActivitySolution
		case latest.AuthorID == sa.StudentID:
			code = ActivityStudentComment
		default:
			code = ActivityTeacherComment
		}

		stats := map[string]interface{}{
			"comments": comments + solutions,
			"activity": map[string]interface{}{
				"code": code,
				"dt":   latest.CreatedAt.UTC().Truncate(time.Second).Format(time.RFC3339),
			},
		}
		// 0 值不存储
		if solutions > 0 {
			stats["solutions"] = solutions
		}

		meta := sa.Meta
		if meta == nil {
			meta = datatypes.JSONMap{}
		}
		meta["stats"] = stats
		return txRepo.StudentAssignment.UpdateMeta(ctx, sa.ID, meta)
	})
}

// ────────────────────── CreateSolution ──────────────────────

func (s *personalAssignmentService) CreateSolution(ctx context.Context, in *SubmissionInput) (*model.AssignmentComment, error) {
	if in.Text == "" && in.Attachment == nil {
		return nil, ErrSubmissionEmpty
	}
	sa, err := s.load(ctx, in.StudentAssignmentID)
	if err != nil {
		return nil, err
	}

	key, err := s.storeAttachment(ctx, sa.ID, in.Attachment)
	if err != nil {
		return nil, err
	}

	solution := &model.AssignmentComment{
		StudentAssignmentID: sa.ID,
		AuthorID:            in.AuthorID,
		Type:                model.SubmissionTypeSolution,
		IsPublished:         true,
		Text:                in.Text,
		AttachmentKey:       key,
		ExecutionTime:       in.ExecutionTime,
		CreatedAt:           time.Now().UTC(),
	}
	if err := s.repo.Comment.Create(ctx, solution); err != nil {
		s.logger.Error("保存解答失败", zap.Int64("student_assignment_id", sa.ID), zap.Error(err))
		return nil, err
	}

	s.afterPublish(ctx, sa, solution)
	return solution, nil
}

// ────────────────────── CreateComment ──────────────────────

// CreateComment 新建评论；作者已有草稿时复用草稿
func (s *personalAssignmentService) CreateComment(ctx context.Context, in *SubmissionInput, isDraft bool) (*model.AssignmentComment, error) {
	if in.Text == "" && in.Attachment == nil {
		return nil, ErrSubmissionEmpty
	}
	sa, err := s.load(ctx, in.StudentAssignmentID)
	if err != nil {
		return nil, err
	}

	comment, err := s.GetDraftComment(ctx, in.AuthorID, sa.ID)
	if err != nil {
		return nil, err
	}
	isNew := comment == nil
	if isNew {
		comment = &model.AssignmentComment{
			StudentAssignmentID: sa.ID,
			AuthorID:            in.AuthorID,
			Type:                model.SubmissionTypeComment,
		}
	}

	key, err := s.storeAttachment(ctx, sa.ID, in.Attachment)
	if err != nil {
		return nil, err
	}
	comment.IsPublished = !isDraft
	comment.Text = in.Text
	comment.AttachmentKey = key
	comment.CreatedAt = time.Now().UTC()

	if isNew {
		err = s.repo.Comment.Create(ctx, comment)
	} else {
		err = s.repo.Comment.Update(ctx, comment)
	}
	if err != nil {
		s.logger.Error("保存评论失败", zap.Int64("student_assignment_id", sa.ID), zap.Error(err))
		return nil, err
	}

	if comment.IsPublished {
		s.afterPublish(ctx, sa, comment)
	}
	return comment, nil
}

// afterPublish 已发布提交的后续处理，失败只记录日志
func (s *personalAssignmentService) afterPublish(ctx context.Context, sa *model.StudentAssignment, c *model.AssignmentComment) {
	if err := s.UpdateDerivableFields(ctx, sa, c); err != nil {
		s.logger.Error("更新个人作业派生字段失败", zap.Int64("student_assignment_id", sa.ID), zap.Error(err))
	}
	if err := s.MaybeSetAssignee(ctx, sa, c); err != nil {
		s.logger.Error("自动分配负责教师失败", zap.Int64("student_assignment_id", sa.ID), zap.Error(err))
	}
	if s.queue == nil {
		return
	}
	args := StudentAssignmentStatsArgs{StudentAssignmentID: sa.ID}
	if _, err := s.queue.Enqueue(ctx, pkgredis.QueueDefault, JobUpdateStudentAssignmentStats, args); err != nil {
		s.logger.Error("统计任务入队失败", zap.Int64("student_assignment_id", sa.ID), zap.Error(err))
	}
}

func (s *personalAssignmentService) storeAttachment(ctx context.Context, saID int64, a *Attachment) (string, error) {
	if a == nil {
		return "", nil
	}
	key := fmt.Sprintf("assignments/%d/%s/%s", saID, uuid.New().String(), path.Base(a.Name))
	if err := s.storage.Put(ctx, key, a.Body, a.ContentType); err != nil {
		s.logger.Error("保存附件失败", zap.String("key", key), zap.Error(err))
		return "", err
	}
	return key, nil
}

// ────────────────────── Drafts ──────────────────────

func (s *personalAssignmentService) GetDraftComment(ctx context.Context, userID, studentAssignmentID int64) (*model.AssignmentComment, error) {
	return s.getDraft(ctx, userID, studentAssignmentID, model.SubmissionTypeComment)
}

func (s *personalAssignmentService) GetDraftSolution(ctx context.Context, userID, studentAssignmentID int64) (*model.AssignmentComment, error) {
	return s.getDraft(ctx, userID, studentAssignmentID, model.SubmissionTypeSolution)
}

// getDraft 没有草稿时返回 (nil, nil)
func (s *personalAssignmentService) getDraft(ctx context.Context, userID, saID int64, submissionType string) (*model.AssignmentComment, error) {
	draft, err := s.repo.Comment.GetDraft(ctx, saID, userID, submissionType)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		s.logger.Error("查询草稿失败", zap.Int64("student_assignment_id", saID), zap.Error(err))
		return nil, err
	}
	return draft, nil
}

// ────────────────────── OpenAttachment ──────────────────────

func (s *personalAssignmentService) OpenAttachment(ctx context.Context, studentAssignmentID, commentID int64) (io.ReadCloser, string, error) {
	c, err := s.repo.Comment.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrAttachmentNotFound
		}
		return nil, "", err
	}
	if c.StudentAssignmentID != studentAssignmentID || c.AttachmentKey == "" || !c.IsPublished {
		return nil, "", ErrAttachmentNotFound
	}
	r, err := s.storage.Get(ctx, c.AttachmentKey)
	if err != nil {
		s.logger.Error("读取附件失败", zap.String("key", c.AttachmentKey), zap.Error(err))
		return nil, "", err
	}
	return r, path.Base(c.AttachmentKey), nil
}

// ────────────────────── UpdateScore ──────────────────────

// UpdateScore 修改分数并写审计日志；score 为 nil 表示清除分数
func (s *personalAssignmentService) UpdateScore(ctx context.Context, studentAssignmentID, changedBy int64, score *float64, source string) (*model.StudentAssignment, error) {
	sa, err := s.load(ctx, studentAssignmentID)
	if err != nil {
		return nil, err
	}
	if score != nil && (*score < 0 || (sa.Assignment != nil && *score > float64(sa.Assignment.MaximumScore))) {
		return nil, ErrScoreOutOfRange
	}

	err = inTx(ctx, s.repo, func(txRepo *repository.Repository) error {
		locked, err := txRepo.StudentAssignment.GetByIDForUpdate(ctx, sa.ID)
		if err != nil {
			return err
		}
		if err := txRepo.StudentAssignment.UpdateScore(ctx, sa.ID, score); err != nil {
			return err
		}
		return txRepo.StudentAssignment.CreateAuditLog(ctx, &model.AssignmentScoreAuditLog{
			StudentAssignmentID: sa.ID,
			ChangedBy:           changedBy,
			ScoreOld:            locked.Score,
			ScoreNew:            score,
			Source:              source,
		})
	})
	if err != nil {
		s.logger.Error("修改个人作业分数失败", zap.Int64("student_assignment_id", sa.ID), zap.Error(err))
		return nil, err
	}

	sa.Score = score
	return sa, nil
}

// ────────────────────── UpdateDerivableFields ──────────────────────

func (s *personalAssignmentService) UpdateDerivableFields(ctx context.Context, sa *model.StudentAssignment, c *model.AssignmentComment) error {
	if c.ID == 0 {
		return nil
	}
	now := time.Now()
	fields := map[string]interface{}{"modified_at": now}

	if c.AuthorID == sa.StudentID {
		fields["last_comment_from"] = model.CommentFromStudent
		// 学生的第一次已发布提交
		n, err := s.repo.Comment.CountPublishedByAuthor(ctx, sa.ID, c.AuthorID)
		if err != nil {
			return err
		}
		if n <= 1 {
			fields["first_student_comment_at"] = c.CreatedAt
		}
	} else {
		fields["last_comment_from"] = model.CommentFromTeacher
	}

	if err := s.repo.StudentAssignment.UpdateFields(ctx, sa.ID, fields); err != nil {
		return err
	}

	sa.ModifiedAt = now
	sa.LastCommentFrom = fields["last_comment_from"].(int)
	if t, ok := fields["first_student_comment_at"].(time.Time); ok {
		sa.FirstStudentCommentAt = &t
	}
	return nil
}

// ────────────────────── Assignees ──────────────────────

// ResolveAssignees 返回个人作业的候选负责人（course_teachers.id）
// 已指定负责人时只返回该负责人；否则取学生所在分组针对该作业的负责人，没有则取分组默认负责人
func (s *personalAssignmentService) ResolveAssignees(ctx context.Context, sa *model.StudentAssignment) ([]int64, error) {
	if sa.AssigneeID != nil {
		return []int64{*sa.AssigneeID}, nil
	}

	assignment := sa.Assignment
	if assignment == nil {
		a, err := s.repo.Assignment.GetByID(ctx, sa.AssignmentID)
		if err != nil {
			return nil, err
		}
		assignment = a
	}

	enrollment, err := s.repo.Enrollment.GetActive(ctx, sa.StudentID, assignment.CourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Info("学生已退出课程",
				zap.Int64("student_id", sa.StudentID),
				zap.Int64("course_id", assignment.CourseID),
			)
			return nil, ErrStudentLeftCourse
		}
		return nil, err
	}
	if enrollment.StudentGroupID == nil {
		return nil, nil
	}

	assignees, err := s.repo.Course.ListGroupAssignees(ctx, *enrollment.StudentGroupID, &assignment.ID)
	if err != nil {
		return nil, err
	}
	if len(assignees) == 0 {
		assignees, err = s.repo.Course.ListGroupAssignees(ctx, *enrollment.StudentGroupID, nil)
		if err != nil {
			return nil, err
		}
	}

	ids := make([]int64, 0, len(assignees))
	for _, a := range assignees {
		ids = append(ids, a.CourseTeacherID)
	}
	return ids, nil
}

// MaybeSetAssignee 学生有活动时按需自动分配负责教师
// 已有负责人不覆盖；多个候选人时留空；学生已退课时保留触发标记
func (s *personalAssignmentService) MaybeSetAssignee(ctx context.Context, sa *model.StudentAssignment, submission *model.AssignmentComment) error {
	if submission.AuthorID != sa.StudentID || !sa.TriggerAutoAssign {
		return nil
	}

	assignee := sa.AssigneeID
	if assignee == nil {
		candidates, err := s.ResolveAssignees(ctx, sa)
		if errors.Is(err, ErrStudentLeftCourse) {
			return nil
		}
		if err != nil {
			return err
		}
		if len(candidates) == 1 {
			assignee = &candidates[0]
		}
	}

	if err := s.repo.StudentAssignment.SetAssignee(ctx, sa.ID, assignee, false); err != nil {
		return err
	}
	sa.AssigneeID = assignee
	sa.TriggerAutoAssign = false
	return nil
}

// ── DTO 转换 ──

// ToSubmissionResponse 提交记录转为响应
func ToSubmissionResponse(c *model.AssignmentComment) dto.SubmissionResponse {
	resp := dto.SubmissionResponse{
		ID:            c.ID,
		AuthorID:      c.AuthorID,
		Type:          c.Type,
		IsPublished:   c.IsPublished,
		Text:          c.Text,
		HasAttachment: c.AttachmentKey != "",
		CreatedAt:     c.CreatedAt,
	}
	if c.ExecutionTime != nil {
		resp.ExecutionTime = c.ExecutionTime.String()
	}
	return resp
}
