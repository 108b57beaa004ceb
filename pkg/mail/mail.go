// Package mail 邮件发送：SendGrid 动态模板或控制台输出
package mail

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"cscenter/backend/config"
)

// Message 一封按模板渲染的邮件
type Message struct {
	To       []string
	Template string                 // SendGrid 动态模板 ID
	Context  map[string]interface{} // 模板变量
}

// Sender 邮件发送接口
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// NewSender 按配置选择发送实现
func NewSender(cfg *config.MailConfig, logger *zap.Logger) Sender {
	if cfg.Provider == "sendgrid" {
		return &sendgridSender{
			client: sendgrid.NewSendClient(cfg.SendGridAPIKey),
			from:   sgmail.NewEmail(cfg.FromName, cfg.FromEmail),
			logger: logger,
		}
	}
	return &consoleSender{logger: logger}
}

// ── SendGrid ──

type sendgridSender struct {
	client *sendgrid.Client
	from   *sgmail.Email
	logger *zap.Logger
}

func (s *sendgridSender) prepare(msg *Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail("", to))
	}
	for k, v := range msg.Context {
		p.SetDynamicTemplateData(k, v)
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.SetTemplateID(msg.Template)
	m.AddPersonalizations(p)
	return m
}

func (s *sendgridSender) Send(ctx context.Context, msg *Message) error {
	if len(msg.To) == 0 {
		return nil
	}
	res, err := s.client.SendWithContext(ctx, s.prepare(msg))
	if err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		s.logger.Error("SendGrid 返回错误",
			zap.Int("status", res.StatusCode),
			zap.String("body", res.Body),
			zap.String("template", msg.Template),
		)
		return fmt.Errorf("发送邮件失败: status %d", res.StatusCode)
	}
	return nil
}

// ── 控制台（开发环境）──

type consoleSender struct {
	logger *zap.Logger
}

func (s *consoleSender) Send(_ context.Context, msg *Message) error {
	s.logger.Info("邮件（console）",
		zap.Strings("to", msg.To),
		zap.String("template", msg.Template),
		zap.Any("context", msg.Context),
	)
	return nil
}
