package mail

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"cscenter/backend/config"
)

func TestNewSender_Console(t *testing.T) {
	s := NewSender(&config.MailConfig{Provider: "console"}, zap.NewNop())
	if _, ok := s.(*consoleSender); !ok {
		t.Fatalf("期望 consoleSender，实际=%T", s)
	}
	if err := s.Send(context.Background(), &Message{To: []string{"a@b.c"}, Template: "t"}); err != nil {
		t.Errorf("console 发送不应失败: %v", err)
	}
}

func TestSendgridPrepare(t *testing.T) {
	s := NewSender(&config.MailConfig{
		Provider:       "sendgrid",
		SendGridAPIKey: "key",
		FromName:       "CS центр",
		FromEmail:      "info@example.org",
	}, zap.NewNop()).(*sendgridSender)

	m := s.prepare(&Message{
		To:       []string{"student@example.org"},
		Template: "d-123",
		Context:  map[string]interface{}{"FIRST_NAME": "Иван"},
	})

	if m.TemplateID != "d-123" {
		t.Errorf("期望 TemplateID=d-123，实际=%s", m.TemplateID)
	}
	if len(m.Personalizations) != 1 || len(m.Personalizations[0].To) != 1 {
		t.Fatalf("期望 1 个收件人")
	}
	if m.Personalizations[0].DynamicTemplateData["FIRST_NAME"] != "Иван" {
		t.Errorf("模板变量未写入: %v", m.Personalizations[0].DynamicTemplateData)
	}
	if m.From.Address != "info@example.org" {
		t.Errorf("期望发件人 info@example.org，实际=%s", m.From.Address)
	}
}
