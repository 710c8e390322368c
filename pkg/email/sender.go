package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

type Message struct {
	Subject string
	HTML    string
	To      []string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SendgridSender struct {
	apiKey string
	host   string
	from   *mail.Email
	logg   *logger.Logger
}

// NewSender returns a SendGrid sender, or a LogSender when no API key is set.
func NewSender(cfg config.SendgridConfig, logg *logger.Logger) Sender {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return &LogSender{logg: logg}
	}
	return NewSendgridSender(cfg, sendgridHost, logg)
}

func NewSendgridSender(cfg config.SendgridConfig, host string, logg *logger.Logger) *SendgridSender {
	return &SendgridSender{
		apiKey: cfg.APIKey,
		host:   strings.TrimRight(host, "/"),
		from:   mail.NewEmail("", cfg.DefaultFrom),
		logg:   logg,
	}
}

func (s *SendgridSender) Send(ctx context.Context, msg Message) error {
	recipients := dedupe(msg.To)
	if len(recipients) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "email requires at least one recipient")
	}

	m := mail.NewV3Mail()
	m.SetFrom(s.from)
	m.Subject = msg.Subject
	p := mail.NewPersonalization()
	for _, to := range recipients {
		p.AddTos(mail.NewEmail("", to))
	}
	m.AddPersonalizations(p)
	m.AddContent(mail.NewContent("text/html", msg.HTML))

	req := sendgrid.GetRequest(s.apiKey, sendgridEndpoint, s.host)
	req.Method = "POST"
	req.Body = mail.GetRequestBody(m)

	resp, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send email")
	}
	if resp.StatusCode >= 300 {
		return pkgerrors.Wrap(pkgerrors.CodeDependency,
			fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, resp.Body),
			"send email")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"email_subject":    msg.Subject,
			"email_recipients": len(recipients),
		}), "email sent")
	}
	return nil
}

// LogSender only logs. Used when SendGrid is not configured.
type LogSender struct {
	logg *logger.Logger
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if len(dedupe(msg.To)) == 0 {
		return errors.New("email requires at least one recipient")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"email_subject": msg.Subject,
			"email_to":      strings.Join(msg.To, ","),
		}), "email delivery skipped: sendgrid not configured")
	}
	return nil
}

func dedupe(addrs []string) []string {
	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		key := strings.ToLower(a)
		if a == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}
