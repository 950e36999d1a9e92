package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/garyjia/order-resolution/internal/application/port"
	"github.com/garyjia/order-resolution/internal/domain/entity"
)

// Templates lists every notification template shipped with the service
var Templates = []string{
	entity.TemplateRefundReceived,
	entity.TemplateRefundApproved,
	entity.TemplateRefundDenied,
	entity.TemplateSellerFaultDebit,
	entity.TemplateShipmentFaultCredit,
}

// SMTPConfig holds SMTP delivery settings
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	TLSPolicy string // mandatory, opportunistic or none
	Timeout   time.Duration
}

// EmailSender delivers notifications over SMTP
type EmailSender struct {
	cfg      SMTPConfig
	renderer *Renderer
	logger   *zap.Logger
}

// NewEmailSender creates an SMTP sender
func NewEmailSender(cfg SMTPConfig, renderer *Renderer, logger *zap.Logger) *EmailSender {
	return &EmailSender{cfg: cfg, renderer: renderer, logger: logger}
}

// Send renders the template and delivers it in one SMTP session
func (s *EmailSender) Send(ctx context.Context, recipient, subject, template string, data map[string]interface{}) error {
	body, err := s.renderer.Render(template, subject, data)
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("%w: invalid sender %q: %v", port.ErrPermanentDelivery, s.cfg.From, err)
	}
	if err := msg.To(recipient); err != nil {
		return fmt.Errorf("%w: invalid recipient %q: %v", port.ErrPermanentDelivery, recipient, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body)

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		s.logger.Error("Failed to send email",
			zap.String("recipient", recipient),
			zap.String("template", template),
			zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("Email sent", zap.String("recipient", recipient), zap.String("template", template))
	return nil
}

func (s *EmailSender) clientOptions() []mail.Option {
	opts := []mail.Option{mail.WithTLSPolicy(tlsPolicy(s.cfg.TLSPolicy))}
	if s.cfg.Port > 0 {
		opts = append(opts, mail.WithPort(s.cfg.Port))
	}
	if s.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(s.cfg.Timeout))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

func tlsPolicy(name string) mail.TLSPolicy {
	switch strings.ToLower(name) {
	case "mandatory":
		return mail.TLSMandatory
	case "none":
		return mail.NoTLS
	default:
		return mail.TLSOpportunistic
	}
}

// LogSender renders notifications and only logs them. It is used when no SMTP host is configured.
type LogSender struct {
	renderer *Renderer
	logger   *zap.Logger
}

// NewLogSender creates a sender that logs instead of delivering
func NewLogSender(renderer *Renderer, logger *zap.Logger) *LogSender {
	return &LogSender{renderer: renderer, logger: logger}
}

// Send renders the template and logs the result
func (s *LogSender) Send(ctx context.Context, recipient, subject, template string, data map[string]interface{}) error {
	body, err := s.renderer.Render(template, subject, data)
	if err != nil {
		return err
	}
	s.logger.Info("Notification delivered to log",
		zap.String("recipient", recipient),
		zap.String("subject", subject),
		zap.String("template", template),
		zap.Int("body_size", len(body)))
	return nil
}

var (
	_ port.NotificationSender = (*EmailSender)(nil)
	_ port.NotificationSender = (*LogSender)(nil)
)
