package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/ignatzorin/smartque-backend/internal/config"
	"github.com/ignatzorin/smartque-backend/internal/logger"
)

// Sender доставляет HTML письмо одному адресату.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// New выбирает реализацию по конфигурации: SMTP при включённой отправке, иначе консоль.
func New(cfg config.EmailConfig) Sender {
	if cfg.Enabled {
		return NewSMTPSender(cfg)
	}
	return NewConsoleSender()
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender отправляет письма через SMTP сервер.
type SMTPSender struct {
	dialer  dialer
	from    string
	timeout time.Duration
}

// NewSMTPSender создаёт отправителя с параметрами SMTP из конфигурации.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:    cfg.From,
		timeout: cfg.SendTimeout,
	}
}

// Send отправляет письмо. Ожидание ограничено таймаутом отправки и контекстом вызова.
func (s *SMTPSender) Send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mail: отправка отменена: %w", err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Log.WithFields(logrus.Fields{"to": to, "subject": subject}).
				WithError(err).Warn("mail: не удалось отправить письмо")
			return fmt.Errorf("mail: не удалось отправить письмо: %w", err)
		}
		logger.Log.WithField("to", to).Info("mail: письмо отправлено")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mail: превышено время отправки: %w", ctx.Err())
	}
}

// ConsoleSender только логирует письма. Используется в разработке и без SMTP.
type ConsoleSender struct{}

// NewConsoleSender создаёт консольного отправителя.
func NewConsoleSender() *ConsoleSender {
	return &ConsoleSender{}
}

// Send пишет письмо целиком в лог и всегда завершается успешно.
// Без SMTP лог остаётся единственным каналом, через который можно получить код или ссылку.
func (s *ConsoleSender) Send(_ context.Context, to, subject, html string) error {
	logger.Log.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
		"body":    html,
	}).Info("mail: отправка отключена, письмо только залогировано")
	return nil
}
