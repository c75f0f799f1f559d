package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"time"

	"github.com/Dan9191/bank-portal/internal/config"
	"github.com/Dan9191/bank-portal/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// UserLookup resolves the mailbox of a notification's recipient
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

// mailTimeout bounds a single SMTP delivery
const mailTimeout = 10 * time.Second

// MailSender delivers notifications via SMTP
type MailSender struct {
	cfg    *config.Config
	users  UserLookup
	logger  *logrus.Logger
	send    sendFunc
	timeout time.Duration
}

// NewMailSender creates a new email channel
func NewMailSender(cfg *config.Config, users UserLookup, logger *logrus.Logger) *MailSender {
	return &MailSender{
		cfg:     cfg,
		users:   users,
		logger:  logger,
		timeout: mailTimeout,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

func (s *MailSender) Name() string { return "email" }

// Deliver mails the notification to its owner
func (s *MailSender) Deliver(ctx context.Context, n *models.Notification) error {
	user, err := s.users.GetUser(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient %d: %w", n.UserID, err)
	}

	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{user.Email}
	e.Subject = n.Title

	name := user.FullName
	if name == "" {
		name = user.Email
	}
	body := fmt.Sprintf("Dear %s,\n\n%s\n", name, n.Message)
	body += fmt.Sprintf("Time: %s\n", n.CreatedAt.Format("2006-01-02 15:04:05"))
	body += "\nBest regards,\nBank Service"
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	if err := s.sendWithin(ctx, e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", user.Email, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", user.Email, e.Subject)
	return nil
}

// sendWithin gives up on the SMTP exchange once ctx is done or the timeout
// passes. The exchange itself is left to finish in the background.
func (s *MailSender) sendWithin(ctx context.Context, e *email.Email, addr string, auth smtp.Auth) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- s.send(e, addr, auth) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
