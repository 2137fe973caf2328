package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// EmailService отправляет транзакционные письма
type EmailService interface {
	SendChallengeCompleted(ctx context.Context, msg ChallengeCompletedEmail) error
}

// ChallengeCompletedEmail - данные письма о завершении челленджа
type ChallengeCompletedEmail struct {
	ToEmail        string
	Username       string
	ChallengeID    uint
	ChallengeTitle string
	XPAwarded      int
	NewLevel       int
	LeveledUp      bool
}

// NoopEmailService используется, когда отправка писем не настроена
type NoopEmailService struct{}

func (s *NoopEmailService) SendChallengeCompleted(ctx context.Context, msg ChallengeCompletedEmail) error {
	log.Printf("[EmailService] noop send challenge completed to=%s challenge=%d", msg.ToEmail, msg.ChallengeID)
	return nil
}

// ResendEmailService отправляет письма через Resend REST API
type ResendEmailService struct {
	from   string
	client *resend.Client
}

func NewResendEmailService(apiKey, from string) (*ResendEmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	return &ResendEmailService{
		from:   from,
		client: resend.NewClient(apiKey),
	}, nil
}

func (s *ResendEmailService) SendChallengeCompleted(ctx context.Context, msg ChallengeCompletedEmail) error {
	if msg.ToEmail == "" {
		return fmt.Errorf("toEmail is required")
	}

	text, body := renderChallengeCompleted(msg)
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.ToEmail},
		Subject: fmt.Sprintf("Challenge completed: %s", msg.ChallengeTitle),
		Text:    text,
		Html:    body,
	}
	// Одно письмо на пару (пользователь, челлендж)
	options := &resend.SendEmailOptions{
		IdempotencyKey: fmt.Sprintf("challenge-completed/%d/%s", msg.ChallengeID, strings.ToLower(msg.ToEmail)),
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := s.client.Emails.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		if wait, ok := resendRetryDelay(err, attempt); ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("resend send failed: %w", err)
	}

	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func renderChallengeCompleted(msg ChallengeCompletedEmail) (string, string) {
	title := html.EscapeString(msg.ChallengeTitle)
	name := html.EscapeString(msg.Username)

	text := fmt.Sprintf("Congratulations, %s! You completed \"%s\" and earned %d XP.", msg.Username, msg.ChallengeTitle, msg.XPAwarded)
	body := fmt.Sprintf("<p>Congratulations, %s!</p><p>You completed <strong>%s</strong> and earned <strong>%d XP</strong>.</p>", name, title, msg.XPAwarded)
	if msg.LeveledUp {
		text += fmt.Sprintf(" You reached level %d.", msg.NewLevel)
		body += fmt.Sprintf("<p>You reached level <strong>%d</strong>.</p>", msg.NewLevel)
	}
	return text, body
}

func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && (netErr.Timeout() || netErr.Temporary()) {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}
