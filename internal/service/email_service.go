package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	apperrors "github.com/yourusername/banking-api/internal/pkg/errors"
)

// EmailService delivers challenge secrets out-of-band. It is best-effort from
// the caller's point of view: the issuer never leaks a delivery failure to
// the external response.
type EmailService interface {
	SendResetLink(ctx context.Context, toEmail, token, idempotencyKey string) error
	SendOtp(ctx context.Context, toEmail, code, idempotencyKey string) error
}

// NoopEmailService is used when email delivery is disabled.
type NoopEmailService struct{}

func (s *NoopEmailService) SendResetLink(ctx context.Context, toEmail, token, idempotencyKey string) error {
	log.Printf("[EmailService] noop send reset link to=%s", toEmail)
	return nil
}

func (s *NoopEmailService) SendOtp(ctx context.Context, toEmail, code, idempotencyKey string) error {
	log.Printf("[EmailService] noop send otp to=%s", toEmail)
	return nil
}

// ResendEmailService sends emails via Resend REST API.
type ResendEmailService struct {
	from         string
	resetBaseURL string
	client       *resend.Client
}

func NewResendEmailService(apiKey, from, resetBaseURL string) (*ResendEmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	if resetBaseURL == "" {
		return nil, fmt.Errorf("reset base url is required")
	}
	return &ResendEmailService{
		from:         from,
		resetBaseURL: strings.TrimRight(resetBaseURL, "/"),
		client:       resend.NewClient(apiKey),
	}, nil
}

func (s *ResendEmailService) SendResetLink(ctx context.Context, toEmail, token, idempotencyKey string) error {
	if toEmail == "" || token == "" {
		return fmt.Errorf("toEmail and token are required")
	}
	link := fmt.Sprintf("%s/reset-password?token=%s", s.resetBaseURL, token)
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: "Reset your password",
		Text:    fmt.Sprintf("Follow this link to reset your password: %s\nThe link expires in 30 minutes. If you did not request a reset, ignore this email.", link),
		Html:    fmt.Sprintf("<p><a href=%q>Reset your password</a></p><p>The link expires in 30 minutes. If you did not request a reset, ignore this email.</p>", link),
	}
	return s.send(ctx, params, idempotencyKey)
}

func (s *ResendEmailService) SendOtp(ctx context.Context, toEmail, code, idempotencyKey string) error {
	if toEmail == "" || code == "" {
		return fmt.Errorf("toEmail and code are required")
	}
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: "Your verification code",
		Text:    fmt.Sprintf("Your verification code is %s. It expires in 5 minutes.", code),
		Html:    fmt.Sprintf("<p>Your verification code is <strong>%s</strong>.</p><p>It expires in 5 minutes.</p>", code),
	}
	return s.send(ctx, params, idempotencyKey)
}

func (s *ResendEmailService) send(ctx context.Context, params *resend.SendEmailRequest, idempotencyKey string) error {
	options := &resend.SendEmailOptions{}
	if strings.TrimSpace(idempotencyKey) != "" {
		options.IdempotencyKey = strings.TrimSpace(idempotencyKey)
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

		return fmt.Errorf("%w: resend send failed: %v", apperrors.ErrDelivery, err)
	}

	return fmt.Errorf("%w: resend send failed after retries: %v", apperrors.ErrDelivery, lastErr)
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
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}
