package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/recipetube/backend/internal/domain"
)

// Kind tells the mail endpoint which template to render
type Kind string

const (
	KindVerification  Kind = "verification"
	KindPasswordReset Kind = "password_reset"
)

// Link paths on the web client
const (
	verifyPath = "/verify-email"
	resetPath  = "/reset-password"
)

// Link builds the URL a recipient opens to use the token
func Link(appBaseURL, path, token string) string {
	return strings.TrimRight(appBaseURL, "/") + path + "?token=" + url.QueryEscape(token)
}

// LogMailer writes the links to the log instead of sending mail (development)
type LogMailer struct {
	appBaseURL string
	log        zerolog.Logger
}

// NewLogMailer creates a mailer that only logs
func NewLogMailer(appBaseURL string, log zerolog.Logger) *LogMailer {
	return &LogMailer{
		appBaseURL: appBaseURL,
		log:        log.With().Str("component", "mail").Logger(),
	}
}

// SendVerification logs the verification link
func (m *LogMailer) SendVerification(ctx context.Context, email, token string) error {
	m.log.Info().Str("email", email).Str("link", Link(m.appBaseURL, verifyPath, token)).Msg("verification mail")
	return nil
}

// SendPasswordReset logs the reset link
func (m *LogMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	m.log.Info().Str("email", email).Str("link", Link(m.appBaseURL, resetPath, token)).Msg("password reset mail")
	return nil
}

// WebhookConfig points at the serverless function that delivers mail
type WebhookConfig struct {
	URL        string
	Token      string
	AppBaseURL string
	Timeout    time.Duration
}

// webhookPayload is the body posted to the mail endpoint
type webhookPayload struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	RedirectURL string `json:"redirectUrl"`
	Kind        Kind   `json:"kind"`
}

// WebhookMailer posts mail requests to an HTTP endpoint
type WebhookMailer struct {
	httpClient *http.Client
	cfg        WebhookConfig
	log        zerolog.Logger
}

// NewWebhookMailer creates a webhook mailer
func NewWebhookMailer(cfg WebhookConfig, log zerolog.Logger) *WebhookMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &WebhookMailer{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		log:        log.With().Str("component", "mail").Logger(),
	}
}

// SendVerification asks the endpoint to send the verification mail
func (m *WebhookMailer) SendVerification(ctx context.Context, email, token string) error {
	return m.send(ctx, webhookPayload{
		Email:       email,
		Token:       token,
		RedirectURL: strings.TrimRight(m.cfg.AppBaseURL, "/") + verifyPath,
		Kind:        KindVerification,
	})
}

// SendPasswordReset asks the endpoint to send the password reset mail
func (m *WebhookMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	return m.send(ctx, webhookPayload{
		Email:       email,
		Token:       token,
		RedirectURL: strings.TrimRight(m.cfg.AppBaseURL, "/") + resetPath,
		Kind:        KindPasswordReset,
	})
}

func (m *WebhookMailer) send(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode mail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if m.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+m.cfg.Token)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: mail webhook: %v", domain.ErrExternalService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		m.log.Warn().Int("status", resp.StatusCode).Str("kind", string(payload.Kind)).Str("body", string(msg)).Msg("mail webhook rejected request")
		return fmt.Errorf("%w: mail webhook status %d", domain.ErrExternalService, resp.StatusCode)
	}

	m.log.Debug().Str("kind", string(payload.Kind)).Str("email", payload.Email).Msg("mail request accepted")
	return nil
}
