package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/unclebandit/campaignhq-backend/internal/config"
)

// SendGridEmail delivers EMAIL messages through the SendGrid v3 mail/send endpoint.
type SendGridEmail struct {
	APIKey    string
	BaseURL   string
	FromEmail string
	FromName  string
	Client    *http.Client
}

func NewSendGridEmail(cfg config.EmailConfig) *SendGridEmail {
	return &SendGridEmail{
		APIKey:    cfg.SendGridAPIKey,
		BaseURL:   strings.TrimRight(cfg.SendGridBaseURL, "/"),
		FromEmail: cfg.FromEmail,
		FromName:  cfg.FromName,
		Client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *SendGridEmail) Name() string { return "sendgrid" }

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgPersonalization struct {
	To []sgAddress `json:"to"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgMail struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
	CustomArgs       map[string]string   `json:"custom_args,omitempty"`
}

func (s *SendGridEmail) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	if len(req.Recipients) == 0 {
		return SendResult{Status: StatusFailed, Error: "no recipients"}, nil
	}

	to := make([]sgAddress, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		to = append(to, sgAddress{Email: r})
	}
	body, err := json.Marshal(sgMail{
		Personalizations: []sgPersonalization{{To: to}},
		From:             sgAddress{Email: s.FromEmail, Name: s.FromName},
		Subject:          req.Subject,
		Content:          []sgContent{{Type: "text/html", Value: req.Content}},
		CustomArgs:       req.Metadata,
	})
	if err != nil {
		return SendResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return SendResult{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return SendResult{}, fmt.Errorf("sendgrid request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return SendResult{Status: StatusSent, ID: resp.Header.Get("X-Message-Id")}, nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return SendResult{
		Status: StatusFailed,
		Error:  fmt.Sprintf("sendgrid returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))),
	}, nil
}
