package resend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

type ResendConfig struct {
	ApiKey string
}

type HealthStatus struct {
	Connected bool          `json:"connected"`
	ApiKey    string        `json:"api_key"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
}

type EmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Html    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

type EmailResponse struct {
	ID string `json:"id"`
}

// ResendService is the outbound email surface of the notification gateway.
type ResendService interface {
	HealthCheck(ctx context.Context) HealthStatus
	SendEmail(ctx context.Context, request *EmailRequest) (*EmailResponse, error)
	Close() error
}

type ResendClient struct {
	client *resend.Client
	config ResendConfig
}

func NewClient(config ResendConfig) (*ResendClient, error) {
	if config.ApiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	return &ResendClient{
		client: resend.NewClient(config.ApiKey),
		config: config,
	}, nil
}

func (r *ResendClient) HealthCheck(ctx context.Context) HealthStatus {
	start := time.Now()
	status := HealthStatus{
		ApiKey: r.maskApiKey(r.config.ApiKey),
	}

	status.Connected = r.config.ApiKey != ""
	status.Latency = time.Since(start)
	if !status.Connected {
		status.Error = "API key not configured"
	}

	return status
}

func (r *ResendClient) SendEmail(ctx context.Context, request *EmailRequest) (*EmailResponse, error) {
	if err := r.validateEmailRequest(request); err != nil {
		return nil, fmt.Errorf("invalid email request: %w", err)
	}

	resendRequest := &resend.SendEmailRequest{
		From:    request.From,
		To:      request.To,
		Subject: request.Subject,
		Html:    request.Html,
		Text:    request.Text,
	}

	sent, err := r.client.Emails.SendWithContext(ctx, resendRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	return &EmailResponse{ID: sent.Id}, nil
}

func (r *ResendClient) Close() error {
	return nil
}

func (r *ResendClient) validateEmailRequest(request *EmailRequest) error {
	if request == nil {
		return fmt.Errorf("request cannot be nil")
	}

	if request.From == "" {
		return fmt.Errorf("from address is required")
	}

	if len(request.To) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}

	for _, to := range request.To {
		if !strings.Contains(to, "@") {
			return fmt.Errorf("invalid recipient address: %s", to)
		}
	}

	if request.Subject == "" {
		return fmt.Errorf("subject is required")
	}

	if request.Html == "" && request.Text == "" {
		return fmt.Errorf("either html or text body is required")
	}

	return nil
}

func (r *ResendClient) maskApiKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:4] + "****" + apiKey[len(apiKey)-4:]
}
