package twilio

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

type HealthStatus struct {
	Connected  bool          `json:"connected"`
	AccountSID string        `json:"account_sid"`
	FromNumber string        `json:"from_number"`
	Latency    time.Duration `json:"latency"`
	Error      string        `json:"error,omitempty"`
}

// TwilioService is the outbound SMS surface of the notification gateway.
type TwilioService interface {
	HealthCheck(ctx context.Context) HealthStatus
	SendSMS(ctx context.Context, to string, body string) (string, error)
	Close() error
}

type TwilioClient struct {
	client *twilio.RestClient
	config TwilioConfig
}

func NewClient(config TwilioConfig) (*TwilioClient, error) {
	if config.AccountSID == "" || config.AuthToken == "" {
		return nil, fmt.Errorf("twilio credentials are required")
	}
	if config.FromNumber == "" {
		return nil, fmt.Errorf("twilio sender number is required")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: config.AccountSID,
		Password: config.AuthToken,
	})

	return &TwilioClient{
		client: client,
		config: config,
	}, nil
}

func (t *TwilioClient) HealthCheck(ctx context.Context) HealthStatus {
	start := time.Now()
	status := HealthStatus{
		AccountSID: t.maskAccountSID(t.config.AccountSID),
		FromNumber: t.config.FromNumber,
	}

	status.Connected = t.config.AccountSID != "" && t.config.AuthToken != ""
	status.Latency = time.Since(start)
	if !status.Connected {
		status.Error = "credentials not configured"
	}

	return status
}

// SendSMS pushes one message and returns the provider's message id.
func (t *TwilioClient) SendSMS(ctx context.Context, to string, body string) (string, error) {
	if err := t.validateMessage(to, body); err != nil {
		return "", fmt.Errorf("invalid SMS request: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &api.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.config.FromNumber)
	params.SetBody(body)

	message, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("failed to send SMS: %w", err)
	}

	if message.Sid == nil {
		return "", fmt.Errorf("provider returned no message id")
	}

	return *message.Sid, nil
}

func (t *TwilioClient) Close() error {
	return nil
}

func (t *TwilioClient) validateMessage(to string, body string) error {
	if to == "" {
		return fmt.Errorf("recipient number is required")
	}
	if !strings.HasPrefix(to, "+") {
		return fmt.Errorf("recipient number must be in E.164 format")
	}
	if body == "" {
		return fmt.Errorf("message body is required")
	}

	return nil
}

func (t *TwilioClient) maskAccountSID(sid string) string {
	if len(sid) <= 6 {
		return strings.Repeat("*", len(sid))
	}
	return sid[:2] + strings.Repeat("*", len(sid)-6) + sid[len(sid)-4:]
}
