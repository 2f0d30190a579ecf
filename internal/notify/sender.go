// Package notify delivers one-time codes to users over an external
// messaging gateway.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	autherr "github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain/auth"
)

// Sender delivers a one-time code to the given email address or phone number.
type Sender interface {
	SendOTP(ctx context.Context, identifier, code string) error
}

// HTTPSender posts delivery requests to a messaging gateway.
type HTTPSender struct {
	baseURL    string
	apiKey     string
	from       string
	httpClient *http.Client
}

// NewHTTPSender constructs a sender for the given gateway.
func NewHTTPSender(baseURL, apiKey, from string, client *http.Client) *HTTPSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSender{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, from: from, httpClient: client}
}

// SendOTP submits the code for delivery. Gateway failures are wrapped in
// DeliveryError so callers can distinguish them from validation failures.
func (s *HTTPSender) SendOTP(ctx context.Context, identifier, code string) error {
	payload, err := json.Marshal(map[string]string{
		"to":   identifier,
		"from": s.from,
		"body": fmt.Sprintf("Your verification code is %s", code),
	})
	if err != nil {
		return fmt.Errorf("encode delivery request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/messages", strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &autherr.DeliveryError{Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode >= 300 {
		return &autherr.DeliveryError{Err: fmt.Errorf("gateway status=%d", resp.StatusCode)}
	}
	return nil
}

// LogSender writes codes to the application log instead of delivering them.
// Intended for local development only.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendOTP(_ context.Context, identifier, code string) error {
	s.logger.Info("otp.deliver", zap.String("identifier", identifier), zap.String("code", code))
	return nil
}
