// Package federated verifies third-party identity assertions. Trust in the
// provider's signature is delegated entirely to the verification endpoint;
// this package never validates provider tokens locally.
package federated

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	autherr "github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain/auth"
)

// Identity is the verified claim set returned by the provider.
type Identity struct {
	SubjectID     string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Phone         string `json:"phone_number"`
	PhoneVerified bool   `json:"phone_number_verified"`
	Name          string `json:"name"`
}

// Verifier checks a provider-issued token and returns its identity claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// HTTPVerifier posts the provider token to a token-info endpoint.
type HTTPVerifier struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPVerifier constructs a verifier for the given token-info endpoint.
func NewHTTPVerifier(endpoint string, client *http.Client) *HTTPVerifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPVerifier{endpoint: endpoint, httpClient: client}
}

// Verify exchanges the provider token for verified identity claims. Any
// rejection by the endpoint surfaces as a malformed-token failure.
func (v *HTTPVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if strings.TrimSpace(v.endpoint) == "" {
		return Identity{}, fmt.Errorf("identity verify endpoint missing")
	}

	payload, err := json.Marshal(map[string]string{"id_token": token})
	if err != nil {
		return Identity{}, fmt.Errorf("encode verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return Identity{}, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("verify request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Identity{}, fmt.Errorf("read verify response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
		return Identity{}, autherr.ErrMalformedToken
	}
	if resp.StatusCode >= 300 {
		return Identity{}, fmt.Errorf("verify failed: status=%d", resp.StatusCode)
	}

	var identity Identity
	if err := json.Unmarshal(body, &identity); err != nil {
		return Identity{}, fmt.Errorf("decode verify response: %w", err)
	}
	if strings.TrimSpace(identity.SubjectID) == "" {
		return Identity{}, autherr.ErrMalformedToken
	}
	return identity, nil
}
