package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	autherr "github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain/auth"
)

func TestHTTPSenderDelivers(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL, "test-key", "no-reply@example.com", srv.Client())
	require.NoError(t, s.SendOTP(context.Background(), "user@example.com", "123456"))

	assert.Equal(t, "user@example.com", got["to"])
	assert.Equal(t, "no-reply@example.com", got["from"])
	assert.Contains(t, got["body"], "123456")
}

func TestHTTPSenderWrapsGatewayFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL, "", "no-reply@example.com", srv.Client())
	err := s.SendOTP(context.Background(), "user@example.com", "123456")

	var delivery *autherr.DeliveryError
	assert.ErrorAs(t, err, &delivery)
}
