package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/streaming-reseller/internal/config"
)

func TestClient_Send(t *testing.T) {
	var got SendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/messages", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(config.Gateway{GatewayURL: srv.URL + "/", GatewayToken: "secret", GatewayTimeout: time.Second})
	require.NoError(t, c.Send(context.Background(), "593991234567", "hola"))

	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, SendRequest{To: "593991234567@c.us", Text: "hola"}, got)
}

func TestClient_Send_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(config.Gateway{GatewayURL: srv.URL})

	err := c.Send(context.Background(), "593991234567", "hola")
	assert.ErrorContains(t, err, "503")

	err = c.Send(context.Background(), " ", "hola")
	assert.ErrorIs(t, err, ErrEmptyRecipient)
}

func TestChatID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "593991234567", want: "593991234567@c.us"},
		{in: "593991234567@c.us", want: "593991234567@c.us"},
		{in: "12036302@g.us", want: "12036302@g.us"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ChatID(tt.in))
	}
	assert.Equal(t, "593991234567", Phone("593991234567@c.us"))
}
