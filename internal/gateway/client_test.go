package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transmito/internal/config"
)

func testConfig(url string) *config.Config {
	return &config.Config{
		GatewayURL:   url,
		GatewayToken: "test-token",
		InstanceName: "inst",
	}
}

func TestSendSimulatedMode(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	// URL configured but no token: still simulated, nothing leaves the process.
	cfg := &config.Config{GatewayURL: srv.URL, InstanceName: "inst"}
	client := NewClient(cfg)

	start := time.Now()
	ok := client.Send(context.Background(), "5511999999999", "Olá Ana!")
	elapsed := time.Since(start)

	assert.True(t, ok)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestSendSimulatedModeCancelled(t *testing.T) {
	client := NewClient(&config.Config{InstanceName: "inst"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, client.Send(ctx, "5511999999999", "Olá"))
}

func TestSendLiveSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/message/sendText/inst", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var msg textMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		assert.Equal(t, "5511999999999", msg.Number)
		assert.Equal(t, "text", msg.Type)
		assert.Equal(t, "Olá Ana!", msg.Text)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"status":"PENDING"}`))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	assert.True(t, client.Send(context.Background(), "5511999999999", "Olá Ana!"))
}

func TestSendLiveRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"number not on whatsapp"}`))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	assert.False(t, client.Send(context.Background(), "5511999999999", "Olá"))
}

func TestSendLiveTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(testConfig(srv.URL))
	assert.False(t, client.Send(context.Background(), "5511999999999", "Olá"))
}
