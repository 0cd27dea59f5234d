package gateway

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transmito/internal/config"
)

func TestNumberFromJID(t *testing.T) {
	tests := []struct {
		jid  string
		want string
	}{
		{"5511999999999@s.whatsapp.net", "5511999999999"},
		{"5511999999999", "5511999999999"},
		{"@s.whatsapp.net", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NumberFromJID(tt.jid))
	}
}

func TestConnectionState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instance/connectionState/inst", r.URL.Path)
		w.Write([]byte(`{"instance":{"state":"open","owner":"5511999999999@s.whatsapp.net"}}`))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	status, err := client.ConnectionState(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Connected())
	assert.Equal(t, "5511999999999", status.OwnerNumber())
}

func TestConnectionStateSimulated(t *testing.T) {
	client := NewClient(&config.Config{InstanceName: "inst"})
	status, err := client.ConnectionState(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Connected())
	assert.Empty(t, status.OwnerNumber())
}

func TestConnectionStateClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"instance":{"state":"close"}}`))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	status, err := client.ConnectionState(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Connected())
	assert.Empty(t, status.OwnerNumber())
}

func TestRequestPairingCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instance/connect/inst", r.URL.Path)
		w.Write([]byte(`{"pairingCode":"ABCD-1234"}`))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	code, err := client.RequestPairingCode(context.Background(), "5511999999999")
	require.NoError(t, err)
	assert.Equal(t, "ABCD-1234", code)
}

func TestRequestPairingCodeRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"instance not found"}`))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	_, err := client.RequestPairingCode(context.Background(), "5511999999999")
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "instance not found", apiErr.Error())
}

func TestCreateInstanceWithInlineQR(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instance/create", r.URL.Path)
		w.Write([]byte(`{"instance":{"instanceName":"inst","token":"secret-token"},"qrcode":{"base64":"data:image/png;base64,aGVsbG8="}}`))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	cred, err := client.CreateInstance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cred.Token)
	assert.Equal(t, "aGVsbG8=", cred.QRBase64)
}

func TestCreateInstanceRendersQRLocally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"qrcode":{"code":"2@abcdefghij"}}`))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	cred, err := client.CreateInstance(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, cred.QRBase64)

	png, err := base64.StdEncoding.DecodeString(cred.QRBase64)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}

func TestCreateInstanceEmptyPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	_, err := client.CreateInstance(context.Background())
	assert.Error(t, err)
}
