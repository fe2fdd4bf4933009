package client

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/site-control-plane/client/command"
	"github.com/upb/site-control-plane/services/session"
)

func newGatewayStub(t *testing.T, status int, response map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/capabilities":
			_ = json.NewEncoder(w).Encode(session.Capabilities())
		case "/execute":
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(response)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestExecutePlanSuccess(t *testing.T) {
	server := newGatewayStub(t, http.StatusOK, map[string]interface{}{"ok": true})
	defer server.Close()

	c := New(server.URL, "s3cret", zap.NewNop())
	response, err := c.Execute(context.Background(), "plan", map[string]interface{}{"page": "home"})
	require.NoError(t, err)
	assert.Equal(t, true, response["ok"])
	assert.Equal(t, command.StateAwaitingConfirmation, c.Machine().State())
}

func TestExecuteApplyRequiresConfirmation(t *testing.T) {
	server := newGatewayStub(t, http.StatusOK, map[string]interface{}{"ok": true})
	defer server.Close()

	c := New(server.URL, "s3cret", zap.NewNop())

	_, err := c.Execute(context.Background(), "apply", nil)
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Equal(t, command.StateAwaitingConfirmation, c.Machine().State())

	// A near miss keeps apply blocked.
	assert.False(t, c.Confirm("CONFIRM APLY"))
	_, err = c.Execute(context.Background(), "apply", nil)
	assert.ErrorIs(t, err, ErrConfirmationRequired)

	// The exact phrase unlocks it.
	require.True(t, c.Confirm("confirm apply"))
	response, err := c.Execute(context.Background(), "apply", nil)
	require.NoError(t, err)
	assert.Equal(t, true, response["ok"])
	assert.Equal(t, command.StateComplete, c.Machine().State())
}

func TestExecuteFailureEntersError(t *testing.T) {
	server := newGatewayStub(t, http.StatusTooManyRequests, map[string]interface{}{"error": "rate_limit_exceeded"})
	defer server.Close()

	c := New(server.URL, "s3cret", zap.NewNop())
	_, err := c.Execute(context.Background(), "plan", nil)
	require.Error(t, err)
	assert.Equal(t, command.StateError, c.Machine().State())
}

func TestTransportFailureReturnsSimulatedPreview(t *testing.T) {
	server := newGatewayStub(t, http.StatusOK, nil)
	server.Close() // gateway down

	c := New(server.URL, "s3cret", zap.NewNop())
	response, err := c.Execute(context.Background(), "plan", nil)
	require.NoError(t, err)
	assert.Equal(t, true, response["simulated"])
	assert.Equal(t, command.StateOffline, c.Machine().State())
	assert.True(t, c.Machine().Degraded())

	// Apply stays blocked while offline, even with the phrase typed.
	c.Confirm("CONFIRM APPLY")
	_, err = c.Execute(context.Background(), "apply", nil)
	assert.ErrorIs(t, err, ErrOffline)

	// Status cannot be simulated.
	_, err = c.Execute(context.Background(), "status", nil)
	assert.ErrorIs(t, err, ErrOffline)
}

func TestGatewayRecoveryClearsOfflineLatch(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	c := New("http://"+addr, "s3cret", zap.NewNop())

	response, err := c.Execute(context.Background(), "plan", nil)
	require.NoError(t, err)
	assert.Equal(t, true, response["simulated"])
	require.Equal(t, command.StateOffline, c.Machine().State())

	// The gateway comes back on the same address.
	recovered, err := net.Listen("tcp", addr)
	require.NoError(t, err)
	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true})
	}))
	server.Listener.Close()
	server.Listener = recovered
	server.Start()
	defer server.Close()

	response, err = c.Execute(context.Background(), "plan", nil)
	require.NoError(t, err)
	assert.Equal(t, true, response["ok"])
	assert.NotContains(t, response, "simulated")
	assert.Equal(t, command.StateAwaitingConfirmation, c.Machine().State())
	assert.False(t, c.Machine().Degraded())
}

func TestFetchCapabilitiesAdoptsPhrase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		manifest := session.Capabilities()
		manifest.ConfirmationPhrase = "YES REALLY"
		_ = json.NewEncoder(w).Encode(manifest)
	}))
	defer server.Close()

	c := New(server.URL, "s3cret", zap.NewNop())
	manifest, err := c.FetchCapabilities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "YES REALLY", manifest.ConfirmationPhrase)

	assert.False(t, c.Confirm("CONFIRM APPLY"))
	assert.True(t, c.Confirm("yes really"))
}
