package vault

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRoundTrip(t *testing.T) {
	secrets := map[string]map[string]any{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-vault-token", r.Header.Get("X-Vault-Token"))

		switch r.Method {
		case http.MethodPost:
			var payload map[string]map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			secrets[r.URL.Path] = payload["data"]
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			data, ok := secrets[r.URL.Path]
			if !ok {
				http.NotFound(w, r)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"data": data}})
		}
	}))
	defer server.Close()

	c := NewClient(slog.Default(), server.URL, "test-vault-token")
	ctx := context.Background()

	err := c.SetCredentials(ctx, "fw-1", &Credentials{Token: "artifact-token"})
	require.NoError(t, err)

	creds, err := c.GetCredentials(ctx, "fw-1")
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "artifact-token", creds.Token)

	// unknown firmware yields no credentials and no error
	creds, err = c.GetCredentials(ctx, "fw-unknown")
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "sealed", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(slog.Default(), server.URL, "test-vault-token")
	ctx := context.Background()

	err := c.SetCredentials(ctx, "fw-1", &Credentials{Token: "t"})
	assert.Error(t, err)

	_, err = c.GetCredentials(ctx, "fw-1")
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	creds, err := m.GetCredentials(ctx, "fw-1")
	require.NoError(t, err)
	assert.Nil(t, creds)

	require.NoError(t, m.SetCredentials(ctx, "fw-1", &Credentials{Token: "t"}))

	creds, err = m.GetCredentials(ctx, "fw-1")
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "t", creds.Token)
}
