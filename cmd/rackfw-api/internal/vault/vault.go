// Package vault stores artifact repository credentials for firmware
// configurations. Credentials are captured once at configuration creation
// time and read back by the download run, so a deployment can still fetch
// artifacts long after the original upload token expired from the caller's
// environment.
package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// Credentials are the secrets needed to fetch firmware artifacts from the
// vendor artifact repository.
type Credentials struct {
	Token string `json:"token"`
}

// A CredentialStore persists per-firmware credentials.
type CredentialStore interface {
	// SetCredentials stores the credentials for the given firmware id.
	SetCredentials(ctx context.Context, firmwareID string, creds *Credentials) error
	// GetCredentials returns the credentials for the given firmware id.
	// It returns nil without error when no credentials were stored.
	GetCredentials(ctx context.Context, firmwareID string) (*Credentials, error)
}

const secretPathPrefix = "/v1/secret/data/rackfirmware/"

// Client is a CredentialStore backed by the KV2 secret engine of a vault
// server.
type Client struct {
	log     *slog.Logger
	baseURL string
	token   string

	// DoRequest is the HTTP round trip, overridable for testing.
	DoRequest func(req *http.Request) (*http.Response, error)
}

// NewClient creates a vault-backed credential store.
func NewClient(log *slog.Logger, baseURL string, token string) *Client {
	c := &Client{
		log:     log,
		baseURL: baseURL,
		token:   token,
	}
	httpClient := &http.Client{Timeout: 10 * time.Second}
	c.DoRequest = httpClient.Do
	return c
}

func (c *Client) SetCredentials(ctx context.Context, firmwareID string, creds *Credentials) error {
	body, err := json.Marshal(map[string]any{"data": creds})
	if err != nil {
		return fmt.Errorf("cannot encode credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+secretPathPrefix+firmwareID, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("X-Vault-Token", c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.DoRequest(req)
	if err != nil {
		return fmt.Errorf("cannot store credentials for %q: %w", firmwareID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("cannot store credentials for %q: vault returned %s", firmwareID, resp.Status)
	}

	c.log.Debug("stored artifact credentials", "firmware", firmwareID)
	return nil
}

func (c *Client) GetCredentials(ctx context.Context, firmwareID string) (*Credentials, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+secretPathPrefix+firmwareID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Vault-Token", c.token)

	resp, err := c.DoRequest(req)
	if err != nil {
		return nil, fmt.Errorf("cannot read credentials for %q: %w", firmwareID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("cannot read credentials for %q: vault returned %s", firmwareID, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	token := gjson.GetBytes(body, "data.data.token")
	if !token.Exists() {
		return nil, nil
	}
	return &Credentials{Token: token.String()}, nil
}

// Memory is an in-memory CredentialStore for setups without a vault server
// and for tests.
type Memory struct {
	sync.Mutex
	creds map[string]Credentials
}

// NewMemory creates an in-memory credential store.
func NewMemory() *Memory {
	return &Memory{
		creds: map[string]Credentials{},
	}
}

func (m *Memory) SetCredentials(_ context.Context, firmwareID string, creds *Credentials) error {
	m.Lock()
	defer m.Unlock()
	m.creds[firmwareID] = *creds
	return nil
}

func (m *Memory) GetCredentials(_ context.Context, firmwareID string) (*Credentials, error) {
	m.Lock()
	defer m.Unlock()
	c, ok := m.creds[firmwareID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}
