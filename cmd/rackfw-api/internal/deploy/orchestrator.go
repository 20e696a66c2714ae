// Package deploy implements the firmware deployment lifecycle: manifest
// intake, background artifact caching, lookup table construction and ordered
// dispatch of flash jobs to the fleet manager.
package deploy

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/eventbus"
	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/fleet"
	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/fw"
	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/vault"
)

// A FirmwareStore is the persistence layer of the orchestrator.
type FirmwareStore interface {
	FindFirmware(ctx context.Context, id string) (*fw.FirmwareConfig, error)
	ListFirmwares(ctx context.Context, onlyAvailable bool) (fw.FirmwareConfigs, error)
	CreateFirmware(ctx context.Context, f *fw.FirmwareConfig) error
	DeleteFirmware(ctx context.Context, f *fw.FirmwareConfig) error
	MarkFirmwareAvailable(ctx context.Context, id string, table fw.LookupTable) error
	FindRack(ctx context.Context, id string) (*fw.Rack, error)
}

// Config wires the orchestrator's collaborators. Fleet and Publisher may be
// nil, the orchestrator then degrades gracefully: applies fail with a
// precondition error and lifecycle events are dropped.
type Config struct {
	Log         *slog.Logger
	Store       FirmwareStore
	Credentials vault.CredentialStore
	Fleet       fleet.Client
	Publisher   eventbus.Publisher
	CacheRoot   string

	// SKU allow-list overrides, empty slices select the compiled-in defaults.
	ComputeTraySKUs []string
	SwitchTraySKUs  []string
}

// Orchestrator drives firmware configurations from raw manifest to flashed
// rack.
type Orchestrator struct {
	log         *slog.Logger
	store       FirmwareStore
	credentials vault.CredentialStore
	fleet       fleet.Client
	publisher   eventbus.Publisher
	cacheRoot   string
	classifier  *fw.SKUClassifier
	httpClient  *http.Client
	downloads   sync.WaitGroup
}

// New creates an orchestrator.
func New(c *Config) *Orchestrator {
	return &Orchestrator{
		log:         c.Log,
		store:       c.Store,
		credentials: c.Credentials,
		fleet:       c.Fleet,
		publisher:   c.Publisher,
		cacheRoot:   c.CacheRoot,
		classifier:  fw.NewSKUClassifier(c.ComputeTraySKUs, c.SwitchTraySKUs),
		httpClient: &http.Client{
			// large firmware bundles, the total timeout must cover the
			// slowest realistic artifact
			Timeout: 600 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: 30 * time.Second}).DialContext,
				// vendor artifact mirrors commonly run with self-signed certificates
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			},
		},
	}
}

// CreateFirmware registers a new firmware configuration from a raw vendor
// manifest. The manifest must be valid JSON carrying a top-level "Id", and a
// non-empty artifact repository token must be provided. A manifest whose
// component tree cannot be parsed is still persisted for inspection, it just
// never becomes available. On success a detached background download run is
// started, the call itself returns immediately.
func (o *Orchestrator) CreateFirmware(ctx context.Context, rawManifest []byte, token string) (*fw.FirmwareConfig, error) {
	if token == "" {
		return nil, fw.Invalid("an artifact repository token is required")
	}

	id, err := fw.ManifestID(rawManifest)
	if err != nil {
		return nil, err
	}

	parsed, err := fw.ParseManifest(rawManifest)
	if err != nil {
		o.log.Warn("cannot parse firmware components from manifest", "firmware", id, "error", err)
		parsed = nil
	}

	err = o.credentials.SetCredentials(ctx, id, &vault.Credentials{Token: token})
	if err != nil {
		return nil, fw.Internal(err, "cannot store artifact credentials for %q", id)
	}

	f := &fw.FirmwareConfig{
		Base: fw.Base{
			ID:   id,
			Name: id,
		},
		RawManifest: string(rawManifest),
		Parsed:      parsed,
		Available:   false,
	}

	err = o.store.CreateFirmware(ctx, f)
	if err != nil {
		return nil, err
	}

	eventbus.PublishFirmwareEvent(o.log, o.publisher, &fw.FirmwareEvent{Type: fw.CREATE, FirmwareID: id})

	if parsed != nil {
		o.downloads.Add(1)
		go func() {
			defer o.downloads.Done()
			o.runDownload(id)
		}()
	}

	return f, nil
}

// WaitForDownloads blocks until all in-flight download runs have finished.
// Called during shutdown so a terminating process does not leave half-cached
// configurations behind unnecessarily.
func (o *Orchestrator) WaitForDownloads() {
	o.downloads.Wait()
}

// GetFirmware returns the firmware configuration with the given id.
func (o *Orchestrator) GetFirmware(ctx context.Context, id string) (*fw.FirmwareConfig, error) {
	return o.store.FindFirmware(ctx, id)
}

// ListFirmwares returns all firmware configurations, optionally restricted
// to available ones.
func (o *Orchestrator) ListFirmwares(ctx context.Context, onlyAvailable bool) (fw.FirmwareConfigs, error) {
	return o.store.ListFirmwares(ctx, onlyAvailable)
}

// DeleteFirmware removes a firmware configuration and its cached artifacts.
// An in-flight download run of the same configuration is not cancelled, its
// final availability flip will fail against the deleted record.
func (o *Orchestrator) DeleteFirmware(ctx context.Context, id string) error {
	f, err := o.store.FindFirmware(ctx, id)
	if err != nil {
		return err
	}

	err = o.store.DeleteFirmware(ctx, f)
	if err != nil {
		return err
	}

	err = os.RemoveAll(o.CacheDir(id))
	if err != nil {
		o.log.Error("cannot remove firmware artifact cache", "firmware", id, "error", err)
	}

	eventbus.PublishFirmwareEvent(o.log, o.publisher, &fw.FirmwareEvent{Type: fw.DELETE, FirmwareID: id})
	return nil
}

// CacheDir returns the artifact cache directory of a firmware configuration.
func (o *Orchestrator) CacheDir(firmwareID string) string {
	return filepath.Join(o.cacheRoot, "rack_firmware", firmwareID)
}
