package deploy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/eventbus"
	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/fw"
	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/metrics"
)

// artifactAuthHeader carries the artifact repository token.
const artifactAuthHeader = "X-JFrog-Art-Api"

type downloadJob struct {
	url       string
	component string
	bundle    string
}

// runDownload caches all firmware artifacts of a configuration and, if every
// single one succeeded, builds the lookup table and flips the configuration
// to available in one atomic update. Any failure leaves the configuration
// unavailable, a partial cache is never exposed. The run is detached from
// the creating request on purpose, downloads can take many minutes.
func (o *Orchestrator) runDownload(firmwareID string) {
	ctx := context.Background()
	start := time.Now()
	log := o.log.With("firmware", firmwareID, "run", uuid.New().String())

	f, err := o.store.FindFirmware(ctx, firmwareID)
	if err != nil {
		log.Error("cannot load firmware for download run", "error", err)
		return
	}
	if f.Parsed == nil {
		log.Warn("firmware has no parsed components, nothing to download")
		return
	}

	failed, total := o.downloadArtifacts(ctx, log, firmwareID, f.Parsed)
	log.Info("firmware download completed", "successful", total-failed, "failed", failed, "total", total)

	if failed > 0 {
		metrics.ObserveDownloadRun("failed", start)
		log.Warn("firmware not marked available due to download failures")
		eventbus.PublishFirmwareEvent(log, o.publisher, &fw.FirmwareEvent{
			Type:       fw.FAILED,
			FirmwareID: firmwareID,
			Message:    fmt.Sprintf("%d of %d artifact downloads failed", failed, total),
		})
		return
	}

	table := fw.BuildLookupTable(log, f.Parsed, o.classifier)
	log.Info("built firmware lookup table", "devicetypes", len(table))

	err = retry.Do(
		func() error {
			return o.store.MarkFirmwareAvailable(ctx, firmwareID, table)
		},
		retry.Attempts(10),
		retry.RetryIf(fw.IsConflict),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		metrics.ObserveDownloadRun("failed", start)
		log.Error("cannot mark firmware as available", "error", err)
		eventbus.PublishFirmwareEvent(log, o.publisher, &fw.FirmwareEvent{
			Type:       fw.FAILED,
			FirmwareID: firmwareID,
			Message:    "all artifacts cached but marking available failed: " + err.Error(),
		})
		return
	}

	metrics.ObserveDownloadRun("success", start)
	log.Info("marked firmware as available")
	eventbus.PublishFirmwareEvent(log, o.publisher, &fw.FirmwareEvent{Type: fw.AVAILABLE, FirmwareID: firmwareID})
}

// downloadArtifacts fans the artifact downloads of one manifest out to
// goroutines and tallies the failures. A panicking download counts as a
// failure instead of tearing down the process.
func (o *Orchestrator) downloadArtifacts(ctx context.Context, log *slog.Logger, firmwareID string, parsed *fw.ParsedComponents) (failed int, total int) {
	dir := o.CacheDir(firmwareID)
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		log.Error("cannot create firmware cache directory", "dir", dir, "error", err)
		return 1, 0
	}

	token := ""
	creds, err := o.credentials.GetCredentials(ctx, firmwareID)
	if err != nil {
		log.Error("cannot read artifact credentials", "error", err)
		return 1, 0
	}
	if creds != nil {
		token = creds.Token
	}

	var jobs []downloadJob
	for _, board := range parsed.BoardSKUs {
		for _, component := range board.FirmwareComponents {
			for _, location := range component.Locations {
				jobs = append(jobs, downloadJob{
					url:       location.URL,
					component: component.Component,
					bundle:    component.Bundle,
				})
			}
		}
	}
	log.Info("spawning download tasks for all firmware locations", "locations", len(jobs))

	results := make(chan error, len(jobs))
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job downloadJob) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error("download task panicked", "url", job.url, "panic", r)
					results <- fmt.Errorf("download of %s panicked", job.url)
				}
			}()
			results <- o.downloadArtifact(ctx, log, job, dir, token)
		}(job)
	}
	wg.Wait()
	close(results)

	for err := range results {
		if err != nil {
			log.Warn("firmware download failed", "error", err)
			metrics.CountDownload("failed")
			failed++
		}
	}
	return failed, len(jobs)
}

// downloadArtifact fetches one firmware file into the cache directory. A
// file that is already cached is never fetched again. The first attempt runs
// without credentials, on 401 or a transport error exactly one retry with
// the token follows.
func (o *Orchestrator) downloadArtifact(ctx context.Context, log *slog.Logger, job downloadJob, destDir string, token string) error {
	parts := strings.Split(job.url, "/")
	filename := parts[len(parts)-1]
	if filename == "" {
		return fmt.Errorf("invalid artifact url: %s", job.url)
	}
	dest := filepath.Join(destDir, filename)

	_, err := os.Stat(dest)
	if err == nil {
		log.Debug("file already cached, skipping download", "component", job.component, "filename", filename)
		metrics.CountDownload("cached")
		return nil
	}

	log.Info("downloading firmware file", "component", job.component, "bundle", job.bundle, "url", job.url)

	resp, err := o.fetch(ctx, job.url, "")
	switch {
	case err != nil:
		log.Debug("download without token failed, retrying with token", "url", job.url, "error", err)
		resp, err = o.fetch(ctx, job.url, token)
		if err != nil {
			return fmt.Errorf("cannot download %s with token: %w", job.url, err)
		}
	case resp.StatusCode == http.StatusUnauthorized:
		_ = resp.Body.Close()
		log.Debug("authentication required, retrying with token", "url", job.url)
		resp, err = o.fetch(ctx, job.url, token)
		if err != nil {
			return fmt.Errorf("cannot download %s with token: %w", job.url, err)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("download of %s failed with status %s", job.url, resp.Status)
	}

	file, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", dest, err)
	}
	_, err = io.Copy(file, resp.Body)
	if err != nil {
		_ = file.Close()
		_ = os.Remove(dest)
		return fmt.Errorf("cannot write %s: %w", dest, err)
	}
	err = file.Close()
	if err != nil {
		return fmt.Errorf("cannot write %s: %w", dest, err)
	}

	metrics.CountDownload("success")
	log.Info("successfully downloaded firmware file", "component", job.component, "filename", filename)
	return nil
}

func (o *Orchestrator) fetch(ctx context.Context, url string, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set(artifactAuthHeader, token)
	}
	return o.httpClient.Do(req)
}
