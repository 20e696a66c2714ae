// Package fleet talks to the rack fleet manager, which distributes firmware
// flash jobs to the individual nodes of a rack and tracks their progress.
package fleet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// NodeType selects which device class of a rack a batch update addresses.
type NodeType string

const (
	NodeTypeCompute    NodeType = "compute"
	NodeTypePowerShelf NodeType = "powershelf"
	NodeTypeSwitch     NodeType = "switch"
)

// ReturnCode is the fleet manager's status code for a batch update request.
type ReturnCode int

const (
	ReturnCodeSuccess ReturnCode = 0
	ReturnCodeFailure ReturnCode = 1
)

// Firmware job states as reported by the fleet manager.
const (
	JobStateQueued = iota
	JobStateRunning
	JobStateCompleted
	JobStateFailed
)

// JobStateString maps a numeric job state to its display name. Unknown
// states map to "UNKNOWN" rather than an error, forward compatibility with
// newer fleet managers matters more than strictness here.
func JobStateString(state int) string {
	switch state {
	case JobStateQueued:
		return "QUEUED"
	case JobStateRunning:
		return "RUNNING"
	case JobStateCompleted:
		return "COMPLETED"
	case JobStateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// FirmwareTarget names one flash target together with the absolute path of
// the cached firmware file to flash onto it.
type FirmwareTarget struct {
	Target   string `json:"target"`
	Filename string `json:"filename"`
}

// UpdateRequest asks the fleet manager to flash all nodes of one device
// class of a rack.
type UpdateRequest struct {
	RackID          string           `json:"rack_id"`
	NodeType        NodeType         `json:"node_type"`
	FirmwareTargets []FirmwareTarget `json:"firmware_targets"`
	Activate        bool             `json:"activate"`
}

// NodeJob is the job handle the fleet manager created for one node.
type NodeJob struct {
	NodeID string `json:"node_id"`
	JobID  string `json:"job_id"`
}

// UpdateResponse is the fleet manager's answer to a batch update request.
type UpdateResponse struct {
	Status     ReturnCode `json:"status"`
	Message    string     `json:"message"`
	JobID      string     `json:"job_id"`
	TotalNodes int        `json:"total_nodes"`
	NodeJobs   []NodeJob  `json:"node_jobs"`
}

// JobStatusResponse is the current state of one firmware job.
type JobStatusResponse struct {
	JobID            string `json:"job_id"`
	JobState         int    `json:"job_state"`
	StateDescription string `json:"state_description"`
	RackID           string `json:"rack_id"`
	NodeID           string `json:"node_id"`
	ErrorMessage     string `json:"error_message"`
	ResultJSON       string `json:"result_json"`
}

// A Client dispatches firmware updates and reads back job states.
type Client interface {
	// UpdateFirmwareByNodeTypeAsync starts a batch firmware update for all
	// nodes of one device class in a rack. The call returns as soon as the
	// fleet manager accepted the jobs.
	UpdateFirmwareByNodeTypeAsync(ctx context.Context, req *UpdateRequest) (*UpdateResponse, error)
	// GetFirmwareJobStatus returns the state of a previously created job.
	GetFirmwareJobStatus(ctx context.Context, jobID string) (*JobStatusResponse, error)
}

// APIClient implements Client against the fleet manager's HTTP API. The Do*
// functions default to real HTTP calls and can be swapped out in tests.
type APIClient struct {
	log     *slog.Logger
	baseURL string

	DoUpdate    func(ctx context.Context, req *UpdateRequest) (*UpdateResponse, error)
	DoJobStatus func(ctx context.Context, jobID string) (*JobStatusResponse, error)
}

// New creates a fleet manager client for the given base url.
func New(log *slog.Logger, baseURL string) *APIClient {
	c := &APIClient{
		log:     log,
		baseURL: baseURL,
	}
	httpClient := &http.Client{Timeout: 60 * time.Second}
	c.DoUpdate = func(ctx context.Context, req *UpdateRequest) (*UpdateResponse, error) {
		resp := new(UpdateResponse)
		err := c.do(ctx, httpClient, http.MethodPost, "/v1/firmware/update-by-node-type", req, resp)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
	c.DoJobStatus = func(ctx context.Context, jobID string) (*JobStatusResponse, error) {
		resp := new(JobStatusResponse)
		err := c.do(ctx, httpClient, http.MethodGet, "/v1/firmware/jobs/"+url.PathEscape(jobID), nil, resp)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
	return c
}

func (c *APIClient) do(ctx context.Context, client *http.Client, method, path string, body any, result any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("cannot encode fleet request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fleet manager unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("fleet manager returned %s: %s", resp.Status, string(payload))
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

func (c *APIClient) UpdateFirmwareByNodeTypeAsync(ctx context.Context, req *UpdateRequest) (*UpdateResponse, error) {
	c.log.Info("dispatching batch firmware update", "rack", req.RackID, "nodetype", req.NodeType, "targets", len(req.FirmwareTargets), "activate", req.Activate)
	return c.DoUpdate(ctx, req)
}

func (c *APIClient) GetFirmwareJobStatus(ctx context.Context, jobID string) (*JobStatusResponse, error) {
	return c.DoJobStatus(ctx, jobID)
}
