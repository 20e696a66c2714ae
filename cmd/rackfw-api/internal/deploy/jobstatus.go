package deploy

import (
	"context"

	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/fleet"
	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/fw"
)

// JobStatusResult is the relayed state of one firmware job.
type JobStatusResult struct {
	JobID            string `json:"job_id"`
	State            string `json:"state"`
	StateDescription string `json:"state_description,omitempty"`
	RackID           string `json:"rack_id,omitempty"`
	NodeID           string `json:"node_id,omitempty"`
	ErrorMessage     string `json:"error_message,omitempty"`
	ResultJSON       string `json:"result_json,omitempty"`
}

// JobStatus relays the state of a firmware job from the fleet manager,
// mapping the numeric job state to its display name.
func (o *Orchestrator) JobStatus(ctx context.Context, jobID string) (*JobStatusResult, error) {
	if jobID == "" {
		return nil, fw.Precondition("job id is required")
	}
	if o.fleet == nil {
		return nil, fw.Precondition("fleet manager client not configured")
	}

	resp, err := o.fleet.GetFirmwareJobStatus(ctx, jobID)
	if err != nil {
		return nil, fw.Internal(err, "fleet manager error")
	}

	return &JobStatusResult{
		JobID:            resp.JobID,
		State:            fleet.JobStateString(resp.JobState),
		StateDescription: resp.StateDescription,
		RackID:           resp.RackID,
		NodeID:           resp.NodeID,
		ErrorMessage:     resp.ErrorMessage,
		ResultJSON:       resp.ResultJSON,
	}, nil
}
