package fleet

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

func TestJobStateString(t *testing.T) {
	assert.Equal(t, "QUEUED", JobStateString(0))
	assert.Equal(t, "RUNNING", JobStateString(1))
	assert.Equal(t, "COMPLETED", JobStateString(2))
	assert.Equal(t, "FAILED", JobStateString(3))
	assert.Equal(t, "UNKNOWN", JobStateString(4))
	assert.Equal(t, "UNKNOWN", JobStateString(-1))
}

func TestAPIClientUpdate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/firmware/update-by-node-type", r.URL.Path)

		var req UpdateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "rack-1", req.RackID)
		assert.Equal(t, NodeTypeCompute, req.NodeType)
		assert.True(t, req.Activate)
		require.Len(t, req.FirmwareTargets, 1)

		_ = json.NewEncoder(w).Encode(UpdateResponse{
			Status:     ReturnCodeSuccess,
			Message:    "accepted",
			JobID:      "job-1",
			TotalNodes: 2,
			NodeJobs: []NodeJob{
				{NodeID: "node-1", JobID: "job-1-1"},
				{NodeID: "node-2", JobID: "job-1-2"},
			},
		})
	}))
	defer server.Close()

	c := New(slog.Default(), server.URL)
	resp, err := c.UpdateFirmwareByNodeTypeAsync(context.Background(), &UpdateRequest{
		RackID:   "rack-1",
		NodeType: NodeTypeCompute,
		FirmwareTargets: []FirmwareTarget{
			{Target: "FW_BMC_0", Filename: "/var/cache/rackfw/rack_firmware/fw-1/bmc.fwpkg"},
		},
		Activate: true,
	})
	require.NoError(t, err)
	assert.Equal(t, ReturnCodeSuccess, resp.Status)
	assert.Equal(t, "job-1", resp.JobID)
	assert.Len(t, resp.NodeJobs, 2)
}

func TestAPIClientJobStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/firmware/jobs/job-1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(JobStatusResponse{
			JobID:    "job-1",
			JobState: JobStateRunning,
			RackID:   "rack-1",
		})
	}))
	defer server.Close()

	c := New(slog.Default(), server.URL)
	resp, err := c.GetFirmwareJobStatus(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, JobStateRunning, resp.JobState)
	assert.Equal(t, "RUNNING", JobStateString(resp.JobState))
}

func TestAPIClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(slog.Default(), server.URL)
	_, err := c.GetFirmwareJobStatus(context.Background(), "job-1")
	require.Error(t, err)
	assert.ErrorContains(t, err, "boom")
}
