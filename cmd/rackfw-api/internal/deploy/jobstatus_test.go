package deploy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/fleet"
	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/fw"
)

func TestJobStatusRequiresJobID(t *testing.T) {
	o, _ := newTestOrchestrator(t, newFakeStore(), &fakeFleet{})

	_, err := o.JobStatus(context.Background(), "")
	require.Error(t, err)
	assert.True(t, fw.IsPrecondition(err))
}

func TestJobStatusRequiresFleetClient(t *testing.T) {
	o, _ := newTestOrchestrator(t, newFakeStore(), nil)

	_, err := o.JobStatus(context.Background(), "job-1")
	require.Error(t, err)
	assert.True(t, fw.IsPrecondition(err))
}

func TestJobStatusMapsState(t *testing.T) {
	client := &fakeFleet{
		jobStatus: &fleet.JobStatusResponse{
			JobID:            "job-1",
			JobState:         fleet.JobStateCompleted,
			StateDescription: "all nodes flashed",
			RackID:           "rack-1",
			NodeID:           "node-1",
			ResultJSON:       `{"ok":true}`,
		},
	}
	o, _ := newTestOrchestrator(t, newFakeStore(), client)

	status, err := o.JobStatus(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", status.JobID)
	assert.Equal(t, "COMPLETED", status.State)
	assert.Equal(t, "all nodes flashed", status.StateDescription)
	assert.Equal(t, "rack-1", status.RackID)
	assert.Equal(t, `{"ok":true}`, status.ResultJSON)
}

func TestJobStatusUnknownState(t *testing.T) {
	client := &fakeFleet{
		jobStatus: &fleet.JobStatusResponse{JobID: "job-1", JobState: 99},
	}
	o, _ := newTestOrchestrator(t, newFakeStore(), client)

	status, err := o.JobStatus(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "UNKNOWN", status.State)
}

func TestJobStatusFleetError(t *testing.T) {
	client := &fakeFleet{jobErr: errors.New("unavailable")}
	o, _ := newTestOrchestrator(t, newFakeStore(), client)

	_, err := o.JobStatus(context.Background(), "job-1")
	require.Error(t, err)
	assert.True(t, fw.IsInternal(err))
	assert.ErrorContains(t, err, "unavailable")
}
