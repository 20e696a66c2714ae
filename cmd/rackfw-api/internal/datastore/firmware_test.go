package datastore

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	r "gopkg.in/rethinkdb/rethinkdb-go.v6"

	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/fw"
)

func initMockDB(t *testing.T) (*RethinkStore, *r.Mock) {
	t.Helper()
	rs := New(slog.Default(), "db-addr", "mockdb", "db-user", "db-password")
	mock := rs.Mock()
	return rs, mock
}

var (
	fw1 = fw.FirmwareConfig{
		Base: fw.Base{
			ID:      "fw-1",
			Name:    "gb200 2026-08",
			Changed: time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC),
		},
		RawManifest: `{"Id":"fw-1","BoardSKUs":[]}`,
		Available:   true,
	}
	fw2 = fw.FirmwareConfig{
		Base: fw.Base{
			ID: "fw-2",
		},
		RawManifest: `{"Id":"fw-2","BoardSKUs":[]}`,
		Available:   false,
	}
)

func TestRethinkStore_FindFirmware(t *testing.T) {
	rs, mock := initMockDB(t)
	mock.On(r.DB("mockdb").Table("firmware").Get("fw-1")).Return(fw1, nil)
	mock.On(r.DB("mockdb").Table("firmware").Get("fw-404")).Return(nil, nil)

	got, err := rs.FindFirmware(context.Background(), "fw-1")
	require.NoError(t, err)
	assert.Equal(t, "fw-1", got.ID)
	assert.True(t, got.Available)

	_, err = rs.FindFirmware(context.Background(), "fw-404")
	require.Error(t, err)
	assert.True(t, fw.IsNotFound(err))

	mock.AssertExpectations(t)
}

func TestRethinkStore_ListFirmwares(t *testing.T) {
	rs, mock := initMockDB(t)
	mock.On(r.DB("mockdb").Table("firmware")).Return(fw.FirmwareConfigs{fw1, fw2}, nil)
	mock.On(r.DB("mockdb").Table("firmware").Filter(map[string]any{"available": true})).Return(fw.FirmwareConfigs{fw1}, nil)

	all, err := rs.ListFirmwares(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	available, err := rs.ListFirmwares(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "fw-1", available[0].ID)

	mock.AssertExpectations(t)
}

func TestRethinkStore_CreateFirmware(t *testing.T) {
	rs, mock := initMockDB(t)
	mock.On(r.DB("mockdb").Table("firmware").Insert(r.MockAnything())).Return(r.WriteResponse{}, nil)

	f := fw2
	err := rs.CreateFirmware(context.Background(), &f)
	require.NoError(t, err)
	assert.False(t, f.Created.IsZero())
	assert.False(t, f.Changed.IsZero())

	mock.AssertExpectations(t)
}

func TestRethinkStore_DeleteFirmware(t *testing.T) {
	rs, mock := initMockDB(t)
	mock.On(r.DB("mockdb").Table("firmware").Get("fw-1").Delete()).Return(r.WriteResponse{}, nil)

	f := fw1
	err := rs.DeleteFirmware(context.Background(), &f)
	require.NoError(t, err)

	mock.AssertExpectations(t)
}

func TestRethinkStore_MarkFirmwareAvailable(t *testing.T) {
	rs, mock := initMockDB(t)
	mock.On(r.DB("mockdb").Table("firmware").Get("fw-2")).Return(fw2, nil)
	mock.On(r.DB("mockdb").Table("firmware").Get("fw-2").Replace(r.MockAnything())).Return(r.WriteResponse{}, nil)

	table := fw.LookupTable{
		"Compute Node": {
			"BMC_prod": {Filename: "bmc.fwpkg", Target: "FW_BMC_0"},
		},
	}
	err := rs.MarkFirmwareAvailable(context.Background(), "fw-2", table)
	require.NoError(t, err)

	mock.AssertExpectations(t)
}

func TestRethinkStore_UpdateFirmwareConflict(t *testing.T) {
	rs, mock := initMockDB(t)
	mock.On(r.DB("mockdb").Table("firmware").Get("fw-1").Replace(r.MockAnything())).Return(r.WriteResponse{}, errors.New(entityAlreadyModifiedErrorMessage))

	old := fw1
	n := fw1
	n.Available = false
	err := rs.UpdateFirmware(context.Background(), &n, &old)
	require.Error(t, err)
	assert.True(t, fw.IsConflict(err))

	mock.AssertExpectations(t)
}
