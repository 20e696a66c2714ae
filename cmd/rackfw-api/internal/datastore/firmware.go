package datastore

import (
	"context"

	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/fw"
)

// FindFirmware returns the firmware configuration with the given id.
func (rs *RethinkStore) FindFirmware(ctx context.Context, id string) (*fw.FirmwareConfig, error) {
	var f fw.FirmwareConfig
	err := rs.findEntityByID(ctx, rs.firmwareTable(), &f, id)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFirmwares returns all firmware configurations. With onlyAvailable set,
// configurations whose artifacts are not fully cached yet are filtered out.
func (rs *RethinkStore) ListFirmwares(ctx context.Context, onlyAvailable bool) (fw.FirmwareConfigs, error) {
	fs := fw.FirmwareConfigs{}
	if onlyAvailable {
		q := rs.firmwareTable().Filter(map[string]any{"available": true})
		err := rs.searchEntities(ctx, &q, &fs)
		if err != nil {
			return nil, err
		}
		return fs, nil
	}
	err := rs.listEntities(ctx, rs.firmwareTable(), &fs)
	if err != nil {
		return nil, err
	}
	return fs, nil
}

// CreateFirmware creates a new firmware configuration in the database.
func (rs *RethinkStore) CreateFirmware(ctx context.Context, f *fw.FirmwareConfig) error {
	return rs.createEntity(ctx, rs.firmwareTable(), f)
}

// DeleteFirmware deletes a firmware configuration.
func (rs *RethinkStore) DeleteFirmware(ctx context.Context, f *fw.FirmwareConfig) error {
	return rs.deleteEntity(ctx, rs.firmwareTable(), f)
}

// UpdateFirmware updates a firmware configuration with optimistic locking on
// the changed timestamp. A concurrent modification yields a conflict error.
func (rs *RethinkStore) UpdateFirmware(ctx context.Context, newF *fw.FirmwareConfig, oldF *fw.FirmwareConfig) error {
	return rs.updateEntity(ctx, rs.firmwareTable(), newF, oldF)
}

// MarkFirmwareAvailable flips the firmware configuration to available and
// stores its lookup table in the same update. It re-reads the current state
// so callers can retry on conflicts.
func (rs *RethinkStore) MarkFirmwareAvailable(ctx context.Context, id string, table fw.LookupTable) error {
	old, err := rs.FindFirmware(ctx, id)
	if err != nil {
		return err
	}
	n := *old
	n.LookupTable = table
	n.Available = true
	return rs.updateEntity(ctx, rs.firmwareTable(), &n, old)
}
