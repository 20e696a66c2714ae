package datastore

import (
	"context"

	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/fw"
)

// FindRack returns the rack with the given id.
func (rs *RethinkStore) FindRack(ctx context.Context, id string) (*fw.Rack, error) {
	var rack fw.Rack
	err := rs.findEntityByID(ctx, rs.rackTable(), &rack, id)
	if err != nil {
		return nil, err
	}
	return &rack, nil
}

// ListRacks returns all racks.
func (rs *RethinkStore) ListRacks(ctx context.Context) (fw.Racks, error) {
	racks := fw.Racks{}
	err := rs.listEntities(ctx, rs.rackTable(), &racks)
	if err != nil {
		return nil, err
	}
	return racks, nil
}

// CreateRack creates a new rack in the database.
func (rs *RethinkStore) CreateRack(ctx context.Context, rack *fw.Rack) error {
	return rs.createEntity(ctx, rs.rackTable(), rack)
}

// UpdateRack updates a rack with optimistic locking on the changed timestamp.
func (rs *RethinkStore) UpdateRack(ctx context.Context, newRack *fw.Rack, oldRack *fw.Rack) error {
	return rs.updateEntity(ctx, rs.rackTable(), newRack, oldRack)
}

// DeleteRack deletes a rack.
func (rs *RethinkStore) DeleteRack(ctx context.Context, rack *fw.Rack) error {
	return rs.deleteEntity(ctx, rs.rackTable(), rack)
}
