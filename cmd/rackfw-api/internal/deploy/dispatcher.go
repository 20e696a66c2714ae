package deploy

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/samber/lo"

	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/eventbus"
	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/fleet"
	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/fw"
	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/metrics"
)

// bucketDispatch describes how one device class of a rack gets updated.
// Activation differs on purpose: compute trays need explicit redfish
// activation after the flash, switches activate themselves through a power
// cycle.
type bucketDispatch struct {
	lookupKey   string
	nodeType    fleet.NodeType
	displayName string
	activate    bool
}

// Apply dispatches one batch firmware update per populated device class of
// the rack, in the fixed order compute trays, power shelves, switches. The
// fleet manager distributes each batch to the individual nodes. Bucket
// failures are reported through the result counters, the call itself only
// errors when its preconditions fail.
func (o *Orchestrator) Apply(ctx context.Context, rackID string, firmwareID string, variant fw.Variant) (*fw.ApplyResult, error) {
	if rackID == "" {
		return nil, fw.Invalid("rack id is required")
	}

	f, err := o.store.FindFirmware(ctx, firmwareID)
	if err != nil {
		return nil, err
	}
	if !f.Available {
		return nil, fw.Precondition("firmware %q is not available yet", firmwareID)
	}
	if len(f.LookupTable) == 0 {
		return nil, fw.Precondition("firmware %q has no lookup table", firmwareID)
	}

	rack, err := o.store.FindRack(ctx, rackID)
	if err != nil {
		return nil, err
	}
	if !rack.HasDevices() {
		return nil, fw.Precondition("no devices found in rack %q", rackID)
	}

	o.log.Info("starting firmware apply operation",
		"rack", rackID, "firmware", firmwareID, "variant", variant,
		"computetrays", len(rack.ComputeTrays), "powershelves", len(rack.PowerShelves), "switches", len(rack.Switches))

	buckets := []struct {
		bucketDispatch
		hasDevices bool
	}{
		{bucketDispatch{"Compute Node", fleet.NodeTypeCompute, "Compute Node", true}, len(rack.ComputeTrays) > 0},
		{bucketDispatch{"Power Shelf", fleet.NodeTypePowerShelf, "Power Shelf", false}, len(rack.PowerShelves) > 0},
		{bucketDispatch{"Switch Tray", fleet.NodeTypeSwitch, "Switch", false}, len(rack.Switches) > 0},
	}

	result := &fw.ApplyResult{}
	for _, b := range buckets {
		if !b.hasDevices {
			continue
		}
		r := o.dispatchBucket(ctx, b.bucketDispatch, rackID, firmwareID, f.LookupTable, variant)
		if r.Success {
			result.Succeeded++
		} else {
			result.Failed++
		}
		metrics.CountDispatch(string(b.nodeType), r.Success)
		result.Results = append(result.Results, r)
	}
	result.Total = len(result.Results)

	o.log.Info("firmware apply operation completed",
		"rack", rackID, "firmware", firmwareID,
		"successful", result.Succeeded, "failed", result.Failed, "total", result.Total)

	eventbus.PublishFirmwareEvent(o.log, o.publisher, &fw.FirmwareEvent{
		Type:       fw.APPLY,
		FirmwareID: firmwareID,
		RackID:     rackID,
		Message:    fmt.Sprintf("%d of %d device types updated", result.Succeeded, result.Total),
	})

	return result, nil
}

func (o *Orchestrator) dispatchBucket(ctx context.Context, b bucketDispatch, rackID string, firmwareID string, table fw.LookupTable, variant fw.Variant) fw.DeviceUpdateResult {
	components := table.EntriesFor(b.lookupKey, variant)
	fw.SortByFlashOrder(b.lookupKey, components)

	if len(components) == 0 {
		o.log.Warn("no matching firmware found in configuration", "rack", rackID, "devicetype", b.displayName)
		return fw.DeviceUpdateResult{
			DeviceType: b.displayName,
			Success:    false,
			Message:    fmt.Sprintf("no matching firmware found in configuration for %s", b.displayName),
		}
	}

	if o.fleet == nil {
		o.log.Warn("fleet manager client not configured, cannot update firmware", "rack", rackID, "devicetype", b.displayName)
		return fw.DeviceUpdateResult{
			DeviceType: b.displayName,
			Success:    false,
			Message:    "fleet manager client not configured",
		}
	}

	targets := lo.Map(components, func(c fw.ResolvedComponent, _ int) fleet.FirmwareTarget {
		return fleet.FirmwareTarget{
			Target:   c.Target,
			Filename: filepath.Join(o.CacheDir(firmwareID), c.Filename),
		}
	})

	resp, err := o.fleet.UpdateFirmwareByNodeTypeAsync(ctx, &fleet.UpdateRequest{
		RackID:          rackID,
		NodeType:        b.nodeType,
		FirmwareTargets: targets,
		Activate:        b.activate,
	})
	if err != nil {
		o.log.Warn("failed to initiate async firmware update", "rack", rackID, "devicetype", b.displayName, "error", err)
		return fw.DeviceUpdateResult{
			DeviceType: b.displayName,
			Success:    false,
			Message:    "fleet manager error: " + err.Error(),
		}
	}

	nodeJobs := lo.Map(resp.NodeJobs, func(j fleet.NodeJob, _ int) fw.NodeJob {
		return fw.NodeJob{NodeID: j.NodeID, JobID: j.JobID}
	})
	for _, j := range nodeJobs {
		o.log.Info("firmware update job created", "devicetype", b.displayName, "node", j.NodeID, "job", j.JobID)
	}

	return fw.DeviceUpdateResult{
		DeviceType: b.displayName,
		Success:    resp.Status == fleet.ReturnCodeSuccess,
		Message:    fmt.Sprintf("async firmware update initiated for %d nodes: %s", resp.TotalNodes, resp.Message),
		JobID:      resp.JobID,
		NodeJobs:   nodeJobs,
	}
}
