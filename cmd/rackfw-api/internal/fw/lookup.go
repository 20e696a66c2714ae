package fw

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// extraction names one firmware component that must be extracted for a
// device type: the component name to match in the manifest, the key under
// which it is stored in the lookup table and the flash target identifier
// sent to the fleet manager.
type extraction struct {
	match  string
	key    string
	target string
}

var extractions = map[DeviceType][]extraction{
	DeviceTypeComputeTray: {
		{match: "HMC", key: "HMC", target: "/redfish/v1/Chassis/HGX_Chassis_0"},
		{match: "BMC", key: "BMC", target: "FW_BMC_0"},
	},
	DeviceTypeSwitchTray: {
		{match: "BMC+FPGA+EROT", key: "BMC", target: "bmc"},
		{match: "BMC+FPGA+EROT", key: "FPGA", target: "fpga"},
		{match: "BMC+FPGA+EROT", key: "EROT", target: "erot"},
		// CPLD is not extracted, the fleet manager does not support CPLD updates yet
		{match: "SBIOS+EROT", key: "BIOS", target: "bios"},
	},
	DeviceTypePowerShelf: {
		// power shelf firmware ships embedded in compute tray manifests
		// TODO: confirm the power shelf target once the fleet manager supports it
		{match: "Power Shelf FW", key: "PowerShelfFW", target: "TODO_POWERSHELF_TARGET"},
	},
}

// flashOrders encodes the hardware-mandated flash sequence per lookup bucket
// key. Flashing out of order can brick a device.
var flashOrders = map[string][]string{
	DeviceTypeSwitchTray.LookupKey():  {"bmc", "fpga", "erot", "bios"},
	DeviceTypeComputeTray.LookupKey(): {"/redfish/v1/Chassis/HGX_Chassis_0", "FW_BMC_0"},
}

// FlashOrder returns the hardware-mandated flash sequence of target
// identifiers for a lookup bucket key, nil if no ordering constraint exists.
func FlashOrder(deviceKey string) []string {
	return flashOrders[deviceKey]
}

// BuildLookupTable reduces a parsed manifest to the normalized lookup table
// mapping device-type keys to "{lookupkey}_{variant}" entries. It is a pure,
// deterministic transform without I/O. Boards with an unknown SKU are
// skipped. Compute tray boards run a second, independent extraction pass
// with the power shelf component set against the same board, because power
// shelf firmware ships embedded inside compute tray manifests.
func BuildLookupTable(log *slog.Logger, parsed *ParsedComponents, classifier *SKUClassifier) LookupTable {
	table := LookupTable{}

	for _, board := range parsed.BoardSKUs {
		deviceType := classifier.Classify(board.SKUID)
		if deviceType == DeviceTypeUnknown {
			log.Debug("unknown device type for board sku, skipping", "skuid", board.SKUID, "name", board.Name)
			continue
		}

		toExtract := extractions[deviceType]

		var powerShelfExtract []extraction
		if deviceType == DeviceTypeComputeTray {
			powerShelfExtract = extractions[DeviceTypePowerShelf]
		}

		entries := map[string]LookupEntry{}
		powerShelfEntries := map[string]LookupEntry{}

		for _, component := range board.FirmwareComponents {
			variant := strings.ToLower(component.Variant)
			if variant == "" {
				variant = VariantProd
			}

			for _, e := range toExtract {
				if component.Component != e.match {
					continue
				}
				// the first retained firmware location carries the file
				if len(component.Locations) == 0 {
					continue
				}
				filename := urlFilename(component.Locations[0].URL)
				entries[e.key+"_"+variant] = LookupEntry{
					Filename:      filename,
					Target:        e.target,
					Component:     component.Component,
					Bundle:        component.Bundle,
					Variant:       variant,
					Version:       component.Version,
					SubComponents: component.SubComponents,
				}
				log.Debug("added firmware component to lookup table",
					"devicetype", deviceType, "component", component.Component,
					"variant", variant, "filename", filename, "target", e.target)
			}

			for _, e := range powerShelfExtract {
				if component.Component != e.match {
					continue
				}
				// the subcomponents carry the individual power shelf files
				powerShelfEntries[e.key+"_"+variant] = LookupEntry{
					Filename:      "",
					Target:        e.target,
					Component:     component.Component,
					Bundle:        component.Bundle,
					Variant:       variant,
					Version:       component.Version,
					SubComponents: component.SubComponents,
				}
				log.Debug("added power shelf firmware component to lookup table",
					"component", component.Component, "target", e.target)
			}
		}

		if len(entries) > 0 {
			mergeBucket(table, deviceType.LookupKey(), entries)
		}
		if len(powerShelfEntries) > 0 {
			mergeBucket(table, DeviceTypePowerShelf.LookupKey(), powerShelfEntries)
		}
	}

	return table
}

func mergeBucket(table LookupTable, deviceKey string, entries map[string]LookupEntry) {
	bucket, ok := table[deviceKey]
	if !ok {
		bucket = map[string]LookupEntry{}
		table[deviceKey] = bucket
	}
	for key, entry := range entries {
		bucket[key] = entry
	}
}

// ResolvedComponent is one lookup entry resolved for dispatch.
type ResolvedComponent struct {
	Component string
	Filename  string
	Target    string
}

// EntriesFor returns the resolved components of the given device-type bucket
// whose variant matches the requested one, case-insensitively. The result is
// ordered by component key so repeated calls are deterministic.
func (t LookupTable) EntriesFor(deviceKey string, variant Variant) []ResolvedComponent {
	bucket, ok := t[deviceKey]
	if !ok {
		return nil
	}

	want := strings.ToLower(variant)

	keys := lo.Keys(bucket)
	sort.Strings(keys)

	var components []ResolvedComponent
	for _, key := range keys {
		entry := bucket[key]
		if strings.ToLower(entry.Variant) != want {
			continue
		}
		components = append(components, ResolvedComponent{
			Component: key,
			Filename:  entry.Filename,
			Target:    entry.Target,
		})
	}
	return components
}

// SortByFlashOrder stable-sorts resolved components into the flash sequence
// of the given device-type bucket. Targets not present in the order list
// sort after all ordered entries, keeping their relative order.
func SortByFlashOrder(deviceKey string, components []ResolvedComponent) {
	order := FlashOrder(deviceKey)
	position := func(target string) int {
		if i := lo.IndexOf(order, target); i >= 0 {
			return i
		}
		return len(order)
	}
	sort.SliceStable(components, func(i, j int) bool {
		return position(components[i].Target) < position(components[j].Target)
	})
}

func urlFilename(url string) string {
	parts := strings.Split(url, "/")
	return parts[len(parts)-1]
}
