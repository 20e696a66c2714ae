package fw

import "strings"

// DeviceType is the closed taxonomy of rack hardware the orchestrator knows
// how to flash.
type DeviceType string

const (
	DeviceTypeComputeTray DeviceType = "compute-tray"
	DeviceTypeSwitchTray  DeviceType = "switch-tray"
	DeviceTypePowerShelf  DeviceType = "power-shelf"
	DeviceTypeUnknown     DeviceType = "unknown"
)

// LookupKey returns the display key under which entries of this device type
// are stored in the firmware lookup table.
func (d DeviceType) LookupKey() string {
	switch d {
	case DeviceTypeComputeTray:
		return "Compute Node"
	case DeviceTypeSwitchTray:
		return "Switch Tray"
	case DeviceTypePowerShelf:
		return "Power Shelf"
	default:
		return ""
	}
}

// Default SKU allow-lists. These are exact literal SKU ids from the vendor,
// not patterns. They can be overridden through the configuration so that new
// hardware revisions do not require a code change.
var (
	DefaultComputeTraySKUs = []string{
		"699-24764-0001-TS3",
		"699-24764-0001-TS1",
	}

	DefaultSwitchTraySKUs = []string{
		"920-9K36F-00MV-QS1",
		"692-9K36F-00MV-JQS",
		"920-9K36F-B4MV-QS1",
		"692-9K36F-B4MV-JD0",
		"920-9K36F-A5MV-QS1",
		"692-9K36F-A5MV-JQS",
		"920-9K36N-00MV-QS1",
		"692-9K36N-00MV-JQS",
		"920-9K36N-09MV-QS1",
		"692-9K36N-09MV-JSO",
	}
)

// SKUClassifier maps board SKU identifier strings to device types based on
// static allow-lists.
type SKUClassifier struct {
	computeTraySKUs map[string]bool
	switchTraySKUs  map[string]bool
}

// NewSKUClassifier creates a classifier from the given allow-lists. Empty
// lists fall back to the compiled-in defaults.
func NewSKUClassifier(computeTraySKUs, switchTraySKUs []string) *SKUClassifier {
	if len(computeTraySKUs) == 0 {
		computeTraySKUs = DefaultComputeTraySKUs
	}
	if len(switchTraySKUs) == 0 {
		switchTraySKUs = DefaultSwitchTraySKUs
	}
	c := &SKUClassifier{
		computeTraySKUs: make(map[string]bool, len(computeTraySKUs)),
		switchTraySKUs:  make(map[string]bool, len(switchTraySKUs)),
	}
	for _, sku := range computeTraySKUs {
		c.computeTraySKUs[sku] = true
	}
	for _, sku := range switchTraySKUs {
		c.switchTraySKUs[sku] = true
	}
	return c
}

// Classify maps a board's SKU id string to a device type. The field may
// contain multiple comma-separated SKU ids; tokens are trimmed and checked
// in order, compute tray before switch tray, and the first match across all
// tokens wins. If no token matches any allow-list the device is unknown.
func (c *SKUClassifier) Classify(skuID string) DeviceType {
	for _, token := range strings.Split(skuID, ",") {
		token = strings.TrimSpace(token)
		if c.computeTraySKUs[token] {
			return DeviceTypeComputeTray
		}
		if c.switchTraySKUs[token] {
			return DeviceTypeSwitchTray
		}
	}
	return DeviceTypeUnknown
}
