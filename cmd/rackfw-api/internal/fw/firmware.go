package fw

// Variant is the build channel of a firmware bundle.
type Variant = string

const (
	VariantProd Variant = "prod"
	VariantDev  Variant = "dev"
)

// FirmwareConfig is a rack firmware configuration as stored in the database.
// It is created with Available=false and is flipped to true exactly once by
// its own background download run, together with the lookup table, in a
// single atomic update. A failed run leaves it unavailable forever, only a
// brand-new configuration can supersede it.
type FirmwareConfig struct {
	Base
	RawManifest string            `rethinkdb:"rawmanifest" json:"rawmanifest" description:"the raw vendor manifest JSON"`
	Parsed      *ParsedComponents `rethinkdb:"parsed" json:"parsed,omitempty" description:"the parsed component tree, nil if the manifest could not be parsed"`
	LookupTable LookupTable       `rethinkdb:"lookuptable" json:"lookuptable,omitempty" description:"the firmware lookup table, set once all downloads succeeded"`
	Available   bool              `rethinkdb:"available" json:"available" description:"true once all firmware artifacts are cached"`
}

// FirmwareConfigs is a list of firmware configurations.
type FirmwareConfigs []FirmwareConfig

// ParsedComponents is the typed component tree extracted from a vendor manifest.
type ParsedComponents struct {
	BoardSKUs []BoardSKU `rethinkdb:"boardskus" json:"boardskus"`
}

// BoardSKU describes one board entry of a vendor manifest.
type BoardSKU struct {
	SKUID              string              `rethinkdb:"skuid" json:"skuid"`
	Name               string              `rethinkdb:"name" json:"name"`
	Type               string              `rethinkdb:"type" json:"type"`
	FirmwareComponents []FirmwareComponent `rethinkdb:"firmwarecomponents" json:"firmwarecomponents"`
}

// FirmwareComponent is a single firmware bundle of a board.
type FirmwareComponent struct {
	Component string `rethinkdb:"component" json:"component"`
	Bundle    string `rethinkdb:"bundle" json:"bundle,omitempty"`
	Version   string `rethinkdb:"version" json:"version,omitempty"`
	// Variant is the raw build channel from the manifest ("Prod" or "Dev"),
	// empty if unspecified. Normalization to lowercase with a prod default
	// happens during lookup-table construction.
	Variant       string         `rethinkdb:"variant" json:"variant,omitempty"`
	Locations     []Location     `rethinkdb:"locations" json:"locations"`
	SubComponents []SubComponent `rethinkdb:"subcomponents" json:"subcomponents,omitempty"`
}

// Location points to a downloadable artifact of a firmware component. The
// manifest parser only retains locations declared as firmware, certificate
// and misc entries are dropped.
type Location struct {
	URL          string `rethinkdb:"url" json:"url"`
	LocationType string `rethinkdb:"locationtype" json:"locationtype"`
	IsFirmware   bool   `rethinkdb:"isfirmware" json:"isfirmware"`
}

// SubComponent is an individually versioned part of a firmware bundle.
type SubComponent struct {
	Component string `rethinkdb:"component" json:"component"`
	Version   string `rethinkdb:"version" json:"version"`
	SKUID     string `rethinkdb:"skuid" json:"skuid,omitempty"`
}

// LookupTable maps a device-type display key (e.g. "Compute Node") to a map
// of "{lookupkey}_{variant}" keys to lookup entries, so prod and dev builds
// of one logical component coexist without collision.
type LookupTable map[string]map[string]LookupEntry

// LookupEntry points to one cached firmware file for one flash target.
type LookupEntry struct {
	Filename      string         `rethinkdb:"filename" json:"filename"`
	Target        string         `rethinkdb:"target" json:"target"`
	Component     string         `rethinkdb:"component" json:"component"`
	Bundle        string         `rethinkdb:"bundle" json:"bundle,omitempty"`
	Variant       string         `rethinkdb:"variant" json:"variant"`
	Version       string         `rethinkdb:"version" json:"version,omitempty"`
	SubComponents []SubComponent `rethinkdb:"subcomponents" json:"subcomponents,omitempty"`
}

// Rack describes the device inventory of one rack.
type Rack struct {
	Base
	ComputeTrays []string `rethinkdb:"computetrays" json:"computetrays"`
	PowerShelves []string `rethinkdb:"powershelves" json:"powershelves"`
	Switches     []string `rethinkdb:"switches" json:"switches"`
}

// Racks is a list of racks.
type Racks []Rack

// HasDevices returns true if the rack contains at least one device of any
// tracked type.
func (r *Rack) HasDevices() bool {
	return len(r.ComputeTrays) > 0 || len(r.PowerShelves) > 0 || len(r.Switches) > 0
}

// NodeJob is the per-node job handle returned by the fleet manager.
type NodeJob struct {
	NodeID string `json:"node_id"`
	JobID  string `json:"job_id"`
}

// DeviceUpdateResult is the outcome of dispatching one device-type bucket.
type DeviceUpdateResult struct {
	DeviceType string    `json:"device_type"`
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	JobID      string    `json:"job_id,omitempty"`
	NodeJobs   []NodeJob `json:"node_jobs,omitempty"`
}

// ApplyResult aggregates the per-bucket outcomes of one apply operation.
// Partial failure is communicated through the counters, the operation itself
// returns without error even when some buckets failed.
type ApplyResult struct {
	Total     int                  `json:"total"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	Results   []DeviceUpdateResult `json:"results"`
}
