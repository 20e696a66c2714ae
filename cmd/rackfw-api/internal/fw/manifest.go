package fw

import (
	"github.com/tidwall/gjson"
)

const locationTypeFirmware = "Firmware"

// str returns the value of a string field, empty for absent or non-string
// values. gjson's own String() would stringify numbers and booleans.
func str(r gjson.Result) string {
	if r.Type == gjson.String {
		return r.Str
	}
	return ""
}

// ManifestID extracts the top-level "Id" field of a raw vendor manifest,
// which callers must use as the configuration id.
func ManifestID(raw []byte) (string, error) {
	if !gjson.ValidBytes(raw) {
		return "", Invalid("manifest is not valid JSON")
	}
	id := gjson.GetBytes(raw, "Id")
	if id.Type != gjson.String || id.String() == "" {
		return "", Invalid("manifest must contain an 'Id' field to use as identifier")
	}
	return id.String(), nil
}

// ParseManifest turns an opaque vendor manifest into a typed component tree.
// It is a pure structural transform: the only fatal condition is a missing
// top-level BoardSKUs array. Scalar fields that are absent or not strings
// default to the empty string, missing substructures yield empty lists.
// Locations are filtered down to firmware entries, certificate and misc
// locations are dropped silently. Subcomponents are kept only when both
// component name and version are non-empty.
func ParseManifest(raw []byte) (*ParsedComponents, error) {
	doc := gjson.ParseBytes(raw)

	boardSKUs := doc.Get("BoardSKUs")
	if !boardSKUs.IsArray() {
		return nil, Invalid("manifest must contain a 'BoardSKUs' array")
	}

	parsed := &ParsedComponents{}

	for _, board := range boardSKUs.Array() {
		sku := BoardSKU{
			SKUID: str(board.Get("SKUID")),
			Name:  str(board.Get("Name")),
			Type:  str(board.Get("Type")),
		}

		// firmware components only, software is ignored
		for _, component := range board.Get("Components.Firmware").Array() {
			c := FirmwareComponent{
				Component: str(component.Get("Component")),
				Bundle:    str(component.Get("Bundle")),
				Version:   str(component.Get("Version")),
				Variant:   str(component.Get("Type")),
			}

			for _, location := range component.Get("Locations").Array() {
				if str(location.Get("Type")) != locationTypeFirmware {
					continue
				}
				c.Locations = append(c.Locations, Location{
					URL:          str(location.Get("Location")),
					LocationType: str(location.Get("LocationType")),
					IsFirmware:   true,
				})
			}

			for _, sub := range component.Get("SubComponents").Array() {
				s := SubComponent{
					Component: str(sub.Get("Component")),
					Version:   str(sub.Get("Version")),
					SKUID:     str(sub.Get("SKUID")),
				}
				if s.Component == "" || s.Version == "" {
					continue
				}
				c.SubComponents = append(c.SubComponents, s)
			}

			sku.FirmwareComponents = append(sku.FirmwareComponents, c)
		}

		parsed.BoardSKUs = append(parsed.BoardSKUs, sku)
	}

	return parsed, nil
}
