package fw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "id present",
			raw:  `{"Id":"fw-2026-08","BoardSKUs":[]}`,
			want: "fw-2026-08",
		},
		{
			name:    "id missing",
			raw:     `{"BoardSKUs":[]}`,
			wantErr: true,
		},
		{
			name:    "id not a string",
			raw:     `{"Id":42}`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			raw:     `{"Id":`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ManifestID([]byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsInvalid(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseManifestMissingBoardSKUs(t *testing.T) {
	_, err := ParseManifest([]byte(`{"Id":"x","Components":{}}`))
	require.Error(t, err)
	assert.True(t, IsInvalid(err))
	assert.ErrorContains(t, err, "BoardSKUs")
}

func TestParseManifestDefaultsMissingFields(t *testing.T) {
	parsed, err := ParseManifest([]byte(`{"BoardSKUs":[{"SKUID":123},{}]}`))
	require.NoError(t, err)
	require.Len(t, parsed.BoardSKUs, 2)

	// non-string and missing scalars default to empty, never error
	assert.Empty(t, parsed.BoardSKUs[0].SKUID)
	assert.Empty(t, parsed.BoardSKUs[0].Name)
	assert.Empty(t, parsed.BoardSKUs[1].Type)
	assert.Empty(t, parsed.BoardSKUs[0].FirmwareComponents)
}

func TestParseManifestFiltersLocations(t *testing.T) {
	raw := `{
		"BoardSKUs": [{
			"SKUID": "699-24764-0001-TS3",
			"Name": "compute tray",
			"Type": "Compute",
			"Components": {
				"Firmware": [{
					"Component": "BMC",
					"Bundle": "P4975",
					"Version": "1.2.3",
					"Type": "Prod",
					"Locations": [
						{"Type": "Certificate", "Location": "https://repo.example.com/certs/bmc.pem", "LocationType": "URL"},
						{"Type": "Misc", "Location": "https://repo.example.com/misc/readme.txt", "LocationType": "URL"},
						{"Type": "Firmware", "Location": "https://repo.example.com/fw/bmc-1.2.3.fwpkg", "LocationType": "URL"}
					]
				}, {
					"Component": "CERT-ONLY",
					"Locations": [
						{"Type": "Certificate", "Location": "https://repo.example.com/certs/other.pem", "LocationType": "URL"}
					]
				}]
			}
		}]
	}`

	parsed, err := ParseManifest([]byte(raw))
	require.NoError(t, err)
	require.Len(t, parsed.BoardSKUs, 1)

	components := parsed.BoardSKUs[0].FirmwareComponents
	require.Len(t, components, 2)

	bmc := components[0]
	assert.Equal(t, "BMC", bmc.Component)
	assert.Equal(t, "P4975", bmc.Bundle)
	assert.Equal(t, "1.2.3", bmc.Version)
	assert.Equal(t, "Prod", bmc.Variant)
	require.Len(t, bmc.Locations, 1)
	assert.Equal(t, "https://repo.example.com/fw/bmc-1.2.3.fwpkg", bmc.Locations[0].URL)
	assert.True(t, bmc.Locations[0].IsFirmware)

	// a component with only certificate locations keeps an empty location list
	assert.Empty(t, components[1].Locations)
}

func TestParseManifestFiltersSubComponents(t *testing.T) {
	raw := `{
		"BoardSKUs": [{
			"SKUID": "699-24764-0001-TS3",
			"Components": {
				"Firmware": [{
					"Component": "Power Shelf FW",
					"SubComponents": [
						{"Component": "PSU", "Version": "2.0", "SKUID": "675-0001"},
						{"Component": "", "Version": "2.0"},
						{"Component": "BBU", "Version": ""},
						{"Version": "1.0"}
					]
				}]
			}
		}]
	}`

	parsed, err := ParseManifest([]byte(raw))
	require.NoError(t, err)

	subs := parsed.BoardSKUs[0].FirmwareComponents[0].SubComponents
	require.Len(t, subs, 1)
	assert.Equal(t, SubComponent{Component: "PSU", Version: "2.0", SKUID: "675-0001"}, subs[0])
}
