package fw

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSKUClassifierClassify(t *testing.T) {
	classifier := NewSKUClassifier(nil, nil)

	tests := []struct {
		name  string
		skuID string
		want  DeviceType
	}{
		{
			name:  "compute tray",
			skuID: "699-24764-0001-TS3",
			want:  DeviceTypeComputeTray,
		},
		{
			name:  "switch tray",
			skuID: "920-9K36F-00MV-QS1",
			want:  DeviceTypeSwitchTray,
		},
		{
			name:  "first matching token wins across the whole list",
			skuID: "699-24764-0001-TS3,999-FOO",
			want:  DeviceTypeComputeTray,
		},
		{
			name:  "match on a later token",
			skuID: "999-FOO,692-9K36N-09MV-JSO",
			want:  DeviceTypeSwitchTray,
		},
		{
			name:  "tokens are trimmed",
			skuID: " 699-24764-0001-TS1 , 999-FOO",
			want:  DeviceTypeComputeTray,
		},
		{
			name:  "unknown sku",
			skuID: "999-FOO",
			want:  DeviceTypeUnknown,
		},
		{
			name:  "empty sku",
			skuID: "",
			want:  DeviceTypeUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifier.Classify(tt.skuID))
		})
	}
}

func TestSKUClassifierOverrides(t *testing.T) {
	classifier := NewSKUClassifier([]string{"100-CUSTOM"}, []string{"200-CUSTOM"})

	assert.Equal(t, DeviceTypeComputeTray, classifier.Classify("100-CUSTOM"))
	assert.Equal(t, DeviceTypeSwitchTray, classifier.Classify("200-CUSTOM"))
	// defaults are replaced, not extended
	assert.Equal(t, DeviceTypeUnknown, classifier.Classify("699-24764-0001-TS3"))
}

func TestDeviceTypeLookupKey(t *testing.T) {
	assert.Equal(t, "Compute Node", DeviceTypeComputeTray.LookupKey())
	assert.Equal(t, "Switch Tray", DeviceTypeSwitchTray.LookupKey())
	assert.Equal(t, "Power Shelf", DeviceTypePowerShelf.LookupKey())
	assert.Empty(t, DeviceTypeUnknown.LookupKey())
}
