package audio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func devicesFixture() []Device {
	return []Device{
		{ID: "alsa_input.usb-blue_yeti", Description: "Blue Yeti", Available: true},
		{ID: "alsa_input.pci-internal", Description: "Internal Microphone", Available: true, Default: true},
		{ID: "alsa_input.usb-muted_mic", Description: "Muted Mic", Available: true, Muted: true},
		{ID: "alsa_input.usb-unplugged", Description: "Unplugged Headset", Available: false},
	}
}

func TestSelectDeviceDefault(t *testing.T) {
	selection, err := selectDeviceFromList(devicesFixture(), "default", "default")
	require.NoError(t, err)
	require.Equal(t, "alsa_input.pci-internal", selection.Device.ID)
	require.Empty(t, selection.Warning)
}

func TestSelectDeviceByTerm(t *testing.T) {
	selection, err := selectDeviceFromList(devicesFixture(), "yeti", "default")
	require.NoError(t, err)
	require.Equal(t, "alsa_input.usb-blue_yeti", selection.Device.ID)
}

func TestSelectDeviceMutedPrimaryFallsBackToDefault(t *testing.T) {
	selection, err := selectDeviceFromList(devicesFixture(), "muted", "default")
	require.NoError(t, err)
	require.Equal(t, "alsa_input.pci-internal", selection.Device.ID)
	require.Contains(t, selection.Warning, "muted")
	require.True(t, selection.Fallback)
}

func TestSelectDeviceUnavailablePrimaryUsesNamedFallback(t *testing.T) {
	selection, err := selectDeviceFromList(devicesFixture(), "unplugged", "yeti")
	require.NoError(t, err)
	require.Equal(t, "alsa_input.usb-blue_yeti", selection.Device.ID)
	require.True(t, selection.Fallback)
}

func TestSelectDeviceNoMatch(t *testing.T) {
	_, err := selectDeviceFromList(devicesFixture(), "nonexistent", "default")
	require.Error(t, err)
	require.Contains(t, err.Error(), "did not match")
}

func TestSelectDeviceEmptyList(t *testing.T) {
	_, err := selectDeviceFromList(nil, "default", "default")
	require.Error(t, err)
}

func TestChunkSizeIsHundredMilliseconds(t *testing.T) {
	require.Equal(t, 8820, ChunkSizeBytes())
	require.Equal(t, 100, ChunkSizeBytes()/BytesPerMillisecond())
}
