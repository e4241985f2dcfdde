package entities

// DeviceInfo identifies the physical speaker. It is derived on demand from
// firmware output and never cached; either field falls back to "unknown" when
// the firmware does not report it.
type DeviceInfo struct {
	Model        string `json:"model"`
	SerialNumber string `json:"serial_number"`
}

// UnknownField is the placeholder used when a device identification token is
// missing from firmware output.
const UnknownField = "unknown"

// NewDeviceInfo builds a DeviceInfo, substituting "unknown" for empty tokens.
func NewDeviceInfo(model, serialNumber string) DeviceInfo {
	if model == "" {
		model = UnknownField
	}
	if serialNumber == "" {
		serialNumber = UnknownField
	}
	return DeviceInfo{Model: model, SerialNumber: serialNumber}
}
