package registry

import (
	domainDevice "sensor-fleet-server/internal/domain/device"
)

// AuthResult is the outcome of RegisterOrAuthenticate.
//
// Registered is true only on first contact; PlaintextKey is populated on
// that path (and by RegenerateCredential) and is the only time the
// secret crosses the boundary in the clear.
type AuthResult struct {
	Device       *domainDevice.Device
	Registered   bool
	PlaintextKey string
}

// UpdateProfileRequest carries the administratively editable fields.
type UpdateProfileRequest struct {
	Name            *string `json:"name" validate:"omitempty,max=100"`
	Location        *string `json:"location" validate:"omitempty,max=100"`
	Notes           *string `json:"notes"`
	ReadingInterval *int    `json:"reading_interval" validate:"omitempty,min=1000,max=86400000"`
}

// DeviceResponse is the read-side projection exposed to the admin API.
type DeviceResponse struct {
	ID              uint    `json:"id"`
	DeviceID        string  `json:"device_id"`
	Name            *string `json:"name"`
	Approved        bool    `json:"approved"`
	FirmwareVersion *string `json:"firmware_version"`
	ReadingInterval int     `json:"reading_interval"`
	IPAddress       *string `json:"ip_address"`
	MACAddress      *string `json:"mac_address"`
	WiFiSSID        *string `json:"wifi_ssid"`
	SignalStrength  *int    `json:"signal_strength"`
	Location        *string `json:"location"`
	Notes           *string `json:"notes"`
	CreatedAt       string  `json:"created_at"`
	LastSeen        *string `json:"last_seen"`
	LastReadingAt   *string `json:"last_reading_at"`
	TotalReadings   int     `json:"total_readings"`
	Online          bool    `json:"online"`
}
