package ingest

import (
	"time"
)

// ReadingInput is one item of a submitted batch. Value is a pointer so
// an absent value is distinguishable from zero; Timestamp is the
// device's Unix timestamp in seconds, if it has a clock.
type ReadingInput struct {
	Sensor    string   `json:"sensor"`
	Value     *float64 `json:"value"`
	Unit      string   `json:"unit"`
	Timestamp *int64   `json:"timestamp,omitempty"`
}

// SubmitRequest is the device-facing ingestion payload. Field names are
// part of the firmware compatibility contract.
type SubmitRequest struct {
	DeviceID        string         `json:"device_id"`
	APIKey          string         `json:"api_key"`
	FirmwareVersion string         `json:"firmware_version,omitempty"`
	MACAddress      *string        `json:"mac_address,omitempty"`
	WiFiSSID        *string        `json:"wifi_ssid,omitempty"`
	SignalStrength  *int           `json:"signal_strength,omitempty"`
	Readings        []ReadingInput `json:"readings"`
}

// SubmitResult tells the transport layer which of the three success
// shapes to emit: registration (plaintext key, once), or the regular
// acknowledgement. The pending-approval case surfaces as
// ErrDeviceNotApproved, not as a result.
type SubmitResult struct {
	Registered   bool
	PlaintextKey string

	DeviceID        string
	Received        int
	ServerTime      time.Time
	ReadingInterval int
}
