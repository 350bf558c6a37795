package ota

import (
	"io"

	domainFirmware "sensor-fleet-server/internal/domain/firmware"
)

// CheckResult describes update availability for one device. The URL
// points at the download endpoint for the offered version.
type CheckResult struct {
	UpdateAvailable bool
	CurrentVersion  string
	NewVersion      string
	FileSize        int64
	URL             string
	ReleaseNotes    *string
	// Message is set instead of an offer when the catalog has no active
	// firmware at all.
	Message string
}

// Download hands the binary stream to the transport layer. The caller
// owns File and must close it.
type Download struct {
	Firmware *domainFirmware.Firmware
	File     io.ReadCloser
	Size     int64
}

// StatusReport is the device's terminal outcome for one attempt.
type StatusReport struct {
	DeviceID     string  `json:"device_id"`
	Version      string  `json:"version"`
	Status       string  `json:"status"`
	ErrorMessage *string `json:"error_message,omitempty"`
}
