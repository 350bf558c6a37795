package firmware

import (
	"time"
)

// Firmware is a versioned binary artifact eligible for OTA distribution
// while Active is set. Version comparison throughout the system is exact
// string inequality, not semantic-version ordering: a device that rolls
// back to an older declared version is still offered the latest active
// build.
type Firmware struct {
	ID               uint
	Version          string
	Filename         string
	OriginalFilename string
	FileSize         int64
	FileHash         string
	ReleaseNotes     *string
	UploadedAt       time.Time
	Active           bool
	DownloadCount    int
}

// UpdateStatus tracks one device's download attempt from start to a
// terminal outcome.
type UpdateStatus string

const (
	UpdateStatusPending     UpdateStatus = "pending"
	UpdateStatusDownloading UpdateStatus = "downloading"
	UpdateStatusSuccess     UpdateStatus = "success"
	UpdateStatusFailed      UpdateStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s UpdateStatus) Valid() bool {
	switch s {
	case UpdateStatusPending, UpdateStatusDownloading, UpdateStatusSuccess, UpdateStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is an end state that accepts no further
// transitions.
func (s UpdateStatus) Terminal() bool {
	return s == UpdateStatusSuccess || s == UpdateStatusFailed
}

// DeviceUpdate is one OTA download attempt for a (device, target
// version) pair. Multiple records per device form the attempt history;
// the most recently started one for a target version is authoritative
// for status reports.
type DeviceUpdate struct {
	ID              uint
	DeviceID        uint
	FirmwareID      uint
	PreviousVersion *string
	NewVersion      string
	StartedAt       time.Time
	CompletedAt     *time.Time
	Status          UpdateStatus
	ErrorMessage    *string
}
