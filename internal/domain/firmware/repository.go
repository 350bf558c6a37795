package firmware

import (
	"context"
	"time"
)

// Repository is the persistence boundary for the firmware catalog.
type Repository interface {
	Create(ctx context.Context, fw *Firmware) error
	// LatestActive returns the active firmware with the most recent
	// upload time, ties broken by insertion order (last write wins), or
	// ErrFirmwareNotFound when the catalog holds no active build.
	LatestActive(ctx context.Context) (*Firmware, error)
	GetByVersion(ctx context.Context, version string, activeOnly bool) (*Firmware, error)
	List(ctx context.Context) ([]*Firmware, error)
	SetActive(ctx context.Context, version string, active bool) error
	IncrementDownloadCount(ctx context.Context, version string) error
}

// UpdateRepository is the persistence boundary for OTA download attempts.
type UpdateRepository interface {
	Create(ctx context.Context, u *DeviceUpdate) error
	// LatestForDeviceAndVersion returns the most recently started attempt
	// for the given device and target version, or ErrUpdateNotFound.
	LatestForDeviceAndVersion(ctx context.Context, deviceID uint, version string) (*DeviceUpdate, error)
	Complete(ctx context.Context, id uint, status UpdateStatus, completedAt time.Time, errorMessage *string) error
	ListByDevice(ctx context.Context, deviceID uint) ([]*DeviceUpdate, error)
}
