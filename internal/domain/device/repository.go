package device

import (
	"context"
	"time"
)

// ProfileUpdate carries the administratively editable device fields.
// Nil pointers leave the corresponding column untouched.
type ProfileUpdate struct {
	Name            *string
	Location        *string
	Notes           *string
	ReadingInterval *int
}

// Liveness is the metadata refreshed on every authenticated contact.
type Liveness struct {
	SeenAt          time.Time
	Network         NetworkInfo
	FirmwareVersion *string
}

// Filter narrows List results.
type Filter struct {
	Approved *bool
}

// Repository is the persistence boundary for devices. The registry
// use case is the only writer of identity, approval and profile fields.
type Repository interface {
	Create(ctx context.Context, d *Device) error
	GetByDeviceID(ctx context.Context, deviceID string) (*Device, error)
	List(ctx context.Context, filter Filter) ([]*Device, error)
	Touch(ctx context.Context, deviceID string, liveness Liveness) error
	UpdateProfile(ctx context.Context, deviceID string, update ProfileUpdate) error
	Approve(ctx context.Context, deviceID string) error
	UpdateAPIKeyHash(ctx context.Context, deviceID, hash string) error
	SetFirmwareVersion(ctx context.Context, deviceID, version string) error
	Delete(ctx context.Context, deviceID string) error
}
