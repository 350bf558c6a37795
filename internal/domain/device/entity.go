package device

import (
	"time"
)

// DefaultReadingInterval is the server-suggested reporting cadence, in
// milliseconds, assigned to newly registered devices.
const DefaultReadingInterval = 60000

// Device is one physical sensor unit known to the server. The external
// DeviceID is immutable once created; APIKeyHash holds only the bcrypt
// hash of the device credential, never the plaintext.
type Device struct {
	ID              uint
	DeviceID        string
	Name            *string
	APIKeyHash      string
	Approved        bool
	FirmwareVersion *string
	ReadingInterval int
	IPAddress       *string
	MACAddress      *string
	WiFiSSID        *string
	SignalStrength  *int
	Location        *string
	Notes           *string
	CreatedAt       time.Time
	LastSeen        *time.Time
	LastReadingAt   *time.Time
	TotalReadings   int
}

// NetworkInfo carries the best-effort, device-reported network metadata
// refreshed on every authenticated contact.
type NetworkInfo struct {
	IPAddress      string
	MACAddress     *string
	WiFiSSID       *string
	SignalStrength *int
}

// IsOnline reports whether the device has been seen within the given
// threshold. A device that never checked in is offline.
func (d *Device) IsOnline(thresholdMinutes int, now time.Time) bool {
	if d.LastSeen == nil {
		return false
	}
	return now.Sub(*d.LastSeen) < time.Duration(thresholdMinutes)*time.Minute
}
