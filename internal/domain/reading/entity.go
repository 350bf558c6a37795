package reading

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reading is a single sensor measurement. Rows are immutable once
// created; values are fixed-point with four decimal places so long time
// series do not accumulate floating-point drift.
type Reading struct {
	ID         uint64
	DeviceID   uint
	Sensor     string
	Value      decimal.Decimal
	Unit       string
	Timestamp  time.Time
	ReceivedAt time.Time
}
