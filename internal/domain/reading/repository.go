package reading

import (
	"context"
)

// Filter narrows List results for the read/query interface.
type Filter struct {
	DeviceID *uint
	Sensor   string
	Limit    int
	Offset   int
}

// Repository is the persistence boundary for readings. CreateBatch must
// persist all readings of one submission together with the owning
// device's counter update (total_readings, last_reading_at) in a single
// transaction: either everything commits or nothing does.
type Repository interface {
	CreateBatch(ctx context.Context, deviceID uint, readings []*Reading) error
	List(ctx context.Context, filter Filter) ([]*Reading, error)
}
