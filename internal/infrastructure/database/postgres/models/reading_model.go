package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReadingModel represents the database model for sensor readings.
type ReadingModel struct {
	ID         uint64          `gorm:"primaryKey"`
	DeviceID   uint            `gorm:"not null;index:idx_device_sensor;index:idx_device_timestamp"`
	Sensor     string          `gorm:"type:varchar(50);not null;index:idx_device_sensor"`
	Value      decimal.Decimal `gorm:"type:decimal(10,4);not null"`
	Unit       string          `gorm:"type:varchar(20);not null"`
	Timestamp  time.Time       `gorm:"not null;index:idx_device_timestamp"`
	ReceivedAt time.Time       `gorm:"not null"`
}

func (ReadingModel) TableName() string {
	return "readings"
}
