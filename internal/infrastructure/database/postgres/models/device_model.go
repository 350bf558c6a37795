package models

import (
	"time"
)

// DeviceModel represents the database model for devices.
type DeviceModel struct {
	ID              uint       `gorm:"primaryKey"`
	DeviceID        string     `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name            *string    `gorm:"type:varchar(100)"`
	APIKeyHash      string     `gorm:"type:varchar(255);not null"`
	Approved        bool       `gorm:"not null;default:false;index"`
	FirmwareVersion *string    `gorm:"type:varchar(20)"`
	ReadingInterval int        `gorm:"not null;default:60000"`
	IPAddress       *string    `gorm:"column:ip_address;type:varchar(45)"`
	MACAddress      *string    `gorm:"column:mac_address;type:varchar(17)"`
	WiFiSSID        *string    `gorm:"column:wifi_ssid;type:varchar(32)"`
	SignalStrength  *int       `gorm:"type:integer"`
	Location        *string    `gorm:"type:varchar(100)"`
	Notes           *string    `gorm:"type:text"`
	CreatedAt       time.Time  `gorm:"not null"`
	LastSeen        *time.Time `gorm:"index"`
	LastReadingAt   *time.Time
	TotalReadings   int `gorm:"not null;default:0"`

	Readings []ReadingModel      `gorm:"foreignKey:DeviceID;constraint:OnDelete:CASCADE"`
	Updates  []DeviceUpdateModel `gorm:"foreignKey:DeviceID;constraint:OnDelete:CASCADE"`
}

func (DeviceModel) TableName() string {
	return "devices"
}
