package models

import (
	"time"
)

// FirmwareModel represents the database model for firmware artifacts.
type FirmwareModel struct {
	ID               uint      `gorm:"primaryKey"`
	Version          string    `gorm:"type:varchar(20);not null;uniqueIndex"`
	Filename         string    `gorm:"type:varchar(255);not null"`
	OriginalFilename string    `gorm:"type:varchar(255);not null"`
	FileSize         int64     `gorm:"not null"`
	FileHash         string    `gorm:"type:varchar(64);not null"`
	ReleaseNotes     *string   `gorm:"type:text"`
	UploadedAt       time.Time `gorm:"not null"`
	Active           bool      `gorm:"not null;index"`
	DownloadCount    int       `gorm:"not null;default:0"`
}

func (FirmwareModel) TableName() string {
	return "firmware"
}

// DeviceUpdateModel represents the database model for OTA download
// attempts. Firmware rows are never cascade-deleted through updates.
type DeviceUpdateModel struct {
	ID              uint    `gorm:"primaryKey"`
	DeviceID        uint    `gorm:"not null;index:idx_update_device_version"`
	FirmwareID      uint    `gorm:"not null"`
	PreviousVersion *string `gorm:"type:varchar(20)"`
	NewVersion      string  `gorm:"type:varchar(20);not null;index:idx_update_device_version"`
	StartedAt       time.Time `gorm:"not null"`
	CompletedAt     *time.Time
	Status          string  `gorm:"type:varchar(20);not null;default:'pending'"`
	ErrorMessage    *string `gorm:"type:text"`

	Firmware FirmwareModel `gorm:"foreignKey:FirmwareID"`
}

func (DeviceUpdateModel) TableName() string {
	return "device_updates"
}
