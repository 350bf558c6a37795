package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domainDevice "sensor-fleet-server/internal/domain/device"
	"sensor-fleet-server/internal/infrastructure/database/postgres/models"
	appErrors "sensor-fleet-server/pkg/errors"

	"gorm.io/gorm"
)

// DeviceRepository implements the device.Repository interface.
type DeviceRepository struct {
	db *gorm.DB
}

// NewDeviceRepository creates a new device repository.
func NewDeviceRepository(db *gorm.DB) domainDevice.Repository {
	return &DeviceRepository{db: db}
}

func (r *DeviceRepository) Create(ctx context.Context, d *domainDevice.Device) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if d.ReadingInterval == 0 {
		d.ReadingInterval = domainDevice.DefaultReadingInterval
	}

	dbModel := toDeviceModel(d)
	if err := r.db.WithContext(ctx).Create(dbModel).Error; err != nil {
		if isUniqueViolation(err) {
			return appErrors.ErrDeviceAlreadyExists
		}
		return fmt.Errorf("failed to create device: %w", err)
	}

	d.ID = dbModel.ID
	d.CreatedAt = dbModel.CreatedAt

	return nil
}

func (r *DeviceRepository) GetByDeviceID(ctx context.Context, deviceID string) (*domainDevice.Device, error) {
	var dbModel models.DeviceModel
	err := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		First(&dbModel).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appErrors.ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return toDeviceEntity(&dbModel), nil
}

func (r *DeviceRepository) List(ctx context.Context, filter domainDevice.Filter) ([]*domainDevice.Device, error) {
	query := r.db.WithContext(ctx).Model(&models.DeviceModel{})
	if filter.Approved != nil {
		query = query.Where("approved = ?", *filter.Approved)
	}

	var dbModels []models.DeviceModel
	if err := query.Order("device_id asc").Find(&dbModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	devices := make([]*domainDevice.Device, len(dbModels))
	for i := range dbModels {
		devices[i] = toDeviceEntity(&dbModels[i])
	}

	return devices, nil
}

func (r *DeviceRepository) Touch(ctx context.Context, deviceID string, liveness domainDevice.Liveness) error {
	updates := map[string]interface{}{
		"last_seen":  liveness.SeenAt,
		"ip_address": liveness.Network.IPAddress,
	}
	if liveness.Network.MACAddress != nil {
		updates["mac_address"] = *liveness.Network.MACAddress
	}
	if liveness.Network.WiFiSSID != nil {
		updates["wifi_ssid"] = *liveness.Network.WiFiSSID
	}
	if liveness.Network.SignalStrength != nil {
		updates["signal_strength"] = *liveness.Network.SignalStrength
	}
	if liveness.FirmwareVersion != nil {
		updates["firmware_version"] = *liveness.FirmwareVersion
	}

	return r.update(ctx, deviceID, updates)
}

func (r *DeviceRepository) UpdateProfile(ctx context.Context, deviceID string, update domainDevice.ProfileUpdate) error {
	updates := map[string]interface{}{}
	if update.Name != nil {
		updates["name"] = *update.Name
	}
	if update.Location != nil {
		updates["location"] = *update.Location
	}
	if update.Notes != nil {
		updates["notes"] = *update.Notes
	}
	if update.ReadingInterval != nil {
		updates["reading_interval"] = *update.ReadingInterval
	}
	if len(updates) == 0 {
		// Still surface not-found for unknown devices.
		_, err := r.GetByDeviceID(ctx, deviceID)
		return err
	}

	return r.update(ctx, deviceID, updates)
}

func (r *DeviceRepository) Approve(ctx context.Context, deviceID string) error {
	return r.update(ctx, deviceID, map[string]interface{}{"approved": true})
}

func (r *DeviceRepository) UpdateAPIKeyHash(ctx context.Context, deviceID, hash string) error {
	return r.update(ctx, deviceID, map[string]interface{}{"api_key_hash": hash})
}

func (r *DeviceRepository) SetFirmwareVersion(ctx context.Context, deviceID, version string) error {
	return r.update(ctx, deviceID, map[string]interface{}{"firmware_version": version})
}

func (r *DeviceRepository) Delete(ctx context.Context, deviceID string) error {
	// Child rows are removed in the same transaction; sqlite test
	// databases do not always enforce the declared cascades.
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dbModel models.DeviceModel
		err := tx.Where("device_id = ?", deviceID).First(&dbModel).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErrors.ErrDeviceNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get device: %w", err)
		}

		if err := tx.Where("device_id = ?", dbModel.ID).Delete(&models.ReadingModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete readings: %w", err)
		}
		if err := tx.Where("device_id = ?", dbModel.ID).Delete(&models.DeviceUpdateModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete update history: %w", err)
		}
		if err := tx.Delete(&dbModel).Error; err != nil {
			return fmt.Errorf("failed to delete device: %w", err)
		}
		return nil
	})
}

func (r *DeviceRepository) update(ctx context.Context, deviceID string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&models.DeviceModel{}).
		Where("device_id = ?", deviceID).
		Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("failed to update device: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return appErrors.ErrDeviceNotFound
	}

	return nil
}

// isUniqueViolation matches the duplicate-key wording of both postgres
// and the sqlite driver used in tests.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

func toDeviceModel(d *domainDevice.Device) *models.DeviceModel {
	return &models.DeviceModel{
		ID:              d.ID,
		DeviceID:        d.DeviceID,
		Name:            d.Name,
		APIKeyHash:      d.APIKeyHash,
		Approved:        d.Approved,
		FirmwareVersion: d.FirmwareVersion,
		ReadingInterval: d.ReadingInterval,
		IPAddress:       d.IPAddress,
		MACAddress:      d.MACAddress,
		WiFiSSID:        d.WiFiSSID,
		SignalStrength:  d.SignalStrength,
		Location:        d.Location,
		Notes:           d.Notes,
		CreatedAt:       d.CreatedAt,
		LastSeen:        d.LastSeen,
		LastReadingAt:   d.LastReadingAt,
		TotalReadings:   d.TotalReadings,
	}
}

func toDeviceEntity(m *models.DeviceModel) *domainDevice.Device {
	return &domainDevice.Device{
		ID:              m.ID,
		DeviceID:        m.DeviceID,
		Name:            m.Name,
		APIKeyHash:      m.APIKeyHash,
		Approved:        m.Approved,
		FirmwareVersion: m.FirmwareVersion,
		ReadingInterval: m.ReadingInterval,
		IPAddress:       m.IPAddress,
		MACAddress:      m.MACAddress,
		WiFiSSID:        m.WiFiSSID,
		SignalStrength:  m.SignalStrength,
		Location:        m.Location,
		Notes:           m.Notes,
		CreatedAt:       m.CreatedAt,
		LastSeen:        m.LastSeen,
		LastReadingAt:   m.LastReadingAt,
		TotalReadings:   m.TotalReadings,
	}
}
