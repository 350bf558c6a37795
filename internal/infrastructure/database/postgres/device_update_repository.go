package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainFirmware "sensor-fleet-server/internal/domain/firmware"
	"sensor-fleet-server/internal/infrastructure/database/postgres/models"
	appErrors "sensor-fleet-server/pkg/errors"

	"gorm.io/gorm"
)

// DeviceUpdateRepository implements the firmware.UpdateRepository
// interface for OTA download attempts.
type DeviceUpdateRepository struct {
	db *gorm.DB
}

// NewDeviceUpdateRepository creates a new device update repository.
func NewDeviceUpdateRepository(db *gorm.DB) domainFirmware.UpdateRepository {
	return &DeviceUpdateRepository{db: db}
}

func (r *DeviceUpdateRepository) Create(ctx context.Context, u *domainFirmware.DeviceUpdate) error {
	if u.StartedAt.IsZero() {
		u.StartedAt = time.Now().UTC()
	}
	if u.Status == "" {
		u.Status = domainFirmware.UpdateStatusPending
	}

	dbModel := toDeviceUpdateModel(u)
	if err := r.db.WithContext(ctx).Create(dbModel).Error; err != nil {
		return fmt.Errorf("failed to create device update: %w", err)
	}

	u.ID = dbModel.ID
	u.StartedAt = dbModel.StartedAt

	return nil
}

// LatestForDeviceAndVersion picks the most recently started attempt so
// out-of-order status reports land on the right record.
func (r *DeviceUpdateRepository) LatestForDeviceAndVersion(ctx context.Context, deviceID uint, version string) (*domainFirmware.DeviceUpdate, error) {
	var dbModel models.DeviceUpdateModel
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND new_version = ?", deviceID, version).
		Order("started_at desc").
		Order("id desc").
		First(&dbModel).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appErrors.ErrUpdateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device update: %w", err)
	}

	return toDeviceUpdateEntity(&dbModel), nil
}

func (r *DeviceUpdateRepository) Complete(ctx context.Context, id uint, status domainFirmware.UpdateStatus, completedAt time.Time, errorMessage *string) error {
	updates := map[string]interface{}{
		"status":       string(status),
		"completed_at": completedAt,
	}
	if errorMessage != nil {
		updates["error_message"] = *errorMessage
	}

	result := r.db.WithContext(ctx).
		Model(&models.DeviceUpdateModel{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("failed to complete device update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return appErrors.ErrUpdateNotFound
	}

	return nil
}

func (r *DeviceUpdateRepository) ListByDevice(ctx context.Context, deviceID uint) ([]*domainFirmware.DeviceUpdate, error) {
	var dbModels []models.DeviceUpdateModel
	err := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("started_at desc").
		Order("id desc").
		Find(&dbModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list device updates: %w", err)
	}

	updates := make([]*domainFirmware.DeviceUpdate, len(dbModels))
	for i := range dbModels {
		updates[i] = toDeviceUpdateEntity(&dbModels[i])
	}

	return updates, nil
}

func toDeviceUpdateModel(u *domainFirmware.DeviceUpdate) *models.DeviceUpdateModel {
	return &models.DeviceUpdateModel{
		ID:              u.ID,
		DeviceID:        u.DeviceID,
		FirmwareID:      u.FirmwareID,
		PreviousVersion: u.PreviousVersion,
		NewVersion:      u.NewVersion,
		StartedAt:       u.StartedAt,
		CompletedAt:     u.CompletedAt,
		Status:          string(u.Status),
		ErrorMessage:    u.ErrorMessage,
	}
}

func toDeviceUpdateEntity(m *models.DeviceUpdateModel) *domainFirmware.DeviceUpdate {
	return &domainFirmware.DeviceUpdate{
		ID:              m.ID,
		DeviceID:        m.DeviceID,
		FirmwareID:      m.FirmwareID,
		PreviousVersion: m.PreviousVersion,
		NewVersion:      m.NewVersion,
		StartedAt:       m.StartedAt,
		CompletedAt:     m.CompletedAt,
		Status:          domainFirmware.UpdateStatus(m.Status),
		ErrorMessage:    m.ErrorMessage,
	}
}
