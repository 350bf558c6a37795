package postgres

import (
	"context"
	"fmt"
	"time"

	domainReading "sensor-fleet-server/internal/domain/reading"
	"sensor-fleet-server/internal/infrastructure/database/postgres/models"

	"gorm.io/gorm"
)

// ReadingRepository implements the reading.Repository interface.
type ReadingRepository struct {
	db *gorm.DB
}

// NewReadingRepository creates a new reading repository.
func NewReadingRepository(db *gorm.DB) domainReading.Repository {
	return &ReadingRepository{db: db}
}

// CreateBatch persists all readings of one submission and the owning
// device's counters in a single transaction. The batch either fully
// commits or fully rolls back.
func (r *ReadingRepository) CreateBatch(ctx context.Context, deviceID uint, readings []*domainReading.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	now := time.Now().UTC()
	dbModels := make([]models.ReadingModel, len(readings))
	for i, rd := range readings {
		dbModels[i] = models.ReadingModel{
			DeviceID:   deviceID,
			Sensor:     rd.Sensor,
			Value:      rd.Value,
			Unit:       rd.Unit,
			Timestamp:  rd.Timestamp,
			ReceivedAt: rd.ReceivedAt,
		}
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&dbModels).Error; err != nil {
			return fmt.Errorf("failed to insert readings: %w", err)
		}

		result := tx.Model(&models.DeviceModel{}).
			Where("id = ?", deviceID).
			Updates(map[string]interface{}{
				"total_readings":  gorm.Expr("total_readings + ?", len(readings)),
				"last_reading_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update device counters: %w", result.Error)
		}

		return nil
	})
	if err != nil {
		return err
	}

	for i := range readings {
		readings[i].ID = dbModels[i].ID
		readings[i].DeviceID = deviceID
	}

	return nil
}

func (r *ReadingRepository) List(ctx context.Context, filter domainReading.Filter) ([]*domainReading.Reading, error) {
	query := r.db.WithContext(ctx).Model(&models.ReadingModel{})
	if filter.DeviceID != nil {
		query = query.Where("device_id = ?", *filter.DeviceID)
	}
	if filter.Sensor != "" {
		query = query.Where("sensor = ?", filter.Sensor)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	var dbModels []models.ReadingModel
	err := query.Order("timestamp desc").
		Limit(limit).
		Offset(filter.Offset).
		Find(&dbModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}

	readings := make([]*domainReading.Reading, len(dbModels))
	for i := range dbModels {
		readings[i] = toReadingEntity(&dbModels[i])
	}

	return readings, nil
}

func toReadingEntity(m *models.ReadingModel) *domainReading.Reading {
	return &domainReading.Reading{
		ID:         m.ID,
		DeviceID:   m.DeviceID,
		Sensor:     m.Sensor,
		Value:      m.Value,
		Unit:       m.Unit,
		Timestamp:  m.Timestamp,
		ReceivedAt: m.ReceivedAt,
	}
}
