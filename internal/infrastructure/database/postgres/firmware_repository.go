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

// FirmwareRepository implements the firmware.Repository interface.
type FirmwareRepository struct {
	db *gorm.DB
}

// NewFirmwareRepository creates a new firmware repository.
func NewFirmwareRepository(db *gorm.DB) domainFirmware.Repository {
	return &FirmwareRepository{db: db}
}

func (r *FirmwareRepository) Create(ctx context.Context, fw *domainFirmware.Firmware) error {
	if fw.UploadedAt.IsZero() {
		fw.UploadedAt = time.Now().UTC()
	}

	dbModel := toFirmwareModel(fw)
	if err := r.db.WithContext(ctx).Create(dbModel).Error; err != nil {
		if isUniqueViolation(err) {
			return appErrors.ErrFirmwareAlreadyExists
		}
		return fmt.Errorf("failed to create firmware: %w", err)
	}

	fw.ID = dbModel.ID
	fw.UploadedAt = dbModel.UploadedAt

	return nil
}

// LatestActive returns the newest active build; the id tiebreak makes
// the last write win when two uploads share a timestamp.
func (r *FirmwareRepository) LatestActive(ctx context.Context) (*domainFirmware.Firmware, error) {
	var dbModel models.FirmwareModel
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("uploaded_at desc").
		Order("id desc").
		First(&dbModel).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appErrors.ErrFirmwareNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest firmware: %w", err)
	}

	return toFirmwareEntity(&dbModel), nil
}

func (r *FirmwareRepository) GetByVersion(ctx context.Context, version string, activeOnly bool) (*domainFirmware.Firmware, error) {
	query := r.db.WithContext(ctx).Where("version = ?", version)
	if activeOnly {
		query = query.Where("active = ?", true)
	}

	var dbModel models.FirmwareModel
	err := query.First(&dbModel).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appErrors.ErrFirmwareNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get firmware: %w", err)
	}

	return toFirmwareEntity(&dbModel), nil
}

func (r *FirmwareRepository) List(ctx context.Context) ([]*domainFirmware.Firmware, error) {
	var dbModels []models.FirmwareModel
	err := r.db.WithContext(ctx).
		Order("uploaded_at desc").
		Order("id desc").
		Find(&dbModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list firmware: %w", err)
	}

	firmwares := make([]*domainFirmware.Firmware, len(dbModels))
	for i := range dbModels {
		firmwares[i] = toFirmwareEntity(&dbModels[i])
	}

	return firmwares, nil
}

func (r *FirmwareRepository) SetActive(ctx context.Context, version string, active bool) error {
	result := r.db.WithContext(ctx).
		Model(&models.FirmwareModel{}).
		Where("version = ?", version).
		Update("active", active)

	if result.Error != nil {
		return fmt.Errorf("failed to update firmware: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return appErrors.ErrFirmwareNotFound
	}

	return nil
}

func (r *FirmwareRepository) IncrementDownloadCount(ctx context.Context, version string) error {
	result := r.db.WithContext(ctx).
		Model(&models.FirmwareModel{}).
		Where("version = ?", version).
		Update("download_count", gorm.Expr("download_count + 1"))

	if result.Error != nil {
		return fmt.Errorf("failed to increment download count: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return appErrors.ErrFirmwareNotFound
	}

	return nil
}

func toFirmwareModel(fw *domainFirmware.Firmware) *models.FirmwareModel {
	return &models.FirmwareModel{
		ID:               fw.ID,
		Version:          fw.Version,
		Filename:         fw.Filename,
		OriginalFilename: fw.OriginalFilename,
		FileSize:         fw.FileSize,
		FileHash:         fw.FileHash,
		ReleaseNotes:     fw.ReleaseNotes,
		UploadedAt:       fw.UploadedAt,
		Active:           fw.Active,
		DownloadCount:    fw.DownloadCount,
	}
}

func toFirmwareEntity(m *models.FirmwareModel) *domainFirmware.Firmware {
	return &domainFirmware.Firmware{
		ID:               m.ID,
		Version:          m.Version,
		Filename:         m.Filename,
		OriginalFilename: m.OriginalFilename,
		FileSize:         m.FileSize,
		FileHash:         m.FileHash,
		ReleaseNotes:     m.ReleaseNotes,
		UploadedAt:       m.UploadedAt,
		Active:           m.Active,
		DownloadCount:    m.DownloadCount,
	}
}
