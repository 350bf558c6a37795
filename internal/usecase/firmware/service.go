package firmware

import (
	"context"

	domainFirmware "sensor-fleet-server/internal/domain/firmware"
	"sensor-fleet-server/internal/logger"
	"sensor-fleet-server/internal/storage"
	appErrors "sensor-fleet-server/pkg/errors"
	"sensor-fleet-server/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service is the administrative side of the firmware catalog: uploads,
// listing, and flipping the distribution flag. The OTA coordinator is
// the only other reader.
type Service struct {
	firmwareRepo domainFirmware.Repository
	store        *storage.FirmwareStore
}

// NewService creates a new firmware catalog service.
func NewService(firmwareRepo domainFirmware.Repository, store *storage.FirmwareStore) *Service {
	return &Service{
		firmwareRepo: firmwareRepo,
		store:        store,
	}
}

// Upload stores the binary under an opaque filename, records its size
// and SHA-256 hash, and activates the version for distribution.
func (s *Service) Upload(ctx context.Context, req *UploadRequest) (*FirmwareResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.NewAppError("VALIDATION_ERROR", "Invalid input", err)
	}

	filename := uuid.New().String() + ".bin"
	size, hash, err := s.store.Save(filename, req.File)
	if err != nil {
		return nil, err
	}

	fw := &domainFirmware.Firmware{
		Version:          req.Version,
		Filename:         filename,
		OriginalFilename: req.OriginalFilename,
		FileSize:         size,
		FileHash:         hash,
		Active:           true,
	}
	if req.ReleaseNotes != "" {
		notes := req.ReleaseNotes
		fw.ReleaseNotes = &notes
	}

	if err := s.firmwareRepo.Create(ctx, fw); err != nil {
		// Do not leave orphaned binaries behind a failed insert.
		_ = s.store.Remove(filename)
		return nil, err
	}

	logger.Info("Firmware uploaded",
		zap.String("version", fw.Version),
		zap.Int64("file_size", size),
		zap.String("file_hash", hash),
		zap.String("event", "firmware_uploaded"),
	)

	return toResponse(fw), nil
}

// List returns the whole catalog, newest first.
func (s *Service) List(ctx context.Context) ([]FirmwareResponse, error) {
	firmwares, err := s.firmwareRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]FirmwareResponse, len(firmwares))
	for i, fw := range firmwares {
		responses[i] = *toResponse(fw)
	}

	return responses, nil
}

// SetActive flips whether a version is eligible for OTA distribution.
func (s *Service) SetActive(ctx context.Context, version string, active bool) error {
	if err := s.firmwareRepo.SetActive(ctx, version, active); err != nil {
		return err
	}

	logger.Info("Firmware distribution flag changed",
		zap.String("version", version),
		zap.Bool("active", active),
	)

	return nil
}
