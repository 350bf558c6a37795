package ota

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainDevice "sensor-fleet-server/internal/domain/device"
	domainFirmware "sensor-fleet-server/internal/domain/firmware"
	"sensor-fleet-server/internal/logger"
	"sensor-fleet-server/internal/storage"
	appErrors "sensor-fleet-server/pkg/errors"

	"go.uber.org/zap"
)

// Service runs the check/download/status-report state machine. Each
// download attempt is one DeviceUpdate record moving
// pending → downloading → success|failed; terminal states never
// transition, a new attempt starts a fresh record.
type Service struct {
	deviceRepo   domainDevice.Repository
	firmwareRepo domainFirmware.Repository
	updateRepo   domainFirmware.UpdateRepository
	store        *storage.FirmwareStore
}

// NewService creates a new OTA service.
func NewService(
	deviceRepo domainDevice.Repository,
	firmwareRepo domainFirmware.Repository,
	updateRepo domainFirmware.UpdateRepository,
	store *storage.FirmwareStore,
) *Service {
	return &Service{
		deviceRepo:   deviceRepo,
		firmwareRepo: firmwareRepo,
		updateRepo:   updateRepo,
		store:        store,
	}
}

// Check reports whether the device should update. The device must exist
// (approval is not required to check availability). Comparison is exact
// string inequality against the latest active build: any declared
// version that differs triggers an offer, including rollbacks.
func (s *Service) Check(ctx context.Context, deviceID, declaredVersion string) (*CheckResult, error) {
	if deviceID == "" {
		return nil, appErrors.BadRequest("device_id is required")
	}

	if _, err := s.deviceRepo.GetByDeviceID(ctx, deviceID); err != nil {
		return nil, err
	}

	latest, err := s.firmwareRepo.LatestActive(ctx)
	if errors.Is(err, appErrors.ErrFirmwareNotFound) {
		return &CheckResult{
			UpdateAvailable: false,
			CurrentVersion:  declaredVersion,
			Message:         "No firmware available",
		}, nil
	}
	if err != nil {
		return nil, err
	}

	result := &CheckResult{
		UpdateAvailable: latest.Version != declaredVersion,
		CurrentVersion:  declaredVersion,
	}

	if result.UpdateAvailable {
		result.NewVersion = latest.Version
		result.FileSize = latest.FileSize
		result.URL = fmt.Sprintf("/api/ota/download/%s", latest.Version)
		result.ReleaseNotes = latest.ReleaseNotes

		logger.Info("OTA update available",
			zap.String("device_id", deviceID),
			zap.String("current_version", declaredVersion),
			zap.String("new_version", latest.Version),
		)
	}

	return result, nil
}

// BeginDownload opens the binary for an active firmware version. When
// the requesting device is known, a downloading DeviceUpdate record is
// created and the download counter incremented before the binary is
// located, so interrupted transfers still appear in the attempt history.
// A missing binary is a server-side integrity failure
// (ErrFirmwareFileMissing), not a client error.
func (s *Service) BeginDownload(ctx context.Context, version, deviceID string) (*Download, error) {
	fw, err := s.firmwareRepo.GetByVersion(ctx, version, true)
	if err != nil {
		return nil, err
	}

	if deviceID != "" {
		if err := s.trackAttempt(ctx, fw, deviceID); err != nil {
			return nil, err
		}
	}

	file, size, err := s.store.Open(fw.Filename)
	if err != nil {
		if errors.Is(err, appErrors.ErrFirmwareFileMissing) {
			logger.Error("Firmware binary missing from storage",
				zap.String("version", version),
				zap.String("filename", fw.Filename),
			)
		}
		return nil, err
	}

	return &Download{
		Firmware: fw,
		File:     file,
		Size:     size,
	}, nil
}

func (s *Service) trackAttempt(ctx context.Context, fw *domainFirmware.Firmware, deviceID string) error {
	d, err := s.deviceRepo.GetByDeviceID(ctx, deviceID)
	if errors.Is(err, appErrors.ErrDeviceNotFound) {
		// Tracking is best effort for unknown requesters.
		return nil
	}
	if err != nil {
		return err
	}

	update := &domainFirmware.DeviceUpdate{
		DeviceID:        d.ID,
		FirmwareID:      fw.ID,
		PreviousVersion: d.FirmwareVersion,
		NewVersion:      fw.Version,
		Status:          domainFirmware.UpdateStatusDownloading,
	}
	if err := s.updateRepo.Create(ctx, update); err != nil {
		return err
	}

	if err := s.firmwareRepo.IncrementDownloadCount(ctx, fw.Version); err != nil {
		return err
	}

	logger.Info("OTA download started",
		zap.String("device_id", deviceID),
		zap.String("version", fw.Version),
	)

	return nil
}

// ReportStatus records a device's terminal outcome for an attempt. The
// most recently started attempt for (device, version) is updated; a
// report with no matching attempt is still accepted so duplicate or
// out-of-order reports never fail. Success promotes the device's
// declared firmware version.
func (s *Service) ReportStatus(ctx context.Context, report *StatusReport) error {
	if report.DeviceID == "" || report.Version == "" || report.Status == "" {
		return appErrors.BadRequest("device_id, version and status are required")
	}

	status := domainFirmware.UpdateStatus(report.Status)
	if !status.Terminal() {
		return appErrors.BadRequest("status must be 'success' or 'failed'")
	}

	d, err := s.deviceRepo.GetByDeviceID(ctx, report.DeviceID)
	if err != nil {
		return err
	}

	update, err := s.updateRepo.LatestForDeviceAndVersion(ctx, d.ID, report.Version)
	switch {
	case errors.Is(err, appErrors.ErrUpdateNotFound):
		logger.Warn("OTA status report without matching attempt",
			zap.String("device_id", report.DeviceID),
			zap.String("version", report.Version),
			zap.String("status", report.Status),
		)
	case err != nil:
		return err
	default:
		if err := s.updateRepo.Complete(ctx, update.ID, status, time.Now().UTC(), report.ErrorMessage); err != nil {
			return err
		}
	}

	if status == domainFirmware.UpdateStatusSuccess {
		if err := s.deviceRepo.SetFirmwareVersion(ctx, report.DeviceID, report.Version); err != nil {
			return err
		}
	}

	logger.Info("OTA update outcome recorded",
		zap.String("device_id", report.DeviceID),
		zap.String("version", report.Version),
		zap.String("status", report.Status),
	)

	return nil
}
