package ota

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"sensor-fleet-server/internal/database"
	domainDevice "sensor-fleet-server/internal/domain/device"
	domainFirmware "sensor-fleet-server/internal/domain/firmware"
	"sensor-fleet-server/internal/infrastructure/database/postgres"
	"sensor-fleet-server/internal/logger"
	"sensor-fleet-server/internal/storage"
	appErrors "sensor-fleet-server/pkg/errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	svc          *Service
	deviceRepo   domainDevice.Repository
	firmwareRepo domainFirmware.Repository
	updateRepo   domainFirmware.UpdateRepository
	store        *storage.FirmwareStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger.InitNop()

	dsn := "file:ota_" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store, err := storage.NewFirmwareStore(t.TempDir())
	if err != nil {
		t.Fatalf("firmware store: %v", err)
	}

	deviceRepo := postgres.NewDeviceRepository(db)
	firmwareRepo := postgres.NewFirmwareRepository(db)
	updateRepo := postgres.NewDeviceUpdateRepository(db)

	return &testEnv{
		svc:          NewService(deviceRepo, firmwareRepo, updateRepo, store),
		deviceRepo:   deviceRepo,
		firmwareRepo: firmwareRepo,
		updateRepo:   updateRepo,
		store:        store,
	}
}

func (env *testEnv) seedDevice(t *testing.T, deviceID, firmwareVersion string) *domainDevice.Device {
	t.Helper()
	d := &domainDevice.Device{
		DeviceID:   deviceID,
		APIKeyHash: "hash",
		Approved:   true,
	}
	if firmwareVersion != "" {
		d.FirmwareVersion = &firmwareVersion
	}
	if err := env.deviceRepo.Create(context.Background(), d); err != nil {
		t.Fatalf("seed device: %v", err)
	}
	return d
}

// seedFirmware registers a catalog entry and, when withBinary is set,
// writes a real file behind it.
func (env *testEnv) seedFirmware(t *testing.T, version string, active, withBinary bool) *domainFirmware.Firmware {
	t.Helper()
	filename := version + ".bin"
	var size int64
	var hash string
	if withBinary {
		var err error
		size, hash, err = env.store.Save(filename, strings.NewReader("firmware-payload-"+version))
		if err != nil {
			t.Fatalf("save binary: %v", err)
		}
	}
	fw := &domainFirmware.Firmware{
		Version:          version,
		Filename:         filename,
		OriginalFilename: filename,
		FileSize:         size,
		FileHash:         hash,
		Active:           active,
	}
	if err := env.firmwareRepo.Create(context.Background(), fw); err != nil {
		t.Fatalf("seed firmware: %v", err)
	}
	return fw
}

func TestCheckNoFirmwareAvailable(t *testing.T) {
	env := newTestEnv(t)
	env.seedDevice(t, "esp32-a1b2c3", "1.0.0")

	result, err := env.svc.Check(context.Background(), "esp32-a1b2c3", "1.0.0")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.UpdateAvailable {
		t.Fatalf("no catalog entries, expected no update")
	}
	if result.Message != "No firmware available" {
		t.Fatalf("unexpected message %q", result.Message)
	}
}

func TestCheckVersionMatch(t *testing.T) {
	env := newTestEnv(t)
	env.seedDevice(t, "esp32-a1b2c3", "1.0.1")
	env.seedFirmware(t, "1.0.1", true, true)

	result, err := env.svc.Check(context.Background(), "esp32-a1b2c3", "1.0.1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.UpdateAvailable {
		t.Fatalf("same version must not be offered")
	}
	if result.CurrentVersion != "1.0.1" {
		t.Fatalf("expected current_version echoed, got %q", result.CurrentVersion)
	}
}

func TestCheckOffersAnyDifferingVersion(t *testing.T) {
	env := newTestEnv(t)
	env.seedDevice(t, "esp32-a1b2c3", "2.0.0")
	fw := env.seedFirmware(t, "1.0.1", true, true)

	// The device claims something newer than the catalog; comparison is
	// exact inequality, so the active build is still offered.
	result, err := env.svc.Check(context.Background(), "esp32-a1b2c3", "2.0.0")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !result.UpdateAvailable {
		t.Fatalf("differing version must be offered")
	}
	if result.NewVersion != "1.0.1" {
		t.Fatalf("expected new_version=1.0.1, got %q", result.NewVersion)
	}
	if result.URL != "/api/ota/download/1.0.1" {
		t.Fatalf("unexpected download URL %q", result.URL)
	}
	if result.FileSize != fw.FileSize {
		t.Fatalf("expected file_size=%d, got %d", fw.FileSize, result.FileSize)
	}
}

func TestCheckUnknownDevice(t *testing.T) {
	env := newTestEnv(t)
	env.seedFirmware(t, "1.0.1", true, true)

	_, err := env.svc.Check(context.Background(), "ghost", "1.0.0")
	if !errors.Is(err, appErrors.ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestCheckIgnoresInactiveBuilds(t *testing.T) {
	env := newTestEnv(t)
	env.seedDevice(t, "esp32-a1b2c3", "1.0.0")
	env.seedFirmware(t, "2.0.0", false, true)

	result, err := env.svc.Check(context.Background(), "esp32-a1b2c3", "1.0.0")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.UpdateAvailable {
		t.Fatalf("inactive builds must never be offered")
	}
}

func TestBeginDownloadTracksAttempt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d := env.seedDevice(t, "esp32-a1b2c3", "1.0.0")
	env.seedFirmware(t, "1.0.1", true, true)

	dl, err := env.svc.BeginDownload(ctx, "1.0.1", "esp32-a1b2c3")
	if err != nil {
		t.Fatalf("begin download: %v", err)
	}
	defer dl.File.Close()

	payload, err := io.ReadAll(dl.File)
	if err != nil {
		t.Fatalf("read binary: %v", err)
	}
	if string(payload) != "firmware-payload-1.0.1" {
		t.Fatalf("unexpected binary contents %q", payload)
	}
	if dl.Size != int64(len(payload)) {
		t.Fatalf("size mismatch: %d != %d", dl.Size, len(payload))
	}

	attempt, err := env.updateRepo.LatestForDeviceAndVersion(ctx, d.ID, "1.0.1")
	if err != nil {
		t.Fatalf("expected attempt record: %v", err)
	}
	if attempt.Status != domainFirmware.UpdateStatusDownloading {
		t.Fatalf("expected downloading status, got %s", attempt.Status)
	}
	if attempt.PreviousVersion == nil || *attempt.PreviousVersion != "1.0.0" {
		t.Fatalf("expected previous_version=1.0.0, got %v", attempt.PreviousVersion)
	}

	fw, err := env.firmwareRepo.GetByVersion(ctx, "1.0.1", false)
	if err != nil {
		t.Fatalf("get firmware: %v", err)
	}
	if fw.DownloadCount != 1 {
		t.Fatalf("expected download_count=1, got %d", fw.DownloadCount)
	}
}

func TestBeginDownloadInactiveVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d := env.seedDevice(t, "esp32-a1b2c3", "1.0.0")
	env.seedFirmware(t, "2.0.0", false, true)

	_, err := env.svc.BeginDownload(ctx, "2.0.0", "esp32-a1b2c3")
	if !errors.Is(err, appErrors.ErrFirmwareNotFound) {
		t.Fatalf("expected ErrFirmwareNotFound for inactive build, got %v", err)
	}

	// Refusal must leave no trace in the attempt history or counters.
	if _, err := env.updateRepo.LatestForDeviceAndVersion(ctx, d.ID, "2.0.0"); !errors.Is(err, appErrors.ErrUpdateNotFound) {
		t.Fatalf("expected no attempt record, got %v", err)
	}
	fw, err := env.firmwareRepo.GetByVersion(ctx, "2.0.0", false)
	if err != nil {
		t.Fatalf("get firmware: %v", err)
	}
	if fw.DownloadCount != 0 {
		t.Fatalf("expected download_count=0, got %d", fw.DownloadCount)
	}
}

func TestBeginDownloadMissingBinary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d := env.seedDevice(t, "esp32-a1b2c3", "1.0.0")
	env.seedFirmware(t, "1.0.1", true, false)

	_, err := env.svc.BeginDownload(ctx, "1.0.1", "esp32-a1b2c3")
	if !errors.Is(err, appErrors.ErrFirmwareFileMissing) {
		t.Fatalf("expected ErrFirmwareFileMissing, got %v", err)
	}

	// The attempt is recorded before the binary is located, so the
	// failure still shows up in the history.
	attempt, err := env.updateRepo.LatestForDeviceAndVersion(ctx, d.ID, "1.0.1")
	if err != nil {
		t.Fatalf("expected attempt record despite missing binary: %v", err)
	}
	if attempt.Status != domainFirmware.UpdateStatusDownloading {
		t.Fatalf("expected downloading status, got %s", attempt.Status)
	}
}

func TestBeginDownloadUnknownDeviceStillServed(t *testing.T) {
	env := newTestEnv(t)
	env.seedFirmware(t, "1.0.1", true, true)

	dl, err := env.svc.BeginDownload(context.Background(), "1.0.1", "ghost")
	if err != nil {
		t.Fatalf("unknown requesters are served without tracking: %v", err)
	}
	dl.File.Close()
}

func TestReportStatusSuccessPromotesVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d := env.seedDevice(t, "esp32-a1b2c3", "1.0.0")
	env.seedFirmware(t, "1.0.1", true, true)

	if _, err := env.svc.BeginDownload(ctx, "1.0.1", "esp32-a1b2c3"); err != nil {
		t.Fatalf("begin download: %v", err)
	}

	err := env.svc.ReportStatus(ctx, &StatusReport{
		DeviceID: "esp32-a1b2c3",
		Version:  "1.0.1",
		Status:   "success",
	})
	if err != nil {
		t.Fatalf("report status: %v", err)
	}

	attempt, err := env.updateRepo.LatestForDeviceAndVersion(ctx, d.ID, "1.0.1")
	if err != nil {
		t.Fatalf("latest attempt: %v", err)
	}
	if attempt.Status != domainFirmware.UpdateStatusSuccess {
		t.Fatalf("expected success status, got %s", attempt.Status)
	}
	if attempt.CompletedAt == nil {
		t.Fatalf("expected completed_at to be set")
	}

	got, err := env.deviceRepo.GetByDeviceID(ctx, "esp32-a1b2c3")
	if err != nil {
		t.Fatalf("get device: %v", err)
	}
	if got.FirmwareVersion == nil || *got.FirmwareVersion != "1.0.1" {
		t.Fatalf("expected firmware_version promoted to 1.0.1, got %v", got.FirmwareVersion)
	}
}

func TestReportStatusFailedKeepsVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d := env.seedDevice(t, "esp32-a1b2c3", "1.0.0")
	env.seedFirmware(t, "1.0.1", true, true)

	if _, err := env.svc.BeginDownload(ctx, "1.0.1", "esp32-a1b2c3"); err != nil {
		t.Fatalf("begin download: %v", err)
	}

	msg := "flash write failed"
	err := env.svc.ReportStatus(ctx, &StatusReport{
		DeviceID:     "esp32-a1b2c3",
		Version:      "1.0.1",
		Status:       "failed",
		ErrorMessage: &msg,
	})
	if err != nil {
		t.Fatalf("report status: %v", err)
	}

	attempt, err := env.updateRepo.LatestForDeviceAndVersion(ctx, d.ID, "1.0.1")
	if err != nil {
		t.Fatalf("latest attempt: %v", err)
	}
	if attempt.Status != domainFirmware.UpdateStatusFailed {
		t.Fatalf("expected failed status, got %s", attempt.Status)
	}
	if attempt.ErrorMessage == nil || *attempt.ErrorMessage != msg {
		t.Fatalf("expected error message recorded, got %v", attempt.ErrorMessage)
	}

	got, err := env.deviceRepo.GetByDeviceID(ctx, "esp32-a1b2c3")
	if err != nil {
		t.Fatalf("get device: %v", err)
	}
	if got.FirmwareVersion == nil || *got.FirmwareVersion != "1.0.0" {
		t.Fatalf("failed update must not change firmware_version, got %v", got.FirmwareVersion)
	}
}

func TestReportStatusWithoutAttemptAccepted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedDevice(t, "esp32-a1b2c3", "1.0.0")

	err := env.svc.ReportStatus(ctx, &StatusReport{
		DeviceID: "esp32-a1b2c3",
		Version:  "1.0.1",
		Status:   "success",
	})
	if err != nil {
		t.Fatalf("unmatched reports must be accepted: %v", err)
	}

	// Success without an attempt still promotes the declared version.
	got, err := env.deviceRepo.GetByDeviceID(ctx, "esp32-a1b2c3")
	if err != nil {
		t.Fatalf("get device: %v", err)
	}
	if got.FirmwareVersion == nil || *got.FirmwareVersion != "1.0.1" {
		t.Fatalf("expected firmware_version=1.0.1, got %v", got.FirmwareVersion)
	}
}

func TestReportStatusValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedDevice(t, "esp32-a1b2c3", "1.0.0")

	for _, report := range []*StatusReport{
		{Version: "1.0.1", Status: "success"},
		{DeviceID: "esp32-a1b2c3", Status: "success"},
		{DeviceID: "esp32-a1b2c3", Version: "1.0.1"},
		{DeviceID: "esp32-a1b2c3", Version: "1.0.1", Status: "downloading"}, // non-terminal
		{DeviceID: "esp32-a1b2c3", Version: "1.0.1", Status: "bogus"},
	} {
		if err := env.svc.ReportStatus(ctx, report); !errors.Is(err, appErrors.ErrBadRequest) {
			t.Fatalf("expected ErrBadRequest for %+v, got %v", report, err)
		}
	}

	err := env.svc.ReportStatus(ctx, &StatusReport{DeviceID: "ghost", Version: "1.0.1", Status: "success"})
	if !errors.Is(err, appErrors.ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound for unknown device, got %v", err)
	}
}
