package registry

import (
	"context"
	"errors"
	"testing"

	"sensor-fleet-server/internal/credential"
	"sensor-fleet-server/internal/database"
	domainDevice "sensor-fleet-server/internal/domain/device"
	"sensor-fleet-server/internal/infrastructure/database/postgres"
	"sensor-fleet-server/internal/logger"
	appErrors "sensor-fleet-server/pkg/errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, domainDevice.Repository) {
	t.Helper()
	logger.InitNop()

	dsn := "file:registry_" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	repo := postgres.NewDeviceRepository(db)
	return NewService(repo, credential.NewStore(), 10), repo
}

func TestFirstContactRegistersUnapproved(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.RegisterOrAuthenticate(ctx, "esp32-a1b2c3", "", "1.0.0", domainDevice.NetworkInfo{IPAddress: "10.0.0.5"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !result.Registered {
		t.Fatalf("expected Registered=true on first contact")
	}
	if len(result.PlaintextKey) != 64 {
		t.Fatalf("expected 64-char issued key, got %d chars", len(result.PlaintextKey))
	}
	if result.Device.Approved {
		t.Fatalf("new devices must start unapproved")
	}
	if result.Device.APIKeyHash == result.PlaintextKey {
		t.Fatalf("plaintext key must not be stored")
	}
	if result.Device.ReadingInterval != domainDevice.DefaultReadingInterval {
		t.Fatalf("expected default reading interval, got %d", result.Device.ReadingInterval)
	}
}

func TestClientSuppliedKeyIsHonored(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.RegisterOrAuthenticate(ctx, "esp32-a1b2c3", "my-preprovisioned-key", "", domainDevice.NetworkInfo{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if result.PlaintextKey != "my-preprovisioned-key" {
		t.Fatalf("expected the client key to be echoed back, got %q", result.PlaintextKey)
	}

	if err := svc.Approve(ctx, "esp32-a1b2c3"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	auth, err := svc.RegisterOrAuthenticate(ctx, "esp32-a1b2c3", "my-preprovisioned-key", "", domainDevice.NetworkInfo{})
	if err != nil {
		t.Fatalf("authenticate with client key: %v", err)
	}
	if auth.Registered {
		t.Fatalf("second contact must not register")
	}
}

func TestWrongKeyRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.RegisterOrAuthenticate(ctx, "esp32-a1b2c3", "right-key", "", domainDevice.NetworkInfo{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.Approve(ctx, "esp32-a1b2c3"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	_, err := svc.RegisterOrAuthenticate(ctx, "esp32-a1b2c3", "wrong-key", "", domainDevice.NetworkInfo{})
	if !errors.Is(err, appErrors.ErrInvalidAPIKey) {
		t.Fatalf("expected ErrInvalidAPIKey, got %v", err)
	}
}

func TestUnapprovedDeviceBlocked(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.RegisterOrAuthenticate(ctx, "esp32-a1b2c3", "", "", domainDevice.NetworkInfo{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err = svc.RegisterOrAuthenticate(ctx, "esp32-a1b2c3", first.PlaintextKey, "", domainDevice.NetworkInfo{})
	if !errors.Is(err, appErrors.ErrDeviceNotApproved) {
		t.Fatalf("expected ErrDeviceNotApproved before approval, got %v", err)
	}

	if err := svc.Approve(ctx, "esp32-a1b2c3"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	auth, err := svc.RegisterOrAuthenticate(ctx, "esp32-a1b2c3", first.PlaintextKey, "1.2.0", domainDevice.NetworkInfo{IPAddress: "10.0.0.5"})
	if err != nil {
		t.Fatalf("authenticate after approval: %v", err)
	}
	if auth.Device.LastSeen == nil {
		t.Fatalf("expected liveness refresh on authenticated contact")
	}
	if auth.Device.FirmwareVersion == nil || *auth.Device.FirmwareVersion != "1.2.0" {
		t.Fatalf("expected firmware version to track the report, got %v", auth.Device.FirmwareVersion)
	}
}

func TestEmptyDeviceIDRejected(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RegisterOrAuthenticate(context.Background(), "", "key", "", domainDevice.NetworkInfo{})
	if !errors.Is(err, appErrors.ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest for empty device_id, got %v", err)
	}
}

func TestRegenerateInvalidatesOldKey(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.RegisterOrAuthenticate(ctx, "esp32-a1b2c3", "", "", domainDevice.NetworkInfo{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.Approve(ctx, "esp32-a1b2c3"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	newKey, err := svc.RegenerateCredential(ctx, "esp32-a1b2c3")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if newKey == first.PlaintextKey {
		t.Fatalf("regenerated key must differ from the old one")
	}

	if _, err := svc.RegisterOrAuthenticate(ctx, "esp32-a1b2c3", first.PlaintextKey, "", domainDevice.NetworkInfo{}); !errors.Is(err, appErrors.ErrInvalidAPIKey) {
		t.Fatalf("old key must be rejected after regeneration, got %v", err)
	}
	if _, err := svc.RegisterOrAuthenticate(ctx, "esp32-a1b2c3", newKey, "", domainDevice.NetworkInfo{}); err != nil {
		t.Fatalf("new key must authenticate: %v", err)
	}
}

// racingRepo simulates losing the first-contact race: the first Create
// call reports a duplicate as if a concurrent request inserted the row
// a moment earlier.
type racingRepo struct {
	domainDevice.Repository
	raced bool
}

func (r *racingRepo) Create(ctx context.Context, d *domainDevice.Device) error {
	if !r.raced {
		r.raced = true
		seeded := *d
		if err := r.Repository.Create(ctx, &seeded); err != nil {
			return err
		}
		return appErrors.ErrDeviceAlreadyExists
	}
	return r.Repository.Create(ctx, d)
}

func TestRegistrationRaceFallsBackToAuthentication(t *testing.T) {
	_, repo := newTestService(t)
	racing := &racingRepo{Repository: repo}
	svc := NewService(racing, credential.NewStore(), 10)
	ctx := context.Background()

	// The loser of the race presented the same pre-provisioned key the
	// winner registered with, so it authenticates instead.
	result, err := svc.RegisterOrAuthenticate(ctx, "esp32-a1b2c3", "shared-key", "", domainDevice.NetworkInfo{})
	if !errors.Is(err, appErrors.ErrDeviceNotApproved) {
		t.Fatalf("expected the race loser to re-run as authentication (unapproved), got result=%+v err=%v", result, err)
	}
	if !racing.raced {
		t.Fatalf("race was not exercised")
	}
}

func TestUpdateProfileValidatesInterval(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.RegisterOrAuthenticate(ctx, "esp32-a1b2c3", "", "", domainDevice.NetworkInfo{}); err != nil {
		t.Fatalf("register: %v", err)
	}

	tooFast := 500
	err := svc.UpdateProfile(ctx, "esp32-a1b2c3", &UpdateProfileRequest{ReadingInterval: &tooFast})
	if err == nil {
		t.Fatalf("expected validation error for sub-second interval")
	}

	ok := 30000
	name := "greenhouse north"
	if err := svc.UpdateProfile(ctx, "esp32-a1b2c3", &UpdateProfileRequest{Name: &name, ReadingInterval: &ok}); err != nil {
		t.Fatalf("update profile: %v", err)
	}

	got, err := svc.Get(ctx, "esp32-a1b2c3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ReadingInterval != 30000 {
		t.Fatalf("expected reading_interval=30000, got %d", got.ReadingInterval)
	}
	if got.Name == nil || *got.Name != "greenhouse north" {
		t.Fatalf("expected name to be updated, got %v", got.Name)
	}
}
