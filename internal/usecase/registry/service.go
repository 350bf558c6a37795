package registry

import (
	"context"
	"errors"
	"time"

	"sensor-fleet-server/internal/credential"
	domainDevice "sensor-fleet-server/internal/domain/device"
	"sensor-fleet-server/internal/logger"
	appErrors "sensor-fleet-server/pkg/errors"
	"sensor-fleet-server/pkg/utils"

	"go.uber.org/zap"
)

// Service owns the device lifecycle: unknown devices register as
// unapproved on first contact, an administrator approves them, and only
// approved devices proceed past authentication.
type Service struct {
	deviceRepo      domainDevice.Repository
	credentials     *credential.Store
	onlineThreshold int // minutes
}

// NewService creates a new registry service.
func NewService(deviceRepo domainDevice.Repository, credentials *credential.Store, onlineThresholdMinutes int) *Service {
	if onlineThresholdMinutes <= 0 {
		onlineThresholdMinutes = 10
	}
	return &Service{
		deviceRepo:      deviceRepo,
		credentials:     credentials,
		onlineThreshold: onlineThresholdMinutes,
	}
}

// RegisterOrAuthenticate is the single entry point for device-facing
// calls carrying credentials.
//
// Unknown device IDs register: a client-suggested key is honored,
// otherwise one is issued, and the plaintext is returned exactly once.
// Known device IDs must present the correct key (ErrInvalidAPIKey
// otherwise, without revealing whether the ID exists) and be approved
// (ErrDeviceNotApproved otherwise — deliberately distinguishable from a
// bad credential). On success, liveness metadata is refreshed.
func (s *Service) RegisterOrAuthenticate(ctx context.Context, deviceID, presentedKey, firmwareVersion string, network domainDevice.NetworkInfo) (*AuthResult, error) {
	if deviceID == "" {
		return nil, appErrors.BadRequest("device_id is required")
	}

	d, err := s.deviceRepo.GetByDeviceID(ctx, deviceID)
	if errors.Is(err, appErrors.ErrDeviceNotFound) {
		result, regErr := s.register(ctx, deviceID, presentedKey, firmwareVersion, network)
		if errors.Is(regErr, appErrors.ErrDeviceAlreadyExists) {
			// Lost a same-device first-contact race: exactly one
			// registration wins, this request re-runs as authentication.
			d, err = s.deviceRepo.GetByDeviceID(ctx, deviceID)
			if err != nil {
				return nil, err
			}
			return s.authenticate(ctx, d, presentedKey, firmwareVersion, network)
		}
		return result, regErr
	}
	if err != nil {
		return nil, err
	}

	return s.authenticate(ctx, d, presentedKey, firmwareVersion, network)
}

func (s *Service) register(ctx context.Context, deviceID, presentedKey, firmwareVersion string, network domainDevice.NetworkInfo) (*AuthResult, error) {
	plaintext := presentedKey
	var hash string
	var err error

	if plaintext == "" {
		plaintext, hash, err = s.credentials.Issue()
	} else {
		hash, err = s.credentials.Hash(plaintext)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	d := &domainDevice.Device{
		DeviceID:        deviceID,
		APIKeyHash:      hash,
		Approved:        false,
		ReadingInterval: domainDevice.DefaultReadingInterval,
		LastSeen:        &now,
		IPAddress:       optional(network.IPAddress),
		MACAddress:      network.MACAddress,
		WiFiSSID:        network.WiFiSSID,
		SignalStrength:  network.SignalStrength,
	}
	if firmwareVersion != "" {
		d.FirmwareVersion = &firmwareVersion
	}

	if err := s.deviceRepo.Create(ctx, d); err != nil {
		return nil, err
	}

	logger.Info("Device registered, awaiting approval",
		zap.String("device_id", deviceID),
		zap.String("ip", network.IPAddress),
		zap.String("event", "device_registered"),
	)

	return &AuthResult{
		Device:       d,
		Registered:   true,
		PlaintextKey: plaintext,
	}, nil
}

func (s *Service) authenticate(ctx context.Context, d *domainDevice.Device, presentedKey, firmwareVersion string, network domainDevice.NetworkInfo) (*AuthResult, error) {
	if !s.credentials.Verify(presentedKey, d.APIKeyHash) {
		logger.Warn("Invalid API key presented",
			zap.String("device_id", d.DeviceID),
			zap.String("ip", network.IPAddress),
		)
		return nil, appErrors.ErrInvalidAPIKey
	}

	if !d.Approved {
		logger.Info("Unapproved device attempted contact",
			zap.String("device_id", d.DeviceID),
		)
		return nil, appErrors.ErrDeviceNotApproved
	}

	liveness := domainDevice.Liveness{
		SeenAt:  time.Now().UTC(),
		Network: network,
	}
	if firmwareVersion != "" {
		liveness.FirmwareVersion = &firmwareVersion
	}
	if err := s.deviceRepo.Touch(ctx, d.DeviceID, liveness); err != nil {
		return nil, err
	}

	d.LastSeen = &liveness.SeenAt
	if liveness.FirmwareVersion != nil {
		d.FirmwareVersion = liveness.FirmwareVersion
	}

	return &AuthResult{Device: d}, nil
}

// Approve flips the gate that lets a device's data be accepted.
func (s *Service) Approve(ctx context.Context, deviceID string) error {
	if err := s.deviceRepo.Approve(ctx, deviceID); err != nil {
		return err
	}

	logger.Info("Device approved",
		zap.String("device_id", deviceID),
		zap.String("event", "device_approved"),
	)

	return nil
}

// Delete removes a device and, through the cascade, its readings and
// update history.
func (s *Service) Delete(ctx context.Context, deviceID string) error {
	if err := s.deviceRepo.Delete(ctx, deviceID); err != nil {
		return err
	}

	logger.Info("Device deleted",
		zap.String("device_id", deviceID),
		zap.String("event", "device_deleted"),
	)

	return nil
}

// UpdateProfile applies administrative edits to name, location, notes
// and the server-suggested reading interval.
func (s *Service) UpdateProfile(ctx context.Context, deviceID string, req *UpdateProfileRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		return appErrors.NewAppError("VALIDATION_ERROR", "Invalid input", err)
	}

	update := domainDevice.ProfileUpdate{
		Location:        req.Location,
		Notes:           req.Notes,
		ReadingInterval: req.ReadingInterval,
	}
	if req.Name != nil {
		name := utils.SanitizeString(*req.Name)
		update.Name = &name
	}

	return s.deviceRepo.UpdateProfile(ctx, deviceID, update)
}

// RegenerateCredential replaces the stored hash with a fresh one and
// returns the new plaintext exactly once.
func (s *Service) RegenerateCredential(ctx context.Context, deviceID string) (string, error) {
	plaintext, hash, err := s.credentials.Regenerate()
	if err != nil {
		return "", err
	}

	if err := s.deviceRepo.UpdateAPIKeyHash(ctx, deviceID, hash); err != nil {
		return "", err
	}

	logger.Info("Device credential regenerated",
		zap.String("device_id", deviceID),
		zap.String("event", "device_key_regenerated"),
	)

	return plaintext, nil
}

// Get returns the admin projection of one device.
func (s *Service) Get(ctx context.Context, deviceID string) (*DeviceResponse, error) {
	d, err := s.deviceRepo.GetByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	return s.toResponse(d), nil
}

// List returns the admin projection of all devices, optionally filtered
// by approval state.
func (s *Service) List(ctx context.Context, approved *bool) ([]DeviceResponse, error) {
	devices, err := s.deviceRepo.List(ctx, domainDevice.Filter{Approved: approved})
	if err != nil {
		return nil, err
	}

	responses := make([]DeviceResponse, len(devices))
	for i, d := range devices {
		responses[i] = *s.toResponse(d)
	}

	return responses, nil
}

// IsOnline reports liveness against the configured threshold.
func (s *Service) IsOnline(d *domainDevice.Device) bool {
	return d.IsOnline(s.onlineThreshold, time.Now().UTC())
}

func (s *Service) toResponse(d *domainDevice.Device) *DeviceResponse {
	resp := &DeviceResponse{
		ID:              d.ID,
		DeviceID:        d.DeviceID,
		Name:            d.Name,
		Approved:        d.Approved,
		FirmwareVersion: d.FirmwareVersion,
		ReadingInterval: d.ReadingInterval,
		IPAddress:       d.IPAddress,
		MACAddress:      d.MACAddress,
		WiFiSSID:        d.WiFiSSID,
		SignalStrength:  d.SignalStrength,
		Location:        d.Location,
		Notes:           d.Notes,
		CreatedAt:       d.CreatedAt.UTC().Format(time.RFC3339),
		TotalReadings:   d.TotalReadings,
		Online:          s.IsOnline(d),
	}
	if d.LastSeen != nil {
		v := d.LastSeen.UTC().Format(time.RFC3339)
		resp.LastSeen = &v
	}
	if d.LastReadingAt != nil {
		v := d.LastReadingAt.UTC().Format(time.RFC3339)
		resp.LastReadingAt = &v
	}
	return resp
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
