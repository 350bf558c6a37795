package ingest

import (
	"context"
	"time"

	domainDevice "sensor-fleet-server/internal/domain/device"
	domainReading "sensor-fleet-server/internal/domain/reading"
	"sensor-fleet-server/internal/logger"
	"sensor-fleet-server/internal/usecase/registry"
	appErrors "sensor-fleet-server/pkg/errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// valuePrecision is the fixed-point scale readings are stored at.
const valuePrecision = 4

// Service validates and persists batched sensor readings. Identity and
// authorization are delegated to the registry; all valid readings of a
// batch commit atomically with the device's counters.
type Service struct {
	registry    *registry.Service
	readingRepo domainReading.Repository
}

// NewService creates a new ingestion service.
func NewService(reg *registry.Service, readingRepo domainReading.Repository) *Service {
	return &Service{
		registry:    reg,
		readingRepo: readingRepo,
	}
}

// Submit processes one reading batch from a device.
//
// First contact registers the device and returns the fresh key without
// persisting any readings. Invalid items (empty sensor or unit, absent
// value) are silently skipped; they reduce the reported count but never
// fail the batch. Device timestamps are taken as Unix seconds, with
// server time substituted when absent or unusable.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest, sourceAddr string) (*SubmitResult, error) {
	if req.DeviceID == "" {
		return nil, appErrors.BadRequest("device_id is required")
	}
	if len(req.Readings) == 0 {
		return nil, appErrors.BadRequest("readings array is required")
	}

	network := domainDevice.NetworkInfo{
		IPAddress:      sourceAddr,
		MACAddress:     req.MACAddress,
		WiFiSSID:       req.WiFiSSID,
		SignalStrength: req.SignalStrength,
	}

	auth, err := s.registry.RegisterOrAuthenticate(ctx, req.DeviceID, req.APIKey, req.FirmwareVersion, network)
	if err != nil {
		return nil, err
	}

	if auth.Registered {
		return &SubmitResult{
			Registered:   true,
			PlaintextKey: auth.PlaintextKey,
			DeviceID:     req.DeviceID,
		}, nil
	}

	now := time.Now().UTC()
	readings := make([]*domainReading.Reading, 0, len(req.Readings))
	skipped := 0
	for _, item := range req.Readings {
		if item.Sensor == "" || item.Value == nil || item.Unit == "" {
			skipped++
			continue
		}

		readings = append(readings, &domainReading.Reading{
			Sensor:     item.Sensor,
			Value:      decimal.NewFromFloat(*item.Value).Round(valuePrecision),
			Unit:       item.Unit,
			Timestamp:  resolveTimestamp(item.Timestamp, now),
			ReceivedAt: now,
		})
	}

	if skipped > 0 {
		logger.Warn("Skipped invalid readings in batch",
			zap.String("device_id", req.DeviceID),
			zap.Int("skipped", skipped),
		)
	}

	if err := s.readingRepo.CreateBatch(ctx, auth.Device.ID, readings); err != nil {
		return nil, err
	}

	logger.Info("Readings received",
		zap.String("device_id", req.DeviceID),
		zap.Int("received", len(readings)),
	)

	return &SubmitResult{
		DeviceID:        req.DeviceID,
		Received:        len(readings),
		ServerTime:      now,
		ReadingInterval: auth.Device.ReadingInterval,
	}, nil
}

// resolveTimestamp converts a device-supplied Unix timestamp, falling
// back to server time for absent or clearly bogus values (devices
// without a synced clock report seconds-since-boot).
func resolveTimestamp(ts *int64, now time.Time) time.Time {
	if ts == nil || *ts <= 0 {
		return now
	}

	t := time.Unix(*ts, 0).UTC()
	if t.Year() < 2000 {
		return now
	}

	return t
}
