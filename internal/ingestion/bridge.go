package ingestion

import (
	"context"
	"encoding/json"
	"strings"

	"sensor-fleet-server/internal/logger"
	"sensor-fleet-server/internal/usecase/ingest"
	"sensor-fleet-server/pkg/mqtt"

	"go.uber.org/zap"
)

// Bridge feeds reading batches published over MQTT into the same
// ingestion pipeline the HTTP endpoint uses. Devices publish to
// <prefix>/<device_id>/readings with the POST /api/readings body as
// payload; the device_id topic segment wins over the payload field.
//
// Delivery is lossy by design: malformed or rejected messages are
// logged and dropped, never retried.
type Bridge struct {
	client      *mqtt.Client
	service     *ingest.Service
	topicPrefix string
}

// NewBridge creates a bridge over an already-configured MQTT client.
func NewBridge(client *mqtt.Client, service *ingest.Service, topicPrefix string) *Bridge {
	return &Bridge{
		client:      client,
		service:     service,
		topicPrefix: strings.TrimSuffix(topicPrefix, "/"),
	}
}

// Start connects and subscribes. QoS 1: duplicate delivery only costs a
// duplicate reading row, lost batches cost data.
func (b *Bridge) Start() error {
	if err := b.client.Connect(); err != nil {
		return err
	}

	topic := b.topicPrefix + "/+/readings"
	return b.client.Subscribe(topic, 1, b.handleMessage)
}

// Stop disconnects from the broker.
func (b *Bridge) Stop() {
	b.client.Disconnect()
}

func (b *Bridge) handleMessage(topic string, payload []byte) {
	deviceID := deviceIDFromTopic(b.topicPrefix, topic)

	var req ingest.SubmitRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		logger.Warn("Dropping malformed MQTT reading batch",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return
	}
	if deviceID != "" {
		req.DeviceID = deviceID
	}

	result, err := b.service.Submit(context.Background(), &req, "mqtt")
	if err != nil {
		logger.Warn("MQTT reading batch rejected",
			zap.String("device_id", req.DeviceID),
			zap.Error(err),
		)
		return
	}

	if result.Registered {
		// There is no response channel to hand the key back on; the
		// device must register over HTTP first.
		logger.Warn("Unknown device published over MQTT; key issued but unreachable",
			zap.String("device_id", req.DeviceID),
		)
	}
}

// deviceIDFromTopic extracts the device segment of
// <prefix>/<device_id>/readings, or "" when the topic does not match.
func deviceIDFromTopic(prefix, topic string) string {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return ""
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "readings" {
		return ""
	}

	return parts[0]
}
