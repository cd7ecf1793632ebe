// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package livepush

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/geigerhub/internal/models"
)

const (
	deviceTopicPrefix = "records.device."
	feedBuffer        = 16
)

// DeviceFeed fans new records out to per-device subscribers.
type DeviceFeed struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter
}

// NewDeviceFeed creates an in-process feed. A nil logger falls back to
// watermill's std logger.
func NewDeviceFeed(logger watermill.LoggerAdapter) *DeviceFeed {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}
	return &DeviceFeed{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: feedBuffer,
		}, logger),
		logger: logger,
	}
}

func deviceTopic(deviceID string) string {
	return deviceTopicPrefix + deviceID
}

// PublishRecord announces rec on the device topic. With no subscribers
// the message is dropped.
func (f *DeviceFeed) PublishRecord(dev *models.Device, rec *models.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("device", dev.ID)
	return f.pubsub.Publish(deviceTopic(dev.ID), msg)
}

// SubscribeDevice streams JSON records of deviceID until ctx ends. Owners
// receive the full record; everyone else the public view.
func (f *DeviceFeed) SubscribeDevice(ctx context.Context, deviceID string, owner bool) (<-chan []byte, error) {
	msgs, err := f.pubsub.Subscribe(ctx, deviceTopic(deviceID))
	if err != nil {
		return nil, fmt.Errorf("subscribe device %s: %w", deviceID, err)
	}

	out := make(chan []byte, feedBuffer)
	go func() {
		defer close(out)
		for msg := range msgs {
			payload, err := f.render(msg.Payload, owner)
			msg.Ack()
			if err != nil {
				f.logger.Error("Dropping undecodable live record", err, watermill.LogFields{"device": deviceID})
				continue
			}
			select {
			case out <- payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *DeviceFeed) render(payload []byte, owner bool) ([]byte, error) {
	if owner {
		return payload, nil
	}
	var rec models.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, err
	}
	return json.Marshal(rec.Public())
}

// Close shuts the pub/sub down and ends every subscription.
func (f *DeviceFeed) Close() error {
	return f.pubsub.Close()
}
