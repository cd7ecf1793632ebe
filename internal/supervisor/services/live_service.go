// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package services

import (
	"context"
	"fmt"
)

// SessionCloser is satisfied by *livepush.Registry.
type SessionCloser interface {
	CloseAll()
}

// FeedCloser is satisfied by *livepush.DeviceFeed.
type FeedCloser interface {
	Close() error
}

// LivePushService closes every live session and the device feed when the
// tree stops, so websocket handlers blocked on writes or subscriptions
// return before the HTTP server finishes draining.
type LivePushService struct {
	sessions SessionCloser
	feed     FeedCloser
}

// NewLivePushService wraps the user session registry and the device feed.
// feed may be nil.
func NewLivePushService(sessions SessionCloser, feed FeedCloser) *LivePushService {
	return &LivePushService{sessions: sessions, feed: feed}
}

// Serve blocks until ctx is canceled.
func (l *LivePushService) Serve(ctx context.Context) error {
	<-ctx.Done()

	l.sessions.CloseAll()
	if l.feed != nil {
		if err := l.feed.Close(); err != nil {
			return fmt.Errorf("close device feed: %w", err)
		}
	}
	return ctx.Err()
}

func (l *LivePushService) String() string {
	return "live-push"
}
