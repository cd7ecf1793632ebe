// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordStage(t *testing.T) {
	before := testutil.ToFloat64(FanoutStageTotal.WithLabelValues("persist", OutcomeFailure))
	RecordStage("persist", errors.New("disk full"))
	RecordStage("persist", nil)

	after := testutil.ToFloat64(FanoutStageTotal.WithLabelValues("persist", OutcomeFailure))
	if after-before != 1 {
		t.Errorf("failure counter moved by %v, want 1", after-before)
	}
}

func TestRecordForward(t *testing.T) {
	RecordForward("radmon", 120*time.Millisecond, nil)

	var m dto.Metric
	if err := ForwarderRequests.WithLabelValues("radmon", OutcomeSuccess).Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if m.GetCounter().GetValue() < 1 {
		t.Errorf("success counter = %v", m.GetCounter().GetValue())
	}
}

func TestTrackActiveRequest(t *testing.T) {
	start := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != start+1 {
		t.Errorf("gauge = %v, want %v", got, start+1)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != start {
		t.Errorf("gauge = %v, want %v", got, start)
	}
}

func TestRecordCalendarSkipsDurationOnFailure(t *testing.T) {
	samples := func() uint64 {
		var m dto.Metric
		if err := CalendarComputeDuration.Write(&m); err != nil {
			t.Fatalf("Write: %v", err)
		}
		return m.GetHistogram().GetSampleCount()
	}

	before := samples()
	RecordCalendar(time.Second, errors.New("boom"))
	if samples() != before {
		t.Error("failed computation was observed in the duration histogram")
	}
	RecordCalendar(time.Second, nil)
	if samples() != before+1 {
		t.Error("successful computation was not observed")
	}
}
