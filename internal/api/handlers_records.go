// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/geigerhub/internal/calendar"
	"github.com/tomtom215/geigerhub/internal/codec"
	"github.com/tomtom215/geigerhub/internal/database"
	"github.com/tomtom215/geigerhub/internal/logging"
	"github.com/tomtom215/geigerhub/internal/models"
)

// Timeline returns a device's records in chronological order. Owners may
// pass ?full to lift the record limit and get every field.
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	dev, ok := h.loadDevice(w, r)
	if !ok {
		return
	}

	from, err := getTimeParam(r, "start")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	to, err := getTimeParam(r, "end")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	owner := isOwner(r, dev)
	q := database.RecordQuery{Limit: h.config.Geiger.TimelineLimit, Start: from, End: to}
	if owner && getBoolParam(r, "full") {
		q.Limit = 0
	}

	recs, err := h.db.ListDeviceRecords(r.Context(), dev.ID, q)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load records", err)
		return
	}
	if !owner {
		for i := range recs {
			recs[i] = *recs[i].Public()
		}
	}
	respondData(w, r, http.StatusOK, recs, started)
}

// Stats returns average, extremes and standard deviation of one stat
// field over the device's most recent records.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	req := StatsRequest{Field: chi.URLParam(r, "field")}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", apiErr.Message, nil)
		return
	}

	dev, ok := h.loadDevice(w, r)
	if !ok {
		return
	}

	stats, err := h.db.DeviceStats(r.Context(), req.Field, dev.ID, h.config.Geiger.StatsSampleSize)
	switch {
	case errors.Is(err, database.ErrNoData):
		respondError(w, http.StatusNotFound, "NO_DATA", "Device has no records for this field", nil)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to compute stats", err)
		return
	}
	respondData(w, r, http.StatusOK, stats, started)
}

// Calendar returns the per-day averages of a device once computed. Until
// then it answers 202 and the computation runs in the background.
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	dev, ok := h.loadDevice(w, r)
	if !ok {
		return
	}

	res, err := h.calendar.Read(r.Context(), dev.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "CALENDAR_ERROR", "Failed to read calendar", err)
		return
	}
	if res.Status != calendar.StatusReady {
		respondData(w, r, http.StatusAccepted, map[string]string{
			"status":  res.Status.String(),
			"message": "Calendar is loading",
		}, started)
		return
	}

	cal := res.Calendar
	if !isOwner(r, dev) {
		cal = publicCalendar(cal)
	}
	respondData(w, r, http.StatusOK, cal, started)
}

func publicCalendar(c *models.DeviceCalendar) *models.DeviceCalendar {
	out := *c
	out.Recs = make([]models.Record, len(c.Recs))
	for i := range c.Recs {
		out.Recs[i] = *c.Recs[i].Public()
	}
	return &out
}

// ExportCSV streams every record of a device as CSV. Owners get the full
// column set.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	dev, ok := h.loadDevice(w, r)
	if !ok {
		return
	}

	recs, err := h.db.ListDeviceRecords(r.Context(), dev.ID, database.RecordQuery{})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load records", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="gmcserver-%s.csv"`, dev.ID))
	if err := codec.WriteCSV(w, recs, isOwner(r, dev)); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("device", dev.ID).Msg("CSV export interrupted")
	}
}
