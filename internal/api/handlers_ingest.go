// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/geigerhub/internal/codec"
	"github.com/tomtom215/geigerhub/internal/fanout"
	"github.com/tomtom215/geigerhub/internal/logging"
	"github.com/tomtom215/geigerhub/internal/metrics"
	"github.com/tomtom215/geigerhub/internal/models"
)

// Wire format labels for ingestion metrics and logs.
const (
	formatLog2        = "log2"
	formatLog         = "log"
	formatRadmon      = "radmon"
	formatSafecast    = "safecast"
	formatURadMonitor = "uradmonitor"
)

// radmonReply is what radmon clients look for on success.
const radmonReply = "OK<br>"

// ingest resolves the submission's identity, stamps the record and runs
// the fan-out pipeline.
func (h *Handler) ingest(ctx context.Context, r *http.Request, sub *codec.Submission) error {
	user, dev, err := h.resolver.Resolve(ctx, sub.UserCode, sub.DeviceCode)
	if err != nil {
		return err
	}

	rec := sub.Record
	codec.Stamp(rec, r, h.stampOptions())
	codec.Bind(rec, user, dev)

	opts := fanout.DefaultOptions()
	if sub.Form == codec.FormCompact {
		opts.Intent = models.IntentLogClassicRecord
	}
	return h.fanout.InsertRecord(ctx, rec, dev, user, opts)
}

// gmcError answers a logging device. Clients accepting JSON get a status
// object; firmware gets the bare status line with extras in X-GMC-Extras.
func gmcError(w http.ResponseWriter, r *http.Request, status int, desc string, extras map[string]interface{}) {
	if acceptsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(models.GmcStatus{Status: status, Description: desc, Extras: extras}); err != nil {
			logging.Error().Err(err).Msg("Failed to write ingestion status")
		}
		return
	}

	if extras != nil {
		if raw, err := json.Marshal(extras); err == nil {
			w.Header().Set("X-GMC-Extras", string(raw))
		}
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(desc)); err != nil {
		logging.Error().Err(err).Msg("Failed to write ingestion status")
	}
}

func acceptsJSON(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, _, _ := strings.Cut(part, ";")
		if strings.EqualFold(strings.TrimSpace(mediaType), "application/json") {
			return true
		}
	}
	return false
}

// finishIngest writes the outcome of an ingestion attempt in the device's
// status convention and counts it.
func finishIngest(w http.ResponseWriter, r *http.Request, format string, err error) {
	if err == nil {
		metrics.RecordIngest(format, http.StatusOK)
		gmcError(w, r, http.StatusOK, codec.StatusOK, nil)
		return
	}

	status, desc := ingestStatus(err)
	metrics.RecordIngest(format, status)
	logIngestFailure(r, format, status, err)
	gmcError(w, r, status, desc, nil)
}

func logIngestFailure(r *http.Request, format string, status int, err error) {
	event := logging.Ctx(r.Context()).Debug()
	if status >= http.StatusInternalServerError {
		event = logging.Ctx(r.Context()).Error()
	}
	event.Err(err).Str("format", format).Int("status", status).Msg("Ingestion rejected")
}

// LogNamed handles /log2 and /log2.asp.
func (h *Handler) LogNamed(w http.ResponseWriter, r *http.Request) {
	sub, err := codec.ParseNamed(r.URL.Query())
	if err == nil {
		err = h.ingest(r.Context(), r, sub)
	}
	finishIngest(w, r, formatLog2, err)
}

// LogCompact handles /log and /log.asp.
func (h *Handler) LogCompact(w http.ResponseWriter, r *http.Request) {
	raw, ok := queryFold(r, "id")
	if !ok {
		finishIngest(w, r, formatLog, codec.ErrSyntax)
		return
	}
	sub, err := codec.ParseCompact(raw)
	if err == nil {
		err = h.ingest(r.Context(), r, sub)
	}
	finishIngest(w, r, formatLog, err)
}

// queryFold looks a query parameter up case-insensitively.
func queryFold(r *http.Request, key string) (string, bool) {
	for k, v := range r.URL.Query() {
		if strings.EqualFold(k, key) && len(v) > 0 {
			return v[0], true
		}
	}
	return "", false
}

// Radmon accepts radmon.org style submissions: user is the user code,
// password the device code, value the cpm reading.
func (h *Handler) Radmon(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	sub, err := parseRadmon(q.Get("function"), q.Get("unit"), q.Get("user"), q.Get("password"), q.Get("value"))
	if err == nil {
		err = h.ingest(r.Context(), r, sub)
	}
	if err != nil {
		finishIngest(w, r, formatRadmon, err)
		return
	}

	metrics.RecordIngest(formatRadmon, http.StatusOK)
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(radmonReply))
}

func parseRadmon(function, unit, user, password, value string) (*codec.Submission, error) {
	if function != "submit" {
		return nil, ErrBadFunction
	}
	if !strings.EqualFold(unit, "cpm") {
		return nil, ErrUnitNotCPM
	}
	userCode, ok := codec.ParseIdentityCode(user)
	if !ok {
		return nil, codec.ErrInvalidUserID
	}
	deviceCode, ok := codec.ParseIdentityCode(password)
	if !ok {
		return nil, codec.ErrInvalidDeviceID
	}
	if value == "" {
		return nil, ErrMissingValue
	}
	cpm, err := codec.ParseValue(value)
	if err != nil {
		return nil, err
	}
	return &codec.Submission{
		UserCode:   userCode,
		DeviceCode: deviceCode,
		Form:       codec.FormNamed,
		Record:     &models.Record{CPM: models.Float(cpm)},
	}, nil
}

// safecastRequest is the measurements.json body.
type safecastRequest struct {
	DeviceID   int64    `json:"device_id" validate:"gmcid"`
	CapturedAt string   `json:"captured_at" validate:"required"`
	Longitude  *float64 `json:"longitude" validate:"required,longitude"`
	Latitude   *float64 `json:"latitude" validate:"required,latitude"`
	Value      *float64 `json:"value" validate:"required"`
	Unit       string   `json:"unit" validate:"required"`
}

// Safecast accepts Safecast measurements; api_key is the user code.
func (h *Handler) Safecast(w http.ResponseWriter, r *http.Request) {
	userCode, ok := codec.ParseIdentityCode(r.URL.Query().Get("api_key"))
	if !ok {
		finishIngest(w, r, formatSafecast, codec.ErrInvalidUserID)
		return
	}

	var req safecastRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		finishIngest(w, r, formatSafecast, codec.ErrSyntax)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		if _, bad := apiErr.Details["device_id"]; bad {
			finishIngest(w, r, formatSafecast, codec.ErrInvalidDeviceID)
			return
		}
		finishIngest(w, r, formatSafecast, codec.ErrSyntax)
		return
	}
	if !strings.EqualFold(req.Unit, "cpm") {
		finishIngest(w, r, formatSafecast, ErrUnitNotCPM)
		return
	}
	if _, err := time.Parse(time.RFC3339, req.CapturedAt); err != nil {
		finishIngest(w, r, formatSafecast, codec.ErrSyntax)
		return
	}

	sub := &codec.Submission{
		UserCode:   userCode,
		DeviceCode: req.DeviceID,
		Form:       codec.FormNamed,
		Record: &models.Record{
			CPM:      models.Float(*req.Value),
			Location: models.NewLocation(*req.Longitude, *req.Latitude, nil),
		},
	}
	if err := h.ingest(r.Context(), r, sub); err != nil {
		finishIngest(w, r, formatSafecast, err)
		return
	}

	metrics.RecordIngest(formatSafecast, http.StatusCreated)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"id":          sub.Record.ID,
		"device_id":   req.DeviceID,
		"captured_at": req.CapturedAt,
		"value":       *req.Value,
		"unit":        "cpm",
	})
}

// URadMonitor accepts uRADMonitor uploads. Readings are encoded in the
// path; X-User-hash carries the user code and X-Device-id the device code.
func (h *Handler) URadMonitor(w http.ResponseWriter, r *http.Request) {
	userCode, ok := codec.ParseIdentityCode(r.Header.Get("X-User-hash"))
	if !ok {
		finishIngest(w, r, formatURadMonitor, codec.ErrInvalidUserID)
		return
	}
	deviceCode, ok := codec.ParseIdentityCode(r.Header.Get("X-Device-id"))
	if !ok {
		finishIngest(w, r, formatURadMonitor, codec.ErrInvalidDeviceID)
		return
	}

	rec, err := codec.DecodePathSegments(chi.URLParam(r, "*"))
	if err != nil {
		finishIngest(w, r, formatURadMonitor, err)
		return
	}

	sub := &codec.Submission{
		UserCode:   userCode,
		DeviceCode: deviceCode,
		Form:       codec.FormNamed,
		Record:     rec,
	}
	if err := h.ingest(r.Context(), r, sub); err != nil {
		finishIngest(w, r, formatURadMonitor, err)
		return
	}

	metrics.RecordIngest(formatURadMonitor, http.StatusOK)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"success":"ok"}`))
}
