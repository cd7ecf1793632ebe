// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package api

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/geigerhub/internal/auth"
	"github.com/tomtom215/geigerhub/internal/database"
	"github.com/tomtom215/geigerhub/internal/logging"
	"github.com/tomtom215/geigerhub/internal/models"
	"github.com/tomtom215/geigerhub/internal/proxy"
)

// gmcIDAttempts bounds the search for an unused identity code.
const gmcIDAttempts = 8

// loadDevice fetches the device named by the {id} path parameter and
// writes the error response itself when that fails.
func (h *Handler) loadDevice(w http.ResponseWriter, r *http.Request) (*models.Device, bool) {
	dev, err := h.db.GetDevice(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Device not found", nil)
		return nil, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load device", err)
		return nil, false
	}
	return dev, true
}

// ownedDevice is loadDevice restricted to the authenticated owner.
func (h *Handler) ownedDevice(w http.ResponseWriter, r *http.Request) (*models.Device, bool) {
	dev, ok := h.loadDevice(w, r)
	if !ok {
		return nil, false
	}
	if !isOwner(r, dev) {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "You do not own this device", nil)
		return nil, false
	}
	return dev, true
}

func isOwner(r *http.Request, dev *models.Device) bool {
	uid := auth.UserIDFromContext(r.Context())
	return uid != "" && dev.Owner == uid
}

// validLocation checks component count and coordinate ranges.
func validLocation(l models.Location) bool {
	if !l.Valid() {
		return false
	}
	return l.Lon() >= -180 && l.Lon() <= 180 && l.Lat() >= -90 && l.Lat() <= 90
}

// GetDevice returns a device. Its owner sees every field; everyone else
// the public view.
func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	dev, ok := h.loadDevice(w, r)
	if !ok {
		return
	}
	if isOwner(r, dev) {
		respondData(w, r, http.StatusOK, dev, start)
		return
	}
	respondData(w, r, http.StatusOK, dev.Public(), start)
}

// CreateDevice registers a device for the authenticated user, within the
// user's device limit.
func (h *Handler) CreateDevice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req CreateDeviceRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondJSON(w, http.StatusBadRequest, &models.APIResponse{Status: "error", Error: apiErr, Metadata: models.Metadata{Timestamp: time.Now()}})
		return
	}
	if req.Location != nil && !validLocation(req.Location) {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid location", nil)
		return
	}

	user, err := h.db.GetUser(ctx, auth.UserIDFromContext(ctx))
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unknown user", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load user", err)
		return
	}

	count, err := h.db.CountDevicesByOwner(ctx, user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to count devices", err)
		return
	}
	if count >= user.DeviceLimit {
		respondError(w, http.StatusForbidden, "DEVICE_LIMIT", ErrDeviceLimit.Error(), nil)
		return
	}

	gmcID, err := h.freeGmcID(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to allocate device code", err)
		return
	}

	dev := models.NewDevice(uuid.New().String(), req.Name, gmcID, user.ID)
	dev.Location = req.Location
	if err := h.db.CreateDevice(ctx, dev); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create device", err)
		return
	}

	logging.Ctx(ctx).Info().Str("device", dev.ID).Str("owner", user.ID).Msg("Device created")
	respondData(w, r, http.StatusCreated, dev, start)
}

// freeGmcID picks a random identity code no device uses yet.
func (h *Handler) freeGmcID(ctx context.Context) (int64, error) {
	for i := 0; i < gmcIDAttempts; i++ {
		candidate := rand.Int64N(models.MaxGmcID) + 1
		_, err := h.db.GetDeviceByGmcID(ctx, candidate)
		if errors.Is(err, database.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return 0, err
		}
	}
	return 0, fmt.Errorf("no free identity code after %d attempts", gmcIDAttempts)
}

// UpdateDevice applies the owner's changes. Every forwarder in
// proxiesSettings must exist and accept its settings.
func (h *Handler) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	dev, ok := h.ownedDevice(w, r)
	if !ok {
		return
	}

	var req UpdateDeviceRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondJSON(w, http.StatusBadRequest, &models.APIResponse{Status: "error", Error: apiErr, Metadata: models.Metadata{Timestamp: time.Now()}})
		return
	}

	if req.Name != nil {
		dev.Name = *req.Name
	}
	if req.Location != nil {
		if !validLocation(req.Location) {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid location", nil)
			return
		}
		dev.Location = req.Location
	}
	if req.Disabled != nil {
		dev.Disabled = *req.Disabled
	}
	switch {
	case req.DisableAlerts:
		dev.StdDevAlertLimit = nil
	case req.StdDevAlertLimit != nil:
		dev.StdDevAlertLimit = req.StdDevAlertLimit
	}
	if req.ProxiesSettings != nil {
		if err := h.proxies.Validate(dev, req.ProxiesSettings); err != nil {
			respondError(w, http.StatusBadRequest, proxyErrorCode(err), err.Error(), nil)
			return
		}
		dev.ProxiesSettings = req.ProxiesSettings
	}

	if err := h.db.UpdateDevice(r.Context(), dev); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update device", err)
		return
	}
	respondData(w, r, http.StatusOK, dev, start)
}

func proxyErrorCode(err error) string {
	if errors.Is(err, proxy.ErrUnknownForwarder) {
		return "UNKNOWN_PROXY"
	}
	return "INVALID_PROXY_SETTINGS"
}

// DeleteDevice removes the owner's device together with its records.
func (h *Handler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	dev, ok := h.ownedDevice(w, r)
	if !ok {
		return
	}
	if err := h.db.DeleteDevice(r.Context(), dev.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete device", err)
		return
	}
	logging.Ctx(r.Context()).Info().Str("device", dev.ID).Msg("Device deleted")
	respondData(w, r, http.StatusOK, map[string]string{"deleted": dev.ID}, start)
}
