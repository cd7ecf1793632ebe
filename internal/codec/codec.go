// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package codec

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/tomtom215/geigerhub/internal/models"
)

// Status strings understood by GMC firmware.
const (
	StatusOK             = "OK.ERR0"
	StatusSyntax         = "The syntax of one of the logging parameters is incorrect"
	StatusInvalidUser    = "Invalid user ID.ERR1"
	StatusInvalidDevice  = "Invalid device ID.ERR2"
	StatusDeviceNotOwned = "User does not own device"
	statusInternalSuffix = ".ERR9999"
)

var (
	ErrSyntax          = errors.New(StatusSyntax)
	ErrInvalidUserID   = errors.New(StatusInvalidUser)
	ErrInvalidDeviceID = errors.New(StatusInvalidDevice)
	ErrUserNotFound    = errors.New("user not found")
	ErrDeviceNotFound  = errors.New("device not found")
	ErrDeviceNotOwned  = errors.New(StatusDeviceNotOwned)
)

// InternalStatus formats an unexpected failure for firmware clients.
func InternalStatus(err error) string {
	return err.Error() + statusInternalSuffix
}

// Form tells which wire shape a submission arrived in.
type Form int

const (
	FormNamed Form = iota
	FormCompact
)

// Submission is a decoded ingestion request whose identity codes have
// not been resolved yet.
type Submission struct {
	UserCode   int64
	DeviceCode int64
	Form       Form
	Record     *models.Record
}

// ParseIdentityCode parses a user or device identity code.
func ParseIdentityCode(s string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v < 1 || v > models.MaxGmcID {
		return 0, false
	}
	return v, true
}

// ParseValue parses a finite decimal. NaN and infinities are rejected since
// they cannot be encoded as JSON.
func ParseValue(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrSyntax
	}
	return v, nil
}
