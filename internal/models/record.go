// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package models

import (
	"time"
)

// Record is a single telemetry sample.
//
// Stat fields are nil when the device did not report them. They are tagged
// omitempty so an absent field never appears in JSON, which is the contract
// hardware dashboards and mirrors rely on.
type Record struct {
	ID       string `json:"id,omitempty"`
	DeviceID string `json:"deviceId,omitempty"`
	UserID   string `json:"userId,omitempty"`

	CPM  *float64 `json:"cpm,omitempty"`
	ACPM *float64 `json:"acpm,omitempty"`
	USV  *float64 `json:"usv,omitempty"`
	CO2  *float64 `json:"co2,omitempty"`
	HCHO *float64 `json:"hcho,omitempty"`
	TMP  *float64 `json:"tmp,omitempty"`
	AP   *float64 `json:"ap,omitempty"`
	HMDT *float64 `json:"hmdt,omitempty"`
	ACCY *float64 `json:"accy,omitempty"`

	Date     time.Time `json:"date"`
	IP       string    `json:"ip,omitempty"`
	Type     string    `json:"type,omitempty"`
	Location Location  `json:"location,omitempty"`
}

// Float returns a pointer to v. Used to fill optional stat fields.
func Float(v float64) *float64 {
	return &v
}

// StatField binds a stat field name to its slot in Record.
type StatField struct {
	Name string
	Ptr  func(r *Record) **float64
}

// Get returns the field value and whether it is present.
func (f StatField) Get(r *Record) (float64, bool) {
	p := *f.Ptr(r)
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Set stores v in the field.
func (f StatField) Set(r *Record, v float64) {
	*f.Ptr(r) = Float(v)
}

// Clear marks the field as absent.
func (f StatField) Clear(r *Record) {
	*f.Ptr(r) = nil
}

// StatFields lists every numeric channel in storage and wire order.
var StatFields = []StatField{
	{"cpm", func(r *Record) **float64 { return &r.CPM }},
	{"acpm", func(r *Record) **float64 { return &r.ACPM }},
	{"usv", func(r *Record) **float64 { return &r.USV }},
	{"co2", func(r *Record) **float64 { return &r.CO2 }},
	{"hcho", func(r *Record) **float64 { return &r.HCHO }},
	{"tmp", func(r *Record) **float64 { return &r.TMP }},
	{"ap", func(r *Record) **float64 { return &r.AP }},
	{"hmdt", func(r *Record) **float64 { return &r.HMDT }},
	{"accy", func(r *Record) **float64 { return &r.ACCY }},
}

var statFieldIndex = func() map[string]StatField {
	m := make(map[string]StatField, len(StatFields))
	for _, f := range StatFields {
		m[f.Name] = f
	}
	return m
}()

// LookupStatField returns the stat field named name.
func LookupStatField(name string) (StatField, bool) {
	f, ok := statFieldIndex[name]
	return f, ok
}

// StatFieldNames returns the stat field names in table order.
func StatFieldNames() []string {
	names := make([]string, len(StatFields))
	for i, f := range StatFields {
		names[i] = f.Name
	}
	return names
}

// Stat returns the value of the named stat field and whether it is present.
// Unknown names report absent.
func (r *Record) Stat(name string) (float64, bool) {
	f, ok := LookupStatField(name)
	if !ok {
		return 0, false
	}
	return f.Get(r)
}

// HasStats reports whether at least one stat field is present.
func (r *Record) HasStats() bool {
	for _, f := range StatFields {
		if _, ok := f.Get(r); ok {
			return true
		}
	}
	return false
}

// Public returns a copy without internal identifiers and the source IP.
func (r *Record) Public() *Record {
	c := *r
	c.ID = ""
	c.DeviceID = ""
	c.UserID = ""
	c.IP = ""
	return &c
}
