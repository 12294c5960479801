package models

// NoExcuse is rendered in place of a missing excuse.
const NoExcuse = "No excuse"

// Bounds enforced by the entry form and the reference backend.
const (
	MaxMinutesLate  = 32400
	MaxExcuseLength = 1024
)

type LateEntry struct {
	Date        string  `json:"date,omitempty"`
	MinutesLate int     `json:"minutes_late"`
	Excuse      *string `json:"excuse"`
}

// ExcuseText returns the excuse, or NoExcuse when it is absent or empty.
func (e LateEntry) ExcuseText() string {
	if e.Excuse == nil || *e.Excuse == "" {
		return NoExcuse
	}
	return *e.Excuse
}

// ErrorBody is the error payload of the lates backend.
type ErrorBody struct {
	Detail interface{} `json:"detail"`
}

// String is a convenience for optional string fields.
func String(s string) *string {
	return &s
}
