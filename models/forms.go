package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NewEntry is a create submission. MinutesLate is kept as the submitted text;
// the backend parses and validates it.
type NewEntry struct {
	MinutesLate string
	Excuse      *string
}

type newEntryJSON struct {
	MinutesLate json.RawMessage `json:"minutes_late"`
	Excuse      *string         `json:"excuse"`
}

// UnmarshalJSON accepts minutes_late as a number or a string, since browser
// forms submit it as text.
func (n *NewEntry) UnmarshalJSON(data []byte) error {
	var raw newEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	minutes, err := rawText(raw.MinutesLate)
	if err != nil {
		return fmt.Errorf("minutes_late: %w", err)
	}

	n.MinutesLate = minutes
	n.Excuse = raw.Excuse
	if n.Excuse != nil && *n.Excuse == "" {
		n.Excuse = nil
	}
	return nil
}

// EntryUpdate edits an existing entry; nil fields are left unchanged.
type EntryUpdate struct {
	MinutesLate *string
	Excuse      *string
}

func (u *EntryUpdate) UnmarshalJSON(data []byte) error {
	var raw newEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	minutes, err := rawText(raw.MinutesLate)
	if err != nil {
		return fmt.Errorf("minutes_late: %w", err)
	}
	if minutes != "" {
		u.MinutesLate = &minutes
	}
	u.Excuse = raw.Excuse
	return nil
}

func rawText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}
