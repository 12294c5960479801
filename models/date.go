package models

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultDateKey is used by the delete route when no id is given.
const DefaultDateKey = "01/01/2022"

var ErrMalformedDateKey = errors.New("date must be in day/month/year form")

// DateKey is the day/month/year identifier of an entry. The parts are kept as
// written so that a key is forwarded to the backend exactly as the caller sent it.
type DateKey struct {
	Day   string
	Month string
	Year  string
}

// ParseDateKey splits a "DD/MM/YYYY" key. It does not check that the parts
// are numbers; the backend owns that. Parts may not carry URL syntax.
func ParseDateKey(s string) (DateKey, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return DateKey{}, fmt.Errorf("%q: %w", s, ErrMalformedDateKey)
	}
	for _, p := range parts {
		if strings.TrimSpace(p) == "" || strings.ContainsAny(p, "?#%") {
			return DateKey{}, fmt.Errorf("%q: %w", s, ErrMalformedDateKey)
		}
	}
	return DateKey{Day: parts[0], Month: parts[1], Year: parts[2]}, nil
}

// ResolveDateKey parses the id of a delete request. An empty id resolves to
// DefaultDateKey and defaulted is true.
func ResolveDateKey(id string) (key DateKey, defaulted bool, err error) {
	if id == "" {
		id, defaulted = DefaultDateKey, true
	}
	key, err = ParseDateKey(id)
	return key, defaulted, err
}

// DateKeyFromParts builds the key the backend stores, without zero padding.
func DateKeyFromParts(year, month, day int) DateKey {
	return DateKey{
		Day:   fmt.Sprint(day),
		Month: fmt.Sprint(month),
		Year:  fmt.Sprint(year),
	}
}

func DateKeyFor(t time.Time) DateKey {
	return DateKeyFromParts(t.Year(), int(t.Month()), t.Day())
}

func (k DateKey) String() string {
	return k.Day + "/" + k.Month + "/" + k.Year
}

// Path is the year/month/day suffix of the backend's per-date resource.
// Each part is path-escaped.
func (k DateKey) Path() string {
	return url.PathEscape(k.Year) + "/" + url.PathEscape(k.Month) + "/" + url.PathEscape(k.Day)
}
