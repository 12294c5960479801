package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EntryList is the date-keyed collection returned by /lates/all. On the wire
// it is a JSON object; the order of its keys is kept as received, since the
// backend decides it (newest first by default).
type EntryList []LateEntry

func (l EntryList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Date)
		if err != nil {
			return nil, err
		}
		entry.Date = ""
		value, err := json.Marshal(entry)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (l *EntryList) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*l = EntryList{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("entry list: expected object, got %v", tok)
	}

	list := EntryList{}
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		date, ok := tok.(string)
		if !ok {
			return fmt.Errorf("entry list: expected date key, got %v", tok)
		}

		var entry LateEntry
		if err := dec.Decode(&entry); err != nil {
			return fmt.Errorf("entry list: decoding %q: %w", date, err)
		}
		entry.Date = date

		// a repeated key replaces the earlier value, like a plain object would
		if i, seen := index[date]; seen {
			list[i] = entry
			continue
		}
		index[date] = len(list)
		list = append(list, entry)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*l = list
	return nil
}

// Get looks up the entry stored under date.
func (l EntryList) Get(date string) (LateEntry, bool) {
	for _, entry := range l {
		if entry.Date == date {
			return entry, true
		}
	}
	return LateEntry{}, false
}

func (l EntryList) Contains(date string) bool {
	_, ok := l.Get(date)
	return ok
}

func (l EntryList) Dates() []string {
	dates := make([]string, 0, len(l))
	for _, entry := range l {
		dates = append(dates, entry.Date)
	}
	return dates
}
