package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// rawFields is a decoded backend object whose fields are looked up by the
// first name that is present. Dotted names descend into nested objects.
type rawFields map[string]json.RawMessage

func decodeFields(data []byte) (rawFields, error) {
	var f rawFields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f, nil
}

func (f rawFields) lookup(key string) (json.RawMessage, bool) {
	head, rest, nested := strings.Cut(key, ".")
	raw, ok := f[head]
	if !ok || isNull(raw) {
		return nil, false
	}
	if !nested {
		return raw, true
	}
	child, err := decodeFields(raw)
	if err != nil {
		return nil, false
	}
	return child.lookup(rest)
}

// str returns the first non-empty string or number found under keys.
func (f rawFields) str(keys ...string) string {
	for _, key := range keys {
		raw, ok := f.lookup(key)
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

func (f rawFields) boolean(keys ...string) bool {
	for _, key := range keys {
		raw, ok := f.lookup(key)
		if !ok {
			continue
		}
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return b
		}
		if parsed, err := strconv.ParseBool(f.str(key)); err == nil {
			return parsed
		}
	}
	return false
}

func (f rawFields) integer(keys ...string) int {
	for _, key := range keys {
		if v, err := strconv.Atoi(f.str(key)); err == nil {
			return v
		}
	}
	return 0
}

func (f rawFields) float(keys ...string) float64 {
	for _, key := range keys {
		if v, err := strconv.ParseFloat(f.str(key), 64); err == nil {
			return v
		}
	}
	return 0
}

func (f rawFields) time(keys ...string) time.Time {
	for _, key := range keys {
		if t, ok := ParseTime(f.str(key)); ok {
			return t
		}
	}
	return time.Time{}
}

func (f rawFields) raw(keys ...string) json.RawMessage {
	for _, key := range keys {
		if raw, ok := f.lookup(key); ok {
			return raw
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime accepts the timestamp shapes the backend has been seen to emit.
// Values without a zone are read as UTC.
func ParseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}

var clockLayouts = []string{"15:04", "15:04:05", "3:04 PM", "03:04 PM", "3:04PM"}

// CombineDateClock joins a YYYY-MM-DD date with a wall-clock time.
func CombineDateClock(date, clock string) (time.Time, bool) {
	day, err := time.Parse("2006-01-02", strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, false
	}
	clock = strings.ToUpper(strings.TrimSpace(clock))
	if clock == "" {
		return day, true
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, clock); err == nil {
			return day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second), true
		}
	}
	return time.Time{}, false
}

// unwrapList extracts an array from a bare array or from a wrapper object
// such as {"data": [...]} or {"appointments": [...]}.
func unwrapList(data []byte, keys ...string) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || isNull(trimmed) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	f, err := decodeFields(trimmed)
	if err != nil {
		return nil, err
	}
	for _, key := range append(keys, "data", "items", "results") {
		raw, ok := f.lookup(key)
		if !ok {
			continue
		}
		items, err := unwrapList(raw, keys...)
		if err == nil {
			return items, nil
		}
	}
	return nil, nil
}

// DecodeList decodes a backend list payload into T, tolerating wrapper objects.
func DecodeList[T any](data []byte, keys ...string) ([]T, error) {
	items, err := unwrapList(data, keys...)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// DecodeOne decodes a single backend object, unwrapping {"data": {...}} style envelopes.
func DecodeOne[T any](data []byte, keys ...string) (T, error) {
	var v T
	f, err := decodeFields(data)
	if err != nil {
		return v, err
	}
	for _, key := range append(keys, "data") {
		if raw, ok := f.lookup(key); ok && bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
			err := json.Unmarshal(raw, &v)
			return v, err
		}
	}
	err = json.Unmarshal(data, &v)
	return v, err
}
