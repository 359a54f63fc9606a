package library

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// CoerceInt reads a loosely typed JSON number. Numbers are truncated toward
// zero and saturate at the int range, numeric strings are parsed the same
// way, and anything else (missing, null, text, bools, objects) is fallback.
func CoerceInt(raw json.RawMessage, fallback int) int {
	f, ok := coerceFloat(raw)
	if !ok {
		return fallback
	}
	switch {
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(f)
}

// coerceID returns raw as an id when it holds an integral number, or
// fallback otherwise.
func coerceID(raw json.RawMessage, fallback int64) int64 {
	f, ok := coerceFloat(raw)
	if !ok || f != math.Trunc(f) || f >= math.MaxInt64 || f <= math.MinInt64 {
		return fallback
	}
	return int64(f)
}

func coerceFloat(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return 0, false
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false
		}
		text = strings.TrimSpace(text)
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// coerceString renders a JSON scalar as text: strings as-is, numbers in
// their shortest form, bools as true/false. Objects and arrays keep their
// compact JSON text. The second result is false for missing or null values.
func coerceString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return "", false
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, true
		}
	case 't', 'f':
		if b, err := strconv.ParseBool(string(raw)); err == nil {
			return strconv.FormatBool(b), true
		}
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err == nil {
			return buf.String(), true
		}
	default:
		if f, err := strconv.ParseFloat(string(raw), 64); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
	}
	return string(raw), true
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
