package parse

import (
	"strconv"
	"strings"
	"time"
)

// Field accessors over a decoded JSON object. The upstream state block is
// loosely typed: numbers may arrive as strings, strings may be blank, dates
// carry an offset. Every accessor returns nil for anything it cannot coerce
// instead of failing the record.

func getString(obj map[string]any, key string) *string {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case string:
		return normalize(t)
	case float64:
		return normalize(formatNumber(t))
	case bool:
		return normalize(strconv.FormatBool(t))
	default:
		return nil
	}
}

func getInt(obj map[string]any, key string) *int {
	v, ok := obj[key]
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case float64:
		i := int(t)
		if float64(i) != t {
			return nil
		}
		return &i
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		return &i
	default:
		return nil
	}
}

func getInt64(obj map[string]any, key string) *int64 {
	v, ok := obj[key]
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case float64:
		i := int64(t)
		if float64(i) != t {
			return nil
		}
		return &i
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return nil
		}
		return &i
	default:
		return nil
	}
}

func getFloat(obj map[string]any, key string) *float64 {
	v, ok := obj[key]
	if !ok {
		return nil
	}
	return coerceFloat(v)
}

func getBool(obj map[string]any, key string) *bool {
	v, ok := obj[key]
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case bool:
		return &t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		return &b
	default:
		return nil
	}
}

// getTime parses ISO-8601 with explicit offset and normalizes to UTC.
func getTime(obj map[string]any, key string) *time.Time {
	v, ok := obj[key]
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// getStringSlice keeps only non-blank string entries, order preserved.
func getStringSlice(obj map[string]any, key string) []string {
	v, ok := obj[key]
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, it := range arr {
		s, ok := it.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// getRate reads one amount from a currency-amount map keyed by ISO numeric
// currency code ("840" USD, "933" BYN, "978" EUR, "643" RUB).
func getRate(rates map[string]any, code string) *float64 {
	v, ok := rates[code]
	if !ok {
		return nil
	}
	return coerceFloat(v)
}

func coerceFloat(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// normalize coerces blank strings to absent and trims the rest.
func normalize(s string) *string {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil
	}
	return &t
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
