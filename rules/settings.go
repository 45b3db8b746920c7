package rules

import "time"

// Settings are the options a matching rule attaches to its quirks, such as binding overrides.
type Settings map[string]any

func (s Settings) String(k string) (string, bool) {
	val, found := s[k]
	if !found {
		return "", false
	}

	str, ok := val.(string)
	return str, ok
}

func (s Settings) Boolean(k string) (bool, bool) {
	val, found := s[k]
	if !found {
		return false, false
	}

	b, ok := val.(bool)
	return b, ok
}

func (s Settings) Int(k string) (int, bool) {
	val, found := s[k]
	if !found {
		return 0, false
	}

	i, ok := val.(int)
	return i, ok
}

func (s Settings) Float(k string) (float64, bool) {
	val, found := s[k]
	if !found {
		return 0.0, false
	}

	switch v := val.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0.0, false
	}
}

// Duration reads an integer number of milliseconds.
func (s Settings) Duration(k string) (time.Duration, bool) {
	if ms, ok := s.Int(k); ok {
		return time.Duration(ms) * time.Millisecond, true
	}

	return 0, false
}

// merge copies every key of o over s, returning the result.
func (s Settings) merge(o Settings) Settings {
	ret := Settings{}

	for k, v := range s {
		ret[k] = v
	}

	for k, v := range o {
		ret[k] = v
	}

	return ret
}
