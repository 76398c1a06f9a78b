package plugin

import (
	"fmt"
	"maps"
	"time"
)

// Config is the opaque key/value configuration handed to Initialize.
type Config map[string]any

// CacheDirKey is the key under which the manager passes its cache directory.
const CacheDirKey = "cache_dir"

// Merge returns a new Config with the keys of other layered over c.
func (c Config) Merge(other Config) Config {
	out := make(Config, len(c)+len(other))
	maps.Copy(out, c)
	maps.Copy(out, other)
	return out
}

// String returns the value at key as a string, or def when missing.
func (c Config) String(key, def string) string {
	v, ok := c[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Bool returns the value at key as a bool, or def when missing or not a bool.
func (c Config) Bool(key string, def bool) bool {
	if b, ok := c[key].(bool); ok {
		return b
	}
	return def
}

// Duration parses the value at key as a duration string ("10s") or a number
// of seconds.
func (c Config) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case time.Duration:
		return t, nil
	case string:
		d, err := time.ParseDuration(t)
		if err != nil {
			return def, fmt.Errorf("config key '%s': %w", key, err)
		}
		return d, nil
	case int:
		return time.Duration(t) * time.Second, nil
	case float64:
		return time.Duration(t * float64(time.Second)), nil
	default:
		return def, fmt.Errorf("config key '%s': unsupported duration value of type %T", key, v)
	}
}
