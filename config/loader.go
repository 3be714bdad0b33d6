package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/semql/errors"
)

// DefaultEnvPrefix prefixes environment overrides.
const DefaultEnvPrefix = "SEMQL"

// durationKeys name the fields decoded as time.Duration. Their string values
// ("5s", "14d") are converted to nanoseconds before decoding.
var durationKeys = map[string]bool{
	"timeout":         true,
	"ttl":             true,
	"reconnect_wait":  true,
	"initial_delay":   true,
	"max_delay":       true,
	"ping_interval":   true,
	"drain_timeout":   true,
	"handler_timeout": true,
}

// stringSections hold duration-like keys decoded as strings.
var stringSections = map[string]bool{
	"server": true,
}

// Loader loads configuration layers over the defaults.
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	getenv     func(string) string
}

// NewLoader creates a loader with validation enabled.
func NewLoader() *Loader {
	return &Loader{
		validation: true,
		envPrefix:  DefaultEnvPrefix,
		getenv:     os.Getenv,
	}
}

// AddLayer adds a configuration file. Later layers override earlier ones.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables validation of the merged result.
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// SetEnvPrefix changes the environment variable prefix.
func (l *Loader) SetEnvPrefix(prefix string) {
	l.envPrefix = prefix
}

// LoadFile loads configuration from a single file.
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges the defaults, every layer and the environment.
func (l *Loader) Load() (*Config, error) {
	merged, err := toMap(Default())
	if err != nil {
		return nil, errors.WrapFatal(err, "Loader", "Load", "encode defaults")
	}

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %s: %v", errors.ErrInvalidConfig, path, err),
				"Loader", "Load", "read layer")
		}
		merged = deepMergeMaps(merged, raw)
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err), "Loader", "Load", "encode merged layers")
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err), "Loader", "Load", "decode merged layers")
	}

	if err := l.applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// loadRaw reads a YAML or JSON layer into a map with durations converted.
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := validateJSONDepth(data); err != nil {
			return nil, fmt.Errorf("invalid JSON structure: %w", err)
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	}
	if raw == nil {
		raw = map[string]any{}
	}

	for section, v := range raw {
		if stringSections[section] {
			continue
		}
		if err := parseDurations(section, v); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

// parseDurations converts duration strings below v in place.
func parseDurations(key string, v any) error {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			if s, ok := child.(string); ok && durationKeys[k] {
				d, err := parseDurationWithDays(s)
				if err != nil {
					return fmt.Errorf("%s.%s: %w", key, k, err)
				}
				val[k] = d.Nanoseconds()
				continue
			}
			if err := parseDurations(key+"."+k, child); err != nil {
				return err
			}
		}
	case []any:
		for i, child := range val {
			if err := parseDurations(fmt.Sprintf("%s[%d]", key, i), child); err != nil {
				return err
			}
		}
	}
	return nil
}

// parseDurationWithDays parses durations that may use days ("14d").
func parseDurationWithDays(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// deepMergeMaps merges override into base; nested maps merge recursively and
// nil values leave base untouched.
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

func toMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// applyEnvOverrides applies PREFIX_* variables.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	str := func(name string, dst *string) error {
		key := l.envPrefix + "_" + name
		val := l.getenv(key)
		if err := validateEnvVar(key, val); err != nil {
			return errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err), "Loader", "applyEnvOverrides", key)
		}
		if val != "" {
			*dst = val
		}
		return nil
	}
	boolean := func(name string, dst *bool) error {
		var s string
		if err := str(name, &s); err != nil || s == "" {
			return err
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return errors.WrapInvalid(fmt.Errorf("%w: %s_%s: %v", errors.ErrInvalidConfig, l.envPrefix, name, err),
				"Loader", "applyEnvOverrides", "parse bool")
		}
		*dst = b
		return nil
	}

	for _, o := range []struct {
		name string
		dst  *string
	}{
		{"BACKEND", &cfg.Backend},
		{"CATALOG_FILE", &cfg.Catalog.File},
		{"DATASET_FILE", &cfg.Dataset.File},
		{"SCHEMA_FILE", &cfg.Schema.File},
		{"SERVER_BIND_ADDRESS", &cfg.Server.BindAddress},
		{"NATS_URL", &cfg.NATS.URL},
		{"NATS_PREFIX", &cfg.NATS.Prefix},
		{"NATS_USERNAME", &cfg.NATS.Username},
		{"NATS_PASSWORD", &cfg.NATS.Password},
		{"NATS_TOKEN", &cfg.NATS.Token},
		{"LOG_LEVEL", &cfg.Log.Level},
		{"LOG_FORMAT", &cfg.Log.Format},
	} {
		if err := str(o.name, o.dst); err != nil {
			return err
		}
	}

	if err := boolean("NATS_SERVE", &cfg.NATS.Serve); err != nil {
		return err
	}
	if err := boolean("LOADER_ENABLED", &cfg.Loader.Enabled); err != nil {
		return err
	}
	return boolean("TRACING_ENABLED", &cfg.Tracing.Enabled)
}
