package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Overrides holds command-line values that take precedence over the file.
// Nil fields leave the loaded value untouched.
type Overrides struct {
	Source     *string
	Model      *string
	Confidence *float64
	Classes    *string // comma separated class ids
	NoFPS      *bool
	Mode       *string
}

// Apply writes the set overrides into cfg
func (o Overrides) Apply(cfg *Config) error {
	if o.Source != nil {
		cfg.Source.Spec = *o.Source
	}
	if o.Model != nil {
		cfg.Detector.Model = *o.Model
	}
	if o.Confidence != nil {
		cfg.Detector.ConfidenceThreshold = *o.Confidence
	}
	if o.Classes != nil {
		ids, err := ParseClassIDs(*o.Classes)
		if err != nil {
			return err
		}
		cfg.Detector.Classes = ids
	}
	if o.NoFPS != nil {
		cfg.Annotate.DisableFPS = *o.NoFPS
	}
	if o.Mode != nil {
		cfg.Pipeline.Mode = *o.Mode
	}

	// Mode-dependent defaults may change after an override.
	cfg.setDefaults()
	return nil
}

// ParseClassIDs parses a list such as "0,1 2" into class ids
func ParseClassIDs(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("no class ids in %q", s)
	}

	ids := make([]int, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid class id %q: %w", f, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ApplyEnv applies BIKEGUARD_* environment variable overrides to configuration
func ApplyEnv(cfg *Config) {
	if val := os.Getenv("BIKEGUARD_SOURCE"); val != "" {
		cfg.Source.Spec = val
	}
	if val := os.Getenv("BIKEGUARD_SOURCE_BACKEND"); val != "" {
		cfg.Source.Backend = val
	}
	if val := os.Getenv("BIKEGUARD_DETECTOR_URL"); val != "" {
		cfg.Detector.ServiceURL = val
	}
	if val := os.Getenv("BIKEGUARD_MODEL"); val != "" {
		cfg.Detector.Model = val
	}
	cfg.Detector.ConfidenceThreshold = GetEnvFloat64("BIKEGUARD_CONFIDENCE", cfg.Detector.ConfidenceThreshold)
	cfg.Detector.Timeout = GetEnvDuration("BIKEGUARD_DETECTOR_TIMEOUT", cfg.Detector.Timeout)
	if val := os.Getenv("BIKEGUARD_CLASSES"); val != "" {
		if ids, err := ParseClassIDs(val); err == nil {
			cfg.Detector.Classes = ids
		}
	}

	if val := os.Getenv("BIKEGUARD_MODE"); val != "" {
		cfg.Pipeline.Mode = val
	}
	cfg.Stream.SendTimeout = GetEnvDuration("BIKEGUARD_SEND_TIMEOUT", cfg.Stream.SendTimeout)
	cfg.Web.Port = GetEnvInt("BIKEGUARD_PORT", cfg.Web.Port)

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		cfg.Log.Format = val
	}
	if val := os.Getenv("LOG_OUTPUT"); val != "" {
		cfg.Log.Output = val
	}

	cfg.setDefaults()
}

// GetEnvInt gets an integer environment variable
func GetEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return result
}

// GetEnvDuration gets a duration environment variable
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(val); err == nil {
		return duration
	}
	return defaultValue
}

// GetEnvFloat64 gets a float64 environment variable
func GetEnvFloat64(key string, defaultValue float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultValue
	}
	return result
}
