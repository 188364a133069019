package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LifecycleRules holds the business thresholds used by status derivation and
// the orchestrator. The defaults are the values observed in production.
type LifecycleRules struct {
	RetrospectiveGrace    time.Duration
	DepartureGrace        time.Duration
	NotificationCountdown time.Duration
	LockTimeout           time.Duration
	NASDLLocationType     int
}

// DefaultLifecycleRules returns the production thresholds.
func DefaultLifecycleRules() LifecycleRules {
	return LifecycleRules{
		RetrospectiveGrace:    5 * time.Minute,
		DepartureGrace:        4 * time.Hour,
		NotificationCountdown: 5 * time.Second,
		LockTimeout:           5 * time.Second,
		NASDLLocationType:     8,
	}
}

// Validate rejects thresholds that would make the engine misbehave.
func (r LifecycleRules) Validate() error {
	if r.RetrospectiveGrace < 0 || r.DepartureGrace < 0 || r.NotificationCountdown < 0 {
		return fmt.Errorf("lifecycle grace windows must not be negative")
	}
	if r.LockTimeout <= 0 {
		return fmt.Errorf("lifecycle lock timeout must be positive")
	}
	if r.NASDLLocationType <= 0 {
		return fmt.Errorf("lifecycle NASDL location type must be positive")
	}
	return nil
}

type lifecycleRulesFile struct {
	RetrospectiveGrace    string `yaml:"retrospective_grace"`
	DepartureGrace        string `yaml:"departure_grace"`
	NotificationCountdown string `yaml:"notification_countdown"`
	LockTimeout           string `yaml:"lock_timeout"`
	NASDLLocationType     *int   `yaml:"nasdl_location_type"`
}

// LoadLifecycleRulesFile overlays the YAML file at path on top of base.
// Keys absent from the file keep their base value.
func LoadLifecycleRulesFile(path string, base LifecycleRules) (LifecycleRules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	return ParseLifecycleRules(raw, base)
}

// ParseLifecycleRules overlays YAML content on top of base.
func ParseLifecycleRules(raw []byte, base LifecycleRules) (LifecycleRules, error) {
	var file lifecycleRulesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return base, fmt.Errorf("parse lifecycle rules: %w", err)
	}

	out := base
	overlays := []struct {
		value  string
		target *time.Duration
		name   string
	}{
		{file.RetrospectiveGrace, &out.RetrospectiveGrace, "retrospective_grace"},
		{file.DepartureGrace, &out.DepartureGrace, "departure_grace"},
		{file.NotificationCountdown, &out.NotificationCountdown, "notification_countdown"},
		{file.LockTimeout, &out.LockTimeout, "lock_timeout"},
	}
	for _, o := range overlays {
		if o.value == "" {
			continue
		}
		d, err := time.ParseDuration(o.value)
		if err != nil {
			return base, fmt.Errorf("%s: %w", o.name, err)
		}
		*o.target = d
	}
	if file.NASDLLocationType != nil {
		out.NASDLLocationType = *file.NASDLLocationType
	}

	if err := out.Validate(); err != nil {
		return base, err
	}
	return out, nil
}
