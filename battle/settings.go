package battle

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/wippyai/wasm-bridge/errors"
)

// Settings tune the round simulation.
type Settings struct {
	InitialHealth int32 `toml:"initial_health" env:"INITIAL_HEALTH"`
	MinDamage     int32 `toml:"min_damage" env:"MIN_DAMAGE"`
	MaxDamage     int32 `toml:"max_damage" env:"MAX_DAMAGE"`
}

// Upper bounds for Settings. They keep every health and damage sum inside
// int32.
const (
	MaxHealth = 1 << 24
	MaxDamage = 1 << 24
)

// DefaultSettings returns 300 health and damage in [20, 50].
func DefaultSettings() Settings {
	return Settings{InitialHealth: 300, MinDamage: 20, MaxDamage: 50}
}

// Validate checks the ranges.
func (s Settings) Validate() error {
	switch {
	case s.InitialHealth <= 0:
		return errors.InvalidArgument(errors.PhaseDomain,
			fmt.Sprintf("initial_health must be positive, got %d", s.InitialHealth), s.InitialHealth)
	case s.InitialHealth > MaxHealth:
		return errors.InvalidArgument(errors.PhaseDomain,
			fmt.Sprintf("initial_health must not exceed %d, got %d", MaxHealth, s.InitialHealth), s.InitialHealth)
	case s.MinDamage < 0:
		return errors.InvalidArgument(errors.PhaseDomain,
			fmt.Sprintf("min_damage must not be negative, got %d", s.MinDamage), s.MinDamage)
	case s.MaxDamage < s.MinDamage:
		return errors.InvalidArgument(errors.PhaseDomain,
			fmt.Sprintf("max_damage %d below min_damage %d", s.MaxDamage, s.MinDamage), s.MaxDamage)
	case s.MaxDamage > MaxDamage:
		return errors.InvalidArgument(errors.PhaseDomain,
			fmt.Sprintf("max_damage must not exceed %d, got %d", MaxDamage, s.MaxDamage), s.MaxDamage)
	}
	return nil
}

// ParseSettings overlays a TOML document on base. Keys the document does
// not set keep base's values.
func ParseSettings(data []byte, base Settings) (Settings, error) {
	s := base
	if err := toml.Unmarshal(data, &s); err != nil {
		return base, errors.InvalidFormat(errors.PhaseConfig, "parse battle settings", err)
	}
	if err := s.Validate(); err != nil {
		return base, err
	}
	return s, nil
}
