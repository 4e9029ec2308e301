// Package settings holds the runtime switch that enables or disables LTR
// query execution.
package settings

import (
	"log/slog"
	"sync/atomic"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"
)

type Settings struct {
	enabled atomic.Bool
}

func New(enabled bool) *Settings {
	s := &Settings{}
	s.enabled.Store(enabled)
	return s
}

func (s *Settings) Enabled() bool { return s.enabled.Load() }

func (s *Settings) SetEnabled(enabled bool) {
	if prev := s.enabled.Swap(enabled); prev != enabled {
		slog.Default().Info("ltr enabled setting changed", "component", "ltr-settings", "enabled", enabled)
	}
}

// CheckEnabled returns a FeatureDisabled error when LTR is switched off. A
// nil Settings is treated as enabled.
func (s *Settings) CheckEnabled() error {
	if s == nil || s.Enabled() {
		return nil
	}
	return apperrors.FeatureDisabled()
}
