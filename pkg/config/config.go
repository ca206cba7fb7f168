// Package config persists the tunable state of the daemon: formula variant,
// Berry phases, calibration constants, and the recalibration schedule.
package config

import (
	"github.com/sirupsen/logrus"

	"github.com/eqft-lab/leptond/pkg/engine"
	"github.com/eqft-lab/leptond/pkg/lepton"
)

type Config interface {
	Variant() engine.Variant
	BerryPhase(lepton.Lepton) float64
	DeltaANF(lepton.Lepton) float64
	RecalibrateSchedule() string
	AllowNonRootAccess() bool

	SetVariant(engine.Variant)
	SetBerryPhase(lepton.Lepton, float64)
	SetDeltaANF(lepton.Lepton, float64)
	SetRecalibrateSchedule(string)
	SetAllowNonRootAccess(bool)

	// EngineParams materializes the stored state into full engine
	// parameters, filling anything unset from the documented defaults.
	EngineParams() engine.Params

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error

	LogrusFields() logrus.Fields
}
