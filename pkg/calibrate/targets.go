package calibrate

import (
	"github.com/eqft-lab/leptond/pkg/lepton"
)

// Target describes what a calibration search is steering toward: a desired
// predicted correction, an optional desired significance, and the δa_NF
// range the search sweeps.
type Target struct {
	// ABSM is the desired predicted correction a_ℓ^BSM.
	ABSM float64 `json:"aBSM"`
	// Significance is the desired significance in σ, nil where no
	// experimental reference exists (tau).
	Significance *float64 `json:"significance,omitempty"`

	RangeLo float64 `json:"rangeLo"`
	RangeHi float64 `json:"rangeHi"`
	Steps   int     `json:"steps"`
}

func sigTarget(v float64) *float64 { return &v }

// DefaultTargets is the calibrated target table: the muon steered to the
// measured deviation at 0σ, the electron to its reference at 0.11σ, the tau
// (no measurement) to the model target value only.
func DefaultTargets() map[lepton.Lepton]Target {
	return map[lepton.Lepton]Target{
		lepton.Muon: {
			ABSM:         2.51e-9,
			Significance: sigTarget(0.00),
			RangeLo:      5.0e-10,
			RangeHi:      6.5e-10,
			Steps:        20,
		},
		lepton.Electron: {
			ABSM:         4.85e-17,
			Significance: sigTarget(0.11),
			RangeLo:      9.0e-18,
			RangeHi:      1.1e-17,
			Steps:        20,
		},
		lepton.Tau: {
			ABSM:    -2.22e-8,
			RangeLo: -6.0e-6,
			RangeHi: -5.5e-6,
			Steps:   20,
		},
	}
}
