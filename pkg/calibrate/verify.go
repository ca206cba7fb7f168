package calibrate

import (
	"math"

	"github.com/eqft-lab/leptond/pkg/engine"
	"github.com/eqft-lab/leptond/pkg/lepton"
)

// Verification tolerances: a calibrated constant is considered good when
// the prediction sits within 20% of the target and, where a significance
// target exists, within 0.05σ of it.
const (
	verifyABSMTolerancePct = 20.0
	verifySigmaTolerance   = 0.05
)

// Verification compares one lepton's current-constant evaluation against
// its calibration target.
type Verification struct {
	Lepton lepton.Lepton  `json:"lepton"`
	Result *engine.Result `json:"result"`
	Target Target         `json:"target"`

	ABSMErrorPct      float64  `json:"aBSMErrorPct"`
	SignificanceError *float64 `json:"significanceError,omitempty"`
	OK                bool     `json:"ok"`
}

// VerifyTargets evaluates every lepton with its currently applied
// calibration constant and checks the outcome against the target table.
func (s *Searcher) VerifyTargets() ([]Verification, error) {
	out := make([]Verification, 0, len(lepton.All))
	for _, l := range lepton.All {
		target, err := s.Target(l)
		if err != nil {
			return nil, err
		}

		res, err := s.engine.Evaluate(l)
		if err != nil {
			return nil, err
		}

		v := Verification{
			Lepton: l,
			Result: res,
			Target: target,
		}
		if target.ABSM != 0 {
			v.ABSMErrorPct = 100 * math.Abs(res.ALeptonEQFT-target.ABSM) / math.Abs(target.ABSM)
		}
		v.OK = v.ABSMErrorPct <= verifyABSMTolerancePct

		if target.Significance != nil {
			if res.Significance == nil {
				v.OK = false
			} else {
				se := math.Abs(*res.Significance - *target.Significance)
				v.SignificanceError = &se
				v.OK = v.OK && se <= verifySigmaTolerance
			}
		}

		out = append(out, v)
	}
	return out, nil
}
