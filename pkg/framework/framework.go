// Package framework is the unified-framework collaborator around the
// engine: it owns Berry-phase assignment and delegates all moment
// computation, exposing the same result shapes so the two layers can be
// cross-checked against each other.
package framework

import (
	"github.com/sirupsen/logrus"

	"github.com/eqft-lab/leptond/pkg/engine"
	"github.com/eqft-lab/leptond/pkg/lepton"
)

// Framework wraps an engine with phase ownership.
type Framework struct {
	g2 *engine.Engine
}

// New wraps an existing engine.
func New(e *engine.Engine) *Framework {
	return &Framework{g2: e}
}

// Engine exposes the underlying calculator.
func (f *Framework) Engine() *engine.Engine {
	return f.g2
}

// SetBerryPhases assigns the three Berry phases on the underlying engine.
func (f *Framework) SetBerryPhases(phiE, phiMu, phiTau float64) {
	logrus.WithFields(logrus.Fields{
		"phiE":   phiE,
		"phiMu":  phiMu,
		"phiTau": phiTau,
	}).Info("berry phases assigned")
	f.g2.SetBerryPhases(phiE, phiMu, phiTau)
}

// Predict delegates to the engine and returns the identical value the
// engine would report, so framework-level and engine-level predictions can
// be compared bit for bit.
func (f *Framework) Predict(l lepton.Lepton) (float64, error) {
	return f.g2.Predict(l)
}

// CalculateSignificance delegates the full evaluation to the engine.
func (f *Framework) CalculateSignificance(l lepton.Lepton) (*engine.Result, error) {
	return f.g2.Evaluate(l)
}

// CalculateAll evaluates every supported lepton.
func (f *Framework) CalculateAll() (map[lepton.Lepton]*engine.Result, error) {
	out := make(map[lepton.Lepton]*engine.Result, len(lepton.All))
	for _, l := range lepton.All {
		res, err := f.g2.Evaluate(l)
		if err != nil {
			return nil, err
		}
		out[l] = res
	}
	return out, nil
}
