// Package calibrate implements the grid search that tunes the free
// calibration constant δa_NF of each lepton until the engine's prediction
// hits the configured targets.
package calibrate

import (
	"math"
	"sort"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/eqft-lab/leptond/pkg/engine"
	"github.com/eqft-lab/leptond/pkg/lepton"
)

// ErrInvalidRange is returned when a search is asked for an empty grid or
// an inverted range.
var ErrInvalidRange = pkgerrors.New("invalid calibration range")

// maxSteps bounds the candidate list; steps is caller-supplied and a typo
// should not allocate gigabytes.
const maxSteps = 1 << 20

// Scoring weights for leptons with both a prediction and a significance
// target.
const (
	predictionWeight   = 0.7
	significanceWeight = 0.3
)

// Candidate records one evaluated grid point.
type Candidate struct {
	// DeltaANF is the candidate calibration constant.
	DeltaANF float64 `json:"deltaANF"`
	// ABSM is the predicted correction at this candidate.
	ABSM float64 `json:"aBSM"`
	// Significance is the predicted significance, nil where undefined.
	Significance *float64 `json:"significance,omitempty"`

	// Error metrics against the configured target.
	ABSMError         float64  `json:"aBSMError"`
	ABSMErrorPct      float64  `json:"aBSMErrorPct"`
	SignificanceError *float64 `json:"significanceError,omitempty"`

	// Score is the per-lepton combined score; lower is better.
	Score float64 `json:"score"`
}

// Searcher sweeps the engine over candidate calibration constants. It only
// ever calls the engine's explicit-constant evaluation, so the engine's own
// calibration state is never touched: applying a winner is a separate,
// explicit step.
type Searcher struct {
	engine  *engine.Engine
	targets map[lepton.Lepton]Target
}

// New builds a searcher with the default target table.
func New(e *engine.Engine) *Searcher {
	return NewWithTargets(e, DefaultTargets())
}

// NewWithTargets builds a searcher with a caller-supplied target table.
func NewWithTargets(e *engine.Engine, targets map[lepton.Lepton]Target) *Searcher {
	return &Searcher{engine: e, targets: targets}
}

// Target returns the configured target for one lepton.
func (s *Searcher) Target(l lepton.Lepton) (Target, error) {
	t, ok := s.targets[l]
	if !ok {
		return Target{}, pkgerrors.Errorf("no calibration target configured for %q", l)
	}
	return t, nil
}

// Search evaluates `steps` evenly spaced candidates in [lo, hi] (both
// endpoints included) and returns the best-scoring value together with all
// candidates sorted ascending by score, winner first. Ties keep grid order,
// so the lowest candidate value wins.
func (s *Searcher) Search(l lepton.Lepton, lo, hi float64, steps int) (float64, []Candidate, error) {
	if !l.Valid() {
		return 0, nil, pkgerrors.Wrapf(lepton.ErrUnsupported, "%q", l)
	}
	if steps < 1 {
		return 0, nil, pkgerrors.Wrapf(ErrInvalidRange, "steps must be >= 1, got %d", steps)
	}
	if steps > maxSteps {
		return 0, nil, pkgerrors.Wrapf(ErrInvalidRange, "steps must be <= %d, got %d", maxSteps, steps)
	}
	if lo > hi {
		return 0, nil, pkgerrors.Wrapf(ErrInvalidRange, "range lo %g > hi %g", lo, hi)
	}

	target, err := s.Target(l)
	if err != nil {
		return 0, nil, err
	}

	logrus.WithFields(logrus.Fields{
		"lepton": l,
		"lo":     lo,
		"hi":     hi,
		"steps":  steps,
	}).Info("calibration search started")

	candidates := make([]Candidate, 0, steps)
	for i := 0; i < steps; i++ {
		v := lo
		if steps > 1 {
			v = lo + (hi-lo)*float64(i)/float64(steps-1)
		}

		c, err := s.evaluate(l, v, target)
		if err != nil {
			return 0, nil, pkgerrors.Wrapf(err, "evaluating candidate %g", v)
		}
		candidates = append(candidates, c)

		fields := logrus.Fields{
			"deltaANF":   c.DeltaANF,
			"aBSM":       c.ABSM,
			"aBSMErrPct": c.ABSMErrorPct,
		}
		if c.Significance != nil {
			fields["significance"] = *c.Significance
		}
		logrus.WithFields(fields).Debug("candidate evaluated")
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score < candidates[j].Score
	})

	best := candidates[0]
	fields := logrus.Fields{
		"lepton":   l,
		"deltaANF": best.DeltaANF,
		"aBSM":     best.ABSM,
		"score":    best.Score,
	}
	if best.Significance != nil {
		fields["significance"] = *best.Significance
	}
	logrus.WithFields(fields).Info("calibration search finished")

	return best.DeltaANF, candidates, nil
}

// SearchTarget runs Search over the configured range of the lepton's own
// target.
func (s *Searcher) SearchTarget(l lepton.Lepton) (float64, []Candidate, error) {
	t, err := s.Target(l)
	if err != nil {
		return 0, nil, err
	}
	return s.Search(l, t.RangeLo, t.RangeHi, t.Steps)
}

// Apply commits a calibration constant to the engine. Searches never do
// this implicitly.
func (s *Searcher) Apply(l lepton.Lepton, v float64) error {
	return s.engine.SetCalibrationConstant(l, v)
}

// evaluate runs one candidate through the engine without touching its
// calibration state, and scores it against the target.
func (s *Searcher) evaluate(l lepton.Lepton, v float64, target Target) (Candidate, error) {
	res, err := s.engine.EvaluateWithConstant(l, v)
	if err != nil {
		return Candidate{}, err
	}

	c := Candidate{
		DeltaANF:     v,
		ABSM:         res.ALeptonEQFT,
		Significance: res.Significance,
		ABSMError:    math.Abs(res.ALeptonEQFT - target.ABSM),
	}
	if target.ABSM != 0 {
		c.ABSMErrorPct = 100 * c.ABSMError / math.Abs(target.ABSM)
	}
	if target.Significance != nil && res.Significance != nil {
		se := math.Abs(*res.Significance - *target.Significance)
		c.SignificanceError = &se
	}

	c.Score = score(c, target)
	return c, nil
}

// score implements the per-lepton scoring rule. Leptons with a significance
// target (electron, muon) use the weighted combination of relative
// prediction error and significance error; a candidate missing either term
// always loses. Leptons without one (tau) score on absolute prediction
// error alone.
func score(c Candidate, target Target) float64 {
	if target.Significance == nil {
		return c.ABSMError
	}
	if c.SignificanceError == nil {
		return math.Inf(1)
	}
	return predictionWeight*c.ABSMErrorPct + significanceWeight*100*(*c.SignificanceError)
}
