// Package engine implements the topological g−2 formula stack: per-lepton
// Berry phases and a free calibration constant go in, a predicted anomalous
// magnetic moment correction and its significance against experiment come
// out.
package engine

import (
	"math"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/eqft-lab/leptond/pkg/lepton"
)

// FourPi is the Berry-phase saturation point: Overlap(FourPi) == 0.
const FourPi = 4 * math.Pi

// Overlap computes the linear decay factor Ω(φ) = 1 − φ/(4π). It is 1 at
// φ=0, exactly 0 at φ=4π and negative beyond. Phases ≥ 4π are outside the
// validated domain; the sign flip propagates arithmetically and callers that
// rely on positivity must check it themselves.
func Overlap(phi float64) float64 {
	return 1 - phi/FourPi
}

// SymmetricOverlap computes Ω_sym = Ω(φ1)·Ω(φ2). Symmetric in its arguments.
func SymmetricOverlap(phi1, phi2 float64) float64 {
	return Overlap(phi1) * Overlap(phi2)
}

// CrossInvariant computes the symmetric cross term
// c₂(ℓ₁,ℓ₂) = 2·φ1·φ2·Ω(φ1)·Ω(φ2), the topological charge the rest of the
// formula stack is built on.
func CrossInvariant(phi1, phi2 float64) float64 {
	return 2 * phi1 * phi2 * Overlap(phi1) * Overlap(phi2)
}

// TopologicalFactor computes the decay-rate scalar λ(c₂) = sgn(c₂)·√|c₂|/(2π).
// Monotone, continuous, and zero at zero.
func TopologicalFactor(c2 float64) float64 {
	return math.Copysign(math.Sqrt(math.Abs(c2)), c2) / (2 * math.Pi)
}

// Amplitude combines the calibration constant with the two masses and the
// invariant into the intermediate amplitude
// A = δa_NF · (√2/π) · c₂ · m_h²/(4·m_l² + m_h²).
// The mass factor saturates at 1 for light leptons with a heavy partner and
// suppresses the tau, whose partner is lighter than itself.
func Amplitude(massLight, massHeavy, deltaANF, c2 float64) float64 {
	mh2 := massHeavy * massHeavy
	return deltaANF * (math.Sqrt2 / math.Pi) * c2 * mh2 / (4*massLight*massLight + mh2)
}

// Engine computes g−2 corrections for the three charged leptons. All
// physical parameters are fixed at construction; the per-lepton calibration
// constants are the only mutable state and are safe for concurrent use.
type Engine struct {
	mu       sync.RWMutex
	leptons  map[lepton.Lepton]LeptonParameters
	refs     map[lepton.Lepton]*ExperimentalReference
	deltaANF map[lepton.Lepton]float64
	variant  Variant
}

// New constructs an engine from an explicit parameter set.
func New(p Params) (*Engine, error) {
	if err := p.validate(); err != nil {
		return nil, pkgerrors.Wrap(err, "invalid engine parameters")
	}

	e := &Engine{
		leptons:  make(map[lepton.Lepton]LeptonParameters, len(p.Leptons)),
		refs:     make(map[lepton.Lepton]*ExperimentalReference, len(p.References)),
		deltaANF: make(map[lepton.Lepton]float64, len(p.DeltaANF)),
		variant:  p.Variant,
	}
	for l, lp := range p.Leptons {
		e.leptons[l] = lp
	}
	for l, ref := range p.References {
		if ref != nil {
			r := *ref
			e.refs[l] = &r
		}
	}
	for l, d := range p.DeltaANF {
		e.deltaANF[l] = d
	}
	return e, nil
}

// NewDefault constructs an engine with the documented default parameters.
func NewDefault() *Engine {
	e, err := New(DefaultParams())
	if err != nil {
		// DefaultParams is valid by construction.
		panic(err)
	}
	return e
}

// Variant returns the formula variant the engine was built with.
func (e *Engine) Variant() Variant {
	return e.variant
}

// Parameters returns the fixed parameters of one lepton.
func (e *Engine) Parameters(l lepton.Lepton) (LeptonParameters, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	lp, ok := e.leptons[l]
	if !ok {
		return LeptonParameters{}, pkgerrors.Wrapf(lepton.ErrUnsupported, "%q", l)
	}
	return lp, nil
}

// Reference returns a copy of the experimental reference for l, or nil if
// the lepton has none.
func (e *Engine) Reference(l lepton.Lepton) *ExperimentalReference {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ref, ok := e.refs[l]
	if !ok || ref == nil {
		return nil
	}
	r := *ref
	return &r
}

// CalibrationConstant returns the current δa_NF of one lepton.
func (e *Engine) CalibrationConstant(l lepton.Lepton) (float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	d, ok := e.deltaANF[l]
	if !ok {
		return 0, pkgerrors.Wrapf(lepton.ErrUnsupported, "%q", l)
	}
	return d, nil
}

// SetCalibrationConstant overrides δa_NF for one lepton. This is the
// explicit "apply" step after a calibration search; the search itself never
// mutates the engine.
func (e *Engine) SetCalibrationConstant(l lepton.Lepton, v float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.deltaANF[l]; !ok {
		return pkgerrors.Wrapf(lepton.ErrUnsupported, "%q", l)
	}
	e.deltaANF[l] = v

	logrus.WithFields(logrus.Fields{
		"lepton":   l,
		"deltaANF": v,
	}).Info("calibration constant updated")
	return nil
}

// SetBerryPhases assigns the three Berry phases in one call. This is the
// entry point the unified framework uses when it owns phase assignment.
func (e *Engine) SetBerryPhases(phiE, phiMu, phiTau float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for l, phi := range map[lepton.Lepton]float64{
		lepton.Electron: phiE,
		lepton.Muon:     phiMu,
		lepton.Tau:      phiTau,
	} {
		lp := e.leptons[l]
		lp.BerryPhase = phi
		e.leptons[l] = lp
		if phi >= FourPi {
			logrus.WithFields(logrus.Fields{
				"lepton": l,
				"phi":    phi,
			}).Warn("berry phase at or beyond 4π: overlap factor is non-positive, outside the validated domain")
		}
	}
}

// coupling resolves the lepton/partner parameter pair for the active
// variant. The heavy-partner map is fixed: e→μ, μ→τ, τ→μ. Under the legacy
// V1 variant the tau instead couples to an estimated proxy state.
func (e *Engine) coupling(l lepton.Lepton) (self, heavy LeptonParameters, err error) {
	self, ok := e.leptons[l]
	if !ok {
		return LeptonParameters{}, LeptonParameters{}, pkgerrors.Wrapf(lepton.ErrUnsupported, "%q", l)
	}

	if e.variant == VariantV1 && l == lepton.Tau {
		return self, LeptonParameters{
			Mass:       2 * self.Mass,
			BerryPhase: 1.5 * self.BerryPhase,
		}, nil
	}

	heavy, ok = e.leptons[l.Partner()]
	if !ok {
		return LeptonParameters{}, LeptonParameters{}, pkgerrors.Wrapf(lepton.ErrUnsupported, "partner of %q", l)
	}
	return self, heavy, nil
}

// crossTerm computes the variant-dependent invariant. V2 uses the symmetric
// cross term; V1 kept the heavy-side overlap squared.
func (e *Engine) crossTerm(phiSelf, phiHeavy float64) float64 {
	if e.variant == VariantV1 {
		om := Overlap(phiHeavy)
		return 2 * phiSelf * phiHeavy * om * om
	}
	return CrossInvariant(phiSelf, phiHeavy)
}

// Predict computes the g−2 correction a_ℓ^EQFT for one lepton using the
// current calibration constant. Pure: no state is touched.
func (e *Engine) Predict(l lepton.Lepton) (float64, error) {
	e.mu.RLock()
	d, ok := e.deltaANF[l]
	e.mu.RUnlock()
	if !ok {
		return 0, pkgerrors.Wrapf(lepton.ErrUnsupported, "%q", l)
	}
	return e.PredictWithConstant(l, d)
}

// PredictWithConstant is Predict with the calibration constant supplied as
// an explicit argument instead of read from engine state. The calibration
// search is built on this form, which removes the save/mutate/restore
// discipline entirely.
func (e *Engine) PredictWithConstant(l lepton.Lepton, deltaANF float64) (float64, error) {
	e.mu.RLock()
	self, heavy, err := e.coupling(l)
	e.mu.RUnlock()
	if err != nil {
		return 0, err
	}

	aEQFT, _, _ := e.predictFrom(l, self, heavy, deltaANF)
	return aEQFT, nil
}

// predictFrom runs the formula stack on an already-snapshotted parameter
// pair, so one lock acquisition covers a whole evaluation.
func (e *Engine) predictFrom(l lepton.Lepton, self, heavy LeptonParameters, deltaANF float64) (aEQFT, c2, lambda float64) {
	c2 = e.crossTerm(self.BerryPhase, heavy.BerryPhase)
	lambda = TopologicalFactor(c2)
	a := Amplitude(self.Mass, heavy.Mass, deltaANF, c2)
	aEQFT = a * (1 - math.Exp(-lambda*c2))

	logrus.WithFields(logrus.Fields{
		"lepton":     l,
		"phiLepton":  self.BerryPhase,
		"phiHeavy":   heavy.BerryPhase,
		"c2":         c2,
		"lambdaTopo": lambda,
		"amplitude":  a,
		"aEQFT":      aEQFT,
	}).Debug("computed g-2 correction")

	return aEQFT, c2, lambda
}

// Evaluate computes the full prediction record for one lepton, including
// the comparison against experiment where a reference exists.
func (e *Engine) Evaluate(l lepton.Lepton) (*Result, error) {
	e.mu.RLock()
	d, ok := e.deltaANF[l]
	e.mu.RUnlock()
	if !ok {
		return nil, pkgerrors.Wrapf(lepton.ErrUnsupported, "%q", l)
	}
	return e.EvaluateWithConstant(l, d)
}

// EvaluateWithConstant is Evaluate with an explicit calibration constant.
// Engine state is read but never written; two calls with identical inputs
// produce bit-identical results. Phases and reference are snapshotted under
// one lock acquisition, so a concurrent phase change cannot split the
// record between old and new phases.
func (e *Engine) EvaluateWithConstant(l lepton.Lepton, deltaANF float64) (*Result, error) {
	e.mu.RLock()
	self, heavy, err := e.coupling(l)
	ref := e.refs[l]
	e.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	aEQFT, c2, lambda := e.predictFrom(l, self, heavy, deltaANF)

	res := &Result{
		Lepton:      l,
		Variant:     e.variant,
		DeltaANF:    deltaANF,
		ALeptonEQFT: aEQFT,
		ATotal:      aEQFT,
		PhiLepton:   self.BerryPhase,
		PhiHeavy:    heavy.BerryPhase,
		C2:          c2,
		LambdaTopo:  lambda,
		OmegaSym:    SymmetricOverlap(self.BerryPhase, heavy.BerryPhase),
	}

	if ref != nil {
		res.ASM = ref.ASM
		res.ATotal = ref.ASM + aEQFT
		aExp := ref.AExp
		res.AExp = &aExp
		delta := res.ATotal - ref.AExp
		res.Delta = &delta
		if ref.Sigma > 0 {
			sig := delta / ref.Sigma
			res.Significance = &sig
		}
	}

	return res, nil
}
