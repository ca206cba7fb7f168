package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/eqft-lab/leptond/pkg/lepton"
)

func TestOverlapBoundary(t *testing.T) {
	if got := Overlap(0); got != 1 {
		t.Fatalf("Overlap(0) = %v, want 1", got)
	}
	if got := Overlap(FourPi); math.Abs(got) > 1e-10 {
		t.Fatalf("Overlap(4π) = %v, want 0", got)
	}
	if got := SymmetricOverlap(FourPi, FourPi); math.Abs(got) > 1e-10 {
		t.Fatalf("SymmetricOverlap(4π, 4π) = %v, want 0", got)
	}
	// Slightly beyond saturation the overlap flips sign. This is the
	// documented instability region, not an error.
	if got := Overlap(FourPi + 1e-6); got >= 0 {
		t.Fatalf("Overlap(4π+ε) = %v, want negative", got)
	}
}

func TestOverlapSymmetry(t *testing.T) {
	pairs := [][2]float64{
		{2.17, 4.32},
		{4.32, 10.53},
		{0, 10.53},
		{13.0, 2.0}, // beyond 4π on one side
		{FourPi, 1.0},
	}
	for _, p := range pairs {
		if a, b := SymmetricOverlap(p[0], p[1]), SymmetricOverlap(p[1], p[0]); a != b {
			t.Errorf("SymmetricOverlap(%v, %v) = %v != %v", p[0], p[1], a, b)
		}
		if a, b := CrossInvariant(p[0], p[1]), CrossInvariant(p[1], p[0]); a != b {
			t.Errorf("CrossInvariant(%v, %v) = %v != %v", p[0], p[1], a, b)
		}
	}
}

func TestKnownOverlapValues(t *testing.T) {
	if got := SymmetricOverlap(2.17, 4.32); math.Abs(got-0.542906) > 1e-6 {
		t.Fatalf("SymmetricOverlap(2.17, 4.32) = %.8f, want 0.542906 ± 1e-6", got)
	}
	if got := CrossInvariant(4.32, 10.53); math.Abs(got-9.67) > 0.01 {
		t.Fatalf("CrossInvariant(4.32, 10.53) = %.6f, want 9.67 ± 0.01", got)
	}
}

func TestTopologicalFactor(t *testing.T) {
	if got := TopologicalFactor(0); got != 0 {
		t.Fatalf("TopologicalFactor(0) = %v, want 0", got)
	}

	// Monotone over a sample grid spanning the sign flip.
	prev := math.Inf(-1)
	for _, c2 := range []float64{-4, -1, -0.25, 0, 0.25, 1, 4, 9.67} {
		got := TopologicalFactor(c2)
		if got < prev {
			t.Fatalf("TopologicalFactor not monotone: f(%v) = %v < %v", c2, got, prev)
		}
		prev = got
	}
}

func TestMuonDefaultCalibration(t *testing.T) {
	e := NewDefault()

	res, err := e.Evaluate(lepton.Muon)
	if err != nil {
		t.Fatalf("Evaluate(muon) failed: %v", err)
	}

	// The documented default δa_μ^NF must land on the experimental target
	// within a small fraction of a sigma.
	if relErr := math.Abs(res.ALeptonEQFT-2.51e-9) / 2.51e-9; relErr > 0.02 {
		t.Fatalf("muon prediction %.6e not within 2%% of 2.51e-9 (rel err %.4f)", res.ALeptonEQFT, relErr)
	}
	if res.Significance == nil {
		t.Fatalf("muon significance should be defined")
	}
	if math.Abs(*res.Significance) > 0.05 {
		t.Fatalf("muon significance = %.4fσ, want |σ| <= 0.05", *res.Significance)
	}
	if res.ASM != 0 {
		t.Fatalf("muon SM baseline should be zero (reference is a deviation), got %v", res.ASM)
	}
}

func TestElectronDefaultCalibration(t *testing.T) {
	e := NewDefault()

	res, err := e.Evaluate(lepton.Electron)
	if err != nil {
		t.Fatalf("Evaluate(electron) failed: %v", err)
	}

	if res.ASM == 0 {
		t.Fatalf("electron SM baseline should be nonzero")
	}
	if res.ATotal != res.ASM+res.ALeptonEQFT {
		t.Fatalf("ATotal = %v, want ASM+A = %v", res.ATotal, res.ASM+res.ALeptonEQFT)
	}
	if res.Significance == nil {
		t.Fatalf("electron significance should be defined")
	}
	if math.Abs(*res.Significance-0.11) > 0.02 {
		t.Fatalf("electron significance = %.4fσ, want 0.11 ± 0.02", *res.Significance)
	}
}

func TestTauEvaluate(t *testing.T) {
	e := NewDefault()

	res, err := e.Evaluate(lepton.Tau)
	if err != nil {
		t.Fatalf("Evaluate(tau) failed: %v", err)
	}

	// No measurement exists for the tau: significance is undefined by
	// design, not a bug.
	if res.AExp != nil || res.Delta != nil || res.Significance != nil {
		t.Fatalf("tau comparison fields should be nil, got aExp=%v delta=%v sig=%v", res.AExp, res.Delta, res.Significance)
	}

	if relErr := math.Abs(res.ALeptonEQFT-(-2.22e-8)) / 2.22e-8; relErr > 0.02 {
		t.Fatalf("tau prediction %.6e not within 2%% of -2.22e-8", res.ALeptonEQFT)
	}

	// The corrected variant couples the tau to the muon, not to a heavy
	// proxy state.
	if res.PhiHeavy != DefaultPhaseMuon {
		t.Fatalf("tau heavy phase = %v, want muon phase %v", res.PhiHeavy, DefaultPhaseMuon)
	}
}

func TestVariantV1TauProxy(t *testing.T) {
	p := DefaultParams()
	p.Variant = VariantV1
	e, err := New(p)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	res, err := e.Evaluate(lepton.Tau)
	if err != nil {
		t.Fatalf("Evaluate(tau) failed: %v", err)
	}
	if want := 1.5 * DefaultPhaseTau; res.PhiHeavy != want {
		t.Fatalf("v1 tau heavy phase = %v, want proxy %v", res.PhiHeavy, want)
	}
}

func TestUnsupportedLepton(t *testing.T) {
	e := NewDefault()

	if _, err := e.Evaluate(lepton.Lepton("proton")); !errors.Is(err, lepton.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if _, err := e.Predict(lepton.Lepton("")); !errors.Is(err, lepton.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if err := e.SetCalibrationConstant(lepton.Lepton("neutrino"), 1); !errors.Is(err, lepton.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestEvaluateDeterminism(t *testing.T) {
	e := NewDefault()

	for _, l := range lepton.All {
		r1, err := e.Evaluate(l)
		if err != nil {
			t.Fatalf("Evaluate(%s) failed: %v", l, err)
		}
		r2, err := e.Evaluate(l)
		if err != nil {
			t.Fatalf("Evaluate(%s) failed: %v", l, err)
		}
		if r1.ALeptonEQFT != r2.ALeptonEQFT || r1.C2 != r2.C2 || r1.LambdaTopo != r2.LambdaTopo {
			t.Fatalf("Evaluate(%s) not deterministic: %+v vs %+v", l, r1, r2)
		}
		if (r1.Significance == nil) != (r2.Significance == nil) {
			t.Fatalf("Evaluate(%s) significance definedness drifted", l)
		}
		if r1.Significance != nil && *r1.Significance != *r2.Significance {
			t.Fatalf("Evaluate(%s) significance drifted: %v vs %v", l, *r1.Significance, *r2.Significance)
		}
	}
}

func TestSetBerryPhases(t *testing.T) {
	e := NewDefault()

	e.SetBerryPhases(1.0, 2.0, 13.0)

	lp, err := e.Parameters(lepton.Tau)
	if err != nil {
		t.Fatalf("Parameters(tau) failed: %v", err)
	}
	if lp.BerryPhase != 13.0 {
		t.Fatalf("tau phase = %v, want 13.0", lp.BerryPhase)
	}

	// φ_τ > 4π: the overlap goes negative and the invariant follows; the
	// computation must still complete without error.
	res, err := e.Evaluate(lepton.Tau)
	if err != nil {
		t.Fatalf("Evaluate(tau) with φ > 4π failed: %v", err)
	}
	if Overlap(13.0) >= 0 {
		t.Fatalf("Overlap(13.0) = %v, want negative", Overlap(13.0))
	}
	if res.C2 >= 0 {
		t.Fatalf("c2 with one phase beyond 4π = %v, want negative", res.C2)
	}
}

func TestAmplitudeScalesLinearly(t *testing.T) {
	a1 := Amplitude(105.6583755, 1776.86, 1e-10, 9.67)
	a2 := Amplitude(105.6583755, 1776.86, 2e-10, 9.67)
	if math.Abs(a2-2*a1) > 1e-24 {
		t.Fatalf("amplitude should be linear in δa_NF: %v vs 2×%v", a2, a1)
	}
	if Amplitude(1, 1, 1e-10, 0) != 0 {
		t.Fatalf("amplitude at c2=0 should vanish")
	}
}

func TestNewRejectsBadParams(t *testing.T) {
	p := DefaultParams()
	lp := p.Leptons[lepton.Muon]
	lp.Mass = -1
	p.Leptons[lepton.Muon] = lp
	if _, err := New(p); err == nil {
		t.Fatalf("expected error for negative mass")
	}

	p = DefaultParams()
	p.Variant = "v99"
	if _, err := New(p); err == nil {
		t.Fatalf("expected error for unknown variant")
	}

	p = DefaultParams()
	delete(p.DeltaANF, lepton.Tau)
	if _, err := New(p); err == nil {
		t.Fatalf("expected error for missing calibration constant")
	}
}

func TestEvaluateCoherentUnderPhaseChanges(t *testing.T) {
	e := NewDefault()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		phases := [][3]float64{
			{DefaultPhaseElectron, DefaultPhaseMuon, DefaultPhaseTau},
			{2.0, 4.0, 10.0},
		}
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			p := phases[i%2]
			e.SetBerryPhases(p[0], p[1], p[2])
		}
	}()

	// Every record must be internally coherent: the prediction recomputed
	// from the record's own phases must match bit for bit, no matter how
	// the phases are flipped mid-flight.
	for i := 0; i < 500; i++ {
		res, err := e.EvaluateWithConstant(lepton.Muon, DefaultDeltaANFMuon)
		if err != nil {
			t.Fatalf("EvaluateWithConstant failed: %v", err)
		}

		if got := CrossInvariant(res.PhiLepton, res.PhiHeavy); got != res.C2 {
			t.Fatalf("c2 %v does not match recorded phases (want %v)", res.C2, got)
		}
		if got := TopologicalFactor(res.C2); got != res.LambdaTopo {
			t.Fatalf("λ %v does not match recorded c2 (want %v)", res.LambdaTopo, got)
		}
		a := Amplitude(DefaultMassMuon, DefaultMassTau, res.DeltaANF, res.C2)
		if want := a * (1 - math.Exp(-res.LambdaTopo*res.C2)); want != res.ALeptonEQFT {
			t.Fatalf("prediction %v does not match recorded inputs (want %v)", res.ALeptonEQFT, want)
		}
		if got := SymmetricOverlap(res.PhiLepton, res.PhiHeavy); got != res.OmegaSym {
			t.Fatalf("Ω_sym %v does not match recorded phases (want %v)", res.OmegaSym, got)
		}
	}

	close(stop)
	<-done
}
