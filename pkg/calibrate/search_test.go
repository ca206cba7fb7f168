package calibrate

import (
	"errors"
	"math"
	"testing"

	"github.com/eqft-lab/leptond/pkg/engine"
	"github.com/eqft-lab/leptond/pkg/lepton"
)

func newSearcher(t *testing.T) (*engine.Engine, *Searcher) {
	t.Helper()
	e := engine.NewDefault()
	return e, New(e)
}

func TestSearchInvalidInputs(t *testing.T) {
	_, s := newSearcher(t)

	if _, _, err := s.Search(lepton.Muon, 5.0e-10, 6.5e-10, 0); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("steps=0: expected ErrInvalidRange, got %v", err)
	}
	if _, _, err := s.Search(lepton.Muon, 6.5e-10, 5.0e-10, 20); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("inverted range: expected ErrInvalidRange, got %v", err)
	}
	if _, _, err := s.Search(lepton.Muon, 5.0e-10, 6.5e-10, 1<<21); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("huge steps: expected ErrInvalidRange, got %v", err)
	}
	if _, _, err := s.Search(lepton.Lepton("positron"), 0, 1, 5); !errors.Is(err, lepton.ErrUnsupported) {
		t.Fatalf("unknown lepton: expected ErrUnsupported, got %v", err)
	}
}

func TestSearchTauScenario(t *testing.T) {
	_, s := newSearcher(t)

	best, candidates, err := s.Search(lepton.Tau, -6.0e-6, -5.5e-6, 20)
	if err != nil {
		t.Fatalf("Search(tau) failed: %v", err)
	}
	if len(candidates) != 20 {
		t.Fatalf("expected 20 candidates, got %d", len(candidates))
	}

	if candidates[0].DeltaANF != best {
		t.Fatalf("winner must be first candidate: %v vs %v", candidates[0].DeltaANF, best)
	}

	if relErr := math.Abs(candidates[0].ABSM-(-2.22e-8)) / 2.22e-8; relErr > 0.20 {
		t.Fatalf("best tau prediction %.6e not within 20%% of -2.22e-8", candidates[0].ABSM)
	}

	// The calibrated default is the 8th grid point of this exact range.
	if math.Abs(best-(-5.815789e-6)) > 1e-11 {
		t.Fatalf("best tau δa_NF = %.6e, want ≈ -5.815789e-6", best)
	}

	// No significance target for the tau: scoring is absolute prediction
	// error.
	for _, c := range candidates {
		if c.Significance != nil {
			t.Fatalf("tau candidate should have no significance, got %v", *c.Significance)
		}
	}
}

func TestSearchMuonTarget(t *testing.T) {
	_, s := newSearcher(t)

	best, candidates, err := s.SearchTarget(lepton.Muon)
	if err != nil {
		t.Fatalf("SearchTarget(muon) failed: %v", err)
	}

	// The documented default constant is the winner of its own grid.
	if math.Abs(best-5.868421e-10) > 1e-15 {
		t.Fatalf("best muon δa_NF = %.9e, want ≈ 5.868421e-10", best)
	}

	winner := candidates[0]
	if winner.Significance == nil {
		t.Fatalf("muon winner should carry a significance")
	}
	if math.Abs(*winner.Significance) > 0.05 {
		t.Fatalf("muon winner significance = %.4fσ, want |σ| <= 0.05", *winner.Significance)
	}
	if winner.SignificanceError == nil {
		t.Fatalf("muon winner should carry a significance error term")
	}
}

func TestSearchSortedAscending(t *testing.T) {
	_, s := newSearcher(t)

	_, candidates, err := s.SearchTarget(lepton.Electron)
	if err != nil {
		t.Fatalf("SearchTarget(electron) failed: %v", err)
	}

	for i := 1; i < len(candidates); i++ {
		if candidates[i].Score < candidates[i-1].Score {
			t.Fatalf("candidates not sorted by score: [%d]=%v > [%d]=%v",
				i-1, candidates[i-1].Score, i, candidates[i].Score)
		}
	}
}

func TestSearchDoesNotMutateEngine(t *testing.T) {
	e, s := newSearcher(t)

	before, err := e.CalibrationConstant(lepton.Muon)
	if err != nil {
		t.Fatalf("CalibrationConstant failed: %v", err)
	}

	if _, _, err := s.SearchTarget(lepton.Muon); err != nil {
		t.Fatalf("SearchTarget failed: %v", err)
	}

	after, err := e.CalibrationConstant(lepton.Muon)
	if err != nil {
		t.Fatalf("CalibrationConstant failed: %v", err)
	}
	if before != after {
		t.Fatalf("search mutated engine constant: %v -> %v", before, after)
	}

	// Applying the winner is the caller's explicit step.
	if err := s.Apply(lepton.Muon, 6.0e-10); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	applied, _ := e.CalibrationConstant(lepton.Muon)
	if applied != 6.0e-10 {
		t.Fatalf("Apply did not take effect: %v", applied)
	}
}

func TestSearchRefinementNeverWorsens(t *testing.T) {
	_, s := newSearcher(t)

	// Doubling grid density (2n−1 points) keeps every previous grid point,
	// so the best score cannot get worse.
	prev := math.Inf(1)
	for _, steps := range []int{5, 9, 17} {
		_, candidates, err := s.Search(lepton.Muon, 5.0e-10, 6.5e-10, steps)
		if err != nil {
			t.Fatalf("Search with %d steps failed: %v", steps, err)
		}
		best := candidates[0].Score
		if best > prev {
			t.Fatalf("refined grid worsened best score: %v (steps=%d) > %v", best, steps, prev)
		}
		prev = best
	}
}

func TestSearchSingleStep(t *testing.T) {
	_, s := newSearcher(t)

	best, candidates, err := s.Search(lepton.Tau, -5.8e-6, -5.8e-6, 1)
	if err != nil {
		t.Fatalf("Search with steps=1 failed: %v", err)
	}
	if len(candidates) != 1 || best != -5.8e-6 {
		t.Fatalf("steps=1 should evaluate exactly the lower bound, got best=%v n=%d", best, len(candidates))
	}
}

func TestVerifyTargets(t *testing.T) {
	_, s := newSearcher(t)

	vs, err := s.VerifyTargets()
	if err != nil {
		t.Fatalf("VerifyTargets failed: %v", err)
	}
	if len(vs) != 3 {
		t.Fatalf("expected 3 verifications, got %d", len(vs))
	}
	for _, v := range vs {
		if !v.OK {
			t.Errorf("%s default constant fails its target: errPct=%.4f sigErr=%v",
				v.Lepton, v.ABSMErrorPct, v.SignificanceError)
		}
	}
}
