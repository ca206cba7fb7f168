package framework

import (
	"testing"

	"github.com/eqft-lab/leptond/pkg/engine"
	"github.com/eqft-lab/leptond/pkg/lepton"
)

func TestFrameworkDelegation(t *testing.T) {
	e := engine.NewDefault()
	f := New(e)

	// Framework and engine must report identical values for the same state.
	for _, l := range lepton.All {
		fp, err := f.Predict(l)
		if err != nil {
			t.Fatalf("framework Predict(%s) failed: %v", l, err)
		}
		ep, err := e.Predict(l)
		if err != nil {
			t.Fatalf("engine Predict(%s) failed: %v", l, err)
		}
		if fp != ep {
			t.Fatalf("framework/engine mismatch for %s: %v vs %v", l, fp, ep)
		}
	}
}

func TestFrameworkPhaseOwnership(t *testing.T) {
	e := engine.NewDefault()
	f := New(e)

	before, err := e.Predict(lepton.Muon)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	f.SetBerryPhases(2.0, 4.0, 10.0)

	lp, err := e.Parameters(lepton.Electron)
	if err != nil {
		t.Fatalf("Parameters failed: %v", err)
	}
	if lp.BerryPhase != 2.0 {
		t.Fatalf("electron phase = %v, want 2.0", lp.BerryPhase)
	}

	after, err := e.Predict(lepton.Muon)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if before == after {
		t.Fatalf("changing phases should change the prediction")
	}
}

func TestCalculateAll(t *testing.T) {
	f := New(engine.NewDefault())

	all, err := f.CalculateAll()
	if err != nil {
		t.Fatalf("CalculateAll failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 results, got %d", len(all))
	}
	if all[lepton.Tau].Significance != nil {
		t.Fatalf("tau significance should be undefined")
	}
	if all[lepton.Muon].Significance == nil {
		t.Fatalf("muon significance should be defined")
	}
}
