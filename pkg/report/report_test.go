package report

import (
	"strings"
	"testing"

	"github.com/eqft-lab/leptond/pkg/calibrate"
	"github.com/eqft-lab/leptond/pkg/engine"
	"github.com/eqft-lab/leptond/pkg/lepton"
)

func TestPredictionReport(t *testing.T) {
	e := engine.NewDefault()

	res, err := e.Evaluate(lepton.Muon)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	out := Prediction(res)
	for _, want := range []string{
		"prediction for the muon",
		"Ω_sym",
		"a_μ^(BSM)",
		"Significance (σ)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("prediction report missing %q:\n%s", want, out)
		}
	}
}

func TestPredictionReportTauHasNoSignificance(t *testing.T) {
	e := engine.NewDefault()

	res, err := e.Evaluate(lepton.Tau)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	out := Prediction(res)
	if !strings.Contains(out, "N/A (no experimental reference)") {
		t.Fatalf("tau report should mark significance unavailable:\n%s", out)
	}
}

func TestPredictionReportV1ProxyLabel(t *testing.T) {
	p := engine.DefaultParams()
	p.Variant = engine.VariantV1
	e, err := engine.New(p)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	res, err := e.Evaluate(lepton.Tau)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	// The legacy variant couples the tau to a proxy state; the phase label
	// must not claim the muon.
	out := Prediction(res)
	if !strings.Contains(out, "φ_proxy") {
		t.Fatalf("v1 tau report should label the proxy phase:\n%s", out)
	}
	if strings.Contains(out, "φ_μ") {
		t.Fatalf("v1 tau report must not label the heavy phase as the muon:\n%s", out)
	}
}

func TestCalibrationReport(t *testing.T) {
	e := engine.NewDefault()
	s := calibrate.New(e)

	target, err := s.Target(lepton.Muon)
	if err != nil {
		t.Fatalf("Target failed: %v", err)
	}
	_, candidates, err := s.SearchTarget(lepton.Muon)
	if err != nil {
		t.Fatalf("SearchTarget failed: %v", err)
	}

	out := Calibration(lepton.Muon, target, candidates)
	if !strings.Contains(out, "# Calibration report: muon") {
		t.Fatalf("missing title:\n%s", out)
	}
	if got := strings.Count(out, "\n| "); got < len(candidates) {
		t.Fatalf("expected at least %d table rows, got %d", len(candidates), got)
	}
	if !strings.Contains(out, "Best δa_NF") {
		t.Fatalf("missing winner line:\n%s", out)
	}
}
