// Package report renders prediction and calibration results as plain text
// and markdown. It consumes the result records as data only; nothing in the
// engine or the search depends on this package.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/eqft-lab/leptond/pkg/calibrate"
	"github.com/eqft-lab/leptond/pkg/engine"
	"github.com/eqft-lab/leptond/pkg/lepton"
)

// sciFmt prints very small magnitudes in scientific notation and everything
// else with fixed decimals.
func sciFmt(x float64) string {
	if math.Abs(x) < 1e-6 && x != 0 {
		return fmt.Sprintf("%.6e", x)
	}
	return fmt.Sprintf("%.8f", x)
}

func sciFmtPtr(x *float64) string {
	if x == nil {
		return "N/A"
	}
	return sciFmt(*x)
}

// Prediction renders a single evaluation as the canonical per-lepton
// report block.
func Prediction(res *engine.Result) string {
	l := res.Lepton
	sym := l.Symbol()
	heavy := l.Partner().Symbol()
	if res.Variant == engine.VariantV1 && l == lepton.Tau {
		// V1 couples the tau to an estimated proxy state, not to the muon;
		// PhiHeavy holds the proxy phase 1.5·φ_τ.
		heavy = "proxy"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "=== E-QFT %s: canonical g-2 prediction for the %s ===\n", res.Variant, l)
	fmt.Fprintf(&b, "Berry phases (φ_%s, φ_%s) : %.6f, %.6f\n", sym, heavy, res.PhiLepton, res.PhiHeavy)
	fmt.Fprintf(&b, "Overlap factor Ω_sym     : %.6f\n", res.OmegaSym)
	fmt.Fprintf(&b, "c₂(%s,heavy)             : %.6f\n", sym, res.C2)
	fmt.Fprintf(&b, "Topological λ            : %.6f\n", res.LambdaTopo)
	fmt.Fprintf(&b, "δa_%s^NF                 : %s\n", sym, sciFmt(res.DeltaANF))
	fmt.Fprintf(&b, "a_%s^(BSM)               : %s\n", sym, sciFmt(res.ALeptonEQFT))
	fmt.Fprintf(&b, "a_%s^(SM)                : %s\n", sym, sciFmt(res.ASM))
	fmt.Fprintf(&b, "a_%s^(total)             : %s\n", sym, sciFmt(res.ATotal))
	if res.AExp != nil {
		fmt.Fprintf(&b, "a_%s^(exp)               : %s\n", sym, sciFmtPtr(res.AExp))
	}
	if res.Delta != nil {
		fmt.Fprintf(&b, "Δa_%s                    : %s\n", sym, sciFmtPtr(res.Delta))
	}
	if res.Significance != nil {
		fmt.Fprintf(&b, "Significance (σ)         : %.2f\n", *res.Significance)
	} else {
		fmt.Fprintf(&b, "Significance (σ)         : N/A (no experimental reference)\n")
	}
	return b.String()
}

// Calibration renders a finished search as a markdown report with the full
// candidate table, winner first.
func Calibration(l lepton.Lepton, target calibrate.Target, candidates []calibrate.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Calibration report: %s\n\n", l)
	fmt.Fprintf(&b, "Range: [%s, %s], %d steps\n", sciFmt(target.RangeLo), sciFmt(target.RangeHi), target.Steps)
	fmt.Fprintf(&b, "Target a_BSM: %s\n", sciFmt(target.ABSM))
	if target.Significance != nil {
		fmt.Fprintf(&b, "Target significance: %.2fσ\n", *target.Significance)
	}
	b.WriteString("\n| δa_NF | a_BSM | significance | score |\n")
	b.WriteString("|-------|-------|--------------|-------|\n")
	for _, c := range candidates {
		sig := "N/A"
		if c.Significance != nil {
			sig = fmt.Sprintf("%.4fσ", *c.Significance)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %.6g |\n", sciFmt(c.DeltaANF), sciFmt(c.ABSM), sig, c.Score)
	}
	if len(candidates) > 0 {
		best := candidates[0]
		fmt.Fprintf(&b, "\nBest δa_NF = %s → a_BSM = %s\n", sciFmt(best.DeltaANF), sciFmt(best.ABSM))
	}
	return b.String()
}

// Verification renders a verification pass as a compact table.
func Verification(vs []calibrate.Verification) string {
	var b strings.Builder
	b.WriteString("| Lepton | a_BSM | target | err% | sig err | ok |\n")
	b.WriteString("|--------|-------|--------|------|---------|----|\n")
	for _, v := range vs {
		sigErr := "N/A"
		if v.SignificanceError != nil {
			sigErr = fmt.Sprintf("%.4f", *v.SignificanceError)
		}
		ok := "yes"
		if !v.OK {
			ok = "NO"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %.2f | %s | %s |\n",
			v.Lepton, sciFmt(v.Result.ALeptonEQFT), sciFmt(v.Target.ABSM), v.ABSMErrorPct, sigErr, ok)
	}
	return b.String()
}
