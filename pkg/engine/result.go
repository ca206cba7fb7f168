package engine

import (
	"github.com/eqft-lab/leptond/pkg/lepton"
)

// Result is the full output record of one evaluation. Nullable fields are
// pointers: the tau has no experimental reference, so AExp, Delta and
// Significance stay nil for it.
type Result struct {
	Lepton  lepton.Lepton `json:"lepton"`
	Variant Variant       `json:"variant"`

	// DeltaANF is the calibration constant the evaluation ran with.
	DeltaANF float64 `json:"deltaANF"`

	// ALeptonEQFT is the predicted BSM correction a_ℓ^EQFT.
	ALeptonEQFT float64 `json:"aLeptonEQFT"`
	// ASM is the Standard-Model baseline (zero where the reference is
	// already a deviation).
	ASM float64 `json:"aSM"`
	// ATotal is ASM + ALeptonEQFT.
	ATotal float64 `json:"aTotal"`

	AExp         *float64 `json:"aExp"`
	Delta        *float64 `json:"delta"`
	Significance *float64 `json:"significance"`

	PhiLepton  float64 `json:"phiLepton"`
	PhiHeavy   float64 `json:"phiHeavy"`
	C2         float64 `json:"c2"`
	LambdaTopo float64 `json:"lambdaTopo"`
	OmegaSym   float64 `json:"omegaSym"`
}
