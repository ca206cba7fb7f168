package engine

import (
	pkgerrors "github.com/pkg/errors"

	"github.com/eqft-lab/leptond/pkg/lepton"
)

// Variant selects the formula generation the engine computes with.
type Variant string

const (
	// VariantV1 is the legacy formula set: the tau couples to an estimated
	// heavy proxy state (m = 2·m_τ, φ = 1.5·φ_τ) and the cross term uses the
	// heavy-side overlap squared. Kept selectable for comparison runs.
	VariantV1 Variant = "v1"
	// VariantV2Corrected is the corrected formula set: symmetric overlap in
	// the cross term and the tau coupled to the muon. This is the default.
	VariantV2Corrected Variant = "v2-corrected"
)

// ParseVariant validates a formula variant identifier.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantV1, VariantV2Corrected:
		return Variant(s), nil
	}
	return "", pkgerrors.Errorf("unknown formula variant %q", s)
}

// LeptonParameters holds the fixed physical inputs of one lepton.
type LeptonParameters struct {
	// Mass is the rest mass in MeV.
	Mass float64 `json:"mass"`
	// BerryPhase is the accumulated geometric phase φ. The validated domain
	// is [0, 4π); larger phases flip the overlap sign (see Overlap).
	BerryPhase float64 `json:"berryPhase"`
}

// ExperimentalReference is the measured value a prediction is compared to.
// Leptons without a usable measurement (the tau) carry no reference and get
// no significance.
type ExperimentalReference struct {
	// AExp is the observed central value. For the muon this is the
	// deviation Δa_μ (SM contribution already subtracted, ASM = 0); for the
	// electron it is the total moment and ASM carries the SM baseline.
	AExp float64 `json:"aExp"`
	// ASM is the Standard-Model baseline added to the prediction before
	// comparing against AExp.
	ASM float64 `json:"aSM"`
	// Sigma is the standard error of AExp. Must be > 0 for significance to
	// be defined.
	Sigma float64 `json:"sigma"`
}

// Params is the full, explicit configuration of an Engine. Engines never
// read package-level state; everything comes in through here so instances
// stay independently testable.
type Params struct {
	Leptons    map[lepton.Lepton]LeptonParameters
	References map[lepton.Lepton]*ExperimentalReference
	// DeltaANF maps each lepton to its free calibration constant δa_NF,
	// the sole tunable input of the formula stack.
	DeltaANF map[lepton.Lepton]float64
	Variant  Variant
}

// Default physical inputs. Masses are PDG rest masses in MeV; phases and
// calibration constants are the calibrated values of the corrected variant.
const (
	DefaultMassElectron = 0.51099895
	DefaultMassMuon     = 105.6583755
	DefaultMassTau      = 1776.86

	DefaultPhaseElectron = 2.17
	DefaultPhaseMuon     = 4.32
	DefaultPhaseTau      = 10.53

	DefaultDeltaANFElectron = 9.947368e-18
	DefaultDeltaANFMuon     = 5.868421e-10
	DefaultDeltaANFTau      = -5.815789e-6
)

// Experimental references. The muon values are the 2021 world-average
// deviation Δa_μ = (251 ± 59)×10⁻¹¹. The electron pair is the model's
// internal reference: the SM baseline sits 3.1×10⁻¹⁴ above the measured
// central value, so the calibrated default lands at ≈0.11σ.
const (
	muonAExpDefault  = 2.51e-9
	muonSigmaDefault = 5.9e-10

	electronAExpDefault  = 1.159652180730e-3
	electronASMDefault   = 1.159652180761e-3
	electronSigmaDefault = 2.8e-13
)

// DefaultParams returns the documented default configuration of the
// corrected variant. The returned maps are fresh on every call; callers may
// mutate them before constructing an engine.
func DefaultParams() Params {
	return Params{
		Leptons: map[lepton.Lepton]LeptonParameters{
			lepton.Electron: {Mass: DefaultMassElectron, BerryPhase: DefaultPhaseElectron},
			lepton.Muon:     {Mass: DefaultMassMuon, BerryPhase: DefaultPhaseMuon},
			lepton.Tau:      {Mass: DefaultMassTau, BerryPhase: DefaultPhaseTau},
		},
		References: map[lepton.Lepton]*ExperimentalReference{
			lepton.Electron: {
				AExp:  electronAExpDefault,
				ASM:   electronASMDefault,
				Sigma: electronSigmaDefault,
			},
			lepton.Muon: {
				AExp:  muonAExpDefault,
				ASM:   0,
				Sigma: muonSigmaDefault,
			},
			// The tau has no usable measurement; significance stays
			// undefined.
			lepton.Tau: nil,
		},
		DeltaANF: map[lepton.Lepton]float64{
			lepton.Electron: DefaultDeltaANFElectron,
			lepton.Muon:     DefaultDeltaANFMuon,
			lepton.Tau:      DefaultDeltaANFTau,
		},
		Variant: VariantV2Corrected,
	}
}

func (p Params) validate() error {
	if _, err := ParseVariant(string(p.Variant)); err != nil {
		return err
	}
	for _, l := range lepton.All {
		lp, ok := p.Leptons[l]
		if !ok {
			return pkgerrors.Errorf("missing parameters for %s", l)
		}
		if lp.Mass <= 0 {
			return pkgerrors.Errorf("mass of %s must be positive, got %g", l, lp.Mass)
		}
		if _, ok := p.DeltaANF[l]; !ok {
			return pkgerrors.Errorf("missing calibration constant for %s", l)
		}
		if ref := p.References[l]; ref != nil && ref.Sigma <= 0 {
			return pkgerrors.Errorf("experimental sigma of %s must be positive, got %g", l, ref.Sigma)
		}
	}
	return nil
}
