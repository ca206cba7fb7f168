// Package lepton defines the charged-lepton identifiers used across the
// engine, calibration and daemon packages, and the fixed heavy-partner
// coupling map between them.
package lepton

import (
	"github.com/pkg/errors"
)

// Lepton identifies one of the three charged leptons.
type Lepton string

const (
	Electron Lepton = "electron"
	Muon     Lepton = "muon"
	Tau      Lepton = "tau"
)

// ErrUnsupported is returned whenever an identifier outside
// {electron, muon, tau} reaches the engine or the calibration search.
var ErrUnsupported = errors.New("unsupported lepton")

// All lists the supported leptons in conventional mass order.
var All = []Lepton{Electron, Muon, Tau}

// Parse validates a lepton identifier.
func Parse(s string) (Lepton, error) {
	switch Lepton(s) {
	case Electron, Muon, Tau:
		return Lepton(s), nil
	}
	return "", errors.Wrapf(ErrUnsupported, "%q", s)
}

// Valid reports whether l is one of the supported leptons.
func (l Lepton) Valid() bool {
	switch l {
	case Electron, Muon, Tau:
		return true
	}
	return false
}

// Partner returns the heavy coupling partner used in the cross term.
// The tau couples to the muon, not to itself or a heavier proxy state;
// this mapping is intentional and must not be "fixed".
func (l Lepton) Partner() Lepton {
	switch l {
	case Electron:
		return Muon
	case Muon:
		return Tau
	case Tau:
		return Muon
	}
	return ""
}

// Symbol returns the conventional one-rune symbol for display.
func (l Lepton) Symbol() string {
	switch l {
	case Electron:
		return "e"
	case Muon:
		return "μ"
	case Tau:
		return "τ"
	}
	return string(l)
}
