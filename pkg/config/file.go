package config

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/eqft-lab/leptond/pkg/engine"
	"github.com/eqft-lab/leptond/pkg/lepton"
	"github.com/eqft-lab/leptond/pkg/utils/ptr"
)

var defaultFileConfig = &RawFileConfig{
	Variant:             ptr.To(string(engine.VariantV2Corrected)),
	PhiElectron:         ptr.To(engine.DefaultPhaseElectron),
	PhiMuon:             ptr.To(engine.DefaultPhaseMuon),
	PhiTau:              ptr.To(engine.DefaultPhaseTau),
	DeltaANFElectron:    ptr.To(engine.DefaultDeltaANFElectron),
	DeltaANFMuon:        ptr.To(engine.DefaultDeltaANFMuon),
	DeltaANFTau:         ptr.To(engine.DefaultDeltaANFTau),
	RecalibrateSchedule: ptr.To(""),
	AllowNonRootAccess:  ptr.To(false),
}

var _ Config = &File{}

// File is the JSON-file-backed configuration. Unset fields fall back to the
// documented defaults, so an empty file is a valid config.
type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = defaultFileConfig
	}

	return &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}
}

// RawFileConfig is the on-disk shape. Every field is optional; nil means
// "use the default".
type RawFileConfig struct {
	Variant             *string  `json:"variant,omitempty"`
	PhiElectron         *float64 `json:"phiElectron,omitempty"`
	PhiMuon             *float64 `json:"phiMuon,omitempty"`
	PhiTau              *float64 `json:"phiTau,omitempty"`
	DeltaANFElectron    *float64 `json:"deltaANFElectron,omitempty"`
	DeltaANFMuon        *float64 `json:"deltaANFMuon,omitempty"`
	DeltaANFTau         *float64 `json:"deltaANFTau,omitempty"`
	RecalibrateSchedule *string  `json:"recalibrateSchedule,omitempty"`
	AllowNonRootAccess  *bool    `json:"allowNonRootAccess,omitempty"`
}

func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	return &RawFileConfig{
		Variant:             ptr.To(string(c.Variant())),
		PhiElectron:         ptr.To(c.BerryPhase(lepton.Electron)),
		PhiMuon:             ptr.To(c.BerryPhase(lepton.Muon)),
		PhiTau:              ptr.To(c.BerryPhase(lepton.Tau)),
		DeltaANFElectron:    ptr.To(c.DeltaANF(lepton.Electron)),
		DeltaANFMuon:        ptr.To(c.DeltaANF(lepton.Muon)),
		DeltaANFTau:         ptr.To(c.DeltaANF(lepton.Tau)),
		RecalibrateSchedule: ptr.To(c.RecalibrateSchedule()),
		AllowNonRootAccess:  ptr.To(c.AllowNonRootAccess()),
	}, nil
}

func (f *File) Variant() engine.Variant {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	raw := ptr.Deref(f.c.Variant, *defaultFileConfig.Variant)
	v, err := engine.ParseVariant(raw)
	if err != nil {
		logrus.Warnf("invalid variant %q in config, using default", raw)
		return engine.VariantV2Corrected
	}
	return v
}

func (f *File) BerryPhase(l lepton.Lepton) float64 {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	switch l {
	case lepton.Electron:
		return ptr.Deref(f.c.PhiElectron, *defaultFileConfig.PhiElectron)
	case lepton.Muon:
		return ptr.Deref(f.c.PhiMuon, *defaultFileConfig.PhiMuon)
	case lepton.Tau:
		return ptr.Deref(f.c.PhiTau, *defaultFileConfig.PhiTau)
	}
	panic("unsupported lepton " + string(l))
}

func (f *File) DeltaANF(l lepton.Lepton) float64 {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	switch l {
	case lepton.Electron:
		return ptr.Deref(f.c.DeltaANFElectron, *defaultFileConfig.DeltaANFElectron)
	case lepton.Muon:
		return ptr.Deref(f.c.DeltaANFMuon, *defaultFileConfig.DeltaANFMuon)
	case lepton.Tau:
		return ptr.Deref(f.c.DeltaANFTau, *defaultFileConfig.DeltaANFTau)
	}
	panic("unsupported lepton " + string(l))
}

func (f *File) RecalibrateSchedule() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.RecalibrateSchedule, *defaultFileConfig.RecalibrateSchedule)
}

func (f *File) AllowNonRootAccess() bool {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.AllowNonRootAccess, *defaultFileConfig.AllowNonRootAccess)
}

func (f *File) SetVariant(v engine.Variant) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.Variant = ptr.To(string(v))
}

func (f *File) SetBerryPhase(l lepton.Lepton, phi float64) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch l {
	case lepton.Electron:
		f.c.PhiElectron = &phi
	case lepton.Muon:
		f.c.PhiMuon = &phi
	case lepton.Tau:
		f.c.PhiTau = &phi
	default:
		panic("unsupported lepton " + string(l))
	}
}

func (f *File) SetDeltaANF(l lepton.Lepton, v float64) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch l {
	case lepton.Electron:
		f.c.DeltaANFElectron = &v
	case lepton.Muon:
		f.c.DeltaANFMuon = &v
	case lepton.Tau:
		f.c.DeltaANFTau = &v
	default:
		panic("unsupported lepton " + string(l))
	}
}

func (f *File) SetRecalibrateSchedule(expr string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.RecalibrateSchedule = &expr
}

func (f *File) SetAllowNonRootAccess(b bool) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.AllowNonRootAccess = &b
}

func (f *File) EngineParams() engine.Params {
	p := engine.DefaultParams()
	p.Variant = f.Variant()
	for _, l := range lepton.All {
		lp := p.Leptons[l]
		lp.BerryPhase = f.BerryPhase(l)
		p.Leptons[l] = lp
		p.DeltaANF[l] = f.DeltaANF(l)
	}
	return p
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		// If the file is empty, return the empty config.
		// Do not make f.c a nil.
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	return logrus.Fields{
		"variant":             f.Variant(),
		"phiElectron":         f.BerryPhase(lepton.Electron),
		"phiMuon":             f.BerryPhase(lepton.Muon),
		"phiTau":              f.BerryPhase(lepton.Tau),
		"deltaANFElectron":    f.DeltaANF(lepton.Electron),
		"deltaANFMuon":        f.DeltaANF(lepton.Muon),
		"deltaANFTau":         f.DeltaANF(lepton.Tau),
		"recalibrateSchedule": f.RecalibrateSchedule(),
		"allowNonRootAccess":  f.AllowNonRootAccess(),
	}
}
