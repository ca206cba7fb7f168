package client

import (
	"encoding/json"
	"fmt"
	"strconv"

	pkgerrors "github.com/pkg/errors"

	"github.com/eqft-lab/leptond/pkg/calibrate"
	"github.com/eqft-lab/leptond/pkg/config"
	"github.com/eqft-lab/leptond/pkg/engine"
	"github.com/eqft-lab/leptond/pkg/lepton"
)

// CalibrationOutcome is the daemon's response to a calibration run.
type CalibrationOutcome struct {
	Lepton     lepton.Lepton         `json:"lepton"`
	Best       float64               `json:"best"`
	Target     calibrate.Target      `json:"target"`
	Candidates []calibrate.Candidate `json:"candidates"`
	Applied    bool                  `json:"applied"`
}

// PhasesRequest sets all three Berry phases at once.
type PhasesRequest struct {
	PhiElectron float64 `json:"phiElectron"`
	PhiMuon     float64 `json:"phiMuon"`
	PhiTau      float64 `json:"phiTau"`
}

// CalibrationRequest overrides the default search range of one lepton.
// A zero value means "use the built-in target table". The override is
// all-or-nothing: a range without steps is rejected by the daemon.
type CalibrationRequest struct {
	RangeLo float64 `json:"rangeLo,omitempty"`
	RangeHi float64 `json:"rangeHi,omitempty"`
	Steps   int     `json:"steps,omitempty"`
	Apply   bool    `json:"apply,omitempty"`
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	ret, err := c.Get("/config")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get config")
	}

	var conf config.RawFileConfig
	if err := json.Unmarshal([]byte(ret), &conf); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal config")
	}

	return &conf, nil
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}
	// Remove "" around JSON string. I don't want to use a JSON decoder just for this.
	ret = ret[1 : len(ret)-1] // remove the surrounding quotes
	return ret, nil
}

func (c *Client) GetVariant() (engine.Variant, error) {
	ret, err := c.Get("/variant")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get variant")
	}
	ret = ret[1 : len(ret)-1]
	return engine.ParseVariant(ret)
}

func (c *Client) SetVariant(v engine.Variant) (string, error) {
	return c.Put("/variant", string(v))
}

func (c *Client) SetPhases(phiE, phiMu, phiTau float64) (string, error) {
	payload, err := json.Marshal(PhasesRequest{
		PhiElectron: phiE,
		PhiMuon:     phiMu,
		PhiTau:      phiTau,
	})
	if err != nil {
		return "", err
	}
	return c.Put("/phases", string(payload))
}

func (c *Client) Predict(l lepton.Lepton) (float64, error) {
	ret, err := c.Get("/predict/" + string(l))
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to predict %s moment", l)
	}
	v, err := strconv.ParseFloat(ret, 64)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to parse prediction")
	}
	return v, nil
}

func (c *Client) Evaluate(l lepton.Lepton) (*engine.Result, error) {
	ret, err := c.Get("/evaluate/" + string(l))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to evaluate %s", l)
	}

	var res engine.Result
	if err := json.Unmarshal([]byte(ret), &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &res, nil
}

func (c *Client) EvaluateAll() (map[lepton.Lepton]*engine.Result, error) {
	ret, err := c.Get("/evaluate")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to evaluate all leptons")
	}

	var all map[lepton.Lepton]*engine.Result
	if err := json.Unmarshal([]byte(ret), &all); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}
	return all, nil
}

func (c *Client) Calibrate(l lepton.Lepton, req CalibrationRequest) (*CalibrationOutcome, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	ret, err := c.Post("/calibrate/"+string(l), string(payload))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to calibrate %s", l)
	}

	var out CalibrationOutcome
	if err := json.Unmarshal([]byte(ret), &out); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal calibration outcome")
	}
	return &out, nil
}

func (c *Client) ApplyCalibration(l lepton.Lepton, deltaANF float64) (string, error) {
	return c.Post("/calibrate/"+string(l)+"/apply", strconv.FormatFloat(deltaANF, 'e', -1, 64))
}

func (c *Client) Verify() ([]calibrate.Verification, error) {
	ret, err := c.Get("/verify")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to verify calibration")
	}

	var vs []calibrate.Verification
	if err := json.Unmarshal([]byte(ret), &vs); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal verifications")
	}
	return vs, nil
}

func (c *Client) GetSchedule() (string, error) {
	ret, err := c.Get("/schedule")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get recalibration schedule")
	}
	if len(ret) >= 2 {
		ret = ret[1 : len(ret)-1]
	}
	return ret, nil
}

func (c *Client) SetSchedule(cronExpr string) (string, error) {
	return c.Put("/schedule", cronExpr)
}
