package daemon

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/eqft-lab/leptond/pkg/calibrate"
	"github.com/eqft-lab/leptond/pkg/config"
	"github.com/eqft-lab/leptond/pkg/engine"
	"github.com/eqft-lab/leptond/pkg/events"
	"github.com/eqft-lab/leptond/pkg/lepton"
	"github.com/eqft-lab/leptond/pkg/version"
)

// phasesRequest and calibrationRequest mirror the client-side request
// shapes; the daemon keeps its own copies so the packages stay decoupled.
type phasesRequest struct {
	PhiElectron float64 `json:"phiElectron"`
	PhiMuon     float64 `json:"phiMuon"`
	PhiTau      float64 `json:"phiTau"`
}

type calibrationRequest struct {
	RangeLo float64 `json:"rangeLo,omitempty"`
	RangeHi float64 `json:"rangeHi,omitempty"`
	Steps   int     `json:"steps,omitempty"`
	Apply   bool    `json:"apply,omitempty"`
}

type calibrationResponse struct {
	Lepton     lepton.Lepton         `json:"lepton"`
	Best       float64               `json:"best"`
	Target     calibrate.Target      `json:"target"`
	Candidates []calibrate.Candidate `json:"candidates"`
	Applied    bool                  `json:"applied"`
}

func getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(conf)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}

func getVariant(c *gin.Context) {
	e, _ := engineState()
	c.IndentedJSON(http.StatusOK, string(e.Variant()))
}

func setVariant(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	v, err := engine.ParseVariant(strings.TrimSpace(string(raw)))
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	conf.SetVariant(v)
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if err := rebuildEngine(); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Infof("formula variant set to %s", v)
	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("formula variant set to %s", v))
}

func setPhases(c *gin.Context) {
	var req phasesRequest
	if err := c.BindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	e, _ := engineState()
	e.SetBerryPhases(req.PhiElectron, req.PhiMuon, req.PhiTau)

	conf.SetBerryPhase(lepton.Electron, req.PhiElectron)
	conf.SetBerryPhase(lepton.Muon, req.PhiMuon)
	conf.SetBerryPhase(lepton.Tau, req.PhiTau)
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	hub.Publish(events.PhasesUpdated, events.PhasesEvent{
		PhiElectron: req.PhiElectron,
		PhiMuon:     req.PhiMuon,
		PhiTau:      req.PhiTau,
		Ts:          time.Now().Unix(),
	})

	logrus.WithFields(logrus.Fields{
		"phiElectron": req.PhiElectron,
		"phiMuon":     req.PhiMuon,
		"phiTau":      req.PhiTau,
	}).Info("berry phases updated")

	c.IndentedJSON(http.StatusCreated, "ok")
}

func leptonParam(c *gin.Context) (lepton.Lepton, bool) {
	l, err := lepton.Parse(c.Param("lepton"))
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return "", false
	}
	return l, true
}

func getPrediction(c *gin.Context) {
	l, ok := leptonParam(c)
	if !ok {
		return
	}

	e, _ := engineState()
	a, err := e.Predict(l)
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, a)
}

func getEvaluation(c *gin.Context) {
	l, ok := leptonParam(c)
	if !ok {
		return
	}

	e, _ := engineState()
	res, err := e.Evaluate(l)
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, res)
}

func getEvaluations(c *gin.Context) {
	e, _ := engineState()
	all := make(map[lepton.Lepton]*engine.Result, len(lepton.All))
	for _, l := range lepton.All {
		res, err := e.Evaluate(l)
		if err != nil {
			c.IndentedJSON(http.StatusInternalServerError, err.Error())
			_ = c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		all[l] = res
	}
	c.IndentedJSON(http.StatusOK, all)
}

func runCalibration(c *gin.Context) {
	l, ok := leptonParam(c)
	if !ok {
		return
	}

	// An empty body means "use the built-in target table".
	var req calibrationRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	_, s := engineState()

	target, err := s.Target(l)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	// A range override is all-or-nothing; a range without steps would
	// otherwise be silently ignored.
	if req.Steps != 0 || req.RangeLo != 0 || req.RangeHi != 0 {
		if req.Steps < 1 {
			err := fmt.Errorf("overriding the search range requires steps >= 1")
			c.IndentedJSON(http.StatusBadRequest, err.Error())
			_ = c.AbortWithError(http.StatusBadRequest, err)
			return
		}
		target.RangeLo = req.RangeLo
		target.RangeHi = req.RangeHi
		target.Steps = req.Steps
	}

	hub.Publish(events.CalibrationStarted, events.CalibrationEvent{
		Lepton: string(l),
		Ts:     time.Now().Unix(),
	})

	best, candidates, err := s.Search(l, target.RangeLo, target.RangeHi, target.Steps)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	hub.Publish(events.CalibrationFinished, events.CalibrationEvent{
		Lepton:   string(l),
		DeltaANF: best,
		Score:    candidates[0].Score,
		Ts:       time.Now().Unix(),
	})

	applied := false
	if req.Apply {
		if err := applyAndPersist(l, best); err != nil {
			c.IndentedJSON(http.StatusInternalServerError, err.Error())
			_ = c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		applied = true
	}

	c.IndentedJSON(http.StatusOK, calibrationResponse{
		Lepton:     l,
		Best:       best,
		Target:     target,
		Candidates: candidates,
		Applied:    applied,
	})
}

func applyCalibration(c *gin.Context) {
	l, ok := leptonParam(c)
	if !ok {
		return
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := applyAndPersist(l, v); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("applied δa_NF = %g to %s", v, l))
}

// applyAndPersist commits a calibration constant to the engine and the
// config file, and announces it on the event hub.
func applyAndPersist(l lepton.Lepton, v float64) error {
	_, s := engineState()
	if err := s.Apply(l, v); err != nil {
		return err
	}
	conf.SetDeltaANF(l, v)
	if err := conf.Save(); err != nil {
		return err
	}

	hub.Publish(events.CalibrationApplied, events.CalibrationEvent{
		Lepton:   string(l),
		DeltaANF: v,
		Ts:       time.Now().Unix(),
	})

	logrus.WithFields(logrus.Fields{
		"lepton":   l,
		"deltaANF": v,
	}).Info("calibration constant applied")
	return nil
}

func getVerification(c *gin.Context) {
	_, s := engineState()
	vs, err := s.VerifyTargets()
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, vs)
}

func getSchedule(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, conf.RecalibrateSchedule())
}

func setSchedule(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	expr := strings.TrimSpace(string(raw))

	if expr == "" {
		sched.Unschedule()
	} else if err := sched.Schedule(expr); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	conf.SetRecalibrateSchedule(expr)
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if expr == "" {
		logrus.Info("periodic recalibration disabled")
		c.IndentedJSON(http.StatusCreated, "periodic recalibration disabled")
		return
	}
	logrus.Infof("recalibration schedule set to %q", expr)
	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("recalibration schedule set to %q", expr))
}

func streamEvents(c *gin.Context) {
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")

	c.Stream(func(_ io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
