package events

import "encoding/json"

// Event name constants
const (
	CalibrationStarted  = "calibration.started"
	CalibrationFinished = "calibration.finished"
	CalibrationApplied  = "calibration.applied"
	PhasesUpdated       = "phases.updated"
)

// Event is a generic SSE event from the daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// CalibrationEvent is the typed payload of the calibration.* events.
type CalibrationEvent struct {
	Lepton   string  `json:"lepton"`
	DeltaANF float64 `json:"deltaANF,omitempty"`
	Score    float64 `json:"score,omitempty"`
	Message  string  `json:"message,omitempty"`
	Ts       int64   `json:"ts"`
}

// PhasesEvent is the typed payload of phases.updated.
type PhasesEvent struct {
	PhiElectron float64 `json:"phiElectron"`
	PhiMuon     float64 `json:"phiMuon"`
	PhiTau      float64 `json:"phiTau"`
	Ts          int64   `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic
// type T. It ignores the event name and simply unmarshals Data into T. If
// Data is empty, it returns the zero value of T with a nil error.
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
