package ws

import (
	"encoding/json"
	"errors"

	"pvivy/internal/classifier"
	"pvivy/internal/model"
	"pvivy/internal/simulator"
)

// Envelope wraps all WebSocket messages with a type discriminator. ID is
// echoed back on replies so clients can match them to requests.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client -> Server messages

// SimulatePayload asks for a catalog module's curve.
type SimulatePayload = simulator.SimulateRequest

// DetectPayload carries a measured and a modeled curve.
type DetectPayload = simulator.DetectRequest

type TrainStartPayload struct {
	Validate bool `json:"validate"`
}

// Server -> Client messages

type CatalogLoadedPayload struct {
	Modules      int            `json:"modules"`
	Technologies map[string]int `json:"technologies"`
	ModelID      string         `json:"model_id,omitempty"`
}

type CurvePayload = simulator.CurveResult

type AnomalyPayload = simulator.DetectResult

type TrainProgressPayload struct {
	RunID string `json:"run_id"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
}

type TrainDonePayload struct {
	RunID      string                 `json:"run_id"`
	ModelID    string                 `json:"model_id,omitempty"`
	Signatures int                    `json:"signatures"`
	ElapsedMS  int64                  `json:"elapsed_ms"`
	Folds      []classifier.FoldScore `json:"folds,omitempty"`
	Accuracy   *float64               `json:"accuracy,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// ErrorPayload reports a failed request. Catalog misses carry the query and
// the closest catalog entries.
type ErrorPayload struct {
	Error             string             `json:"error"`
	Kind              string             `json:"kind"`
	ManufacturerQuery string             `json:"manufacturer_query,omitempty"`
	ModelQuery        string             `json:"model_query,omitempty"`
	ClosestMatches    []model.CatalogKey `json:"closest_matches,omitempty"`
}

// Message types
const (
	// Client -> Server
	TypeIVSimulate = "iv:simulate"
	TypeIVDetect   = "iv:detect"
	TypeTrainStart = "train:start"

	// Server -> Client
	TypeCatalogLoaded = "catalog:loaded"
	TypeIVCurve       = "iv:curve"
	TypeIVAnomaly     = "iv:anomaly"
	TypeTrainProgress = "train:progress"
	TypeTrainDone     = "train:done"
	TypeError         = "error"
)

// Error kinds
const (
	KindConfiguration = "configuration"
	KindModel         = "model"
	KindData          = "data"
	KindBusy          = "busy"
	KindRequest       = "request"
	KindInternal      = "internal"
)

// NewEnvelope creates a JSON-encoded envelope message.
func NewEnvelope(msgType string, payload any) ([]byte, error) {
	return NewReply(msgType, "", payload)
}

// NewReply creates a JSON-encoded envelope tagged with a request ID.
func NewReply(msgType, id string, payload any) ([]byte, error) {
	env := Envelope{Type: msgType, ID: id}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = data
	}
	return json.Marshal(env)
}

// ErrorPayloadFrom classifies err for clients.
func ErrorPayloadFrom(err error) ErrorPayload {
	p := ErrorPayload{Error: err.Error(), Kind: KindInternal}

	var dataErr *model.DataError
	switch {
	case errors.As(err, &dataErr):
		p.Kind = KindData
		p.ManufacturerQuery = dataErr.Query.Manufacturer
		p.ModelQuery = dataErr.Query.Model
		p.ClosestMatches = dataErr.Suggestions
	case errors.Is(err, model.ErrConfiguration):
		p.Kind = KindConfiguration
	case errors.Is(err, model.ErrModel):
		p.Kind = KindModel
	case errors.Is(err, simulator.ErrTrainingInProgress):
		p.Kind = KindBusy
	}
	return p
}

// TrainDoneFromResult converts an engine training result.
func TrainDoneFromResult(r simulator.TrainResult) TrainDonePayload {
	p := TrainDonePayload{
		RunID:      r.RunID,
		ModelID:    r.ModelID,
		Signatures: r.Signatures,
		ElapsedMS:  r.Elapsed.Milliseconds(),
	}
	if r.Report != nil {
		p.Folds = r.Report.Folds
		mean := r.Report.Mean
		p.Accuracy = &mean
	}
	if r.Err != nil {
		p.Error = r.Err.Error()
	}
	return p
}
