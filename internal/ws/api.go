package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"pvivy/internal/log"
	"pvivy/internal/model"
	"pvivy/internal/simulator"
)

// API serves the request/response operations over plain HTTP for clients
// that do not hold a WebSocket open.
type API struct {
	engine *simulator.Engine
}

func NewAPI(engine *simulator.Engine) *API {
	return &API{engine: engine}
}

// Register mounts the API routes on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/iv-curve", a.handleCurveQuery)
	mux.HandleFunc("POST /api/iv-curve", a.handleCurve)
	mux.HandleFunc("POST /api/detect-anomaly", a.handleDetect)
}

func (a *API) handleCurve(w http.ResponseWriter, r *http.Request) {
	var req SimulatePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorPayload{Error: "invalid request body: " + err.Error(), Kind: KindRequest})
		return
	}
	res, err := a.engine.Simulate(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleCurveQuery reads the request from query parameters manufacturer,
// model, irradiance, temperature and modules.
func (a *API) handleCurveQuery(w http.ResponseWriter, r *http.Request) {
	req, err := simulateRequestFromQuery(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorPayload{Error: err.Error(), Kind: KindRequest})
		return
	}
	res, err := a.engine.Simulate(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func simulateRequestFromQuery(q url.Values) (SimulatePayload, error) {
	req := SimulatePayload{
		Manufacturer: q.Get("manufacturer"),
		Model:        q.Get("model"),
		Translator:   q.Get("translator"),
	}
	if v := q.Get("irradiance"); v != "" {
		irr, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid irradiance %q", v)
		}
		req.Irradiance = &irr
	}
	if v := q.Get("temperature"); v != "" {
		temp, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, fmt.Errorf("invalid temperature %q", v)
		}
		req.Temperature = &temp
	}
	if v := q.Get("modules"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid modules %q", v)
		}
		req.Modules = n
	}
	return req, nil
}

func (a *API) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req DetectPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorPayload{Error: "invalid request body: " + err.Error(), Kind: KindRequest})
		return
	}
	res, err := a.engine.Detect(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeError(w http.ResponseWriter, err error) {
	p := ErrorPayloadFrom(err)
	status := http.StatusInternalServerError
	switch p.Kind {
	case KindData:
		status = http.StatusBadRequest
		var dataErr *model.DataError
		if errors.As(err, &dataErr) && dataErr.Query != (model.CatalogKey{}) {
			status = http.StatusNotFound
		}
	case KindConfiguration:
		status = http.StatusBadRequest
	case KindModel:
		status = http.StatusUnprocessableEntity
	case KindBusy:
		status = http.StatusConflict
	}
	writeJSON(w, status, p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnw("writing response", "error", err)
	}
}
