package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"reachstacker-monitor/internal/observability/metrics"
	telemetryapp "reachstacker-monitor/internal/telemetry/application"
	telemetry "reachstacker-monitor/internal/telemetry/domain"
)

const maxBodyBytes = 64 << 10

// Handler serves the store contract: POST / appends, GET /?id= reads.
type Handler struct {
	service *telemetryapp.Service
	logger  *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *telemetryapp.Service, logger *log.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("telemetry handler: nil service")
	}
	return &Handler{service: service, logger: logger}, nil
}

// ServeHTTP dispatches on method.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, "post", start, http.StatusBadRequest, err)
		return
	}
	var payload telemetry.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.fail(w, "post", start, http.StatusBadRequest, errors.New("invalid json body"))
		return
	}

	record, err := h.service.Append(r.Context(), payload.Record())
	if err != nil {
		h.fail(w, "post", start, http.StatusInternalServerError, err)
		return
	}
	metrics.ObserveStoreRequest("post", metrics.ResultSuccess, time.Since(start))
	writeJSON(w, http.StatusOK, telemetry.WriteResponse{
		Status:    telemetry.ResponseSuccess,
		Message:   "Data saved successfully for " + record.UnitID,
		Timestamp: record.Timestamp.Format(telemetry.TimestampLayout),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		id = telemetry.QueryAll
	}
	switch id {
	case telemetry.QueryAll:
		h.handleAll(w, r)
	case telemetry.QueryStatus:
		h.handleStatus(w, r)
	default:
		h.handleUnit(w, r, id)
	}
}

func (h *Handler) handleUnit(w http.ResponseWriter, r *http.Request, unitID string) {
	start := time.Now()
	records, err := h.service.Unit(r.Context(), unitID)
	if err != nil {
		if errors.Is(err, telemetry.ErrUnknownUnit) {
			h.fail(w, "unit", start, http.StatusNotFound, errors.New("Reach Stacker "+unitID+" not found"))
			return
		}
		h.fail(w, "unit", start, http.StatusInternalServerError, err)
		return
	}
	metrics.ObserveStoreRequest("unit", metrics.ResultSuccess, time.Since(start))
	writeJSON(w, http.StatusOK, telemetry.UnitResponse{
		Status: telemetry.ResponseSuccess,
		UnitID: unitID,
		Data:   rows(records),
	})
}

func (h *Handler) handleAll(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	all, err := h.service.All(r.Context())
	if err != nil {
		h.fail(w, "all", start, http.StatusInternalServerError, err)
		return
	}
	data := make(map[string][]telemetry.Row, len(all))
	for unitID, records := range all {
		data[unitID] = rows(records)
	}
	metrics.ObserveStoreRequest("all", metrics.ResultSuccess, time.Since(start))
	writeJSON(w, http.StatusOK, telemetry.AllResponse{
		Status: telemetry.ResponseSuccess,
		Data:   data,
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	summary, err := h.service.Status(r.Context())
	if err != nil {
		h.fail(w, "status", start, http.StatusInternalServerError, err)
		return
	}
	metrics.ObserveStoreRequest("status", metrics.ResultSuccess, time.Since(start))
	writeJSON(w, http.StatusOK, telemetry.StatusResponse{
		Status: telemetry.ResponseSuccess,
		Data:   summary,
	})
}

func (h *Handler) fail(w http.ResponseWriter, route string, start time.Time, status int, err error) {
	metrics.ObserveStoreRequest(route, metrics.ResultError, time.Since(start))
	if h.logger != nil && status >= http.StatusInternalServerError {
		h.logger.Printf("telemetry: %s failed: %v", route, err)
	}
	writeJSON(w, status, telemetry.WriteResponse{
		Status:  telemetry.ResponseError,
		Message: err.Error(),
	})
}

func rows(records []telemetry.Record) []telemetry.Row {
	out := make([]telemetry.Row, 0, len(records))
	for _, record := range records {
		out = append(out, record.Row())
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
