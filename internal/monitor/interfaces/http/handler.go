package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	monitorapp "reachstacker-monitor/internal/monitor/application"
	"reachstacker-monitor/internal/monitor/notify"
	telemetry "reachstacker-monitor/internal/telemetry/domain"
)

const (
	unitsPath      = "/api/v1/units"
	selectionPath  = "/api/v1/selection"
	preferencePath = "/api/v1/notifications/preference"
	tonePath       = "/api/v1/tone.wav"
	fleetPath      = "/api/v1/fleet/status"
	readingsXLSX   = "/api/v1/exports/readings.xlsx"
	fleetPDF       = "/api/v1/exports/fleet.pdf"

	maxBodyBytes = 4 << 10
)

// FleetSource reads the store directly for proxying and exports.
type FleetSource interface {
	All(ctx context.Context) (map[string][]telemetry.Row, error)
	Status(ctx context.Context) (map[string]telemetry.StatusEntry, error)
}

// Handler provides the dashboard HTTP endpoints.
type Handler struct {
	session *monitorapp.Session
	fleet   FleetSource
	wav     []byte
	logger  *log.Logger
	now     func() time.Time
}

// NewHandler constructs a handler. The tone is rendered once up front.
func NewHandler(session *monitorapp.Session, fleet FleetSource, tone notify.Tone, logger *log.Logger) (*Handler, error) {
	if session == nil {
		return nil, errors.New("monitor handler: nil session")
	}
	if fleet == nil {
		return nil, errors.New("monitor handler: nil fleet source")
	}
	wav, err := tone.RenderWAV()
	if err != nil {
		return nil, err
	}
	return &Handler{
		session: session,
		fleet:   fleet,
		wav:     wav,
		logger:  logger,
		now:     time.Now,
	}, nil
}

type unitsResponse struct {
	Selected             string                 `json:"selected"`
	NotificationsEnabled bool                   `json:"notificationsEnabled"`
	Units                []monitorapp.UnitState `json:"units"`
}

type selectionRequest struct {
	UnitID string `json:"unitId"`
}

type preferenceBody struct {
	Enabled bool `json:"enabled"`
}

// ServeHTTP handles /api/v1/ dashboard routes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == unitsPath:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleUnits(w)
	case strings.HasPrefix(r.URL.Path, unitsPath+"/"):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleUnit(w, strings.TrimPrefix(r.URL.Path, unitsPath+"/"))
	case r.URL.Path == selectionPath:
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleSelect(w, r)
	case r.URL.Path == preferencePath:
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, preferenceBody{Enabled: h.session.Dispatcher().Preference().Enabled()})
		case http.MethodPost:
			h.handlePreference(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case r.URL.Path == tonePath:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Header().Set("Cache-Control", "max-age=3600")
		_, _ = w.Write(h.wav)
	case r.URL.Path == fleetPath:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleFleetStatus(w, r)
	case r.URL.Path == readingsXLSX:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleReadingsExport(w, r)
	case r.URL.Path == fleetPDF:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleFleetExport(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleUnits(w http.ResponseWriter) {
	states := h.session.Registry().Snapshot()
	for i := range states {
		states[i].History = nil
	}
	writeJSON(w, http.StatusOK, unitsResponse{
		Selected:             h.session.Selected(),
		NotificationsEnabled: h.session.Dispatcher().Preference().Enabled(),
		Units:                states,
	})
}

func (h *Handler) handleUnit(w http.ResponseWriter, unitID string) {
	state, ok := h.session.Registry().Get(unitID)
	if !ok {
		http.Error(w, "unit not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.session.Select(req.UnitID); err != nil {
		if errors.Is(err, monitorapp.ErrUnknownUnit) {
			http.Error(w, "unit not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, selectionRequest{UnitID: h.session.Selected()})
}

func (h *Handler) handlePreference(w http.ResponseWriter, r *http.Request) {
	var req preferenceBody
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	dispatcher := h.session.Dispatcher()
	if !req.Enabled {
		dispatcher.DisableNotifications()
		writeJSON(w, http.StatusOK, preferenceBody{Enabled: false})
		return
	}
	if err := dispatcher.EnableNotifications(r.Context()); err != nil {
		if errors.Is(err, monitorapp.ErrNotificationsDenied) {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, preferenceBody{Enabled: true})
}

func (h *Handler) handleFleetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.fleet.Status(r.Context())
	if err != nil {
		h.logf("monitor handler: fleet status failed: %v", err)
		http.Error(w, "store unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleReadingsExport(w http.ResponseWriter, r *http.Request) {
	rows, err := h.fleet.All(r.Context())
	if err != nil {
		h.logf("monitor handler: readings export failed: %v", err)
		http.Error(w, "store unavailable", http.StatusBadGateway)
		return
	}
	payload, err := BuildReadingsXLSX(rows)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="readings.xlsx"`)
	_, _ = w.Write(payload)
}

func (h *Handler) handleFleetExport(w http.ResponseWriter, r *http.Request) {
	// The store status column is best effort; the report still renders without it.
	status, err := h.fleet.Status(r.Context())
	if err != nil {
		h.logf("monitor handler: fleet export without store status: %v", err)
		status = nil
	}
	payload, err := BuildFleetPDF(h.session.Registry().Snapshot(), status, h.now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="fleet.pdf"`)
	_, _ = w.Write(payload)
}

func (h *Handler) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
