package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marcus/wsmenu/internal/events"
	"github.com/marcus/wsmenu/internal/features"
	"github.com/marcus/wsmenu/internal/serverdb"
)

// SetFeatureRequest is the body of a feature write.
type SetFeatureRequest struct {
	Enabled bool   `json:"enabled"`
	WriteID string `json:"write_id"`
}

// FaultsConfig is the runtime fault injection setting.
type FaultsConfig struct {
	Latency  string  `json:"latency"`
	FailRate float64 `json:"fail_rate"`
}

const producer = "wsmenu-authority"

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.ListWorkspaceIDs()
	if err != nil {
		logFor(r.Context()).Error("list workspaces", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list workspaces")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"workspaces": ids})
}

func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ws, err := s.store.GetWorkspace(id)
	if errors.Is(err, serverdb.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "workspace not found")
		return
	}
	if err != nil {
		logFor(r.Context()).Error("get workspace", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to load workspace")
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

// handleSetFeature rules on a write. Rejections are answered with 200 and
// a rejected echo: the request itself succeeded.
func (s *Server) handleSetFeature(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f, err := features.Parse(chi.URLParam(r, "feature"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeUnknownFeature, err.Error())
		return
	}

	var req SetFeatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	echo, err := s.store.SetFeature(id, f, req.Enabled, req.WriteID)
	if errors.Is(err, serverdb.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "workspace not found")
		return
	}
	if err != nil {
		logFor(r.Context()).Error("set feature", "id", id, "feature", f.Key(), "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to apply write")
		return
	}
	s.metrics.RecordRuling(echo.Status == events.StatusAccepted)

	env := events.Envelope[events.FeatureToggled]{
		Meta: events.NewMeta(events.TypeFeatureToggled, producer),
		Data: *echo,
	}
	if s.publisher != nil {
		err := s.publisher.Publish(r.Context(), echo.RoutingKey(), env)
		s.metrics.RecordPublish(err)
		if err != nil {
			// Clients still get the echo in the response.
			logFor(r.Context()).Warn("publish echo", "id", id, "err", err)
		}
	}

	logFor(r.Context()).Info("feature write",
		"id", id, "feature", f.Key(), "enabled", req.Enabled,
		"status", echo.Status, "version", echo.Version)
	writeJSON(w, http.StatusOK, env)
}

func (s *Server) handleGetFaults(w http.ResponseWriter, r *http.Request) {
	latency, rate := s.faults()
	writeJSON(w, http.StatusOK, FaultsConfig{Latency: latency.String(), FailRate: rate})
}

func (s *Server) handleSetFaults(w http.ResponseWriter, r *http.Request) {
	var req FaultsConfig
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	var latency time.Duration
	if req.Latency != "" {
		d, err := time.ParseDuration(req.Latency)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid latency duration")
			return
		}
		latency = d
	}
	if err := s.SetFaults(latency, req.FailRate); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	s.handleGetFaults(w, r)
}
