package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-playerswitch/internal/domain/players"
	"github.com/edumarques81/stellar-playerswitch/internal/domain/switcher"
	"github.com/edumarques81/stellar-playerswitch/internal/version"
)

const maxHistoryLimit = 500

type handlers struct {
	switcher Switcher
	status   StatusProvider
	registry *players.Registry
	history  HistoryReader
}

// ServiceInfo is one entry of GET /services.
type ServiceInfo struct {
	Key     string `json:"key"`
	Process string `json:"process"`
	Script  string `json:"script"`
}

func (h *handlers) switchService(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, switcher.Result{
			Status:  switcher.StatusError,
			Message: "Invalid request method",
		})
		return
	}

	key := r.PostFormValue("service")
	res, err := h.switcher.Switch(r.Context(), key)
	if err != nil {
		// Errors other than contention keep 200 so the legacy UI shows the message.
		code := http.StatusOK
		if errors.Is(err, switcher.ErrBusy) {
			code = http.StatusConflict
		}
		writeJSON(w, code, switcher.ErrorResult(err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status.Current(r.Context()))
}

func (h *handlers) listServices(w http.ResponseWriter, _ *http.Request) {
	entries := h.registry.Entries()
	out := make([]ServiceInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, ServiceInfo{Key: e.Key, Process: e.Process, Script: e.Script})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) switchHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := h.history.Recent(r.Context(), r.URL.Query().Get("service"), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read switch history")
		writeError(w, http.StatusInternalServerError, "failed to read switch history")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	snap := h.status.Current(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"status":        "ok",
		"activeService": snap.ActiveService,
		"source":        snap.Source,
	})
}

func (h *handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, version.GetInfo())
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
