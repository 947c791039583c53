package export

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/rollup/internal/repository"
)

// RunsHandler serves run history for dashboards.
type RunsHandler struct {
	runs repository.RollupRunRepository
}

// NewRunsHandler exposes persisted runs over GET.
func NewRunsHandler(runs repository.RollupRunRepository) http.Handler {
	return &RunsHandler{runs: runs}
}

func (h *RunsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.runs == nil {
		http.Error(w, "run persistence is not configured", http.StatusServiceUnavailable)
		return
	}

	if idRaw := strings.TrimSpace(r.URL.Query().Get("id")); idRaw != "" {
		id, err := uuid.Parse(idRaw)
		if err != nil {
			http.Error(w, "invalid run id", http.StatusBadRequest)
			return
		}
		run, err := h.runs.GetRun(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeRunsJSON(w, run)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	runs, err := h.runs.ListRuns(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeRunsJSON(w, runs)
}

func writeRunsJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
