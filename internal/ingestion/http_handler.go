package ingestion

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Handler exposes upload validation as an HTTP endpoint: it parses a file
// as one of the two input relations and reports the row summary without
// running a rollup.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service with a POST endpoint.
func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	var summary Summary
	switch kind := strings.TrimSpace(r.FormValue("relation")); kind {
	case "invoices":
		_, summary, err = h.service.ParseInvoices(header.Filename, file)
	case "parties":
		_, summary, err = h.service.ParseParties(header.Filename, file)
	default:
		http.Error(w, fmt.Sprintf("unknown relation %q, want invoices or parties", kind), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
