package export

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rpattn/rollup/internal/domain"
	"github.com/rpattn/rollup/internal/ingestion"
	"github.com/rpattn/rollup/internal/repository"
	"github.com/rpattn/rollup/internal/rollup"
)

var formatMimeTypes = map[Format]string{
	FormatCSV:  "text/csv",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// RunHandler accepts the two input files, computes the rollup, persists the
// run when a repository is configured, and streams the merged output back in
// the requested format.
type RunHandler struct {
	ingest  *ingestion.Service
	engine  *rollup.Engine
	exports *Service
	runs    repository.RollupRunRepository
}

// NewRunHandler builds the run-and-download endpoint. The repository may be
// nil; the rollup then runs without persistence.
func NewRunHandler(
	ingest *ingestion.Service,
	engine *rollup.Engine,
	exports *Service,
	runs repository.RollupRunRepository,
) http.Handler {
	return &RunHandler{
		ingest:  ingest,
		engine:  engine,
		exports: exports,
		runs:    runs,
	}
}

func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	format, err := ParseFormat(r.FormValue("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	invoiceFile, invoiceName, err := formFile(r, "invoices")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer invoiceFile.Close()

	partyFile, partyName, err := formFile(r, "parties")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer partyFile.Close()

	ctx := r.Context()

	invoices, invoiceSummary, err := h.ingest.ParseInvoices(invoiceName, invoiceFile)
	if err != nil {
		http.Error(w, fmt.Sprintf("invoices: %v", err), http.StatusBadRequest)
		return
	}
	parties, partySummary, err := h.ingest.ParseParties(partyName, partyFile)
	if err != nil {
		http.Error(w, fmt.Sprintf("parties: %v", err), http.StatusBadRequest)
		return
	}
	log.Printf("[ROLLUP] parsed %d/%d invoice rows, %d/%d party rows",
		invoiceSummary.ValidRows, invoiceSummary.TotalRows,
		partySummary.ValidRows, partySummary.TotalRows)

	// Persistence is best-effort for the synchronous endpoint: a CreateRun
	// failure drops persistence for this request only, never for the
	// handler. ServeHTTP runs concurrently, so h.runs is read once and
	// never written.
	runs := h.runs
	var run repository.RollupRun
	if runs != nil {
		run, err = runs.CreateRun(ctx, repository.RollupRun{
			InvoiceFile: &invoiceName,
			PartyFile:   &partyName,
			InvoiceRows: len(invoices),
			PartyRows:   len(parties),
		})
		if err != nil {
			log.Printf("[ROLLUP] failed to record run: %v", err)
			runs = nil
		}
	}

	merged, diagnostics, err := h.engine.Run(ctx, invoices, parties)
	if err != nil {
		failRun(ctx, runs, run, err)
		http.Error(w, fmt.Sprintf("rollup failed: %v", err), http.StatusInternalServerError)
		return
	}
	for _, diagnostic := range diagnostics {
		log.Printf("[ROLLUP] %s %s (%s): %s", diagnostic.Level, diagnostic.Code, diagnostic.Pass, diagnostic.Message)
	}

	if runs != nil {
		if err := runs.InsertOutputRows(ctx, run.ID, merged); err != nil {
			log.Printf("[ROLLUP] failed to persist output rows: %v", err)
		}
		if err := runs.RecordDiagnostics(ctx, run.ID, diagnostics); err != nil {
			log.Printf("[ROLLUP] failed to persist diagnostics: %v", err)
		}
		if err := runs.CompleteRun(ctx, run.ID, len(merged.Rows)); err != nil {
			log.Printf("[ROLLUP] failed to complete run: %v", err)
		}
	}

	result, err := h.exports.Write(merged, format)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to write output: %v", err), http.StatusInternalServerError)
		return
	}

	stream(w, runs != nil, run, result, format, merged)
}

func failRun(ctx context.Context, runs repository.RollupRunRepository, run repository.RollupRun, cause error) {
	if runs == nil {
		return
	}
	if err := runs.FailRun(ctx, run.ID, cause.Error()); err != nil {
		log.Printf("[ROLLUP] failed to mark run failed: %v", err)
	}
}

func stream(w http.ResponseWriter, persisted bool, run repository.RollupRun, result Result, format Format, merged domain.Relation) {
	file, err := os.Open(result.FilePath)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to open output: %v", err), http.StatusInternalServerError)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", formatMimeTypes[format])
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(result.FilePath)))
	if persisted {
		w.Header().Set("X-Rollup-Run-Id", run.ID.String())
	}
	w.Header().Set("X-Rollup-Rows", fmt.Sprintf("%d", len(merged.Rows)))

	if _, err := io.Copy(w, file); err != nil {
		log.Printf("[ROLLUP] failed to stream output: %v", err)
	}
}

func formFile(r *http.Request, field string) (multipart.File, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("%s file required: %v", field, err)
	}
	return file, header.Filename, nil
}
