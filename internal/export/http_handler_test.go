package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/rpattn/rollup/internal/domain"
	"github.com/rpattn/rollup/internal/ingestion"
	"github.com/rpattn/rollup/internal/repository"
	"github.com/rpattn/rollup/internal/rollup"
)

type stubRunRepository struct {
	created     *repository.RollupRun
	completed   bool
	failed      bool
	outputRows  int
	diagnostics []rollup.Diagnostic
	relation    domain.Relation
}

func (s *stubRunRepository) CreateRun(_ context.Context, run repository.RollupRun) (repository.RollupRun, error) {
	run.ID = uuid.New()
	run.Status = repository.RunStatusRunning
	s.created = &run
	return run, nil
}

func (s *stubRunRepository) CompleteRun(_ context.Context, _ uuid.UUID, outputRows int) error {
	s.completed = true
	s.outputRows = outputRows
	return nil
}

func (s *stubRunRepository) FailRun(_ context.Context, _ uuid.UUID, _ string) error {
	s.failed = true
	return nil
}

func (s *stubRunRepository) InsertOutputRows(_ context.Context, _ uuid.UUID, relation domain.Relation) error {
	s.relation = relation
	return nil
}

func (s *stubRunRepository) RecordDiagnostics(_ context.Context, _ uuid.UUID, diagnostics []rollup.Diagnostic) error {
	s.diagnostics = diagnostics
	return nil
}

func (s *stubRunRepository) GetRun(_ context.Context, _ uuid.UUID) (repository.RollupRun, error) {
	if s.created == nil {
		return repository.RollupRun{}, fmt.Errorf("run not found")
	}
	return *s.created, nil
}

func (s *stubRunRepository) ListRuns(_ context.Context, _ int, _ int) ([]repository.RollupRun, error) {
	if s.created == nil {
		return nil, nil
	}
	return []repository.RollupRun{*s.created}, nil
}

// flakyRunRepository fails CreateRun a fixed number of times, then behaves
// like the plain stub.
type flakyRunRepository struct {
	stubRunRepository
	failures int
	creates  int
}

func (f *flakyRunRepository) CreateRun(ctx context.Context, run repository.RollupRun) (repository.RollupRun, error) {
	f.creates++
	if f.failures > 0 {
		f.failures--
		return repository.RollupRun{}, fmt.Errorf("connection refused")
	}
	return f.stubRunRepository.CreateRun(ctx, run)
}

func multipartRequest(t *testing.T, invoicesCSV, partiesCSV, format string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	invoicePart, err := writer.CreateFormFile("invoices", "invoices.csv")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := invoicePart.Write([]byte(invoicesCSV)); err != nil {
		t.Fatalf("write invoices: %v", err)
	}

	partyPart, err := writer.CreateFormFile("parties", "parties.csv")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := partyPart.Write([]byte(partiesCSV)); err != nil {
		t.Fatalf("write parties: %v", err)
	}

	if err := writer.WriteField("format", format); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/rollup/run", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

const (
	testInvoicesCSV = `legal_entity,counter_party,rating,status,value
LE1,CP1,5,ARAP,100
LE1,CP2,3,ACCR,50
`
	testPartiesCSV = `counter_party,tier
CP1,1
CP2,2
`
)

func newRunHandler(t *testing.T, runs repository.RollupRunRepository) http.Handler {
	t.Helper()
	return NewRunHandler(
		ingestion.NewService(),
		rollup.NewEngine(),
		NewService(WithExportDirectory(t.TempDir())),
		runs,
	)
}

func TestRunHandlerStreamsCSV(t *testing.T) {
	repo := &stubRunRepository{}
	handler := newRunHandler(t, repo)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, multipartRequest(t, testInvoicesCSV, testPartiesCSV, "csv"))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("unexpected content type %q", ct)
	}
	if recorder.Header().Get("X-Rollup-Run-Id") == "" {
		t.Errorf("expected run id header when persistence is configured")
	}

	records, err := csv.NewReader(recorder.Body).ReadAll()
	if err != nil {
		t.Fatalf("read response csv: %v", err)
	}
	if len(records) < 2 {
		t.Fatalf("expected header plus data rows, got %d records", len(records))
	}
	if records[0][0] != domain.ColumnLegalEntity {
		t.Errorf("unexpected csv header: %v", records[0])
	}

	if repo.created == nil {
		t.Fatalf("expected a run to be created")
	}
	if !repo.completed || repo.failed {
		t.Errorf("expected run completed, got completed=%v failed=%v", repo.completed, repo.failed)
	}
	if repo.outputRows != len(records)-1 {
		t.Errorf("expected %d persisted output rows, got %d", len(records)-1, repo.outputRows)
	}
	if len(repo.relation.Rows) != len(records)-1 {
		t.Errorf("expected output rows persisted, got %d", len(repo.relation.Rows))
	}
}

func TestRunHandlerRecoversAfterCreateRunFailure(t *testing.T) {
	repo := &flakyRunRepository{failures: 1}
	handler := newRunHandler(t, repo)

	// First request: CreateRun fails, the rollup still succeeds but is not
	// persisted.
	first := httptest.NewRecorder()
	handler.ServeHTTP(first, multipartRequest(t, testInvoicesCSV, testPartiesCSV, "csv"))
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200 despite persistence failure, got %d: %s", first.Code, first.Body.String())
	}
	if first.Header().Get("X-Rollup-Run-Id") != "" {
		t.Errorf("run id header must be absent when the run was not recorded")
	}
	if repo.completed {
		t.Errorf("nothing to complete when CreateRun failed")
	}

	// Second request: the repository is healthy again and the handler must
	// persist; a single transient failure must not disable persistence.
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, multipartRequest(t, testInvoicesCSV, testPartiesCSV, "csv"))
	if second.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", second.Code, second.Body.String())
	}
	if repo.creates != 2 {
		t.Fatalf("expected CreateRun attempted on every request, got %d calls", repo.creates)
	}
	if repo.created == nil || !repo.completed {
		t.Errorf("expected second run persisted, got created=%v completed=%v", repo.created != nil, repo.completed)
	}
	if second.Header().Get("X-Rollup-Run-Id") == "" {
		t.Errorf("expected run id header once persistence recovered")
	}
}

func TestRunHandlerWorksWithoutRepository(t *testing.T) {
	handler := newRunHandler(t, nil)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, multipartRequest(t, testInvoicesCSV, testPartiesCSV, ""))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if recorder.Header().Get("X-Rollup-Run-Id") != "" {
		t.Errorf("run id header must be absent without persistence")
	}
}

func TestRunHandlerRejectsBadSchema(t *testing.T) {
	handler := newRunHandler(t, &stubRunRepository{})

	broken := `legal_entity,counter_party,rating,value
LE1,CP1,5,100
`
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, multipartRequest(t, broken, testPartiesCSV, "csv"))

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestRunHandlerRejectsNonPost(t *testing.T) {
	handler := newRunHandler(t, nil)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/rollup/run", nil))

	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", recorder.Code)
	}
}

func TestRunsHandlerWithoutRepository(t *testing.T) {
	handler := NewRunsHandler(nil)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/rollup/runs", nil))

	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", recorder.Code)
	}
}

func TestRunsHandlerList(t *testing.T) {
	repo := &stubRunRepository{}
	runHandler := newRunHandler(t, repo)
	recorder := httptest.NewRecorder()
	runHandler.ServeHTTP(recorder, multipartRequest(t, testInvoicesCSV, testPartiesCSV, "csv"))
	if recorder.Code != http.StatusOK {
		t.Fatalf("rollup run failed: %d", recorder.Code)
	}

	listHandler := NewRunsHandler(repo)
	listRecorder := httptest.NewRecorder()
	listHandler.ServeHTTP(listRecorder, httptest.NewRequest(http.MethodGet, "/rollup/runs", nil))

	if listRecorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", listRecorder.Code)
	}
	if ct := listRecorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}
}
