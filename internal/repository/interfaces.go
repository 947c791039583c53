package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/rollup/internal/domain"
	"github.com/rpattn/rollup/internal/rollup"
)

// RunStatus tracks a rollup run's lifecycle.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// RollupRun is the persisted metadata of one pipeline execution.
type RollupRun struct {
	ID           uuid.UUID  `json:"id"`
	Status       RunStatus  `json:"status"`
	InvoiceFile  *string    `json:"invoice_file,omitempty"`
	PartyFile    *string    `json:"party_file,omitempty"`
	InvoiceRows  int        `json:"invoice_rows"`
	PartyRows    int        `json:"party_rows"`
	OutputRows   int        `json:"output_rows"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// RollupRunRepository stores run metadata, the merged output rows, and any
// diagnostics raised while computing them.
type RollupRunRepository interface {
	CreateRun(ctx context.Context, run RollupRun) (RollupRun, error)
	CompleteRun(ctx context.Context, id uuid.UUID, outputRows int) error
	FailRun(ctx context.Context, id uuid.UUID, message string) error
	InsertOutputRows(ctx context.Context, runID uuid.UUID, relation domain.Relation) error
	RecordDiagnostics(ctx context.Context, runID uuid.UUID, diagnostics []rollup.Diagnostic) error
	GetRun(ctx context.Context, id uuid.UUID) (RollupRun, error)
	ListRuns(ctx context.Context, limit int, offset int) ([]RollupRun, error)
}
