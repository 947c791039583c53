package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rpattn/rollup/internal/db"
	"github.com/rpattn/rollup/internal/domain"
	"github.com/rpattn/rollup/internal/rollup"
)

type rollupRunRepository struct {
	db db.DBTX
}

// NewRollupRunRepository creates a Postgres-backed run repository.
func NewRollupRunRepository(exec db.DBTX) RollupRunRepository {
	return &rollupRunRepository{db: exec}
}

func (r *rollupRunRepository) CreateRun(ctx context.Context, run RollupRun) (RollupRun, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO rollup_runs (id, status, invoice_file, party_file, invoice_rows, party_rows)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING started_at`,
		run.ID,
		string(run.Status),
		textOrNull(run.InvoiceFile),
		textOrNull(run.PartyFile),
		run.InvoiceRows,
		run.PartyRows,
	)
	if err := row.Scan(&run.StartedAt); err != nil {
		return RollupRun{}, fmt.Errorf("create rollup run: %w", err)
	}
	return run, nil
}

func (r *rollupRunRepository) CompleteRun(ctx context.Context, id uuid.UUID, outputRows int) error {
	_, err := r.db.Exec(ctx, `
		UPDATE rollup_runs
		SET status = $2, output_rows = $3, completed_at = now()
		WHERE id = $1`,
		id, string(RunStatusCompleted), outputRows,
	)
	if err != nil {
		return fmt.Errorf("complete rollup run: %w", err)
	}
	return nil
}

func (r *rollupRunRepository) FailRun(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE rollup_runs
		SET status = $2, error_message = $3, completed_at = now()
		WHERE id = $1`,
		id, string(RunStatusFailed), message,
	)
	if err != nil {
		return fmt.Errorf("fail rollup run: %w", err)
	}
	return nil
}

// InsertOutputRows stores the merged relation. Dimension cells are persisted
// in their rendered form since the same column holds values, Total markers,
// and counts across passes.
func (r *rollupRunRepository) InsertOutputRows(ctx context.Context, runID uuid.UUID, relation domain.Relation) error {
	for position, row := range relation.Rows {
		_, err := r.db.Exec(ctx, `
			INSERT INTO rollup_run_rows (run_id, position, legal_entity, counter_party, tier, rating, arap, accr)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			runID,
			position,
			renderValue(row[domain.ColumnLegalEntity]),
			renderValue(row[domain.ColumnCounterParty]),
			renderValue(row[domain.ColumnTier]),
			row[domain.ColumnRating],
			row[domain.ColumnARAP],
			row[domain.ColumnACCR],
		)
		if err != nil {
			return fmt.Errorf("insert output row %d: %w", position, err)
		}
	}
	return nil
}

func (r *rollupRunRepository) RecordDiagnostics(ctx context.Context, runID uuid.UUID, diagnostics []rollup.Diagnostic) error {
	for _, diagnostic := range diagnostics {
		_, err := r.db.Exec(ctx, `
			INSERT INTO rollup_run_diagnostics (run_id, level, code, pass, message)
			VALUES ($1, $2, $3, $4, $5)`,
			runID, diagnostic.Level, diagnostic.Code, diagnostic.Pass, diagnostic.Message,
		)
		if err != nil {
			return fmt.Errorf("record diagnostic: %w", err)
		}
	}
	return nil
}

func (r *rollupRunRepository) GetRun(ctx context.Context, id uuid.UUID) (RollupRun, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, status, invoice_file, party_file, invoice_rows, party_rows,
		       output_rows, error_message, started_at, completed_at
		FROM rollup_runs
		WHERE id = $1`,
		id,
	)
	run, err := scanRun(row)
	if err != nil {
		return RollupRun{}, fmt.Errorf("get rollup run: %w", err)
	}
	return run, nil
}

func (r *rollupRunRepository) ListRuns(ctx context.Context, limit int, offset int) ([]RollupRun, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, status, invoice_file, party_file, invoice_rows, party_rows,
		       output_rows, error_message, started_at, completed_at
		FROM rollup_runs
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list rollup runs: %w", err)
	}
	defer rows.Close()

	var runs []RollupRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list rollup runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rollup runs: %w", err)
	}
	return runs, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (RollupRun, error) {
	var (
		run          RollupRun
		status       string
		invoiceFile  pgtype.Text
		partyFile    pgtype.Text
		errorMessage pgtype.Text
		completedAt  pgtype.Timestamptz
	)
	err := row.Scan(
		&run.ID,
		&status,
		&invoiceFile,
		&partyFile,
		&run.InvoiceRows,
		&run.PartyRows,
		&run.OutputRows,
		&errorMessage,
		&run.StartedAt,
		&completedAt,
	)
	if err != nil {
		return RollupRun{}, err
	}
	run.Status = RunStatus(status)
	if invoiceFile.Valid {
		run.InvoiceFile = &invoiceFile.String
	}
	if partyFile.Valid {
		run.PartyFile = &partyFile.String
	}
	if errorMessage.Valid {
		run.ErrorMessage = &errorMessage.String
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return run, nil
}

func textOrNull(value *string) pgtype.Text {
	if value == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *value, Valid: true}
}

func renderValue(value any) string {
	if value == nil {
		return ""
	}
	return fmt.Sprintf("%v", value)
}
