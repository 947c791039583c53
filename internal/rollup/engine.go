package rollup

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/rpattn/rollup/internal/domain"
)

// Engine computes the multi-dimensional rollup over a joined invoice
// dataset: join, group-key enumeration, one aggregation pass per surviving
// spec, per-pass tier backfill, and a final merge into the fixed output
// schema.
type Engine struct {
	dimensions  []Dimension
	columnOrder []string
}

// Option customises engine construction.
type Option func(*Engine)

// WithDimensions overrides the grouped dimension columns; intended for tests.
func WithDimensions(dimensions []Dimension) Option {
	return func(e *Engine) {
		if len(dimensions) > 0 {
			e.dimensions = dimensions
		}
	}
}

// NewEngine builds an engine over the standard invoice dimensions.
func NewEngine(opts ...Option) *Engine {
	engine := &Engine{
		dimensions:  Dimensions(),
		columnOrder: domain.OutputColumns(),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Run executes the full pipeline. The aggregation passes share the immutable
// fact slice and write disjoint result slots, so they run concurrently; each
// pass's aggregate+backfill pair executes as one unit and only ever sees its
// own pass's rows. Any pass failure aborts the whole run. A join that
// produces no facts is not an error: every pass is empty and so is the
// merged relation.
func (e *Engine) Run(ctx context.Context, invoices []domain.Invoice, parties []domain.Party) (domain.Relation, []Diagnostic, error) {
	facts := Join(invoices, parties)
	specs := EnumerateKeys(e.dimensions)
	log.Printf("[ROLLUP] joined %d facts, running %d aggregation passes", len(facts), len(specs))

	results := make([]domain.Relation, len(specs))
	passDiagnostics := make([][]Diagnostic, len(specs))

	group, ctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		i, spec := i, spec
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rows := Aggregate(facts, spec)
			rows, diags := BackfillTier(rows, spec, parties)
			relation, err := domain.RollupRowsToRelation(spec.Name(), rows)
			if err != nil {
				return fmt.Errorf("pass %s: %w", spec.Name(), err)
			}
			results[i] = relation
			passDiagnostics[i] = diags
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return domain.Relation{}, nil, err
	}

	var diagnostics []Diagnostic
	for _, diags := range passDiagnostics {
		diagnostics = append(diagnostics, diags...)
	}

	merged, err := Merge(results, e.columnOrder)
	if err != nil {
		return domain.Relation{}, nil, err
	}
	return merged, diagnostics, nil
}
