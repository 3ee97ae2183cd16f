package usage

import (
	"context"
	"fmt"

	"adreel/internal/infra"
	"adreel/internal/sqlinline"
)

// Kind names a metered resource.
const (
	KindVideoGeneration = "VIDEO_GEN"
)

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed   bool
	Remaining int
	Limit     int
	Used      int
}

// Guard gates job admission against the per-user monthly quota. CheckLimit is
// advisory; Increment is the single atomic check-then-increment performed
// once per accepted submission — never per poll, and deliberately not rolled
// back when a submitted job later fails.
type Guard interface {
	CheckLimit(ctx context.Context, userID, kind string) (Decision, error)
	Increment(ctx context.Context, userID, kind string) error
}

// PGGuard enforces quotas through database functions so the check-then-
// increment step is atomic on the server; there is no client-side
// read-modify-write to race.
type PGGuard struct {
	sql infra.SQLExecutor
}

func NewPGGuard(sql infra.SQLExecutor) *PGGuard {
	return &PGGuard{sql: sql}
}

func (g *PGGuard) CheckLimit(ctx context.Context, userID, kind string) (Decision, error) {
	row := g.sql.QueryRow(ctx, sqlinline.QCheckUsageQuota, userID, kind)
	var d Decision
	if err := row.Scan(&d.Allowed, &d.Remaining, &d.Limit, &d.Used); err != nil {
		return Decision{}, fmt.Errorf("check quota: %w", err)
	}
	return d, nil
}

func (g *PGGuard) Increment(ctx context.Context, userID, kind string) error {
	row := g.sql.QueryRow(ctx, sqlinline.QConsumeUsageQuota, userID, kind)
	var remaining int
	if err := row.Scan(&remaining); err != nil {
		return fmt.Errorf("consume quota: %w", err)
	}
	return nil
}

var _ Guard = (*PGGuard)(nil)
