package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"GexFlow/internal/domain/models"
	"GexFlow/internal/domain/repository"
)

// ClickHouseHistory persists one row per strike of every published snapshot,
// for replay and level backtesting.
type ClickHouseHistory struct {
	db    *sql.DB
	table string
}

func NewClickHouseHistory(db *sql.DB, table string) repository.SnapshotHistory {
	return &ClickHouseHistory{db: db, table: table}
}

// Schema returns the idempotent DDL for the history table, to be run through
// the client's InitSchema at startup.
func Schema(database, table string) []string {
	return []string{
		"CREATE DATABASE IF NOT EXISTS " + database,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			computed_at DateTime64(3),
			underlying String,
			spot Float64,
			strike Float64,
			gex Float64,
			net_gamma Float64
		) ENGINE=MergeTree ORDER BY (underlying, computed_at, strike)`, table),
	}
}

func (h *ClickHouseHistory) Record(ctx context.Context, s *models.ExposureSnapshot) error {
	if len(s.ByStrike) == 0 {
		return nil
	}

	// one multi-row insert per snapshot
	var b strings.Builder
	b.WriteString(fmt.Sprintf("INSERT INTO %s (computed_at, underlying, spot, strike, gex, net_gamma) VALUES ", h.table))
	args := make([]interface{}, 0, len(s.ByStrike)*6)
	first := true
	for strike, gex := range s.ByStrike {
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString("(?, ?, ?, ?, ?, ?)")
		args = append(args, s.ComputedAt, s.Underlying, s.Spot, strike, gex, s.NetGammaByStrike[strike])
	}

	if _, err := h.db.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("insert snapshot history: %w", err)
	}
	return nil
}

func (h *ClickHouseHistory) Close() error { return nil }
