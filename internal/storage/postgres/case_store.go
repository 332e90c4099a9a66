// Package postgres provides Postgres-backed persistence for scraped case
// records.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Fennzo/CourtScrapper/internal/courts"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// CaseStoreConfig controls the Postgres connection pool used for case rows.
type CaseStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// CaseStore writes case records into Postgres. A (run_id, case_number) pair
// is written at most once; replays are no-ops.
type CaseStore struct {
	pool  execCloser
	table string
}

// NewCaseStore creates a Postgres-backed CaseStore using the provided config.
func NewCaseStore(ctx context.Context, cfg CaseStoreConfig) (*CaseStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "case_records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &CaseStore{pool: pool, table: table}, nil
}

// NewCaseStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewCaseStoreWithPool(pool execCloser, table string) (*CaseStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "case_records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &CaseStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *CaseStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// SaveRecords inserts the given records for one run. Invalid records are
// rejected before any row is written.
func (s *CaseStore) SaveRecords(ctx context.Context, runID string, records []courts.CaseRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("case store is not configured")
	}
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	for _, rec := range records {
		if !rec.Valid() {
			return fmt.Errorf("record %q is missing required fields %v", rec.CaseNumber, rec.MissingFields())
		}
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	case_number,
	file_date,
	judicial_officer,
	case_status,
	case_type,
	charge_description,
	bond_amount,
	disposition,
	sentencing_info,
	attorney_name,
	attorney_first_name,
	attorney_last_name
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (run_id, case_number) DO NOTHING`, s.table)

	for _, rec := range records {
		if _, err := s.pool.Exec(ctx, query,
			runID,
			rec.CaseNumber,
			rec.FileDate,
			rec.JudicialOfficer,
			rec.CaseStatus,
			rec.CaseType,
			rec.ChargeDescription,
			rec.BondAmount,
			rec.Disposition,
			rec.SentencingInfo,
			rec.AttorneyName,
			rec.AttorneyFirstName,
			rec.AttorneyLastName,
		); err != nil {
			return fmt.Errorf("insert case %q: %w", rec.CaseNumber, err)
		}
	}
	return nil
}
