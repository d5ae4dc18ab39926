package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mkuhn/sortmeister/internal/core/domain"
)

type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *HistoryRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS history_records (
	id TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	features JSONB NOT NULL,
	destination TEXT NOT NULL,
	chosen_name TEXT,
	source TEXT NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_recorded_at ON history_records(recorded_at);
CREATE INDEX IF NOT EXISTS idx_history_destination ON history_records(destination);

-- Additive columns only; old rows default to absent.
ALTER TABLE history_records ADD COLUMN IF NOT EXISTS chosen_name TEXT;
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *HistoryRepository) Append(ctx context.Context, record domain.HistoryRecord) error {
	featuresJSON, err := json.Marshal(record.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO history_records (id, fingerprint, features, destination, chosen_name, source, recorded_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		record.ID, record.Fingerprint, featuresJSON, record.Destination,
		record.ChosenName, string(record.Source), record.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history record: %w", err)
	}
	return nil
}

func (r *HistoryRepository) AllRecords(ctx context.Context) ([]domain.HistoryRecord, error) {
	return r.queryRecords(ctx, `
SELECT id, fingerprint, features, destination, chosen_name, source, recorded_at
FROM history_records
ORDER BY recorded_at, id
`)
}

func (r *HistoryRepository) RecordsSince(ctx context.Context, marker time.Time) ([]domain.HistoryRecord, error) {
	return r.queryRecords(ctx, `
SELECT id, fingerprint, features, destination, chosen_name, source, recorded_at
FROM history_records
WHERE recorded_at > $1
ORDER BY recorded_at, id
`, marker)
}

func (r *HistoryRepository) FolderStats(ctx context.Context) ([]domain.FolderStats, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT destination, COUNT(*), MAX(recorded_at)
FROM history_records
GROUP BY destination
ORDER BY COUNT(*) DESC, destination
`)
	if err != nil {
		return nil, fmt.Errorf("query folder stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.FolderStats
	for rows.Next() {
		var s domain.FolderStats
		if err := rows.Scan(&s.Path, &s.UseCount, &s.LastUsed); err != nil {
			return nil, fmt.Errorf("scan folder stats: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folder stats: %w", err)
	}
	return stats, nil
}

func (r *HistoryRepository) queryRecords(ctx context.Context, query string, args ...any) ([]domain.HistoryRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history records: %w", err)
	}
	defer rows.Close()

	var records []domain.HistoryRecord
	for rows.Next() {
		var record domain.HistoryRecord
		var featuresRaw []byte
		var chosenName sql.NullString
		var source string
		if err := rows.Scan(&record.ID, &record.Fingerprint, &featuresRaw, &record.Destination, &chosenName, &source, &record.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		if err := json.Unmarshal(featuresRaw, &record.Features); err != nil {
			return nil, fmt.Errorf("unmarshal features: %w", err)
		}
		record.ChosenName = chosenName.String
		record.Source = domain.DecisionSource(source)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history records: %w", err)
	}
	return records, nil
}
