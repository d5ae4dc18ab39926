package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mkuhn/sortmeister/internal/core/domain"
)

type CacheRepository struct {
	db *sql.DB
}

func NewCacheRepository(db *sql.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

func (r *CacheRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083102)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS analysis_cache (
	fingerprint TEXT PRIMARY KEY,
	features JSONB NOT NULL,
	suggestions JSONB NOT NULL DEFAULT '[]'::jsonb,
	state TEXT NOT NULL,
	priority INT NOT NULL DEFAULT 10,
	error_message TEXT,
	computed_at TIMESTAMPTZ NOT NULL,
	last_accessed TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_last_accessed ON analysis_cache(last_accessed);

ALTER TABLE analysis_cache ADD COLUMN IF NOT EXISTS names JSONB;
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *CacheRepository) Get(ctx context.Context, fingerprint string) (*domain.CacheEntry, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT fingerprint, features, suggestions, names, state, priority, error_message, computed_at, last_accessed
FROM analysis_cache
WHERE fingerprint = $1
`, fingerprint)

	var entry domain.CacheEntry
	var featuresRaw, suggestionsRaw []byte
	var namesRaw []byte
	var state string
	var errMessage sql.NullString

	err := row.Scan(
		&entry.Fingerprint, &featuresRaw, &suggestionsRaw, &namesRaw, &state,
		&entry.Priority, &errMessage, &entry.ComputedAt, &entry.LastAccessed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan cache entry: %w", err)
	}

	if err := json.Unmarshal(featuresRaw, &entry.Features); err != nil {
		return nil, fmt.Errorf("unmarshal features: %w", err)
	}
	if err := json.Unmarshal(suggestionsRaw, &entry.Suggestions); err != nil {
		return nil, fmt.Errorf("unmarshal suggestions: %w", err)
	}
	if len(namesRaw) > 0 {
		if err := json.Unmarshal(namesRaw, &entry.Names); err != nil {
			return nil, fmt.Errorf("unmarshal names: %w", err)
		}
	}
	entry.State = domain.AnalysisState(state)
	entry.Error = errMessage.String
	return &entry, nil
}

func (r *CacheRepository) Put(ctx context.Context, entry *domain.CacheEntry) error {
	featuresJSON, err := json.Marshal(entry.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	suggestionsJSON, err := json.Marshal(entry.Suggestions)
	if err != nil {
		return fmt.Errorf("marshal suggestions: %w", err)
	}
	namesJSON, err := json.Marshal(entry.Names)
	if err != nil {
		return fmt.Errorf("marshal names: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO analysis_cache (fingerprint, features, suggestions, names, state, priority, error_message, computed_at, last_accessed)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (fingerprint) DO UPDATE SET
	features = EXCLUDED.features,
	suggestions = EXCLUDED.suggestions,
	names = EXCLUDED.names,
	state = EXCLUDED.state,
	priority = EXCLUDED.priority,
	error_message = EXCLUDED.error_message,
	computed_at = EXCLUDED.computed_at,
	last_accessed = EXCLUDED.last_accessed
`,
		entry.Fingerprint, featuresJSON, suggestionsJSON, namesJSON, string(entry.State),
		int(entry.Priority), entry.Error, entry.ComputedAt, entry.LastAccessed,
	)
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

func (r *CacheRepository) Delete(ctx context.Context, fingerprint string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM analysis_cache WHERE fingerprint = $1`, fingerprint); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

func (r *CacheRepository) TouchAccess(ctx context.Context, fingerprint string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `
UPDATE analysis_cache SET last_accessed = $2 WHERE fingerprint = $1
`, fingerprint, at); err != nil {
		return fmt.Errorf("touch cache entry: %w", err)
	}
	return nil
}
