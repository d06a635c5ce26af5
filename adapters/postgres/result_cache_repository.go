package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gonzs/domain/core"
	"gonzs/ports"

	"github.com/jmoiron/sqlx"
)

// ResultCacheRepositoryImpl implements ports.ResultCachePort for PostgreSQL
type ResultCacheRepositoryImpl struct {
	db *sqlx.DB
}

// NewResultCacheRepository creates a new PostgreSQL result cache
func NewResultCacheRepository(db *sqlx.DB) ports.ResultCachePort {
	return &ResultCacheRepositoryImpl{db: db}
}

type resultRow struct {
	Fingerprint string    `db:"fingerprint"`
	Kind        string    `db:"kind"`
	AnalysisID  string    `db:"analysis_id"`
	Payload     []byte    `db:"payload"`
	CreatedAt   time.Time `db:"created_at"`
}

// Get retrieves a memoized result by fingerprint and kind
func (r *ResultCacheRepositoryImpl) Get(ctx context.Context, fingerprint core.Hash, kind ports.ResultKind) (*ports.CachedResult, error) {
	var row resultRow
	err := r.db.GetContext(ctx, &row, `
		SELECT fingerprint, kind, analysis_id, payload, created_at
		FROM association_results
		WHERE fingerprint = $1 AND kind = $2
	`, fingerprint.String(), string(kind))

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrResultNotFound
		}
		return nil, err
	}

	return &ports.CachedResult{
		Fingerprint: core.Hash(row.Fingerprint),
		Kind:        ports.ResultKind(row.Kind),
		AnalysisID:  core.AnalysisID(row.AnalysisID),
		Payload:     row.Payload,
		CreatedAt:   row.CreatedAt,
	}, nil
}

// Put stores a result, replacing an earlier one with the same fingerprint and kind
func (r *ResultCacheRepositoryImpl) Put(ctx context.Context, result ports.CachedResult) error {
	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO association_results (fingerprint, kind, analysis_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (fingerprint, kind)
		DO UPDATE SET analysis_id = EXCLUDED.analysis_id, payload = EXCLUDED.payload, created_at = EXCLUDED.created_at
	`, result.Fingerprint.String(), string(result.Kind), result.AnalysisID.String(), result.Payload, createdAt)

	return err
}
