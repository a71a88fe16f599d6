package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the PostgreSQL-backed usage accounting store. Organizations
// without a row fall back to the configured default limit.
type PGStore struct {
	pool         *pgxpool.Pool
	defaultLimit int64
}

// NewPGStore creates a store over pool with the default per-org limit in bytes.
func NewPGStore(pool *pgxpool.Pool, defaultLimit int64) *PGStore {
	return &PGStore{pool: pool, defaultLimit: defaultLimit}
}

// Usage reads the usage row for orgID. The read is eventually consistent
// and advisory; see Guard.
func (s *PGStore) Usage(ctx context.Context, orgID string) (Status, error) {
	if strings.TrimSpace(orgID) == "" {
		return Status{}, fmt.Errorf("org id is required")
	}

	var status Status
	err := s.pool.QueryRow(ctx,
		`SELECT used_bytes, limit_bytes, unlimited FROM storage_usage WHERE org_id = $1`,
		orgID,
	).Scan(&status.UsedBytes, &status.LimitBytes, &status.Unlimited)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Status{LimitBytes: s.defaultLimit}, nil
		}
		return Status{}, err
	}
	return status, nil
}

// AddUsage adds delta bytes to the org's accounting row, creating it with
// the default limit when absent.
func (s *PGStore) AddUsage(ctx context.Context, orgID string, delta int64) error {
	if strings.TrimSpace(orgID) == "" {
		return fmt.Errorf("org id is required")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO storage_usage (org_id, used_bytes, limit_bytes, unlimited)
		 VALUES ($1, $2, $3, false)
		 ON CONFLICT (org_id)
		 DO UPDATE SET used_bytes = storage_usage.used_bytes + EXCLUDED.used_bytes,
		               updated_at = now()`,
		orgID, delta, s.defaultLimit,
	)
	return err
}
