// Package quota implements the advisory storage budget check that runs
// once per batch before any upload.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lumenpress/mediaflow/internal/media"
)

// ErrQuotaExceeded rejects a whole batch before any byte is transferred.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Status is the read-only usage snapshot for an organization.
type Status struct {
	UsedBytes  int64 `json:"used_bytes"`
	LimitBytes int64 `json:"limit_bytes"`
	Unlimited  bool  `json:"unlimited"`
}

// Remaining returns the unspent budget; it is meaningless when Unlimited.
func (s Status) Remaining() int64 {
	r := s.LimitBytes - s.UsedBytes
	if r < 0 {
		return 0
	}
	return r
}

// Store reads and updates per-organization usage accounting.
type Store interface {
	// Usage returns the current usage snapshot for an organization.
	Usage(ctx context.Context, orgID string) (Status, error)
	// AddUsage records additional stored bytes after a durable upload.
	AddUsage(ctx context.Context, orgID string, delta int64) error
}

// Decision is the outcome of a batch-level quota check.
type Decision struct {
	Status  Status
	Warning bool
}

// WarningMessage renders the near-limit warning for callers. It is empty
// when the decision carries none.
func (d Decision) WarningMessage() string {
	if !d.Warning || d.Status.LimitBytes <= 0 {
		return ""
	}
	pct := d.Status.UsedBytes * 100 / d.Status.LimitBytes
	return fmt.Sprintf("storage usage at %d%% of the %s limit", pct, media.FormatBytes(d.Status.LimitBytes))
}

// Guard performs the advisory pre-upload check. The check is read-then-act
// with no atomicity across sessions: two concurrent batches of one
// organization can both pass and jointly overshoot the limit. That gap is
// a documented property of the accounting model, not a bug to paper over.
type Guard struct {
	store       Store
	warnPercent int
	logger      *slog.Logger
}

// NewGuard creates a guard that warns at warnPercent usage (default 90).
func NewGuard(log *slog.Logger, store Store, warnPercent int) *Guard {
	if log == nil {
		log = slog.Default()
	}
	if warnPercent <= 0 || warnPercent > 100 {
		warnPercent = 90
	}
	return &Guard{
		store:       store,
		warnPercent: warnPercent,
		logger:      log.With(slog.String("component", "quota")),
	}
}

// Check reads usage once and decides whether addedBytes fits. On rejection
// the error wraps ErrQuotaExceeded and states the remaining budget. A
// passing check may carry a non-blocking warning when usage is at or above
// the warn threshold.
func (g *Guard) Check(ctx context.Context, orgID string, addedBytes int64) (Decision, error) {
	status, err := g.store.Usage(ctx, orgID)
	if err != nil {
		return Decision{}, fmt.Errorf("read storage usage: %w", err)
	}

	if status.Unlimited {
		return Decision{Status: status}, nil
	}

	remaining := status.Remaining()
	if addedBytes > remaining {
		return Decision{Status: status}, fmt.Errorf("%w: %s remaining, %s requested",
			ErrQuotaExceeded, media.FormatBytes(remaining), media.FormatBytes(addedBytes))
	}

	decision := Decision{Status: status}
	if status.LimitBytes > 0 && status.UsedBytes*100 >= status.LimitBytes*int64(g.warnPercent) {
		decision.Warning = true
		g.logger.Warn("storage usage near limit",
			slog.String("org_id", orgID),
			slog.Int64("used_bytes", status.UsedBytes),
			slog.Int64("limit_bytes", status.LimitBytes),
		)
	}
	return decision, nil
}
