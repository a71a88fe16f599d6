package quota

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type fakeStore struct {
	status Status
	err    error
	added  int64
}

func (f *fakeStore) Usage(ctx context.Context, orgID string) (Status, error) {
	return f.status, f.err
}

func (f *fakeStore) AddUsage(ctx context.Context, orgID string, delta int64) error {
	f.added += delta
	return nil
}

func TestCheckUnlimitedAlwaysPasses(t *testing.T) {
	g := NewGuard(slog.Default(), &fakeStore{status: Status{Unlimited: true, UsedBytes: 1 << 40}}, 90)
	d, err := g.Check(context.Background(), "org", 1<<40)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Warning {
		t.Fatal("unlimited orgs never warn")
	}
}

func TestCheckRejectsOverBudget(t *testing.T) {
	// 9.7GB used of a 10GB limit; a 500MB batch must be rejected with the
	// remaining ~0.3GB stated.
	limit := float64(10 << 30)
	used := int64(limit * 0.97)
	g := NewGuard(slog.Default(), &fakeStore{status: Status{UsedBytes: used, LimitBytes: 10 << 30}}, 90)

	_, err := g.Check(context.Background(), "org", 500<<20)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if !strings.Contains(err.Error(), "307.2 MB remaining") {
		t.Fatalf("message should state remaining budget, got %q", err.Error())
	}
}

func TestCheckWarnsNearLimit(t *testing.T) {
	g := NewGuard(slog.Default(), &fakeStore{status: Status{UsedBytes: 92, LimitBytes: 100}}, 90)
	d, err := g.Check(context.Background(), "org", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Warning {
		t.Fatal("expected warning at 92% usage")
	}
}

func TestWarningMessage(t *testing.T) {
	d := Decision{Status: Status{UsedBytes: 92 << 20, LimitBytes: 100 << 20}, Warning: true}
	msg := d.WarningMessage()
	if !strings.Contains(msg, "92%") || !strings.Contains(msg, "100.0 MB") {
		t.Fatalf("message should state percentage and limit, got %q", msg)
	}
	if got := (Decision{Status: d.Status}).WarningMessage(); got != "" {
		t.Fatalf("no warning means no message, got %q", got)
	}
}

func TestCheckNoWarnBelowThreshold(t *testing.T) {
	g := NewGuard(slog.Default(), &fakeStore{status: Status{UsedBytes: 50, LimitBytes: 100}}, 90)
	d, err := g.Check(context.Background(), "org", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Warning {
		t.Fatal("unexpected warning at 50% usage")
	}
}

func TestCheckExactFitPasses(t *testing.T) {
	g := NewGuard(slog.Default(), &fakeStore{status: Status{UsedBytes: 40, LimitBytes: 100}}, 90)
	if _, err := g.Check(context.Background(), "org", 60); err != nil {
		t.Fatalf("batch that exactly fits must pass, got %v", err)
	}
	if _, err := g.Check(context.Background(), "org", 61); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("one byte over must reject, got %v", err)
	}
}

func TestRemaining(t *testing.T) {
	if r := (Status{UsedBytes: 120, LimitBytes: 100}).Remaining(); r != 0 {
		t.Fatalf("overshot remaining = %d, want 0", r)
	}
	if r := (Status{UsedBytes: 30, LimitBytes: 100}).Remaining(); r != 70 {
		t.Fatalf("remaining = %d, want 70", r)
	}
}
