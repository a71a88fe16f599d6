package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestFSProviderRoundTrip(t *testing.T) {
	p, err := NewFSProvider(t.TempDir(), "https://cdn.example.com")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := p.Put(ctx, "media/1700000000000_abc.jpg", strings.NewReader("payload"), "image/jpeg"); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	rc, err := p.Open(ctx, "media/1700000000000_abc.jpg")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	raw, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil || string(raw) != "payload" {
		t.Fatalf("read back %q, err %v", raw, err)
	}

	if got := p.PublicURL("media/1700000000000_abc.jpg"); got != "https://cdn.example.com/media/1700000000000_abc.jpg" {
		t.Fatalf("PublicURL = %q", got)
	}

	if err := p.Delete(ctx, "media/1700000000000_abc.jpg"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := p.Open(ctx, "media/1700000000000_abc.jpg"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// Deleting again is not an error.
	if err := p.Delete(ctx, "media/1700000000000_abc.jpg"); err != nil {
		t.Fatalf("second Delete returned error: %v", err)
	}
}

func TestFSProviderRejectsTraversal(t *testing.T) {
	p, err := NewFSProvider(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Put(context.Background(), "../escape", strings.NewReader("x"), ""); err == nil {
		t.Fatal("expected traversal key to be rejected")
	}
}
