package preview

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/lumenpress/mediaflow/internal/media"
)

func TestRegistryAcquireRelease(t *testing.T) {
	r, err := NewRegistry(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	path, err := r.Acquire("item-1", []byte("preview bytes"), ".jpg")
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("preview file missing: %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}

	if !r.Release("item-1") {
		t.Fatal("first release should report a live reference")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("preview file should be deleted on release")
	}
	if r.Len() != 0 {
		t.Fatalf("Len = %d after release", r.Len())
	}

	// Exactly once: a second release is a no-op.
	if r.Release("item-1") {
		t.Fatal("second release must be a no-op")
	}
}

func TestRegistryDoubleAcquireFails(t *testing.T) {
	r, err := NewRegistry(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Acquire("item-1", []byte("a"), ".jpg"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Acquire("item-1", []byte("b"), ".jpg"); err == nil {
		t.Fatal("expected duplicate acquire to fail")
	}
}

func TestRegistryClose(t *testing.T) {
	r, err := NewRegistry(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p1, _ := r.Acquire("a", []byte("1"), ".jpg")
	p2, _ := r.Acquire("b", []byte("2"), ".jpg")

	r.Close()
	if r.Len() != 0 {
		t.Fatalf("Len = %d after Close", r.Len())
	}
	for _, p := range []string{p1, p2} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("file %s should be removed", p)
		}
	}
}

func TestRegistryCloseRemovesOwnedDir(t *testing.T) {
	r, err := NewRegistry("")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Acquire("a", []byte("1"), ".jpg"); err != nil {
		t.Fatal(err)
	}

	r.Close()
	if _, err := os.Stat(r.dir); !os.IsNotExist(err) {
		t.Fatalf("self-created dir %s should be removed on Close", r.dir)
	}
}

func TestRegistryCloseKeepsCallerDir(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRegistry(dir)
	if err != nil {
		t.Fatal(err)
	}
	r.Close()
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("caller-supplied dir must survive Close: %v", err)
	}
}

func TestThumbnailCoverArt(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1000, 700))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	g := NewGenerator(slog.Default())
	meta := media.Metadata{
		Category: media.CategoryAudio,
		Audio:    &media.AudioMeta{CoverArt: buf.Bytes(), CoverArtMime: "image/png"},
	}
	thumb, ok := g.Thumbnail(context.Background(), "", media.CategoryAudio, meta)
	if !ok || len(thumb) == 0 {
		t.Fatal("expected cover art thumbnail")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if cfg.Width > thumbMaxDimension || cfg.Height > thumbMaxDimension {
		t.Fatalf("thumbnail %dx%d exceeds bound", cfg.Width, cfg.Height)
	}
}

func TestThumbnailAudioWithoutArt(t *testing.T) {
	g := NewGenerator(slog.Default())
	meta := media.Metadata{Category: media.CategoryAudio, Audio: &media.AudioMeta{}}
	if _, ok := g.Thumbnail(context.Background(), "", media.CategoryAudio, meta); ok {
		t.Fatal("expected no thumbnail without cover art")
	}
}

func TestThumbnailImageCategoryNeedsNone(t *testing.T) {
	g := NewGenerator(slog.Default())
	if _, ok := g.Thumbnail(context.Background(), "", media.CategoryImage, media.Metadata{}); ok {
		t.Fatal("images need no thumbnail")
	}
}

// Frame capture on an unparseable container yields no thumbnail whether or
// not the encoder is installed.
func TestThumbnailVideoGarbageDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("not a video"), 0o600); err != nil {
		t.Fatal(err)
	}
	g := NewGenerator(slog.Default())
	if _, ok := g.Thumbnail(context.Background(), path, media.CategoryVideo, media.Metadata{}); ok {
		t.Fatal("expected no thumbnail from garbage input")
	}
}

func TestThumbnailVideoFrame(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available")
	}
	path := filepath.Join(t.TempDir(), "clip.mp4")
	cmd := exec.Command("ffmpeg",
		"-f", "lavfi",
		"-i", fmt.Sprintf("testsrc=duration=%d:size=64x64:rate=10", 1),
		"-pix_fmt", "yuv420p",
		path,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("ffmpeg synthesis failed: %v: %s", err, out)
	}

	g := NewGenerator(slog.Default())
	thumb, ok := g.Thumbnail(context.Background(), path, media.CategoryVideo, media.Metadata{})
	if !ok || len(thumb) == 0 {
		t.Fatal("expected a frame-zero thumbnail")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if format != "jpeg" {
		t.Fatalf("thumbnail format = %s, want jpeg", format)
	}
	if cfg.Width > thumbMaxDimension || cfg.Height > thumbMaxDimension {
		t.Fatalf("thumbnail %dx%d exceeds bound", cfg.Width, cfg.Height)
	}
}
