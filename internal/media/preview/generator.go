package preview

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"github.com/lumenpress/mediaflow/internal/media"
)

const (
	captureTimeout = 20 * time.Second

	// Thumbnails are bounded to this square and re-encoded as JPEG.
	thumbMaxDimension = 640
	thumbQuality      = 75
)

// Generator produces thumbnail bytes for categories that need one. Every
// failure branch yields "no thumbnail", never an error: callers fall back
// to iconography.
type Generator struct {
	logger *slog.Logger

	ffmpegPath   string
	pdftoppmPath string
}

// NewGenerator creates a generator, resolving the external tools it can
// find on PATH. Missing tools disable the corresponding branch.
func NewGenerator(log *slog.Logger) *Generator {
	if log == nil {
		log = slog.Default()
	}
	g := &Generator{logger: log.With(slog.String("component", "preview"))}
	if p, err := exec.LookPath("ffmpeg"); err == nil {
		g.ffmpegPath = p
	}
	if p, err := exec.LookPath("pdftoppm"); err == nil {
		g.pdftoppmPath = p
	}
	return g
}

// Thumbnail returns thumbnail JPEG bytes for the spooled file, or ok=false
// when the category needs none or generation degraded.
func (g *Generator) Thumbnail(ctx context.Context, localPath string, cat media.Category, meta media.Metadata) ([]byte, bool) {
	switch cat {
	case media.CategoryVideo:
		return g.videoFrame(ctx, localPath)
	case media.CategoryAudio:
		return g.coverArt(meta)
	case media.CategoryDocument:
		return g.documentPage(ctx, localPath)
	}
	return nil, false
}

// videoFrame captures the frame at time zero and re-encodes it as a
// compressed JPEG.
func (g *Generator) videoFrame(ctx context.Context, localPath string) ([]byte, bool) {
	if g.ffmpegPath == "" {
		g.logger.Debug("ffmpeg not found, skipping video thumbnail")
		return nil, false
	}

	execCtx, cancel := context.WithTimeout(ctx, captureTimeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(execCtx, g.ffmpegPath,
		"-ss", "0",
		"-i", localPath,
		"-frames:v", "1",
		"-f", "image2",
		"-vcodec", "mjpeg",
		"pipe:1",
	)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		g.logger.Debug("video frame capture failed", slog.String("error", err.Error()))
		return nil, false
	}
	return g.shrink(out.Bytes())
}

// coverArt reuses the embedded art found during tag extraction; without it
// no thumbnail is produced.
func (g *Generator) coverArt(meta media.Metadata) ([]byte, bool) {
	if meta.Audio == nil || len(meta.Audio.CoverArt) == 0 {
		return nil, false
	}
	return g.shrink(meta.Audio.CoverArt)
}

// documentPage renders the first page to an image. The renderer is an
// optional external tool; its absence is a known degradation, not a defect.
func (g *Generator) documentPage(ctx context.Context, localPath string) ([]byte, bool) {
	if g.pdftoppmPath == "" {
		g.logger.Debug("pdftoppm not found, skipping document thumbnail")
		return nil, false
	}

	execCtx, cancel := context.WithTimeout(ctx, captureTimeout)
	defer cancel()

	dir, err := os.MkdirTemp("", "mediaflow-page-*")
	if err != nil {
		return nil, false
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	cmd := exec.CommandContext(execCtx, g.pdftoppmPath,
		"-jpeg", "-f", "1", "-l", "1", "-singlefile",
		localPath, prefix,
	)
	if err := cmd.Run(); err != nil {
		g.logger.Debug("document page render failed", slog.String("error", err.Error()))
		return nil, false
	}
	raw, err := os.ReadFile(prefix + ".jpg")
	if err != nil {
		return nil, false
	}
	return g.shrink(raw)
}

// shrink bounds thumbnail bytes to thumbMaxDimension and re-encodes as
// JPEG. Undecodable input is passed through as-is rather than dropped:
// the bytes came from an encoder we just ran or from embedded art.
func (g *Generator) shrink(data []byte) ([]byte, bool) {
	if len(data) == 0 {
		return nil, false
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return data, true
	}
	bounds := img.Bounds()
	if bounds.Dx() > thumbMaxDimension || bounds.Dy() > thumbMaxDimension {
		img = imaging.Fit(img, thumbMaxDimension, thumbMaxDimension, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(thumbQuality)); err != nil {
		return data, true
	}
	return buf.Bytes(), true
}
