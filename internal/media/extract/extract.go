// Package extract performs per-category metadata enrichment. Extraction is
// best effort and never a hard gate: every failure is logged and folded
// into absent fields, and the pipeline continues with whatever was
// successfully obtained.
package extract

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"

	"github.com/lumenpress/mediaflow/internal/media"
)

// Extractor enriches spooled files with category-specific metadata.
type Extractor struct {
	logger *slog.Logger
}

// New creates an extractor.
func New(log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{logger: log.With(slog.String("component", "extract"))}
}

// Extract reads category-specific metadata from the spooled file at
// localPath. The returned Metadata always has Category set; any subset of
// the variant's optional fields may be populated. Extract never returns an
// error; soft failures degrade to absent fields.
func (e *Extractor) Extract(ctx context.Context, localPath string, f media.File, cat media.Category) media.Metadata {
	meta := media.Metadata{Category: cat}

	switch cat {
	case media.CategoryImage:
		meta.Image = e.imageMeta(localPath, f)
	case media.CategoryVideo:
		meta.Video = e.videoMeta(ctx, localPath, f)
	case media.CategoryAudio:
		meta.Audio = e.audioMeta(ctx, localPath, f)
	case media.CategoryDocument:
		meta.Document = e.documentMeta(localPath, f)
	}
	return meta
}

// imageMeta reads pixel dimensions from the image header. Validation has
// already captured size and type; dimensions are the only enrichment.
func (e *Extractor) imageMeta(localPath string, f media.File) *media.ImageMeta {
	file, err := os.Open(localPath)
	if err != nil {
		e.logger.Debug("open image for enrichment failed",
			slog.String("file", f.Name), slog.String("error", err.Error()))
		return &media.ImageMeta{}
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		e.logger.Debug("image dimension probe failed",
			slog.String("file", f.Name), slog.String("error", err.Error()))
		return &media.ImageMeta{}
	}
	return &media.ImageMeta{Width: cfg.Width, Height: cfg.Height}
}
