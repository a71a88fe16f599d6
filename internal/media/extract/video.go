package extract

import (
	"context"
	"log/slog"
	"time"

	ffprobe "gopkg.in/vansante/go-ffprobe.v2"

	"github.com/lumenpress/mediaflow/internal/media"
)

const probeTimeout = 15 * time.Second

// videoMeta probes the container for its reported duration. The duration
// is wanted on the record but a failed probe degrades to an absent field,
// never a pipeline failure.
func (e *Extractor) videoMeta(ctx context.Context, localPath string, f media.File) *media.VideoMeta {
	meta := &media.VideoMeta{}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	data, err := ffprobe.ProbeURL(probeCtx, localPath)
	if err != nil {
		e.logger.Debug("video duration probe failed",
			slog.String("file", f.Name), slog.String("error", err.Error()))
		return meta
	}

	if d := data.Format.DurationSeconds; d > 0 {
		meta.DurationSeconds = &d
	}
	return meta
}
