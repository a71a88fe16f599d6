// Package compress reduces image byte size before upload. Compression is
// an optimization, never a correctness dependency: every failure path
// passes the original bytes through unchanged.
package compress

import (
	"bytes"
	"log/slog"

	"github.com/disintegration/imaging"
)

// Options holds the compression decision thresholds.
type Options struct {
	// TargetBytes is the ceiling under which compression is skipped.
	TargetBytes int64
	// MaxDimension bounds the longer image side after resizing.
	MaxDimension int
	// Quality is the JPEG re-encode quality (1-100).
	Quality int
}

// DefaultOptions returns the standard targets: skip at or below 1MiB,
// resize to 1920px, re-encode at quality 80.
func DefaultOptions() Options {
	return Options{
		TargetBytes:  1 << 20,
		MaxDimension: 1920,
		Quality:      80,
	}
}

// Result is the compression outcome. Data is never larger than the input.
type Result struct {
	Data     []byte
	MimeType string
	// Applied reports whether the re-encoded bytes were used.
	Applied bool
}

// Image compresses image bytes in a single pass: decode, resize so the
// longer dimension does not exceed opts.MaxDimension, re-encode as JPEG at
// opts.Quality. Inputs at or below opts.TargetBytes skip compression. When
// the encoder produces a larger result, or decoding fails, the original
// bytes are returned with the original MIME type.
func Image(data []byte, origMime string, opts Options, log *slog.Logger) Result {
	passthrough := Result{Data: data, MimeType: origMime}

	if opts.TargetBytes > 0 && int64(len(data)) <= opts.TargetBytes {
		return passthrough
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		if log != nil {
			log.Debug("image decode failed, skipping compression", slog.String("error", err.Error()))
		}
		return passthrough
	}

	bounds := img.Bounds()
	if opts.MaxDimension > 0 && (bounds.Dx() > opts.MaxDimension || bounds.Dy() > opts.MaxDimension) {
		img = imaging.Fit(img, opts.MaxDimension, opts.MaxDimension, imaging.Lanczos)
	}

	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		if log != nil {
			log.Debug("image encode failed, keeping original", slog.String("error", err.Error()))
		}
		return passthrough
	}

	// Never hand back more bytes than we were given.
	if buf.Len() >= len(data) {
		return passthrough
	}
	return Result{Data: buf.Bytes(), MimeType: "image/jpeg", Applied: true}
}
