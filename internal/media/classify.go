package media

import (
	"fmt"
	"path"
	"strings"
)

// Limits holds per-category upload ceilings in bytes.
type Limits struct {
	Image    int64
	Video    int64
	Audio    int64
	Document int64
}

// DefaultLimits returns the standard per-category ceilings:
// image 10MiB, video 100MiB, audio 50MiB, document 25MiB.
func DefaultLimits() Limits {
	return Limits{
		Image:    10 << 20,
		Video:    100 << 20,
		Audio:    50 << 20,
		Document: 25 << 20,
	}
}

// For returns the ceiling for a category, or 0 for unsupported.
func (l Limits) For(c Category) int64 {
	switch c {
	case CategoryImage:
		return l.Image
	case CategoryVideo:
		return l.Video
	case CategoryAudio:
		return l.Audio
	case CategoryDocument:
		return l.Document
	}
	return 0
}

// Classify determines the media category of a file. It is a pure function
// of the declared content type and the filename: the declared type wins,
// and the filename extension is consulted only when the declared type is
// absent or generic.
func Classify(contentType, filename string) Category {
	mime := NormalizeMime(contentType)
	if !GenericMime(mime) {
		switch {
		case strings.HasPrefix(mime, "image/"):
			return CategoryImage
		case strings.HasPrefix(mime, "video/"):
			return CategoryVideo
		case strings.HasPrefix(mime, "audio/"):
			return CategoryAudio
		case documentTypes[mime]:
			return CategoryDocument
		}
		return CategoryUnsupported
	}

	ext := strings.ToLower(path.Ext(filename))
	if cat, ok := extensionCategories[ext]; ok {
		return cat
	}
	return CategoryUnsupported
}

// Validate classifies f and enforces the caller's allow-set and the
// per-category size ceiling. It is synchronous and must run before any
// asynchronous work: a rejected file triggers no extraction and no
// network call.
func Validate(f File, allowed []Category, limits Limits) ValidationResult {
	cat := Classify(f.ContentType, f.Name)
	if cat == CategoryUnsupported {
		return ValidationResult{
			Category: CategoryUnsupported,
			Reason:   RejectUnsupportedType,
			Message:  fmt.Sprintf("%s: unsupported file type", f.Name),
		}
	}

	if len(allowed) > 0 && !categoryAllowed(cat, allowed) {
		return ValidationResult{
			Category: cat,
			Reason:   RejectUnsupportedType,
			Message:  fmt.Sprintf("%s: %s files are not accepted here", f.Name, cat),
		}
	}

	if limit := limits.For(cat); limit > 0 && f.Size > limit {
		return ValidationResult{
			Category: cat,
			Reason:   RejectSizeExceeded,
			Message:  fmt.Sprintf("%s: %s exceeds the %s limit of %s", f.Name, FormatBytes(f.Size), cat, FormatBytes(limit)),
		}
	}

	return ValidationResult{Accepted: true, Category: cat}
}

func categoryAllowed(cat Category, allowed []Category) bool {
	for _, a := range allowed {
		if a == cat {
			return true
		}
	}
	return false
}

// FormatBytes renders a byte count for user-facing messages (e.g. "1.5 GB").
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
