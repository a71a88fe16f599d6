// Package pipeline sequences ingestion per file: validate, enrich and
// compress, check the batch against the storage budget, upload durably,
// and return normalized records. Uploads within a batch are serialized so
// the single quota pre-check stays coherent with what is transferred;
// enrichment runs concurrently ahead of each file's turn.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumenpress/mediaflow/internal/media"
	"github.com/lumenpress/mediaflow/internal/media/compress"
	"github.com/lumenpress/mediaflow/internal/media/extract"
	"github.com/lumenpress/mediaflow/internal/media/preview"
	"github.com/lumenpress/mediaflow/internal/quota"
	"github.com/lumenpress/mediaflow/internal/storage"
)

// ErrTooManyFiles is returned by Batch.Add past the configured maximum.
var ErrTooManyFiles = errors.New("batch file limit reached")

// Options configures one batch submission.
type Options struct {
	// OrgID owns the storage budget the batch is checked against.
	OrgID string
	// AllowedCategories is the caller's allow-set; empty accepts every
	// supported category.
	AllowedCategories []media.Category
	// PathPrefix is the logical prefix of uploaded object keys.
	PathPrefix string
	// MaxFiles bounds the batch size; 0 means the default of 10.
	MaxFiles int
	// Compress enables image compression before upload.
	Compress bool
	// Limits are the per-category size ceilings; zero values fall back to
	// the defaults.
	Limits media.Limits
	// Compression holds the image compression thresholds.
	Compression compress.Options
}

func (o Options) withDefaults() Options {
	if o.PathPrefix == "" {
		o.PathPrefix = "media"
	}
	if o.MaxFiles <= 0 {
		o.MaxFiles = 10
	}
	if o.Limits == (media.Limits{}) {
		o.Limits = media.DefaultLimits()
	}
	if o.Compression == (compress.Options{}) {
		o.Compression = compress.DefaultOptions()
	}
	return o
}

// Callbacks notify the invoking application. OnUpload fires once per
// completed batch with the records in submission order. OnError fires for
// validation failures, quota rejections, and upload failures, never for
// extraction failures, which degrade silently into absent metadata.
// OnWarning fires at most once per batch, when the quota check passes but
// usage is at or above the warn threshold.
type Callbacks struct {
	OnUpload  func(records []media.UploadedMedia)
	OnError   func(msg string)
	OnWarning func(msg string)
}

func (c Callbacks) uploadOK(records []media.UploadedMedia) {
	if c.OnUpload != nil {
		c.OnUpload(records)
	}
}

func (c Callbacks) fail(msg string) {
	if c.OnError != nil {
		c.OnError(msg)
	}
}

func (c Callbacks) warn(msg string) {
	if c.OnWarning != nil && msg != "" {
		c.OnWarning(msg)
	}
}

// Pipeline wires the ingestion stages over a storage provider and the
// quota accounting service.
type Pipeline struct {
	provider   storage.Provider
	guard      *quota.Guard
	accounting quota.Store
	extractor  *extract.Extractor
	previews   *preview.Generator
	logger     *slog.Logger
}

// New creates a pipeline. accounting may be nil when usage write-back is
// not wanted (e.g. the CLI against a local store).
func New(log *slog.Logger, provider storage.Provider, guard *quota.Guard, accounting quota.Store, extractor *extract.Extractor, previews *preview.Generator) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		provider:   provider,
		guard:      guard,
		accounting: accounting,
		extractor:  extractor,
		previews:   previews,
		logger:     log.With(slog.String("component", "pipeline")),
	}
}

// objectKey builds the durable key {prefix}/{epochMillis}_{token}{ext}.
func objectKey(prefix, fileName, mimeType string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if ext == "" {
		ext = media.ExtensionForMime(mimeType)
	}
	token := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%s/%d_%s%s", strings.Trim(prefix, "/"), time.Now().UnixMilli(), token, ext)
}

// thumbKey derives the secondary asset key adjacent to the primary object.
func thumbKey(key string) string {
	return strings.TrimSuffix(key, path.Ext(key)) + "_thumb.jpg"
}
