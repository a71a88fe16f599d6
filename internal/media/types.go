// Package media defines the domain types of the ingestion pipeline:
// file categories, validation results, extracted metadata, and the
// durable record returned to callers.
package media

import "io"

// Category classifies an input file by media kind.
type Category string

const (
	CategoryImage       Category = "image"
	CategoryVideo       Category = "video"
	CategoryAudio       Category = "audio"
	CategoryDocument    Category = "document"
	CategoryUnsupported Category = "unsupported"
)

// File is the raw caller-supplied input. It is never mutated by the
// pipeline; Open must return a fresh reader on each call.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// RejectReason says why a file failed validation.
type RejectReason string

const (
	RejectUnsupportedType RejectReason = "unsupported_type"
	RejectSizeExceeded    RejectReason = "size_exceeded"
)

// ValidationResult is the outcome of classification plus constraint checks.
// A rejected file never proceeds past validation.
type ValidationResult struct {
	Accepted bool
	Category Category
	Reason   RejectReason
	Message  string
}

// Metadata is the per-category enrichment bundle. Exactly the variant
// matching Category is populated; all enrichment fields are optional and
// absent fields stay absent; extraction never invents defaults.
type Metadata struct {
	Category Category `json:"category"`

	// Thumbnail is the durable URL of the secondary preview asset, when one
	// was generated and uploaded.
	Thumbnail string `json:"thumbnail,omitempty"`

	Image    *ImageMeta    `json:"image,omitempty"`
	Video    *VideoMeta    `json:"video,omitempty"`
	Audio    *AudioMeta    `json:"audio,omitempty"`
	Document *DocumentMeta `json:"document,omitempty"`
}

// ImageMeta holds pixel dimensions read during enrichment.
type ImageMeta struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// VideoMeta holds the probed duration in seconds.
type VideoMeta struct {
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
}

// AudioMeta holds the probed duration and embedded tag metadata.
// CoverArt carries the embedded image bytes between extraction and upload
// and is never serialized.
type AudioMeta struct {
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	Title           string   `json:"title,omitempty"`
	Artist          string   `json:"artist,omitempty"`
	Album           string   `json:"album,omitempty"`
	CoverArtURL     string   `json:"cover_art_url,omitempty"`

	CoverArt     []byte `json:"-"`
	CoverArtMime string `json:"-"`
}

// DocumentMeta holds best-effort document info.
type DocumentMeta struct {
	PageCount *int   `json:"page_count,omitempty"`
	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`
}

// UploadedMedia is the durable record produced per successfully uploaded
// file. URL is immutable once the record exists.
type UploadedMedia struct {
	URL      string   `json:"url"`
	Category Category `json:"category"`
	FileName string   `json:"file_name"`
	FileSize int64    `json:"file_size"`
	MimeType string   `json:"mime_type"`
	Metadata Metadata `json:"metadata"`
}

// State is the lifecycle state of a file inside a batch.
type State string

const (
	StateSelected     State = "selected"
	StateRejected     State = "rejected"
	StateAccepted     State = "accepted"
	StateEnriching    State = "enriching"
	StateReady        State = "ready"
	StateUploading    State = "uploading"
	StateUploaded     State = "uploaded"
	StateUploadFailed State = "upload_failed"
	StateRemoved      State = "removed"
)

// Terminal reports whether no further transition is possible.
// UploadFailed requires an explicit re-trigger and is not terminal.
func (s State) Terminal() bool {
	switch s {
	case StateRejected, StateUploaded, StateRemoved:
		return true
	}
	return false
}
