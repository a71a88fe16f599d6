package media

import "strings"

// Per-category extension tables. These mirror the declared content type
// tables in classify.go; classification consults them when the declared
// type is absent or generic.
var extensionCategories = map[string]Category{
	".jpg":  CategoryImage,
	".jpeg": CategoryImage,
	".png":  CategoryImage,
	".gif":  CategoryImage,
	".webp": CategoryImage,
	".bmp":  CategoryImage,
	".svg":  CategoryImage,

	".mp4":  CategoryVideo,
	".webm": CategoryVideo,
	".mov":  CategoryVideo,
	".mkv":  CategoryVideo,
	".avi":  CategoryVideo,

	".mp3":  CategoryAudio,
	".wav":  CategoryAudio,
	".ogg":  CategoryAudio,
	".m4a":  CategoryAudio,
	".flac": CategoryAudio,
	".aac":  CategoryAudio,

	".pdf":  CategoryDocument,
	".doc":  CategoryDocument,
	".docx": CategoryDocument,
	".xls":  CategoryDocument,
	".xlsx": CategoryDocument,
	".ppt":  CategoryDocument,
	".pptx": CategoryDocument,
	".txt":  CategoryDocument,
	".md":   CategoryDocument,
}

// documentTypes are the declared content types accepted as documents.
// Image, video, and audio use prefix matching instead.
var documentTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         true,
	"application/vnd.ms-powerpoint":                                             true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"text/plain":    true,
	"text/markdown": true,
}

// NormalizeMime lowercases a MIME value and strips parameters
// (e.g. "IMAGE/JPEG; charset=utf-8" -> "image/jpeg").
func NormalizeMime(raw string) string {
	mime := strings.ToLower(strings.TrimSpace(raw))
	if mime == "" {
		return ""
	}
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return mime
}

// GenericMime reports whether a declared content type carries no category
// information and extension fallback should apply.
func GenericMime(mime string) bool {
	switch NormalizeMime(mime) {
	case "", "application/octet-stream", "binary/octet-stream", "application/unknown":
		return true
	}
	return false
}

// ExtensionForMime returns a file extension for a MIME type, used when an
// upload key needs an extension and the original name has none.
func ExtensionForMime(mime string) string {
	switch NormalizeMime(mime) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}
