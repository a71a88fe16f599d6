// Package handlers provides the HTTP API for media ingestion.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"

	"github.com/lumenpress/mediaflow/internal/auth"
	"github.com/lumenpress/mediaflow/internal/config"
	"github.com/lumenpress/mediaflow/internal/media"
	"github.com/lumenpress/mediaflow/internal/media/compress"
	"github.com/lumenpress/mediaflow/internal/pipeline"
	"github.com/lumenpress/mediaflow/internal/quota"
)

// MediaHandler serves the batch upload endpoint and the quota read.
type MediaHandler struct {
	pipe   *pipeline.Pipeline
	store  quota.Store
	cfg    config.PipelineConfig
	logger *slog.Logger
}

// UploadResponse is the success body of POST /api/media. Media carries one
// record per uploaded file in submission order; Errors carries the
// per-file failure messages of the same request.
type UploadResponse struct {
	Media   []media.UploadedMedia `json:"media"`
	Errors  []string              `json:"errors,omitempty"`
	Warning string                `json:"warning,omitempty"`
}

// QuotaResponse is the body of GET /api/quota/:org.
type QuotaResponse struct {
	quota.Status
	WarnThreshold bool `json:"near_limit"`
}

// NewMediaHandler creates the media handler.
func NewMediaHandler(log *slog.Logger, pipe *pipeline.Pipeline, store quota.Store, cfg config.PipelineConfig) *MediaHandler {
	return &MediaHandler{
		pipe:   pipe,
		store:  store,
		cfg:    cfg,
		logger: log.With(slog.String("handler", "media")),
	}
}

// Register mounts the media routes on the Echo instance.
func (h *MediaHandler) Register(e *echo.Echo) {
	e.POST("/api/media", h.Upload)
	e.GET("/api/quota/:org", h.Quota)
}

// Upload godoc
// @Summary Upload a batch of media files
// @Description Validate, enrich, compress and store the multipart files under "files"
// @Tags media
// @Accept multipart/form-data
// @Success 200 {object} UploadResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Router /api/media [post].
func (h *MediaHandler) Upload(c echo.Context) error {
	orgID := auth.OrgID(c)
	if orgID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "organization not resolved from token")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart form required")
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no files in request")
	}

	files := make([]media.File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, h.formFile(fh))
	}

	opts := pipeline.Options{
		OrgID:             orgID,
		AllowedCategories: parseCategories(c.FormValue("categories")),
		PathPrefix:        h.cfg.PathPrefix,
		MaxFiles:          h.cfg.MaxFiles,
		Compress:          h.cfg.Compress,
		Limits: media.Limits{
			Image:    h.cfg.MaxImageBytes,
			Video:    h.cfg.MaxVideoBytes,
			Audio:    h.cfg.MaxAudioBytes,
			Document: h.cfg.MaxDocumentBytes,
		},
		Compression: compress.Options{
			TargetBytes:  h.cfg.CompressTargetBytes,
			MaxDimension: h.cfg.CompressMaxDimension,
			Quality:      h.cfg.CompressQuality,
		},
	}

	var resp UploadResponse
	records, err := h.pipe.Run(c.Request().Context(), files, opts, pipeline.Callbacks{
		OnError: func(msg string) {
			resp.Errors = append(resp.Errors, msg)
		},
		OnWarning: func(msg string) {
			resp.Warning = msg
		},
	})
	switch {
	case err == nil:
	case errors.Is(err, quota.ErrQuotaExceeded):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, pipeline.ErrTooManyFiles):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("batch upload failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "upload failed")
	}
	resp.Media = records

	// A single-file endpoint configuration gets the record unwrapped for
	// convenience; warnings and errors force the enveloped form.
	if h.cfg.MaxFiles == 1 && len(records) == 1 && len(resp.Errors) == 0 && resp.Warning == "" {
		return c.JSON(http.StatusOK, records[0])
	}
	return c.JSON(http.StatusOK, resp)
}

// Quota godoc
// @Summary Read storage usage for an organization
// @Tags media
// @Success 200 {object} QuotaResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/quota/{org} [get].
func (h *MediaHandler) Quota(c echo.Context) error {
	if h.store == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "quota accounting not configured")
	}
	status, err := h.store.Usage(c.Request().Context(), c.Param("org"))
	if err != nil {
		h.logger.Error("read usage failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "read usage failed")
	}
	resp := QuotaResponse{Status: status}
	if !status.Unlimited && status.LimitBytes > 0 {
		resp.WarnThreshold = status.UsedBytes*100 >= status.LimitBytes*int64(h.cfg.QuotaWarnPercent)
	}
	return c.JSON(http.StatusOK, resp)
}

// formFile adapts a multipart header into a pipeline input. Browsers send
// generic content types for unknown extensions; those are repaired by
// sniffing the payload head.
func (h *MediaHandler) formFile(fh *multipart.FileHeader) media.File {
	contentType := fh.Header.Get("Content-Type")
	if media.GenericMime(contentType) {
		if sniffed := sniffMime(fh); sniffed != "" {
			contentType = sniffed
		}
	}
	return media.File{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// sniffMime detects the content type from the payload head.
func sniffMime(fh *multipart.FileHeader) string {
	src, err := fh.Open()
	if err != nil {
		return ""
	}
	defer src.Close()
	mt, err := mimetype.DetectReader(src)
	if err != nil {
		return ""
	}
	return mt.String()
}

// parseCategories converts a comma-separated allow-list from the form into
// categories. Unknown names are dropped; an empty value means every
// supported category.
func parseCategories(value string) []media.Category {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var out []media.Category
	for _, part := range strings.Split(value, ",") {
		switch media.Category(strings.TrimSpace(strings.ToLower(part))) {
		case media.CategoryImage:
			out = append(out, media.CategoryImage)
		case media.CategoryVideo:
			out = append(out, media.CategoryVideo)
		case media.CategoryAudio:
			out = append(out, media.CategoryAudio)
		case media.CategoryDocument:
			out = append(out, media.CategoryDocument)
		}
	}
	return out
}
