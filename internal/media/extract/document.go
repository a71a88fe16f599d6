package extract

import (
	"archive/zip"
	"encoding/xml"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/lumenpress/mediaflow/internal/media"
)

// documentMeta extracts best-effort page count and document info. When the
// parser fails or the format is not covered, the file proceeds with only
// name/size/mime populated.
func (e *Extractor) documentMeta(localPath string, f media.File) *media.DocumentMeta {
	meta := &media.DocumentMeta{}
	ext := strings.ToLower(path.Ext(f.Name))
	mime := media.NormalizeMime(f.ContentType)

	switch {
	case ext == ".pdf" || mime == "application/pdf":
		e.readPDFInfo(localPath, f, meta)
	case ext == ".docx":
		e.readDocxProps(localPath, f, meta)
	}
	return meta
}

// readPDFInfo pulls page count and the info dictionary's title/author out
// of a PDF in one parse.
func (e *Extractor) readPDFInfo(localPath string, f media.File, meta *media.DocumentMeta) {
	file, err := os.Open(localPath)
	if err != nil {
		e.logger.Debug("pdf open failed",
			slog.String("file", f.Name), slog.String("error", err.Error()))
		return
	}
	defer file.Close()

	info, err := api.PDFInfo(file, f.Name, nil, false, nil)
	if err != nil {
		e.logger.Debug("pdf info parse failed",
			slog.String("file", f.Name), slog.String("error", err.Error()))
		return
	}
	if info.PageCount > 0 {
		count := info.PageCount
		meta.PageCount = &count
	}
	meta.Title = strings.TrimSpace(info.Title)
	meta.Author = strings.TrimSpace(info.Author)
}

// docxCoreProps is the subset of docProps/core.xml we care about.
type docxCoreProps struct {
	Title   string `xml:"title"`
	Creator string `xml:"creator"`
}

// readDocxProps pulls title/author out of the OOXML core-properties part.
func (e *Extractor) readDocxProps(localPath string, f media.File, meta *media.DocumentMeta) {
	zr, err := zip.OpenReader(localPath)
	if err != nil {
		e.logger.Debug("docx open failed",
			slog.String("file", f.Name), slog.String("error", err.Error()))
		return
	}
	defer zr.Close()

	for _, zf := range zr.File {
		if zf.Name != "docProps/core.xml" {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return
		}
		var props docxCoreProps
		err = xml.NewDecoder(rc).Decode(&props)
		_ = rc.Close()
		if err != nil {
			e.logger.Debug("docx core properties parse failed",
				slog.String("file", f.Name), slog.String("error", err.Error()))
			return
		}
		meta.Title = strings.TrimSpace(props.Title)
		meta.Author = strings.TrimSpace(props.Creator)
		return
	}
}
