package extract

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/dhowden/tag"
	"github.com/tcolgate/mp3"
	ffprobe "gopkg.in/vansante/go-ffprobe.v2"

	"github.com/lumenpress/mediaflow/internal/media"
)

// audioMeta is two-phase: a duration probe (wanted on the record, soft on
// failure) and optional embedded tag parsing. A corrupt tag header
// degrades to the duration alone; the file still proceeds to upload.
func (e *Extractor) audioMeta(ctx context.Context, localPath string, f media.File) *media.AudioMeta {
	meta := &media.AudioMeta{}

	if d, err := e.audioDuration(ctx, localPath, f); err != nil {
		e.logger.Debug("audio duration probe failed",
			slog.String("file", f.Name), slog.String("error", err.Error()))
	} else if d > 0 {
		meta.DurationSeconds = &d
	}

	e.readTags(localPath, f, meta)
	return meta
}

func (e *Extractor) audioDuration(ctx context.Context, localPath string, f media.File) (float64, error) {
	ext := strings.ToLower(path.Ext(f.Name))
	mime := media.NormalizeMime(f.ContentType)

	// Format-specific readers first; any failure falls through to the
	// ffprobe fallback.
	switch {
	case mime == "audio/mpeg" || mime == "audio/mp3" || ext == ".mp3":
		if d, err := mp3Duration(localPath); err == nil {
			return d, nil
		}
	case ext == ".wav" || mime == "audio/wav" || mime == "audio/x-wav":
		if d, err := wavDuration(localPath); err == nil {
			return d, nil
		}
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	data, err := ffprobe.ProbeURL(probeCtx, localPath)
	if err != nil {
		return 0, err
	}
	return data.Format.DurationSeconds, nil
}

// mp3Duration sums frame durations across the whole stream.
func mp3Duration(localPath string) (float64, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	dec := mp3.NewDecoder(file)
	var (
		frame   mp3.Frame
		skipped int
		total   float64
		frames  int
	)
	for {
		if err := dec.Decode(&frame, &skipped); err != nil {
			if err == io.EOF {
				break
			}
			// A truncated tail after valid frames still yields a usable total.
			break
		}
		total += frame.Duration().Seconds()
		frames++
	}
	if frames == 0 {
		return 0, fmt.Errorf("no mp3 frames decoded")
	}
	return total, nil
}

// wavDuration reads the RIFF header: data length over byte rate.
func wavDuration(localPath string) (float64, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	header := make([]byte, 44)
	if _, err := io.ReadFull(file, header); err != nil {
		return 0, err
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return 0, fmt.Errorf("not a RIFF/WAVE file")
	}
	byteRate := binary.LittleEndian.Uint32(header[28:32])
	dataLen := binary.LittleEndian.Uint32(header[40:44])
	if byteRate == 0 {
		return 0, fmt.Errorf("wav header reports zero byte rate")
	}
	return float64(dataLen) / float64(byteRate), nil
}

// readTags parses embedded metadata (ID3 and friends) into meta. Parse
// failures leave the fields absent.
func (e *Extractor) readTags(localPath string, f media.File, meta *media.AudioMeta) {
	file, err := os.Open(localPath)
	if err != nil {
		e.logger.Debug("open audio for tag parse failed",
			slog.String("file", f.Name), slog.String("error", err.Error()))
		return
	}
	defer file.Close()

	m, err := tag.ReadFrom(file)
	if err != nil {
		e.logger.Debug("audio tag parse failed",
			slog.String("file", f.Name), slog.String("error", err.Error()))
		return
	}

	meta.Title = strings.TrimSpace(m.Title())
	meta.Artist = strings.TrimSpace(m.Artist())
	meta.Album = strings.TrimSpace(m.Album())
	if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
		meta.CoverArt = pic.Data
		meta.CoverArtMime = pic.MIMEType
	}
}
