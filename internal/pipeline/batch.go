package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/lumenpress/mediaflow/internal/media"
	"github.com/lumenpress/mediaflow/internal/media/compress"
	"github.com/lumenpress/mediaflow/internal/media/preview"
)

// Item is one file moving through a batch.
type Item struct {
	ID   string
	File media.File

	state  media.State
	result media.ValidationResult

	// localPath is the spooled copy extraction and upload read from.
	localPath string
	// payload holds re-encoded image bytes when compression applied;
	// nil means upload streams from localPath.
	payload  []byte
	mimeType string

	meta  media.Metadata
	thumb []byte

	record    *media.UploadedMedia
	uploadErr error
}

// Result reports the validation outcome. It is stable once Add returns.
func (it *Item) Result() media.ValidationResult {
	return it.result
}

// Batch is one caller-initiated submission. Files are added while their
// enrichment proceeds in the background; Upload settles everything, runs
// the quota check once, and transfers files one at a time.
type Batch struct {
	p    *Pipeline
	opts Options
	cb   Callbacks

	registry *preview.Registry

	mu    sync.Mutex
	items []*Item
	wg    sync.WaitGroup
}

// NewBatch starts an empty batch.
func (p *Pipeline) NewBatch(opts Options, cb Callbacks) (*Batch, error) {
	reg, err := preview.NewRegistry("")
	if err != nil {
		return nil, err
	}
	return &Batch{
		p:        p,
		opts:     opts.withDefaults(),
		cb:       cb,
		registry: reg,
	}, nil
}

// Add validates f synchronously and, when accepted, spools it and starts
// enrichment in the background. Rejected files surface through OnError and
// never trigger extraction or network work.
func (b *Batch) Add(ctx context.Context, f media.File) (*Item, error) {
	b.mu.Lock()
	live := 0
	for _, it := range b.items {
		if it.state != media.StateRemoved && it.state != media.StateRejected {
			live++
		}
	}
	if live >= b.opts.MaxFiles {
		b.mu.Unlock()
		return nil, ErrTooManyFiles
	}

	item := &Item{
		ID:       uuid.NewString(),
		File:     f,
		state:    media.StateSelected,
		mimeType: media.NormalizeMime(f.ContentType),
	}
	b.items = append(b.items, item)
	b.mu.Unlock()

	result := media.Validate(f, b.opts.AllowedCategories, b.opts.Limits)

	b.mu.Lock()
	item.result = result
	if !result.Accepted {
		item.state = media.StateRejected
		b.mu.Unlock()
		b.cb.fail(result.Message)
		return item, nil
	}
	item.state = media.StateAccepted
	b.mu.Unlock()

	localPath, err := spool(f)
	if err != nil {
		// Treat an unreadable source like a failed validation: the file
		// cannot enter the pipeline.
		b.mu.Lock()
		item.state = media.StateRejected
		item.result = media.ValidationResult{
			Category: result.Category,
			Reason:   media.RejectUnsupportedType,
			Message:  fmt.Sprintf("%s: unreadable input", f.Name),
		}
		b.mu.Unlock()
		b.cb.fail(item.result.Message)
		return item, nil
	}

	b.mu.Lock()
	item.localPath = localPath
	item.state = media.StateEnriching
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.enrich(ctx, item, result.Category)
	}()
	return item, nil
}

// enrich runs extraction, compression, and preview generation for one
// item. Failures here only degrade metadata; the item always reaches
// Ready unless it was removed meanwhile.
func (b *Batch) enrich(ctx context.Context, item *Item, cat media.Category) {
	meta := b.p.extractor.Extract(ctx, item.localPath, item.File, cat)

	var payload []byte
	mimeType := item.mimeType
	if cat == media.CategoryImage && b.opts.Compress {
		raw, err := os.ReadFile(item.localPath)
		if err == nil {
			res := compress.Image(raw, mimeType, b.opts.Compression, b.p.logger)
			if res.Applied {
				payload = res.Data
				mimeType = res.MimeType
			}
		}
	}

	var thumb []byte
	if t, ok := b.p.previews.Thumbnail(ctx, item.localPath, cat, meta); ok {
		thumb = t
	}

	b.mu.Lock()
	if item.state == media.StateRemoved {
		b.mu.Unlock()
		return
	}
	item.meta = meta
	item.payload = payload
	item.mimeType = mimeType
	item.thumb = thumb
	item.state = media.StateReady
	previewData := previewBytes(item)
	id := item.ID
	b.mu.Unlock()

	if len(previewData) > 0 {
		if _, err := b.registry.Acquire(id, previewData, ".jpg"); err != nil {
			b.p.logger.Debug("preview acquire failed", slog.String("error", err.Error()))
		}
	}

	// Removal can race the acquire above; make sure a removed item never
	// keeps a live reference.
	b.mu.Lock()
	removed := item.state == media.StateRemoved
	b.mu.Unlock()
	if removed {
		b.registry.Release(id)
	}
}

// previewBytes picks the ephemeral on-screen preview for an item: the
// generated thumbnail where one exists, else the (possibly compressed)
// image payload.
func previewBytes(item *Item) []byte {
	if len(item.thumb) > 0 {
		return item.thumb
	}
	if item.meta.Category == media.CategoryImage {
		return item.payload
	}
	return nil
}

// Remove drops a file from the batch before its upload begins. Its pending
// enrichment is abandoned and its ephemeral preview reference is released
// immediately. Removing an uploading or uploaded item is refused.
func (b *Batch) Remove(id string) bool {
	b.mu.Lock()
	var item *Item
	for _, it := range b.items {
		if it.ID == id {
			item = it
			break
		}
	}
	if item == nil || item.state == media.StateUploading || item.state.Terminal() {
		b.mu.Unlock()
		return false
	}
	item.state = media.StateRemoved
	localPath := item.localPath
	item.localPath = ""
	b.mu.Unlock()

	b.registry.Release(id)
	if localPath != "" {
		_ = os.Remove(localPath)
	}
	return true
}

// Items returns a snapshot of the batch contents in submission order.
func (b *Batch) Items() []*Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Item, len(b.items))
	copy(out, b.items)
	return out
}

// State returns the lifecycle state of the item with the given id.
func (b *Batch) State(id string) media.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, it := range b.items {
		if it.ID == id {
			return it.state
		}
	}
	return ""
}

// PreviewCount reports the number of live ephemeral preview references.
func (b *Batch) PreviewCount() int {
	return b.registry.Len()
}

// Upload waits for enrichment to settle, checks the storage budget once
// for the whole batch, then transfers files one at a time in submission
// order. It returns the records of every file uploaded by this call.
func (b *Batch) Upload(ctx context.Context) ([]media.UploadedMedia, error) {
	b.wg.Wait()

	b.mu.Lock()
	var pending []*Item
	var predicted int64
	for _, it := range b.items {
		if it.state == media.StateReady || it.state == media.StateUploadFailed {
			pending = append(pending, it)
			predicted += uploadSize(it)
		}
	}
	b.mu.Unlock()

	if len(pending) == 0 {
		return nil, nil
	}

	if b.p.guard != nil {
		decision, err := b.p.guard.Check(ctx, b.opts.OrgID, predicted)
		if err != nil {
			b.cb.fail(err.Error())
			return nil, err
		}
		// The check passed; a near-limit warning still reaches the caller.
		b.cb.warn(decision.WarningMessage())
	}

	var records []media.UploadedMedia
	for _, item := range pending {
		record, err := b.uploadOne(ctx, item)
		if err != nil {
			b.mu.Lock()
			item.state = media.StateUploadFailed
			item.uploadErr = err
			b.mu.Unlock()
			b.cb.fail(fmt.Sprintf("%s: upload failed: %v", item.File.Name, err))
			continue
		}

		b.mu.Lock()
		item.state = media.StateUploaded
		item.record = record
		localPath := item.localPath
		item.localPath = ""
		b.mu.Unlock()

		b.registry.Release(item.ID)
		if localPath != "" {
			_ = os.Remove(localPath)
		}
		records = append(records, *record)
	}

	if len(records) > 0 {
		b.cb.uploadOK(records)
	}
	return records, nil
}

// uploadOne transfers a single file plus its secondary asset and builds
// the durable record.
func (b *Batch) uploadOne(ctx context.Context, item *Item) (*media.UploadedMedia, error) {
	b.mu.Lock()
	item.state = media.StateUploading
	key := objectKey(b.opts.PathPrefix, item.File.Name, item.mimeType)
	meta := item.meta
	b.mu.Unlock()

	body, size, err := uploadBody(item)
	if err != nil {
		return nil, err
	}
	err = b.p.provider.Put(ctx, key, body, item.mimeType)
	body.Close()
	if err != nil {
		return nil, err
	}

	stored := size

	// Secondary asset: audio cover art, or the generated video/document
	// thumbnail. Its upload is best effort; a failure only costs the
	// thumbnail field.
	if secondary := secondaryAsset(item); len(secondary) > 0 {
		sk := thumbKey(key)
		if err := b.p.provider.Put(ctx, sk, bytes.NewReader(secondary), "image/jpeg"); err != nil {
			b.p.logger.Warn("secondary asset upload failed",
				slog.String("key", sk), slog.String("error", err.Error()))
		} else {
			url := b.p.provider.PublicURL(sk)
			meta.Thumbnail = url
			if meta.Audio != nil {
				meta.Audio.CoverArtURL = url
			}
			stored += int64(len(secondary))
		}
	}

	if b.p.accounting != nil {
		if err := b.p.accounting.AddUsage(ctx, b.opts.OrgID, stored); err != nil {
			b.p.logger.Warn("usage accounting update failed",
				slog.String("org_id", b.opts.OrgID), slog.String("error", err.Error()))
		}
	}

	return &media.UploadedMedia{
		URL:      b.p.provider.PublicURL(key),
		Category: meta.Category,
		FileName: item.File.Name,
		FileSize: size,
		MimeType: item.mimeType,
		Metadata: meta,
	}, nil
}

// secondaryAsset picks the durable companion image for an item.
func secondaryAsset(item *Item) []byte {
	if item.meta.Category == media.CategoryImage {
		return nil
	}
	return item.thumb
}

// uploadSize predicts the stored size of an item for the quota check.
func uploadSize(item *Item) int64 {
	if item.payload != nil {
		return int64(len(item.payload))
	}
	return item.File.Size
}

// uploadBody opens the bytes to transfer: the compressed payload when
// present, the spooled file otherwise.
func uploadBody(item *Item) (io.ReadCloser, int64, error) {
	if item.payload != nil {
		return io.NopCloser(bytes.NewReader(item.payload)), int64(len(item.payload)), nil
	}
	f, err := os.Open(item.localPath)
	if err != nil {
		return nil, 0, fmt.Errorf("open spooled file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// Close abandons the batch: every remaining preview reference is released
// and spooled files of non-uploaded items are deleted.
func (b *Batch) Close() {
	b.wg.Wait()
	b.registry.Close()

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, item := range b.items {
		if item.localPath != "" {
			_ = os.Remove(item.localPath)
			item.localPath = ""
		}
	}
}

// Run is the one-shot convenience path: add every file, upload, close.
func (p *Pipeline) Run(ctx context.Context, files []media.File, opts Options, cb Callbacks) ([]media.UploadedMedia, error) {
	batch, err := p.NewBatch(opts, cb)
	if err != nil {
		return nil, err
	}
	defer batch.Close()

	for _, f := range files {
		if _, err := batch.Add(ctx, f); err != nil {
			cb.fail(fmt.Sprintf("%s: %v", f.Name, err))
			return nil, err
		}
	}
	return batch.Upload(ctx)
}

// spool copies the caller's stream to a local temp file so extraction and
// upload can both read it.
func spool(f media.File) (string, error) {
	if f.Open == nil {
		return "", fmt.Errorf("file has no reader")
	}
	src, err := f.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "mediaflow-spool-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
