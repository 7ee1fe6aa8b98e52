// Package attachment validates, downsamples and encodes files queued for the
// next message, and owns their preview handles until the queue is cleared.
package attachment

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	"github.com/codeready-toolchain/storeassist/pkg/config"
	"github.com/codeready-toolchain/storeassist/pkg/models"
)

// File is a user-supplied file before validation. MimeType is the declared
// type and may be empty.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// Reason classifies a rejected file.
type Reason string

const (
	ReasonSlots  Reason = "slots"
	ReasonType   Reason = "type"
	ReasonSize   Reason = "size"
	ReasonEncode Reason = "encode"
)

// Rejection reports why one file was not added. Other files of the same
// batch are unaffected.
type Rejection struct {
	Filename string
	Reason   Reason
	Detail   string
}

func (r Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Filename, r.Detail)
}

// Pipeline is the compose buffer of pending attachments.
type Pipeline struct {
	cfg      *config.AttachmentsConfig
	previews *Previews
	logger   *slog.Logger

	mu      sync.Mutex
	pending []models.Attachment
}

// NewPipeline creates a pipeline. previews may be shared with an HTTP server
// that displays them.
func NewPipeline(cfg *config.AttachmentsConfig, previews *Previews, logger *slog.Logger) *Pipeline {
	if previews == nil {
		previews = NewPreviews()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:      cfg,
		previews: previews,
		logger:   logger.With("component", "attachments"),
	}
}

// Previews returns the registry backing preview handles.
func (p *Pipeline) Previews() *Previews {
	return p.previews
}

// ProcessFiles validates files in order and adds the eligible ones until the
// slot limit is reached. Eligible files beyond the limit are rejected with
// ReasonSlots.
func (p *Pipeline) ProcessFiles(files []File) ([]models.Attachment, []Rejection) {
	var added []models.Attachment
	var rejected []Rejection

	for _, f := range files {
		mimeType := p.resolveType(f)
		if rej, ok := p.check(f, mimeType); !ok {
			rejected = append(rejected, rej)
			continue
		}
		if p.Remaining() == 0 {
			rejected = append(rejected, Rejection{
				Filename: f.Name,
				Reason:   ReasonSlots,
				Detail:   fmt.Sprintf("at most %d files can be attached to one message", p.cfg.MaxFiles),
			})
			continue
		}

		if models.IsImageType(mimeType) && int64(len(f.Data)) > p.cfg.ResizeAboveBytes {
			f, mimeType = p.resize(f, mimeType)
		}

		att, err := p.add(f, mimeType)
		if err != nil {
			rejected = append(rejected, Rejection{Filename: f.Name, Reason: ReasonEncode, Detail: err.Error()})
			continue
		}
		added = append(added, att)
	}

	for _, r := range rejected {
		p.logger.Info("Attachment rejected", "filename", r.Filename, "reason", r.Reason)
	}
	return added, rejected
}

func (p *Pipeline) check(f File, mimeType string) (Rejection, bool) {
	if !slices.Contains(p.cfg.AllowedTypes, mimeType) {
		return Rejection{
			Filename: f.Name,
			Reason:   ReasonType,
			Detail:   fmt.Sprintf("file type %s is not supported", displayType(mimeType)),
		}, false
	}
	limit := p.cfg.MaxFileBytes
	if models.IsImageType(mimeType) {
		limit = p.cfg.MaxImageBytes
	}
	if int64(len(f.Data)) > limit {
		return Rejection{
			Filename: f.Name,
			Reason:   ReasonSize,
			Detail:   fmt.Sprintf("file exceeds the %s limit", humanSize(limit)),
		}, false
	}
	return Rejection{}, true
}

// resize downsamples an image, falling back to the original on failure.
func (p *Pipeline) resize(f File, mimeType string) (File, string) {
	data, err := ResizeImage(f.Data, p.cfg.MaxDimension, p.cfg.JPEGQuality)
	if err != nil {
		p.logger.Warn("Image resize failed, attaching original",
			"filename", f.Name, "error", err)
		return f, mimeType
	}
	p.logger.Debug("Image resized",
		"filename", f.Name, "before_bytes", len(f.Data), "after_bytes", len(data))
	return File{Name: jpegName(f.Name), MimeType: "image/jpeg", Data: data}, "image/jpeg"
}

func (p *Pipeline) add(f File, mimeType string) (models.Attachment, error) {
	if len(f.Data) == 0 {
		return models.Attachment{}, fmt.Errorf("file is empty")
	}
	att := models.Attachment{
		Filename: f.Name,
		MimeType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(f.Data),
		Size:     len(f.Data),
	}
	if models.IsImageType(mimeType) {
		att.PreviewHandle = p.previews.Create(mimeType, f.Data)
	}

	p.mu.Lock()
	p.pending = append(p.pending, att)
	p.mu.Unlock()
	return att, nil
}

// resolveType returns the declared type when present, unless content
// sniffing finds a different image type.
func (p *Pipeline) resolveType(f File) string {
	declared := normalizeType(f.MimeType)
	sniffed := normalizeType(mimetype.Detect(f.Data).String())

	if declared == "" {
		if ext := filepath.Ext(f.Name); ext != "" {
			declared = normalizeType(mime.TypeByExtension(ext))
		}
	}
	if declared == "" {
		return sniffed
	}
	if models.IsImageType(sniffed) && sniffed != declared {
		return sniffed
	}
	return declared
}

func normalizeType(t string) string {
	if t == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(t)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(t))
	}
	return mediaType
}

// Pending returns a copy of the queued attachments.
func (p *Pipeline) Pending() []models.Attachment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.pending)
}

// Remaining returns the number of free slots.
func (p *Pipeline) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return max(p.cfg.MaxFiles-len(p.pending), 0)
}

// Remove drops one pending attachment by index and releases its preview.
func (p *Pipeline) Remove(index int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.pending) {
		return false
	}
	p.previews.Release(p.pending[index].PreviewHandle)
	p.pending = slices.Delete(p.pending, index, index+1)
	return true
}

// Take returns the queued attachments for sending and empties the queue.
// Preview handles are released; the returned copies carry none.
func (p *Pipeline) Take() []models.Attachment {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.pending
	p.pending = nil
	for i := range out {
		p.previews.Release(out[i].PreviewHandle)
		out[i].PreviewHandle = ""
	}
	return out
}

// Clear discards the queue, releasing every preview handle.
func (p *Pipeline) Clear() {
	p.Take()
}

func jpegName(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".jpg"
}

func displayType(t string) string {
	if t == "" {
		return "(unknown)"
	}
	return t
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%d MB", n>>20)
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%d KB", n>>10)
	}
	return fmt.Sprintf("%d bytes", n)
}
