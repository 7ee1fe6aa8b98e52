package attachment

import (
	"sync"

	"github.com/google/uuid"
)

type preview struct {
	mimeType string
	data     []byte
}

// Previews holds image previews for pending attachments, addressed by opaque
// handles. A handle stays valid until released; every handle must be
// released when its attachment leaves the compose buffer.
type Previews struct {
	mu    sync.Mutex
	items map[string]preview
}

// NewPreviews creates an empty registry.
func NewPreviews() *Previews {
	return &Previews{items: make(map[string]preview)}
}

// Create registers data and returns its handle.
func (p *Previews) Create(mimeType string, data []byte) string {
	handle := uuid.NewString()
	p.mu.Lock()
	p.items[handle] = preview{mimeType: mimeType, data: data}
	p.mu.Unlock()
	return handle
}

// Get returns the preview bytes for handle.
func (p *Previews) Get(handle string) (data []byte, mimeType string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	item, ok := p.items[handle]
	return item.data, item.mimeType, ok
}

// Release frees handle. Unknown handles are ignored.
func (p *Previews) Release(handle string) {
	if handle == "" {
		return
	}
	p.mu.Lock()
	delete(p.items, handle)
	p.mu.Unlock()
}

// Len returns the number of live handles.
func (p *Previews) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}
