package indexer

import "sync"

// Handle is a revocable reference to an Index.
type Handle struct {
	mu  sync.RWMutex
	idx *Index
}

// NewHandle wraps idx.
func NewHandle(idx *Index) *Handle {
	return &Handle{idx: idx}
}

// Acquire returns the index and a release func. While held, Invalidate blocks.
// ok is false once the handle has been invalidated; release is always safe to call.
func (h *Handle) Acquire() (idx *Index, release func(), ok bool) {
	h.mu.RLock()
	if h.idx == nil {
		h.mu.RUnlock()
		return nil, func() {}, false
	}
	var once sync.Once
	return h.idx, func() { once.Do(h.mu.RUnlock) }, true
}

// Invalidate waits for current holders to release and clears the reference.
func (h *Handle) Invalidate() {
	h.mu.Lock()
	h.idx = nil
	h.mu.Unlock()
}

// Valid reports whether the handle still references an index.
func (h *Handle) Valid() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.idx != nil
}
