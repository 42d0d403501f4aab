package rerank

import (
	"context"
	"log/slog"
	"sync"
)

// Loader constructs a cross-encoder on demand.
type Loader func(ctx context.Context) (CrossEncoder, error)

// Handle lazily loads a cross-encoder on first use and caches it until
// Clear is called. It is safe for concurrent use. Callers own the Handle
// and pass it to whoever needs scoring; there is no process-global state.
type Handle struct {
	loader Loader

	mu  sync.Mutex
	enc CrossEncoder
}

// NewHandle creates a handle that loads the encoder via loader on first Get.
func NewHandle(loader Loader) *Handle {
	return &Handle{loader: loader}
}

// Get returns the loaded encoder, loading it on first call. A failed load
// is not cached; the next Get retries.
func (h *Handle) Get(ctx context.Context) (CrossEncoder, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.enc != nil {
		return h.enc, nil
	}

	enc, err := h.loader(ctx)
	if err != nil {
		return nil, err
	}

	h.enc = enc
	slog.Debug("cross_encoder_loaded", slog.String("model", enc.ModelName()))
	return enc, nil
}

// Loaded reports whether an encoder is currently cached.
func (h *Handle) Loaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enc != nil
}

// Clear closes and releases the cached encoder. A subsequent Get reloads.
func (h *Handle) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.enc == nil {
		return nil
	}

	err := h.enc.Close()
	h.enc = nil
	slog.Debug("cross_encoder_cleared")
	return err
}
