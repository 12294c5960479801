package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/nexlate/tracker/models"
	"go.uber.org/zap"
)

// ListPane caches the backend's entry list. Mutations invalidate the cache
// and the next Load fetches again.
type ListPane struct {
	backend Backend
	logger  *zap.Logger
	wait    time.Duration

	mu       sync.Mutex
	entries  models.EntryList
	loaded   bool
	inflight chan struct{}
	gen      uint64

	wg sync.WaitGroup
}

func NewListPane(backend Backend, logger *zap.Logger, wait time.Duration) *ListPane {
	return &ListPane{backend: backend, logger: logger, wait: wait}
}

// Load returns the cached entries. With nothing cached it starts a read, or
// joins the one already running, and waits for it up to the pane's wait
// duration. ok is false while the pane is still loading.
func (p *ListPane) Load(ctx context.Context) (entries models.EntryList, ok bool) {
	p.mu.Lock()
	if p.loaded {
		entries = p.entries
		p.mu.Unlock()
		return entries, true
	}

	done := p.inflight
	if done == nil {
		done = make(chan struct{})
		p.inflight = done
		p.wg.Add(1)
		// reads are not cancelled once issued
		go p.fetch(context.WithoutCancel(ctx), p.gen, done)
	}
	p.mu.Unlock()

	if p.wait > 0 {
		timer := time.NewTimer(p.wait)
		defer timer.Stop()

		select {
		case <-done:
		case <-timer.C:
		case <-ctx.Done():
		}
	}

	return p.Cached()
}

// Cached returns the cached entries without starting a read.
func (p *ListPane) Cached() (models.EntryList, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entries, p.loaded
}

func (p *ListPane) fetch(ctx context.Context, gen uint64, done chan struct{}) {
	defer p.wg.Done()
	defer close(done)

	entries, err := p.backend.Entries(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inflight == done {
		p.inflight = nil
	}
	if gen != p.gen {
		p.logger.Debug("discarding stale entries read", zap.Uint64("generation", gen))
		return
	}
	if err != nil {
		p.logger.Error("failed to load entries", zap.Error(err))
		return
	}

	if entries == nil {
		entries = models.EntryList{}
	}
	p.entries = entries
	p.loaded = true
}

// Invalidate drops the cache. A read already in flight is discarded when it
// finishes.
func (p *ListPane) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gen++
	p.entries = nil
	p.loaded = false
	p.inflight = nil
}

// Delete removes the entry with the given date key and invalidates the cache
// on success. Failures leave the cache as it was.
func (p *ListPane) Delete(ctx context.Context, date string) error {
	key, defaulted, err := models.ResolveDateKey(date)
	if err != nil {
		p.logger.Error("failed to delete entry", zap.String("date", date), zap.Error(err))
		return err
	}
	if defaulted {
		p.logger.Warn("no date given for delete, using default", zap.String("date", models.DefaultDateKey))
		date = models.DefaultDateKey
	}

	if err := p.backend.DeleteEntry(context.WithoutCancel(ctx), key); err != nil {
		p.logger.Error("failed to delete entry", zap.String("date", date), zap.Error(err))
		return err
	}

	p.logger.Info("entry deleted", zap.String("date", date))
	p.Invalidate()
	return nil
}

// Wait blocks until every read the pane started has finished.
func (p *ListPane) Wait() {
	p.wg.Wait()
}
