package dashboard

import (
	"context"
	"sync"

	"github.com/nexlate/tracker/models"
	"go.uber.org/zap"
)

// CreateState is what the create pane renders.
type CreateState struct {
	// Created is nil before the first answered submission.
	Created    *bool
	Submitting bool
}

// CreatePane submits new entries and remembers how the last one went.
type CreatePane struct {
	backend Backend
	logger  *zap.Logger

	mu      sync.Mutex
	created *bool
	pending int
}

func NewCreatePane(backend Backend, logger *zap.Logger) *CreatePane {
	return &CreatePane{backend: backend, logger: logger}
}

// Submit posts the entry and reports whether the backend accepted it. Any
// answer from the backend sets the banner; a transport error is logged,
// returned, and leaves the banner alone. Concurrent submissions are not
// rejected.
func (p *CreatePane) Submit(ctx context.Context, entry models.NewEntry) (bool, error) {
	p.mu.Lock()
	p.pending++
	p.mu.Unlock()

	res, err := p.backend.Create(context.WithoutCancel(ctx), entry)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending--

	if err != nil {
		p.logger.Error("failed to create entry", zap.Error(err))
		return false, err
	}

	ok := res.OK()
	p.created = &ok
	if ok {
		p.logger.Info("entry created", zap.String("minutes_late", entry.MinutesLate))
	} else {
		p.logger.Info("entry rejected", zap.Int("status", res.StatusCode), zap.ByteString("body", res.Body))
	}
	return ok, nil
}

func (p *CreatePane) State() CreateState {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := CreateState{Submitting: p.pending > 0}
	if p.created != nil {
		created := *p.created
		state.Created = &created
	}
	return state
}

// Reset clears the banner.
func (p *CreatePane) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = nil
}
