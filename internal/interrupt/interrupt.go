// Package interrupt turns SIGINT and SIGTERM into cancellation of a single
// context. It never tears anything down itself; whoever owns the context
// does that after it is cancelled.
package interrupt

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"nozomi-tproxy/pkg/logger"
)

type Handler struct {
	logger logger.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	received int
	signals  chan os.Signal
	done     chan struct{}
	started  bool
}

func New(log logger.Logger) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		logger: log.With(logger.String("component", "interrupt")),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context is cancelled by the first interrupt.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Received reports how many interrupts have been seen.
func (h *Handler) Received() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.received
}

// Trigger records an interrupt as if sig had been delivered.
func (h *Handler) Trigger(sig os.Signal) {
	h.mu.Lock()
	h.received++
	n := h.received
	h.mu.Unlock()

	h.logger.Info("received signal",
		logger.String("signal", sig.String()),
		logger.Int("count", n),
	)

	if n == 1 {
		h.cancel()
		return
	}
	h.logger.Warn("shutdown already in progress")
}

// Start subscribes to sigs, or to SIGINT and SIGTERM when none are given.
// Calling it again has no effect.
func (h *Handler) Start(sigs ...os.Signal) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return
	}
	h.started = true

	if len(sigs) == 0 {
		sigs = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	h.signals = make(chan os.Signal, 1)
	h.done = make(chan struct{})
	signal.Notify(h.signals, sigs...)

	go h.loop(h.signals, h.done)
}

func (h *Handler) loop(ch <-chan os.Signal, done <-chan struct{}) {
	for {
		select {
		case sig := <-ch:
			h.Trigger(sig)
		case <-done:
			return
		}
	}
}

// Stop unsubscribes from signals. The context is left as it is.
func (h *Handler) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return
	}
	h.started = false

	signal.Stop(h.signals)
	close(h.done)
}
