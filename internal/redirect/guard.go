package redirect

import (
	"context"
	"fmt"
	"sync"

	"nozomi-tproxy/pkg/logger"
)

type State int

const (
	StateUninitialized State = iota
	StateActive
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateReleased:
		return "released"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Guard owns the redirection state of one process. Acquire installs it,
// Release removes it; both are safe to call more than once and from
// different goroutines, and Release executes the teardown at most once.
type Guard struct {
	mu       sync.Mutex
	key      Key
	strategy Strategy
	backend  Backend
	logger   logger.Logger
	state    State
	applied  []Step
}

func NewGuard(key Key, strategy Strategy, backend Backend, log logger.Logger) *Guard {
	return &Guard{
		key:      key,
		strategy: strategy,
		backend:  backend,
		logger: log.With(
			logger.String("component", "guard"),
			logger.Int("pid", key.PID),
			logger.String("strategy", strategy.Name()),
		),
	}
}

func (g *Guard) Key() Key {
	return g.key
}

func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Steps returns the steps applied by a successful Acquire.
func (g *Guard) Steps() []Step {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Step(nil), g.applied...)
}

func (g *Guard) Acquire(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case StateActive:
		g.logger.Warn("redirection already active")
		return nil
	case StateReleased:
		return ErrGuardReleased
	}

	steps, err := g.strategy.Steps(g.key)
	if err != nil {
		return err
	}

	g.logger.Info("installing redirection",
		logger.String("group", g.key.GroupName()),
		logger.Uint32("class_id", g.key.ClassID),
		logger.Uint32("proxy_port", g.key.ProxyPort),
		logger.Int("steps", len(steps)),
	)

	if err := g.backend.Apply(ctx, steps); err != nil {
		return fmt.Errorf("failed to install %s redirection for pid %d: %w", g.strategy.Name(), g.key.PID, err)
	}

	g.applied = steps
	g.state = StateActive
	g.logger.Info("redirection installed")

	return nil
}

// Release removes everything Acquire installed. The guard is released
// afterwards even if teardown failed; the returned error then wraps
// ErrInconsistentState.
func (g *Guard) Release(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateActive {
		g.logger.Debug("nothing to release", logger.String("state", g.state.String()))
		return nil
	}

	g.logger.Info("removing redirection")

	err := g.backend.Revert(context.WithoutCancel(ctx), g.applied)
	g.state = StateReleased
	g.applied = nil

	if err != nil {
		return fmt.Errorf("failed to remove redirection for pid %d: %w", g.key.PID, err)
	}

	g.logger.Info("redirection removed")
	return nil
}
