package testutil

import (
	"context"
	"io"
	"sync"

	"nozomi-tproxy/internal/redirect"
	"nozomi-tproxy/pkg/logger"
)

func NewTestLogger() logger.Logger {
	log, _ := logger.NewSlogLogger(&logger.Config{
		Level:  logger.LevelDebug,
		Format: logger.FormatText,
		Output: io.Discard,
	})
	return log
}

// Recorder is a redirect.Executor that remembers every op it was asked to
// run. FailOn, when set, decides whether an op fails.
type Recorder struct {
	mu     sync.Mutex
	ops    []redirect.Op
	FailOn func(op redirect.Op) error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Exec(_ context.Context, op redirect.Op) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ops = append(r.ops, op)
	if r.FailOn != nil {
		return r.FailOn(op)
	}
	return nil
}

func (r *Recorder) Ops() []redirect.Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]redirect.Op(nil), r.ops...)
}

func (r *Recorder) Strings() []string {
	ops := r.Ops()
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.String()
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
}

// FailOnString fails the first op whose String() equals s.
func FailOnString(s string, err error) func(redirect.Op) error {
	var once sync.Once
	return func(op redirect.Op) error {
		var out error
		if op.String() == s {
			once.Do(func() { out = err })
		}
		return out
	}
}
