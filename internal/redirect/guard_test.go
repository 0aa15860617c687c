package redirect_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nozomi-tproxy/internal/redirect"
	"nozomi-tproxy/internal/testutil"
)

func newGuard(rec *testutil.Recorder, pid int, strategy redirect.Strategy) *redirect.Guard {
	log := testutil.NewTestLogger()
	return redirect.NewGuard(redirect.NewKey("", pid, 1081), strategy, redirect.NewBackend(rec, log), log)
}

func TestGuard_Lifecycle(t *testing.T) {
	for _, strategy := range []redirect.Strategy{redirect.Direct{}, redirect.TProxy{}} {
		t.Run(strategy.Name(), func(t *testing.T) {
			rec := testutil.NewRecorder()
			g := newGuard(rec, 4242, strategy)
			assert.Equal(t, redirect.StateUninitialized, g.State())

			require.NoError(t, g.Acquire(context.Background()))
			assert.Equal(t, redirect.StateActive, g.State())

			setup := rec.Strings()
			applied := g.Steps()
			assert.Equal(t, opStrings(applied), setup)

			rec.Reset()
			require.NoError(t, g.Release(context.Background()))
			assert.Equal(t, redirect.StateReleased, g.State())

			teardown := rec.Strings()
			require.Len(t, teardown, len(setup))
			assert.Equal(t, undoStrings(applied), teardown)
		})
	}
}

func TestGuard_AcquireIsIdempotent(t *testing.T) {
	rec := testutil.NewRecorder()
	g := newGuard(rec, 42, redirect.Direct{})

	require.NoError(t, g.Acquire(context.Background()))
	n := len(rec.Ops())
	require.NoError(t, g.Acquire(context.Background()))
	assert.Len(t, rec.Ops(), n)
}

func TestGuard_ReleaseTwiceIsNoop(t *testing.T) {
	rec := testutil.NewRecorder()
	g := newGuard(rec, 42, redirect.Direct{})

	require.NoError(t, g.Acquire(context.Background()))
	require.NoError(t, g.Release(context.Background()))
	n := len(rec.Ops())

	require.NoError(t, g.Release(context.Background()))
	assert.Len(t, rec.Ops(), n)
	assert.Equal(t, redirect.StateReleased, g.State())
}

func TestGuard_ReleaseBeforeAcquireIssuesNothing(t *testing.T) {
	rec := testutil.NewRecorder()
	g := newGuard(rec, 42, redirect.Direct{})

	require.NoError(t, g.Release(context.Background()))
	assert.Empty(t, rec.Ops())
	assert.Equal(t, redirect.StateUninitialized, g.State())
}

func TestGuard_ConcurrentReleaseRunsOnce(t *testing.T) {
	rec := testutil.NewRecorder()
	g := newGuard(rec, 4242, redirect.TProxy{})
	require.NoError(t, g.Acquire(context.Background()))
	setup := len(rec.Ops())
	rec.Reset()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, g.Release(context.Background()))
		}()
	}
	wg.Wait()

	assert.Len(t, rec.Ops(), setup)
}

func TestGuard_AcquireAfterRelease(t *testing.T) {
	rec := testutil.NewRecorder()
	g := newGuard(rec, 42, redirect.Direct{})

	require.NoError(t, g.Acquire(context.Background()))
	require.NoError(t, g.Release(context.Background()))

	assert.ErrorIs(t, g.Acquire(context.Background()), redirect.ErrGuardReleased)
}

func TestGuard_FailedAcquireStaysUninitialized(t *testing.T) {
	rec := testutil.NewRecorder()
	rec.FailOn = testutil.FailOnString("iptables -t nat -N nozomi_tproxy_out_42", errors.New("exists"))
	g := newGuard(rec, 42, redirect.Direct{})

	require.Error(t, g.Acquire(context.Background()))
	assert.Equal(t, redirect.StateUninitialized, g.State())
	assert.Empty(t, g.Steps())

	rec.Reset()
	require.NoError(t, g.Release(context.Background()))
	assert.Empty(t, rec.Ops())
}

func TestGuard_ReleaseFailure(t *testing.T) {
	rec := testutil.NewRecorder()
	g := newGuard(rec, 42, redirect.Direct{})
	require.NoError(t, g.Acquire(context.Background()))

	rec.FailOn = testutil.FailOnString("cgroup remove nozomi_tproxy_42", errors.New("device or resource busy"))
	err := g.Release(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, redirect.ErrInconsistentState)
	assert.Equal(t, redirect.StateReleased, g.State())

	rec.Reset()
	require.NoError(t, g.Release(context.Background()))
	assert.Empty(t, rec.Ops())
}

func TestGuard_ReleaseIgnoresCancelledContext(t *testing.T) {
	rec := testutil.NewRecorder()
	g := newGuard(rec, 42, redirect.Direct{})
	require.NoError(t, g.Acquire(context.Background()))
	rec.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, g.Release(ctx))
	assert.Len(t, rec.Ops(), 6)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", redirect.StateUninitialized.String())
	assert.Equal(t, "active", redirect.StateActive.String())
	assert.Equal(t, "released", redirect.StateReleased.String())
	assert.Equal(t, "State(9)", redirect.State(9).String())
}
