package vision

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMat struct {
	name   string
	closed *[]string
}

func (m *fakeMat) Size() (int, int) { return 1, 1 }

func (m *fakeMat) Close() error {
	*m.closed = append(*m.closed, m.name)
	return nil
}

func TestScopeReleasesInReverseOrder(t *testing.T) {
	var closed []string
	var sc Scope
	a, err := sc.Keep(&fakeMat{name: "a", closed: &closed}, nil)
	require.NoError(t, err)
	sc.Add(&fakeMat{name: "b", closed: &closed})
	kept := &fakeMat{name: "c", closed: &closed}
	sc.Add(kept)
	_, err = sc.Keep(nil, errors.New("boom"))
	require.Error(t, err)

	assert.Same(t, kept, sc.Detach(kept))
	assert.Equal(t, 2, sc.Len())
	require.NoError(t, sc.Close())

	assert.Equal(t, []string{"b", "a"}, closed)
	assert.NotNil(t, a)
	assert.Equal(t, 0, sc.Len())
}

type nopBackend struct{ Backend }

func (nopBackend) Name() string { return "nop" }

func TestLoaderLifecycle(t *testing.T) {
	var seen []State
	var mu sync.Mutex
	calls := 0
	l := NewLoader("nop", func(ctx context.Context) (Backend, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("library missing")
		}
		return nopBackend{}, nil
	})
	l.OnChange(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	})

	assert.Equal(t, StateUnloaded, l.State())
	_, err := l.Backend()
	assert.ErrorIs(t, err, ErrBackendUnavailable)

	err = l.Load(context.Background())
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Equal(t, StateFailed, l.State())
	_, err = l.Backend()
	assert.ErrorIs(t, err, ErrBackendUnavailable)

	require.NoError(t, l.Load(context.Background()))
	assert.Equal(t, StateReady, l.State())
	b, err := l.Backend()
	require.NoError(t, err)
	assert.Equal(t, "nop", b.Name())

	// Ready loaders do not reload.
	require.NoError(t, l.Load(context.Background()))
	assert.Equal(t, 2, calls)
	assert.Equal(t, []State{StateLoading, StateFailed, StateLoading, StateReady}, seen)
}

func TestReadyLoader(t *testing.T) {
	l := ReadyLoader(nopBackend{})
	assert.Equal(t, StateReady, l.State())
	assert.Equal(t, "nop", l.Name())
}

func TestNamedLoaderUnknown(t *testing.T) {
	_, err := NewNamedLoader("does-not-exist")
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "close", MorphClose.String())
}
