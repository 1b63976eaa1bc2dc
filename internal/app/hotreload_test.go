package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHotReloaderFiresOnce(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "moldmeasure")
	require.NoError(t, os.WriteFile(bin, []byte("v1"), 0o755))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(bin, old, old))

	h, err := newHotReloader(bin, 20*time.Millisecond)
	require.NoError(t, err)
	defer h.Stop()

	fired := make(chan struct{}, 4)
	h.OnNewBinary(func() { fired <- struct{}{} })
	h.Start()

	require.NoError(t, os.WriteFile(bin, []byte("v2"), 0o755))
	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("rebuild not reported")
	}

	// Further writes are ignored until the baseline is reset.
	h.check()
	assert.Len(t, fired, 0)

	h.ResetBaseline()
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(bin, later, later))
	h.check()
	assert.Len(t, fired, 1)
}

func TestHotReloaderMissingBinary(t *testing.T) {
	_, err := newHotReloader(filepath.Join(t.TempDir(), "missing"), time.Millisecond)
	assert.Error(t, err)
}
