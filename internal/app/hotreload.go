package app

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"mold-measure/pkg/watcher"
)

// HotReloader reports when the running binary is rebuilt so a developer
// can restart into the new version.
type HotReloader struct {
	execPath    string
	startupTime time.Time

	mu          sync.Mutex
	watcher     *watcher.FileWatcher
	fired       bool
	onNewBinary func()
}

// NewHotReloader watches the current executable. Bursts of writes within
// debounce count as one rebuild.
func NewHotReloader(debounce time.Duration) (*HotReloader, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	// go build replaces the file; follow symlinks to the real one.
	if real, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = real
	}
	return newHotReloader(execPath, debounce)
}

func newHotReloader(execPath string, debounce time.Duration) (*HotReloader, error) {
	info, err := os.Stat(execPath)
	if err != nil {
		return nil, fmt.Errorf("stat executable: %w", err)
	}
	fw, err := watcher.NewFileWatcher(debounce)
	if err != nil {
		return nil, err
	}
	h := &HotReloader{
		execPath:    execPath,
		startupTime: info.ModTime(),
		watcher:     fw,
	}
	if err := fw.Watch([]string{execPath}, func(string) { h.check() }); err != nil {
		fw.Close()
		return nil, err
	}
	return h, nil
}

// OnNewBinary sets the callback to invoke when a newer binary is detected.
// It runs on a background goroutine.
func (h *HotReloader) OnNewBinary(callback func()) {
	h.mu.Lock()
	h.onNewBinary = callback
	h.mu.Unlock()
}

// Start begins watching.
func (h *HotReloader) Start() {
	h.watcher.Start()
}

// Stop stops watching.
func (h *HotReloader) Stop() error {
	return h.watcher.Close()
}

// check fires the callback once per newer binary.
func (h *HotReloader) check() {
	info, err := os.Stat(h.execPath)
	if err != nil {
		return
	}
	h.mu.Lock()
	if h.fired || !info.ModTime().After(h.startupTime) {
		h.mu.Unlock()
		return
	}
	h.fired = true
	cb := h.onNewBinary
	h.mu.Unlock()

	log.Info().Str("path", h.execPath).Time("modified", info.ModTime()).Msg("Hot reload: newer binary detected")
	if cb != nil {
		cb()
	}
}

// ExecPath returns the path to the current executable.
func (h *HotReloader) ExecPath() string {
	return h.execPath
}

// StartupTime returns when the binary was last modified at program start.
func (h *HotReloader) StartupTime() time.Time {
	return h.startupTime
}

// ResetBaseline accepts the current binary as the baseline. Call it when
// the user declines a restart.
func (h *HotReloader) ResetBaseline() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if info, err := os.Stat(h.execPath); err == nil {
		h.startupTime = info.ModTime()
	}
	h.fired = false
}

// Restart replaces the current process with a new instance of the binary.
// It does not return on success.
func (h *HotReloader) Restart() error {
	return syscall.Exec(h.execPath, os.Args, os.Environ())
}
