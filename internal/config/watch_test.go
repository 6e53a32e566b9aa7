package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replaceFile swaps in new content with a rename so the watcher never sees a
// half-written file.
func replaceFile(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o644))
	require.NoError(t, os.Rename(tmp, path))
}

func TestWatchDeliversValidChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte("exposure = 1.0\n"), 0o644))

	w, err := Watch(path)
	require.NoError(t, err)
	defer w.Close()

	replaceFile(t, path, "exposure = 2.5\n")

	select {
	case cfg := <-w.Configs:
		assert.InDelta(t, 2.5, cfg.Exposure, 1e-6)
	case <-time.After(5 * time.Second):
		t.Fatal("no config delivered")
	}
}

func TestWatchSkipsInvalidAndOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	w, err := Watch(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.toml"), []byte("exposure = 3.0\n"), 0o644))
	replaceFile(t, path, "width = -1\n")

	select {
	case cfg := <-w.Configs:
		t.Fatalf("unexpected config %+v", cfg)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherPublishKeepsNewest(t *testing.T) {
	w := &Watcher{}
	w.configs = make(chan Config, 1)
	w.Configs = w.configs

	a, b := Default(), Default()
	a.Exposure, b.Exposure = 1, 2
	w.publish(a)
	w.publish(b)

	got := <-w.Configs
	assert.Equal(t, float32(2), got.Exposure)
	assert.Empty(t, w.Configs)
}
