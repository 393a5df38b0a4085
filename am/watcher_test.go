package am

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfigWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("[pulse]\nbatch_size = 3\n"), 0600))

	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd)
	require.NoError(t, os.Chdir(dir))
	Reset()
	defer Reset()

	cw, err := NewConfigWatcher(path, nil)
	require.NoError(t, err)
	cw.debouncePeriod = 20 * time.Millisecond

	reloaded := make(chan int, 4)
	cw.OnReload(func(c *Config) error {
		reloaded <- c.Pulse.BatchSize
		return nil
	})
	cw.Start()
	defer cw.Stop()

	require.NoError(t, os.WriteFile(path, []byte("[pulse]\nbatch_size = 9\n"), 0600))

	select {
	case got := <-reloaded:
		require.Equal(t, 9, got)
	case <-time.After(3 * time.Second):
		t.Fatal("config watcher never reloaded")
	}
}
