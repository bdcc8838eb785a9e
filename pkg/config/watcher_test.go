package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchFile(t *testing.T) {
	t.Run("Should coalesce a burst of writes into one callback", func(t *testing.T) {
		path := writeYAML(t, "cli:\n  username_parser: alice\n")
		var calls atomic.Int32
		w, err := WatchFile(t.Context(), path, func() { calls.Add(1) })
		require.NoError(t, err)
		defer w.Close()

		for _, name := range []string{"bob", "carol", "dave"} {
			require.NoError(t, os.WriteFile(path, []byte("cli:\n  username_parser: "+name+"\n"), 0o600))
		}
		assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 20*time.Millisecond)
		time.Sleep(3 * reloadDebounce)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("Should follow a save by rename", func(t *testing.T) {
		path := writeYAML(t, "cli:\n  username_parser: alice\n")
		var calls atomic.Int32
		w, err := WatchFile(t.Context(), path, func() { calls.Add(1) })
		require.NoError(t, err)
		defer w.Close()

		tmp := filepath.Join(filepath.Dir(path), ".watchdeck.yaml.swp")
		require.NoError(t, os.WriteFile(tmp, []byte("cli:\n  username_parser: bob\n"), 0o600))
		require.NoError(t, os.Rename(tmp, path))

		assert.Eventually(t, func() bool { return calls.Load() > 0 }, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("Should ignore other files in the directory", func(t *testing.T) {
		path := writeYAML(t, "cli:\n  username_parser: alice\n")
		var calls atomic.Int32
		w, err := WatchFile(t.Context(), path, func() { calls.Add(1) })
		require.NoError(t, err)
		defer w.Close()

		require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.yaml"), []byte("x: 1\n"), 0o600))
		time.Sleep(3 * reloadDebounce)
		assert.Zero(t, calls.Load())
	})

	t.Run("Should fail for a missing path", func(t *testing.T) {
		_, err := WatchFile(t.Context(), filepath.Join(t.TempDir(), "nope.yaml"), func() {})
		assert.Error(t, err)
	})

	t.Run("Should close idempotently", func(t *testing.T) {
		w, err := WatchFile(t.Context(), writeYAML(t, "cli: {}\n"), func() {})
		require.NoError(t, err)
		assert.NoError(t, w.Close())
		assert.NoError(t, w.Close())
	})
}

func TestManager_Reload(t *testing.T) {
	t.Run("Should hot-reload the YAML file and notify listeners", func(t *testing.T) {
		path := writeYAML(t, "jobs:\n  parse_poll_interval: 5s\n")
		m := NewManager(NewService())
		defer m.Close(t.Context())

		changed := make(chan *Config, 4)
		m.OnChange(func(c *Config) { changed <- c })
		cfg, err := m.Load(t.Context(), NewYAMLProvider(path))
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, cfg.Jobs.ParsePollInterval)
		<-changed

		require.NoError(t, os.WriteFile(path, []byte("jobs:\n  parse_poll_interval: 7s\n"), 0o600))
		select {
		case c := <-changed:
			assert.Equal(t, 7*time.Second, c.Jobs.ParsePollInterval)
			assert.Equal(t, 7*time.Second, m.Get().Jobs.ParsePollInterval)
		case <-time.After(3 * time.Second):
			t.Fatal("timeout waiting for reload")
		}
	})

	t.Run("Should keep the previous config when a reload fails validation", func(t *testing.T) {
		path := writeYAML(t, "runtime:\n  log_level: debug\n")
		m := NewManager(NewService())
		defer m.Close(t.Context())
		_, err := m.Load(t.Context(), NewYAMLProvider(path))
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(path, []byte("runtime:\n  log_level: loud\n"), 0o600))
		assert.Error(t, m.Reload(t.Context()))
		assert.Equal(t, "debug", m.Get().Runtime.LogLevel)
	})
}

func TestManagerFromContext(t *testing.T) {
	t.Run("Should return the attached manager", func(t *testing.T) {
		m := NewManager(nil)
		_, err := m.Load(t.Context())
		require.NoError(t, err)
		ctx := ContextWithManager(t.Context(), m)
		assert.Same(t, m, ManagerFromContext(ctx))
		assert.Equal(t, m.Get(), FromContext(ctx))
	})

	t.Run("Should fall back to a default manager", func(t *testing.T) {
		cfg := FromContext(t.Context())
		require.NotNil(t, cfg)
		assert.Equal(t, 3*time.Second, cfg.Jobs.ExportPollInterval)
	})
}
