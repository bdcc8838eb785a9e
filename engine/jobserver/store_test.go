package jobserver

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchdeck/watchdeck/engine/core"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(t.Context(), mr.Addr(), "test:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func storeBackends(t *testing.T) map[string]Store {
	t.Helper()
	redisStore, _ := newRedisStore(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  redisStore,
	}
}

func TestStore_Sessions(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run("Should return a fresh session for an unknown id with "+name, func(t *testing.T) {
			sess, err := store.LoadSession(t.Context(), "nobody")
			require.NoError(t, err)
			assert.Equal(t, "nobody", sess.ID)
			assert.NotNil(t, sess.Users)
			assert.NotNil(t, sess.Tasks)
			assert.NotNil(t, sess.Stopped)
		})

		t.Run("Should persist users, tasks and flags with "+name, func(t *testing.T) {
			sess := NewSession("s1")
			sess.Users[core.ModuleParser] = User{SelectedModule: "animebuff_ru", Username: "alice"}
			sess.Tasks[core.JobParse] = "task-1"
			sess.Stopped[core.JobExport] = true
			sess.Selection = Selection{PillID: "pills-parser-tab", ParsedTab: "watch"}
			require.NoError(t, store.SaveSession(t.Context(), sess))

			got, err := store.LoadSession(t.Context(), "s1")

			require.NoError(t, err)
			assert.Equal(t, "alice", got.Users[core.ModuleParser].Username)
			assert.Equal(t, "task-1", got.Tasks[core.JobParse])
			assert.True(t, got.Stopped[core.JobExport])
			assert.Equal(t, "watch", got.Selection.ParsedTab)
		})

		t.Run("Should reject a session without id with "+name, func(t *testing.T) {
			assert.Error(t, store.SaveSession(t.Context(), &Session{}))
			_, err := store.LoadSession(t.Context(), "")
			assert.Error(t, err)
		})
	}
}

func TestStore_Tasks(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run("Should report a missing task with "+name, func(t *testing.T) {
			_, err := store.LoadTask(t.Context(), "missing")
			assert.ErrorIs(t, err, ErrTaskNotFound)
		})

		t.Run("Should round-trip a task with "+name, func(t *testing.T) {
			ended := time.Now().UTC().Truncate(time.Second)
			task := &Task{
				ID:       "t1",
				Job:      core.JobExport,
				Module:   "animego_org",
				State:    TaskSuccess,
				Progress: Progress{AllNow: 2, AllMax: 2, List: core.ListDesired, CurrentNow: 1, CurrentMax: 1},
				Titles:   map[core.WatchList][]string{core.ListWatch: {"a"}, core.ListDesired: {"b"}},
				EndedAt:  &ended,
			}
			require.NoError(t, store.SaveTask(t.Context(), task))

			got, err := store.LoadTask(t.Context(), "t1")

			require.NoError(t, err)
			assert.Equal(t, TaskSuccess, got.State)
			assert.Equal(t, task.Progress, got.Progress)
			assert.Equal(t, []string{"b"}, got.Titles[core.ListDesired])
			require.NotNil(t, got.EndedAt)
			assert.True(t, ended.Equal(*got.EndedAt))
		})
	}

	t.Run("Should not share state with callers of the memory store", func(t *testing.T) {
		store := NewMemoryStore()
		task := &Task{ID: "t1", Titles: map[core.WatchList][]string{core.ListWatch: {"a"}}}
		require.NoError(t, store.SaveTask(t.Context(), task))
		task.Titles[core.ListWatch][0] = "changed"

		got, err := store.LoadTask(t.Context(), "t1")

		require.NoError(t, err)
		assert.Equal(t, "a", got.Titles[core.ListWatch][0])
	})
}

func TestRedisStore(t *testing.T) {
	t.Run("Should namespace keys with the prefix and set a TTL", func(t *testing.T) {
		store, mr := newRedisStore(t)
		require.NoError(t, store.SaveTask(t.Context(), &Task{ID: "t1"}))
		require.NoError(t, store.SaveSession(t.Context(), NewSession("s1")))

		assert.True(t, mr.Exists("test:task:t1"))
		assert.True(t, mr.Exists("test:session:s1"))
		assert.Equal(t, taskTTL, mr.TTL("test:task:t1"))
	})

	t.Run("Should fail to connect to an unreachable server", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()
		_, err := NewRedisStore(t.Context(), addr, "x:")
		assert.Error(t, err)
	})

	t.Run("Should connect once the server comes back", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()
		timer := time.AfterFunc(150*time.Millisecond, func() { _ = mr.Restart() })
		t.Cleanup(func() { timer.Stop() })

		store, err := NewRedisStore(t.Context(), addr, "x:")

		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
	})
}

func TestNewStore(t *testing.T) {
	t.Run("Should build the memory store by default", func(t *testing.T) {
		store, err := NewStore(t.Context(), StoreConfig{})
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, store)
	})

	t.Run("Should build the redis store", func(t *testing.T) {
		mr := miniredis.RunT(t)
		store, err := NewStore(t.Context(), StoreConfig{Type: StoreRedis, RedisAddr: mr.Addr(), Prefix: "wd:"})
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		assert.IsType(t, &RedisStore{}, store)
	})

	t.Run("Should reject an unknown backend", func(t *testing.T) {
		_, err := NewStore(t.Context(), StoreConfig{Type: "etcd"})
		assert.Error(t, err)
	})
}
