package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, DefaultMaxTurns, ttl), mr
}

// stores returns every backend so the shared contract runs against each.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	redisStore, _ := setupMiniredis(t, time.Hour)
	return map[string]Store{
		"inmemory": NewInMemoryStore(),
		"redis":    redisStore,
	}
}

func texts(turns []Turn) []string {
	out := make([]string, len(turns))
	for i, t := range turns {
		out[i] = t.Text
	}
	return out
}

func TestStore_AppendAndLastN(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Append(ctx, "s1", Turn{Role: RoleUser, Text: "Hello"}, 10)
			require.NoError(t, err)
			history, err := store.Append(ctx, "s1", Turn{Role: RoleModel, Text: "Hi there!"}, 10)
			require.NoError(t, err)
			assert.Equal(t, []string{"Hello", "Hi there!"}, texts(history))

			msgs, err := store.LastN(ctx, "s1", 10)
			require.NoError(t, err)
			require.Len(t, msgs, 2)
			assert.Equal(t, RoleUser, msgs[0].Role)
			assert.Equal(t, "Hello", msgs[0].Text)
			assert.Equal(t, RoleModel, msgs[1].Role)
			assert.Equal(t, "Hi there!", msgs[1].Text)
		})
	}
}

func TestStore_TrimsFromHead(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for i := 1; i <= 12; i++ {
				history, err := store.Append(ctx, "s1", Turn{Role: RoleUser, Text: fmt.Sprintf("m%d", i)}, 10)
				require.NoError(t, err)
				assert.LessOrEqual(t, len(history), 10)
			}

			msgs, err := store.LastN(ctx, "s1", 10)
			require.NoError(t, err)
			require.Len(t, msgs, 10)
			assert.Equal(t, "m3", msgs[0].Text)
			assert.Equal(t, "m12", msgs[9].Text)
		})
	}
}

func TestStore_LastNReturnsMostRecent(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 1; i <= 5; i++ {
				_, err := store.Append(ctx, "s1", Turn{Role: RoleUser, Text: fmt.Sprintf("m%d", i)}, 10)
				require.NoError(t, err)
			}

			msgs, err := store.LastN(ctx, "s1", 2)
			require.NoError(t, err)
			assert.Equal(t, []string{"m4", "m5"}, texts(msgs))

			msgs, err = store.LastN(ctx, "s1", 0)
			require.NoError(t, err)
			assert.Empty(t, msgs)
		})
	}
}

func TestStore_UnknownSessionIsEmpty(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			msgs, err := store.LastN(context.Background(), "missing", 10)
			require.NoError(t, err)
			assert.NotNil(t, msgs)
			assert.Empty(t, msgs)
		})
	}
}

func TestStore_ClearIsIdempotent(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.Append(ctx, "s1", Turn{Role: RoleUser, Text: "Hello"}, 10)
			require.NoError(t, err)

			require.NoError(t, store.Clear(ctx, "s1"))
			require.NoError(t, store.Clear(ctx, "s1"))
			require.NoError(t, store.Clear(ctx, "never-existed"))

			msgs, err := store.LastN(ctx, "s1", 10)
			require.NoError(t, err)
			assert.Empty(t, msgs)
		})
	}
}

func TestStore_IsolatedBySession(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.Append(ctx, "a", Turn{Role: RoleUser, Text: "for a"}, 10)
			require.NoError(t, err)
			_, err = store.Append(ctx, "b", Turn{Role: RoleUser, Text: "for b"}, 10)
			require.NoError(t, err)

			msgs, _ := store.LastN(ctx, "a", 10)
			assert.Equal(t, []string{"for a"}, texts(msgs))
			msgs, _ = store.LastN(ctx, "b", 10)
			assert.Equal(t, []string{"for b"}, texts(msgs))
		})
	}
}

func TestStore_ZeroMaxLenUsesDefault(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var history []Turn
			for i := 0; i < DefaultMaxTurns+3; i++ {
				var err error
				history, err = store.Append(ctx, "s1", Turn{Role: RoleUser, Text: "x"}, 0)
				require.NoError(t, err)
			}
			assert.Len(t, history, DefaultMaxTurns)
		})
	}
}

func TestRedisStore_TTL(t *testing.T) {
	store, mr := setupMiniredis(t, time.Minute)
	ctx := context.Background()

	_, err := store.Append(ctx, "s1", Turn{Role: RoleUser, Text: "Hello"}, 10)
	require.NoError(t, err)

	mr.FastForward(61 * time.Second)

	msgs, err := store.LastN(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestRedisStore_SkipsMalformedEntries(t *testing.T) {
	store, mr := setupMiniredis(t, time.Hour)
	ctx := context.Background()

	_, err := mr.Push(sessionKey("s1"), "not json")
	require.NoError(t, err)
	_, err = store.Append(ctx, "s1", Turn{Role: RoleUser, Text: "ok"}, 10)
	require.NoError(t, err)

	msgs, err := store.LastN(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, texts(msgs))
}

func TestInMemoryStore_SweepDropsIdleSessions(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewInMemoryStore(WithTTL(time.Hour), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := store.Append(ctx, "old", Turn{Role: RoleUser, Text: "hi"}, 10)
	require.NoError(t, err)

	now = now.Add(50 * time.Minute)
	_, err = store.Append(ctx, "fresh", Turn{Role: RoleUser, Text: "hi"}, 10)
	require.NoError(t, err)

	now = now.Add(20 * time.Minute)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())

	msgs, err := store.LastN(ctx, "fresh", 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestInMemoryStore_SweepWithoutTTLKeepsEverything(t *testing.T) {
	store := NewInMemoryStore()
	_, err := store.Append(context.Background(), "s1", Turn{Role: RoleUser, Text: "hi"}, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Sweep())
	assert.Equal(t, 1, store.Len())
}

func TestInMemoryStore_StartSweeperRejectsBadSchedule(t *testing.T) {
	store := NewInMemoryStore(WithTTL(time.Minute))
	_, err := store.StartSweeper("not a schedule")
	assert.Error(t, err)

	stop, err := store.StartSweeper("@every 1h")
	require.NoError(t, err)
	stop()
}

func TestInMemoryStore_ReturnedSlicesAreCopies(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	history, err := store.Append(ctx, "s1", Turn{Role: RoleUser, Text: "original"}, 10)
	require.NoError(t, err)
	history[0].Text = "mutated"

	msgs, err := store.LastN(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Equal(t, "original", msgs[0].Text)
}

func TestInMemoryStore_ConcurrentAppendsStayBounded(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = store.Append(ctx, "s1", Turn{Role: RoleUser, Text: fmt.Sprintf("m%d", i)}, 10)
		}(i)
	}
	wg.Wait()

	msgs, err := store.LastN(ctx, "s1", 100)
	require.NoError(t, err)
	assert.Len(t, msgs, 10)
}
