package transcript

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/config"
	"github.com/colloquy-ai/colloquy/types"
)

func sampleTranscript() []types.Message {
	return []types.Message{
		types.NewSystemMessage("Conversation started."),
		types.NewMessage("ada", "first point"),
		types.NewUserMessage("a question"),
	}
}

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rs, err := NewRedisStore(config.TranscriptConfig{Addr: mr.Addr(), TTL: time.Hour}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  rs,
	}
}

func TestStore_SyncGetDelete(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := sampleTranscript()

			require.NoError(t, store.Sync(ctx, "c1", want))
			got, err := store.Get(ctx, "c1")
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, want[1].SenderID, got[1].SenderID)
			assert.Equal(t, want[1].Text, got[1].Text)

			// Sync replaces, never appends.
			require.NoError(t, store.Sync(ctx, "c1", want[:1]))
			got, err = store.Get(ctx, "c1")
			require.NoError(t, err)
			assert.Len(t, got, 1)

			require.NoError(t, store.Delete(ctx, "c1"))
			got, err = store.Get(ctx, "c1")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestStore_UnknownIDIsEmpty(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := store.Get(context.Background(), "nope")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestStore_ConversationsIsolated(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Sync(ctx, "a", sampleTranscript()))
			require.NoError(t, store.Sync(ctx, "b", sampleTranscript()[:1]))

			a, err := store.Get(ctx, "a")
			require.NoError(t, err)
			b, err := store.Get(ctx, "b")
			require.NoError(t, err)
			assert.Len(t, a, 3)
			assert.Len(t, b, 1)
		})
	}
}

func TestMemoryStore_CopiesOnSyncAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	in := sampleTranscript()
	require.NoError(t, store.Sync(ctx, "c1", in))
	in[0].Text = "mutated after sync"

	got, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.NotEqual(t, "mutated after sync", got[0].Text)

	got[1].Text = "mutated after get"
	again, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.NotEqual(t, "mutated after get", again[1].Text)
}

func TestRedisStore_AppliesTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(config.TranscriptConfig{Addr: mr.Addr(), TTL: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Sync(context.Background(), "c1", sampleTranscript()))
	assert.Positive(t, mr.TTL(transcriptKey("c1")))

	mr.FastForward(2 * time.Minute)
	got, err := store.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNew_DispatchesOnBackend(t *testing.T) {
	s, err := New(config.TranscriptConfig{Backend: "memory"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = New(config.TranscriptConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	mr := miniredis.RunT(t)
	s, err = New(config.TranscriptConfig{Backend: "redis", Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, s)
	_ = s.Close()

	_, err = New(config.TranscriptConfig{Backend: "etcd"}, zap.NewNop())
	assert.Error(t, err)
}
