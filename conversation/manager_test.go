package conversation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/llm"
	"github.com/colloquy-ai/colloquy/llm/factory"
	"github.com/colloquy-ai/colloquy/session"
	"github.com/colloquy-ai/colloquy/types"
)

func newTestManager(t *testing.T, fake *scriptedProvider) *Manager {
	t.Helper()
	m := NewManager(zap.NewNop(), nil)
	m.SetStoreConfigure(func(s *session.Store) {
		s.SetProviderFunc(func(llm.ProviderID, factory.Config, *zap.Logger) (llm.Provider, error) {
			return fake, nil
		})
	})
	t.Cleanup(m.Close)
	return m
}

func TestManager_CreateGetDelete(t *testing.T) {
	m := newTestManager(t, &scriptedProvider{})

	o, err := m.Create(twoAgentConfig())
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID())

	got, err := m.Get(o.ID())
	require.NoError(t, err)
	assert.Same(t, o, got)

	_, err = m.Get("missing")
	assert.Equal(t, types.ErrSessionNotFound, types.GetErrorCode(err))

	require.NoError(t, m.Delete(o.ID()))
	_, err = m.Get(o.ID())
	assert.Error(t, err)
	err = m.Delete(o.ID())
	assert.Equal(t, types.ErrSessionNotFound, types.GetErrorCode(err))
}

func TestManager_CreateRejectsInvalidConfig(t *testing.T) {
	m := newTestManager(t, &scriptedProvider{})
	_, err := m.Create(Config{})
	assert.Equal(t, types.ErrConfiguration, types.GetErrorCode(err))
	assert.Empty(t, m.List())
}

func TestManager_LLMOptionsReachEveryStore(t *testing.T) {
	m := NewManager(zap.NewNop(), nil)
	t.Cleanup(m.Close)
	m.SetLLMOptions("http://gateway.internal:8080", 20*time.Second)

	var mu sync.Mutex
	var got factory.Config
	m.SetStoreConfigure(func(s *session.Store) {
		s.SetProviderFunc(func(_ llm.ProviderID, cfg factory.Config, _ *zap.Logger) (llm.Provider, error) {
			mu.Lock()
			got = cfg
			mu.Unlock()
			return &scriptedProvider{}, nil
		})
	})

	o, err := m.Create(twoAgentConfig())
	require.NoError(t, err)
	require.NoError(t, o.Start())
	waitFor(t, o, func(s Snapshot) bool { return s.Status == types.StatusCompleted })

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "http://gateway.internal:8080", got.BaseURL)
	assert.Equal(t, 20*time.Second, got.Timeout)
}

func TestManager_ConversationsAreIsolated(t *testing.T) {
	m := newTestManager(t, &scriptedProvider{})

	a, err := m.Create(twoAgentConfig())
	require.NoError(t, err)
	cfg := twoAgentConfig()
	cfg.Topic = "second topic"
	b, err := m.Create(cfg)
	require.NoError(t, err)

	require.NoError(t, a.Start())
	waitFor(t, a, func(s Snapshot) bool { return s.Status == types.StatusCompleted })

	// Running one conversation to completion never moves the other.
	assert.Equal(t, types.StatusIdle, b.Snapshot().Status)
	assert.Empty(t, b.Snapshot().Transcript)
}

func TestManager_ListIsStable(t *testing.T) {
	m := newTestManager(t, &scriptedProvider{})
	for i := 0; i < 3; i++ {
		_, err := m.Create(twoAgentConfig())
		require.NoError(t, err)
	}

	list := m.List()
	require.Len(t, list, 3)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].ID, list[i].ID)
	}
}

func TestManager_CompletionHookFires(t *testing.T) {
	m := newTestManager(t, &scriptedProvider{})

	var mu sync.Mutex
	var completed []Snapshot
	m.SetOnCompleted(func(s Snapshot) {
		mu.Lock()
		completed = append(completed, s)
		mu.Unlock()
	})

	o, err := m.Create(twoAgentConfig())
	require.NoError(t, err)
	require.NoError(t, o.Start())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(completed) == 1
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, o.ID(), completed[0].ID)
	assert.Equal(t, types.StatusCompleted, completed[0].Status)
}
