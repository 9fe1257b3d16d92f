package conversation

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/internal/metrics"
	"github.com/colloquy-ai/colloquy/internal/tokens"
	"github.com/colloquy-ai/colloquy/session"
	"github.com/colloquy-ai/colloquy/types"
)

// Manager owns the live conversations of one process. Each conversation gets
// its own Orchestrator and its own session.Store, so provider bindings never
// leak between conversations.
type Manager struct {
	logger  *zap.Logger
	meter   *metrics.Collector
	counter *tokens.Counter

	mu    sync.Mutex
	convs map[string]*Orchestrator

	// onCompleted is attached to every new conversation; used for archival.
	onCompleted func(Snapshot)

	// llmBaseURL and llmTimeout are applied to every new session store, so
	// credentials resolving to the generic compatible provider (or a branded
	// provider behind a proxy) reach the configured endpoint.
	llmBaseURL string
	llmTimeout time.Duration

	// configureStore customizes each new store before use. Test seam for
	// injecting fake providers.
	configureStore func(*session.Store)
}

// NewManager creates an empty registry.
func NewManager(logger *zap.Logger, meter *metrics.Collector) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		logger:  logger.With(zap.String("component", "conversation_manager")),
		meter:   meter,
		counter: tokens.NewCounter(),
		convs:   make(map[string]*Orchestrator),
	}
}

// SetOnCompleted installs the completion hook applied to conversations
// created afterwards.
func (m *Manager) SetOnCompleted(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCompleted = fn
}

// SetLLMOptions sets the provider endpoint passed to every new session store.
func (m *Manager) SetLLMOptions(baseURL string, timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.llmBaseURL = baseURL
	m.llmTimeout = timeout
}

// SetStoreConfigure installs a hook run on every new session store.
func (m *Manager) SetStoreConfigure(fn func(*session.Store)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configureStore = fn
}

// Create registers a new conversation and returns its orchestrator.
func (m *Manager) Create(cfg Config) (*Orchestrator, error) {
	m.mu.Lock()
	onCompleted := m.onCompleted
	configureStore := m.configureStore
	baseURL := m.llmBaseURL
	timeout := m.llmTimeout
	m.mu.Unlock()

	id := uuid.NewString()
	store := session.NewStore(m.logger)
	store.SetEndpoint(baseURL, timeout)
	if configureStore != nil {
		configureStore(store)
	}

	o, err := New(id, cfg, store, m.logger, m.meter)
	if err != nil {
		return nil, err
	}
	o.SetSummarizer(NewStoreSummarizer(store, m.counter, o.SenderLabel))
	if onCompleted != nil {
		o.SetOnCompleted(onCompleted)
	}

	m.mu.Lock()
	m.convs[id] = o
	m.meter.SetActiveConversations(len(m.convs))
	m.mu.Unlock()

	m.logger.Info("conversation created", zap.String("conversation_id", id),
		zap.Int("agents", len(cfg.Agents)), zap.Int("max_turns", cfg.MaxTurns))
	return o, nil
}

// Get returns the orchestrator for an id.
func (m *Manager) Get(id string) (*Orchestrator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.convs[id]
	if !ok {
		return nil, types.NewError(types.ErrSessionNotFound, "no conversation with id "+id)
	}
	return o, nil
}

// List returns snapshots of all live conversations, ordered by id for a
// stable presentation.
func (m *Manager) List() []Snapshot {
	m.mu.Lock()
	convs := make([]*Orchestrator, 0, len(m.convs))
	for _, o := range m.convs {
		convs = append(convs, o)
	}
	m.mu.Unlock()

	out := make([]Snapshot, 0, len(convs))
	for _, o := range convs {
		out = append(out, o.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Delete closes and removes a conversation.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	o, ok := m.convs[id]
	if ok {
		delete(m.convs, id)
		m.meter.SetActiveConversations(len(m.convs))
	}
	m.mu.Unlock()

	if !ok {
		return types.NewError(types.ErrSessionNotFound, "no conversation with id "+id)
	}
	o.Close()
	m.logger.Info("conversation deleted", zap.String("conversation_id", id))
	return nil
}

// Close shuts down all conversations. Used on server shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	convs := make([]*Orchestrator, 0, len(m.convs))
	for _, o := range m.convs {
		convs = append(convs, o)
	}
	m.convs = make(map[string]*Orchestrator)
	m.meter.SetActiveConversations(0)
	m.mu.Unlock()

	for _, o := range convs {
		o.Close()
	}
}
