// Package session holds per-agent conversational memory and the response
// generation entry point. A Store is scoped to one conversation instance:
// the provider, model and credential binding captured by Initialize lives on
// the Store, never in process-wide state, so concurrent conversations cannot
// cross-contaminate.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/llm"
	"github.com/colloquy-ai/colloquy/llm/factory"
	"github.com/colloquy-ai/colloquy/types"
)

// rulesSeparator labels the boundary between an agent's persona and the
// conversation-wide rules appended to it.
const rulesSeparator = "\n\n[Conversation rules]\n"

// ResponsePlaceholder is recorded when the provider returns an empty
// completion. An empty reply is not an error: the orchestrator still needs a
// turn to record rather than stalling the rotation.
const ResponsePlaceholder = "[no response]"

// ProviderFunc constructs a provider for a resolved id. Overridable in tests.
type ProviderFunc func(id llm.ProviderID, cfg factory.Config, logger *zap.Logger) (llm.Provider, error)

type agentSession struct {
	persona string
	history []llm.Message
}

// Store is the conversation session store. All Generate calls use the
// provider and model captured by the most recent successful Initialize.
type Store struct {
	mu          sync.Mutex
	provider    llm.Provider
	providerID  llm.ProviderID
	model       string
	baseURL     string
	timeout     time.Duration
	sessions    map[string]*agentSession
	newProvider ProviderFunc
	logger      *zap.Logger
}

// NewStore creates an empty store. Initialize must be called before Generate.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		newProvider: factory.New,
		logger:      logger.With(zap.String("component", "session_store")),
	}
}

// SetProviderFunc replaces the provider constructor. Test seam.
func (s *Store) SetProviderFunc(fn ProviderFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newProvider = fn
}

// SetEndpoint sets the base URL and request timeout passed to the provider
// factory on the next Initialize. A base URL is required for credentials that
// resolve to the generic compatible provider; for the branded providers it
// overrides their default endpoint.
func (s *Store) SetEndpoint(baseURL string, timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURL = baseURL
	s.timeout = timeout
}

// Initialize resolves the provider for the credential and replaces the entire
// session map with fresh sessions for the given agents. It is the only way to
// reset persona context: calling it again discards all prior session memory.
// The credential is validated before any existing state is touched.
func (s *Store) Initialize(credential, model string, agents []types.Agent, globalRules string) error {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return types.NewError(types.ErrConfiguration, "credential must not be empty")
	}

	providerID := llm.ResolveProvider(credential)
	if model == "" {
		model = llm.DefaultModel(providerID)
	}

	s.mu.Lock()
	newProvider := s.newProvider
	baseURL := s.baseURL
	timeout := s.timeout
	s.mu.Unlock()

	provider, err := newProvider(providerID, factory.Config{
		APIKey:  credential,
		BaseURL: baseURL,
		Model:   model,
		Timeout: timeout,
	}, s.logger)
	if err != nil {
		return err
	}

	sessions := make(map[string]*agentSession, len(agents))
	for _, agent := range agents {
		persona := agent.SystemPrompt
		if strings.TrimSpace(globalRules) != "" {
			persona += rulesSeparator + globalRules
		}
		sessions[agent.ID] = &agentSession{persona: persona}
	}

	s.mu.Lock()
	s.provider = provider
	s.providerID = providerID
	s.model = model
	s.sessions = sessions
	s.mu.Unlock()

	s.logger.Info("sessions initialized",
		zap.String("provider", string(providerID)),
		zap.String("model", model),
		zap.Int("agents", len(agents)),
	)
	return nil
}

// Initialized reports whether a successful Initialize has occurred.
func (s *Store) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider != nil
}

// Provider returns the id of the provider bound by Initialize.
func (s *Store) Provider() llm.ProviderID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.providerID
}

// Model returns the model bound by Initialize.
func (s *Store) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// Generate produces the agent's next utterance for the given prompt and, on
// success, appends the exchange to the agent's session memory so subsequent
// calls carry cumulative context. On failure the memory is left unchanged.
func (s *Store) Generate(ctx context.Context, agentID, prompt string) (string, error) {
	s.mu.Lock()
	sess, ok := s.sessions[agentID]
	if !ok || s.provider == nil {
		s.mu.Unlock()
		return "", types.NewError(types.ErrSessionNotFound, "no session for agent "+agentID)
	}
	provider := s.provider
	model := s.model

	messages := make([]llm.Message, 0, len(sess.history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: sess.persona})
	messages = append(messages, sess.history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})
	s.mu.Unlock()

	resp, err := provider.Completion(ctx, &llm.ChatRequest{Model: model, Messages: messages})
	if err != nil {
		return "", err
	}

	text := resp.Text
	if strings.TrimSpace(text) == "" {
		text = ResponsePlaceholder
	}

	s.mu.Lock()
	// Append only if this session survived any concurrent reinitialization;
	// a stale completion must not leak into a fresh session map.
	if current, ok := s.sessions[agentID]; ok && current == sess {
		sess.history = append(sess.history,
			llm.Message{Role: llm.RoleUser, Content: prompt},
			llm.Message{Role: llm.RoleAssistant, Content: text},
		)
	}
	s.mu.Unlock()

	return text, nil
}

// Oneshot sends a single standalone prompt using the bound provider and
// model, without touching any session memory. Used for summaries.
func (s *Store) Oneshot(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	provider := s.provider
	model := s.model
	s.mu.Unlock()

	if provider == nil {
		return "", types.NewError(types.ErrConfiguration, "session store not initialized")
	}
	resp, err := provider.Completion(ctx, &llm.ChatRequest{
		Model:    model,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// History returns a copy of the agent's session memory, or false when the
// agent has no session.
func (s *Store) History(agentID string) ([]llm.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[agentID]
	if !ok {
		return nil, false
	}
	out := make([]llm.Message, len(sess.history))
	copy(out, sess.history)
	return out, true
}
