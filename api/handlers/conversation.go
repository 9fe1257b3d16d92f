package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/api"
	"github.com/colloquy-ai/colloquy/config"
	"github.com/colloquy-ai/colloquy/conversation"
	"github.com/colloquy-ai/colloquy/internal/transcript"
	"github.com/colloquy-ai/colloquy/types"
)

// ConversationHandler exposes conversation lifecycle intents over HTTP.
type ConversationHandler struct {
	manager     *conversation.Manager
	transcripts transcript.Store
	defaults    config.ConversationConfig
	llm         config.LLMConfig
	logger      *zap.Logger
}

// NewConversationHandler creates the handler. The transcript store receives a
// mirror of every conversation's transcript on each state change.
func NewConversationHandler(
	manager *conversation.Manager,
	transcripts transcript.Store,
	defaults config.ConversationConfig,
	llm config.LLMConfig,
	logger *zap.Logger,
) *ConversationHandler {
	return &ConversationHandler{
		manager:     manager,
		transcripts: transcripts,
		defaults:    defaults,
		llm:         llm,
		logger:      logger.With(zap.String("component", "conversation_handler")),
	}
}

// RegisterRoutes attaches the conversation routes to the mux.
func (h *ConversationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/conversations", h.HandleCreate)
	mux.HandleFunc("GET /v1/conversations", h.HandleList)
	mux.HandleFunc("GET /v1/conversations/{id}", h.HandleGet)
	mux.HandleFunc("DELETE /v1/conversations/{id}", h.HandleDelete)
	mux.HandleFunc("POST /v1/conversations/{id}/start", h.HandleStart)
	mux.HandleFunc("POST /v1/conversations/{id}/stop", h.HandleStop)
	mux.HandleFunc("POST /v1/conversations/{id}/reset", h.HandleReset)
	mux.HandleFunc("POST /v1/conversations/{id}/messages", h.HandleMessage)
	mux.HandleFunc("GET /v1/conversations/{id}/export", h.HandleExport)
	mux.HandleFunc("GET /v1/conversations/{id}/events", h.HandleEvents)
}

// HandleCreate creates a conversation from the request, filling omitted
// fields from the server defaults.
func (h *ConversationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateConversationRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	cfg := h.buildConfig(req)
	o, err := h.manager.Create(cfg)
	if err != nil {
		WriteErrorFrom(w, err, h.logger)
		return
	}

	if h.transcripts != nil {
		go h.mirror(o)
	}

	WriteJSON(w, http.StatusCreated, Response{
		Success:   true,
		Data:      api.NewConversationView(o.Snapshot(), o.SenderLabel),
		Timestamp: time.Now(),
	})
}

func (h *ConversationHandler) buildConfig(req api.CreateConversationRequest) conversation.Config {
	agents := make([]types.Agent, 0, len(req.Agents))
	for _, a := range req.Agents {
		agents = append(agents, types.Agent{
			ID:           a.ID,
			Name:         a.Name,
			SystemPrompt: a.SystemPrompt,
			Color:        types.Color(a.Color),
			AvatarEmoji:  a.AvatarEmoji,
		})
	}

	cfg := conversation.Config{
		Topic:       req.Topic,
		Agents:      agents,
		MaxTurns:    req.MaxTurns,
		GlobalRules: req.GlobalRules,
		Credential:  req.Credential,
		Model:       req.Model,
		TurnDelay:   time.Duration(req.TurnDelayMS) * time.Millisecond,
	}
	if cfg.MaxTurns == 0 {
		cfg.MaxTurns = h.defaults.MaxTurns
	}
	if cfg.GlobalRules == "" {
		cfg.GlobalRules = h.defaults.GlobalRules
	}
	if cfg.TurnDelay == 0 {
		cfg.TurnDelay = h.defaults.TurnDelay
	}
	if cfg.Credential == "" {
		cfg.Credential = h.llm.Credential
	}
	if cfg.Model == "" {
		cfg.Model = h.llm.Model
	}
	return cfg
}

// mirror copies each new transcript snapshot into the shared store until the
// conversation is closed.
func (h *ConversationHandler) mirror(o *conversation.Orchestrator) {
	ch, cancel := o.Subscribe()
	defer cancel()
	for snap := range ch {
		ctx, cancelSync := context.WithTimeout(context.Background(), 5*time.Second)
		if err := h.transcripts.Sync(ctx, snap.ID, snap.Transcript); err != nil {
			h.logger.Warn("transcript sync failed",
				zap.String("conversation_id", snap.ID), zap.Error(err))
		}
		cancelSync()
	}
}

// HandleList returns summaries of all live conversations.
func (h *ConversationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	snaps := h.manager.List()
	out := make([]api.ConversationSummary, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, api.NewConversationSummary(snap))
	}
	WriteSuccess(w, out)
}

// HandleGet returns the full view of one conversation.
func (h *ConversationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	o, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		WriteErrorFrom(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.NewConversationView(o.Snapshot(), o.SenderLabel))
}

// HandleDelete closes and removes a conversation. The mirrored transcript is
// kept until its TTL expires.
func (h *ConversationHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(r.PathValue("id")); err != nil {
		WriteErrorFrom(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"deleted": r.PathValue("id")})
}

// HandleStart begins a fresh run.
func (h *ConversationHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, func(o *conversation.Orchestrator) error { return o.Start() })
}

// HandleStop pauses an active conversation.
func (h *ConversationHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, func(o *conversation.Orchestrator) error { return o.Stop() })
}

// HandleReset returns a conversation to its initial state.
func (h *ConversationHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, func(o *conversation.Orchestrator) error { o.Reset(); return nil })
}

func (h *ConversationHandler) intent(w http.ResponseWriter, r *http.Request, fn func(*conversation.Orchestrator) error) {
	o, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		WriteErrorFrom(w, err, h.logger)
		return
	}
	if err := fn(o); err != nil {
		WriteErrorFrom(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.NewConversationView(o.Snapshot(), o.SenderLabel))
}

// HandleMessage appends a user message, implicitly starting or resuming the
// conversation as needed.
func (h *ConversationHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	o, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		WriteErrorFrom(w, err, h.logger)
		return
	}

	var req api.MessageRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := o.UserSubmit(req.Text); err != nil {
		WriteErrorFrom(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.NewConversationView(o.Snapshot(), o.SenderLabel))
}

// HandleExport returns the transcript as markdown or JSON. Conversations no
// longer live are served from the mirrored transcript store.
func (h *ConversationHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "markdown"
	}

	var (
		topic    string
		messages []types.Message
		label    func(string) string
	)
	if o, err := h.manager.Get(id); err == nil {
		snap := o.Snapshot()
		topic = snap.Topic
		messages = snap.Transcript
		label = o.SenderLabel
	} else if h.transcripts != nil {
		stored, storeErr := h.transcripts.Get(r.Context(), id)
		if storeErr != nil {
			WriteErrorFrom(w, storeErr, h.logger)
			return
		}
		if len(stored) == 0 {
			WriteErrorFrom(w, err, h.logger)
			return
		}
		messages = stored
		label = fallbackLabel
	} else {
		WriteErrorFrom(w, err, h.logger)
		return
	}

	switch format {
	case "json":
		views := make([]api.MessageView, 0, len(messages))
		for _, m := range messages {
			views = append(views, api.MessageView{
				ID:          m.ID,
				SenderID:    m.SenderID,
				SenderLabel: label(m.SenderID),
				Text:        m.Text,
				Timestamp:   m.Timestamp,
			})
		}
		WriteSuccess(w, views)

	case "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, renderMarkdown(topic, messages, label))

	default:
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrConfiguration,
			"format must be markdown or json", h.logger)
	}
}

func fallbackLabel(id string) string {
	switch id {
	case types.SenderUser:
		return "User"
	case types.SenderSummary:
		return "Summary"
	case types.SenderSystem:
		return "System"
	default:
		return id
	}
}

func renderMarkdown(topic string, messages []types.Message, label func(string) string) string {
	var b strings.Builder
	if topic != "" {
		fmt.Fprintf(&b, "# %s\n\n", topic)
	}
	for _, m := range messages {
		if m.IsSystem() {
			fmt.Fprintf(&b, "> %s\n\n", m.Text)
			continue
		}
		fmt.Fprintf(&b, "**%s**: %s\n\n", label(m.SenderID), m.Text)
	}
	return b.String()
}
