package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/colloquy-ai/colloquy/internal/metrics"
	"github.com/colloquy-ai/colloquy/session"
	"github.com/colloquy-ai/colloquy/types"
)

// Orchestrator runs one conversation. It owns the ConversationState
// exclusively; the presentation boundary only reads Snapshots and issues
// intents. Turns are strictly serialized: a new turn never starts while a
// generate call for this conversation is outstanding.
type Orchestrator struct {
	id     string
	store  *session.Store
	logger *zap.Logger
	meter  *metrics.Collector

	mu    sync.Mutex
	cfg   Config
	state state

	// epoch invalidates in-flight work: a generation or summary completion
	// that started under an older epoch is discarded instead of mutating
	// state after a reset or reinitialization.
	epoch uint64

	summarize   SummarizeFunc
	onCompleted func(Snapshot)

	limiter *rate.Limiter
	wake    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	subMu   sync.Mutex
	subs    map[uint64]chan Snapshot
	nextSub uint64
}

// New creates an orchestrator in the IDLE state and starts its run loop.
// Close must be called to release the loop.
func New(id string, cfg Config, store *session.Store, logger *zap.Logger, meter *metrics.Collector) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		id:     id,
		store:  store,
		logger: logger.With(zap.String("component", "orchestrator"), zap.String("conversation_id", id)),
		meter:  meter,
		cfg:    cfg,
		state:  state{status: types.StatusIdle},
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		subs:   make(map[uint64]chan Snapshot),
	}
	if cfg.TurnDelay > 0 {
		o.limiter = rate.NewLimiter(rate.Every(cfg.TurnDelay), 1)
	}
	go o.loop()
	return o, nil
}

// ID returns the conversation id.
func (o *Orchestrator) ID() string { return o.id }

// SetSummarizer installs the summary generator. Must be set before the
// conversation can complete; a nil summarizer forces the local fallback.
func (o *Orchestrator) SetSummarizer(fn SummarizeFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.summarize = fn
}

// SetOnCompleted installs a hook invoked once per completion, after the
// summary message has been appended. Used for archival.
func (o *Orchestrator) SetOnCompleted(fn func(Snapshot)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onCompleted = fn
}

// Close tears the orchestrator down. In-flight generations are cancelled,
// their completions discarded, and all subscriber channels closed.
func (o *Orchestrator) Close() {
	o.cancel()
	<-o.done

	o.subMu.Lock()
	for id, ch := range o.subs {
		delete(o.subs, id)
		close(ch)
	}
	o.subMu.Unlock()
}

// UpdateConfig replaces the configuration. Only legal while idle: agents and
// settings are frozen for the duration of a run.
func (o *Orchestrator) UpdateConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.status != types.StatusIdle {
		return types.NewError(types.ErrInvalidTransition, "configuration is frozen while the conversation is "+string(o.state.status))
	}
	o.cfg = cfg
	if cfg.TurnDelay > 0 {
		o.limiter = rate.NewLimiter(rate.Every(cfg.TurnDelay), 1)
	} else {
		o.limiter = nil
	}
	return nil
}

// Start begins a fresh run: it clears the transcript and turn count,
// rebuilds all sessions, announces the topic and hands the floor to the
// first agent. Only legal from IDLE or ERROR; a running, paused or completed
// conversation must be Reset first so a stray start cannot destroy it. On
// session-initialization failure the conversation moves to ERROR with a
// system message and the turn count untouched.
func (o *Orchestrator) Start() error {
	o.mu.Lock()

	switch o.state.status {
	case types.StatusIdle, types.StatusError:
	default:
		status := o.state.status
		o.mu.Unlock()
		return types.NewError(types.ErrInvalidTransition, "cannot start a conversation that is "+string(status))
	}

	if strings.TrimSpace(o.cfg.Topic) == "" {
		err := types.NewError(types.ErrConfiguration, "topic must not be empty")
		o.appendLocked(types.NewSystemMessage("Configuration error: " + err.Message))
		o.mu.Unlock()
		o.broadcast()
		return err
	}

	o.epoch++
	o.state = state{status: o.state.status}

	err := o.store.Initialize(o.cfg.Credential, o.cfg.Model, o.cfg.Agents, o.cfg.GlobalRules)
	if err != nil {
		o.appendLocked(types.NewSystemMessage("Failed to start conversation: " + err.Error()))
		o.setStatusLocked(types.StatusError)
		o.mu.Unlock()
		o.broadcast()
		return err
	}

	o.appendLocked(types.NewSystemMessage("Conversation started. Topic: " + o.cfg.Topic))
	o.state.speakerID = o.cfg.Agents[0].ID
	o.setStatusLocked(types.StatusActive)
	o.mu.Unlock()

	o.broadcast()
	o.kick()
	return nil
}

// Stop pauses an active conversation. It does not cancel an in-flight
// generation; the completion handler re-checks status and will not start a
// new turn.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	if o.state.status != types.StatusActive {
		o.mu.Unlock()
		return types.NewError(types.ErrInvalidTransition, "cannot stop a conversation that is "+string(o.state.status))
	}
	o.state.speakerID = ""
	o.appendLocked(types.NewSystemMessage("Conversation paused."))
	o.setStatusLocked(types.StatusPaused)
	o.mu.Unlock()
	o.broadcast()
	return nil
}

// Reset returns to IDLE from any state, clearing transcript, turn count and
// speaker pointer. Sessions are not reinitialized; the next Start does that.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.epoch++
	from := o.state.status
	o.state = state{status: types.StatusIdle}
	if from != types.StatusIdle {
		o.meter.RecordStateTransition(string(from), string(types.StatusIdle))
	}
	o.mu.Unlock()
	o.broadcast()
}

// UserSubmit appends a user message and reactivates the conversation. From
// IDLE or ERROR it implicitly initializes sessions, like Start minus the
// topic announcement: the existing transcript and turn count survive so the
// user's message stays visible. From PAUSED or COMPLETED it just resumes,
// keeping the speaker pointer or defaulting to the first agent. While ACTIVE
// the message is simply queued and becomes the context of the next turn.
func (o *Orchestrator) UserSubmit(text string) error {
	if strings.TrimSpace(text) == "" {
		return types.NewError(types.ErrConfiguration, "message must not be empty")
	}

	o.mu.Lock()
	o.appendLocked(types.NewUserMessage(text))

	switch o.state.status {
	case types.StatusIdle, types.StatusError:
		o.epoch++
		err := o.store.Initialize(o.cfg.Credential, o.cfg.Model, o.cfg.Agents, o.cfg.GlobalRules)
		if err != nil {
			o.appendLocked(types.NewSystemMessage("Failed to start conversation: " + err.Error()))
			o.setStatusLocked(types.StatusError)
			o.mu.Unlock()
			o.broadcast()
			return err
		}
		if o.state.speakerID == "" {
			o.state.speakerID = o.cfg.Agents[0].ID
		}
		o.setStatusLocked(types.StatusActive)

	case types.StatusPaused, types.StatusCompleted:
		if o.state.speakerID == "" {
			o.state.speakerID = o.cfg.Agents[0].ID
		}
		o.setStatusLocked(types.StatusActive)

	case types.StatusActive:
		// Queued: it becomes the prompt for the next scheduled turn.
	}
	o.mu.Unlock()

	o.broadcast()
	o.kick()
	return nil
}

// Snapshot returns an immutable copy of the conversation state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	transcript := make([]types.Message, len(o.state.transcript))
	copy(transcript, o.state.transcript)
	agents := make([]types.Agent, len(o.cfg.Agents))
	copy(agents, o.cfg.Agents)
	return Snapshot{
		ID:               o.id,
		Status:           o.state.status,
		TurnCount:        o.state.turnCount,
		CurrentSpeakerID: o.state.speakerID,
		Transcript:       transcript,
		Topic:            o.cfg.Topic,
		Agents:           agents,
		Summarized:       o.state.summarized,
	}
}

// Subscribe registers a snapshot listener. Every state change is pushed;
// slow listeners miss intermediate snapshots rather than blocking the core.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	id := o.nextSub
	o.nextSub++
	ch := make(chan Snapshot, 8)
	o.subs[id] = ch
	return ch, func() {
		o.subMu.Lock()
		defer o.subMu.Unlock()
		if _, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(ch)
		}
	}
}

func (o *Orchestrator) broadcast() {
	snap := o.Snapshot()
	o.subMu.Lock()
	defer o.subMu.Unlock()
	for _, ch := range o.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// kick wakes the run loop without blocking.
func (o *Orchestrator) kick() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) appendLocked(msg types.Message) {
	o.state.transcript = append(o.state.transcript, msg)
}

func (o *Orchestrator) setStatusLocked(to types.Status) {
	from := o.state.status
	if from == to {
		return
	}
	o.state.status = to
	o.meter.RecordStateTransition(string(from), string(to))
	o.logger.Info("status changed", zap.String("from", string(from)), zap.String("to", string(to)))
}

// loop is the single thread of control for automatic turn execution. It
// reacts only to wake signals issued on (status, speaker) transitions and
// steps until the conversation leaves ACTIVE.
func (o *Orchestrator) loop() {
	defer close(o.done)
	for {
		select {
		case <-o.ctx.Done():
			return
		case <-o.wake:
		}
		for o.step() {
			if o.ctx.Err() != nil {
				return
			}
		}
	}
}

// step executes at most one turn. It returns true when the loop should
// immediately attempt another turn.
func (o *Orchestrator) step() bool {
	o.mu.Lock()

	if o.state.status != types.StatusActive || o.state.speakerID == "" {
		o.mu.Unlock()
		return false
	}

	// Budget check happens before any generation call: the completing step
	// itself performs no provider I/O.
	if o.state.turnCount >= o.cfg.MaxTurns*len(o.cfg.Agents) {
		o.appendLocked(types.NewSystemMessage("Turn limit reached; the conversation is complete."))
		o.setStatusLocked(types.StatusCompleted)
		o.completeLocked()
		return false
	}

	speaker := o.state.speakerID
	prompt, ok := o.promptLocked(speaker)
	if !ok {
		// Non-initial speaker with an empty transcript: skip this turn
		// rather than letting an agent open the conversation contextless.
		o.mu.Unlock()
		return false
	}
	epoch := o.epoch
	o.mu.Unlock()

	// Pacing interval between turns; not a correctness requirement.
	if o.limiter != nil {
		if err := o.limiter.Wait(o.ctx); err != nil {
			return false
		}
	}

	start := time.Now()
	text, err := o.store.Generate(o.ctx, speaker, prompt)
	latency := time.Since(start)

	o.mu.Lock()
	// The completion handler re-checks epoch and status atomically with the
	// state mutation: stale completions (reset/reinit raced us) are
	// discarded, and a stop that arrived mid-generation prevents the result
	// from starting new work.
	if o.epoch != epoch {
		o.mu.Unlock()
		return false
	}
	if o.state.status != types.StatusActive {
		o.mu.Unlock()
		return false
	}

	if err != nil {
		o.meter.RecordTurn("error")
		o.meter.RecordProviderRequest(string(o.store.Provider()), o.store.Model(), "error", latency)
		o.logger.Warn("turn failed", zap.String("speaker", speaker), zap.Error(err))
		o.appendLocked(types.NewSystemMessage("Generation failed for " + o.agentLabelLocked(speaker) + ": " + err.Error()))
		o.setStatusLocked(types.StatusError)
		o.mu.Unlock()
		o.broadcast()
		return false
	}

	o.meter.RecordTurn("ok")
	o.meter.RecordProviderRequest(string(o.store.Provider()), o.store.Model(), "ok", latency)
	o.appendLocked(types.NewMessage(speaker, text))
	o.state.turnCount++
	o.state.speakerID = o.nextSpeakerLocked(speaker)
	o.mu.Unlock()

	o.broadcast()
	return true
}

// promptLocked derives the prompt for the given speaker. The second return
// is false when this turn must be skipped entirely.
func (o *Orchestrator) promptLocked(speaker string) (string, bool) {
	if last, ok := types.LastNonSystem(o.state.transcript); ok {
		return o.senderLabelLocked(last.SenderID) + ": " + last.Text, true
	}
	// Empty transcript: only the roster's first agent may open with the
	// raw topic.
	if speaker != o.cfg.Agents[0].ID {
		return "", false
	}
	return o.cfg.Topic, true
}

// nextSpeakerLocked advances round-robin over the configured roster order.
// A speaker id absent from the roster defaults the next index to 0 instead
// of crashing.
func (o *Orchestrator) nextSpeakerLocked(current string) string {
	idx := -1
	for i, a := range o.cfg.Agents {
		if a.ID == current {
			idx = i
			break
		}
	}
	if idx < 0 {
		return o.cfg.Agents[0].ID
	}
	return o.cfg.Agents[(idx+1)%len(o.cfg.Agents)].ID
}

func (o *Orchestrator) agentLabelLocked(id string) string {
	for _, a := range o.cfg.Agents {
		if a.ID == id {
			return a.Name
		}
	}
	return id
}

func (o *Orchestrator) senderLabelLocked(id string) string {
	switch id {
	case types.SenderUser:
		return "User"
	case types.SenderSummary:
		return "Summary"
	default:
		return o.agentLabelLocked(id)
	}
}

// SenderLabel maps a sender id to its display name for the current roster.
func (o *Orchestrator) SenderLabel(id string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.senderLabelLocked(id)
}

// completeLocked handles the COMPLETED transition: it fires the one-shot
// summary when the transcript is non-empty, then the completion hook.
// Called with o.mu held; releases it.
func (o *Orchestrator) completeLocked() {
	runSummary := !o.state.summarized && len(o.state.transcript) > 0
	if runSummary {
		o.state.summarized = true
	}
	epoch := o.epoch
	topic := o.cfg.Topic
	transcript := make([]types.Message, len(o.state.transcript))
	copy(transcript, o.state.transcript)
	summarize := o.summarize
	hook := o.onCompleted
	o.mu.Unlock()

	o.broadcast()

	if runSummary {
		text := o.generateSummary(topic, transcript, summarize)

		o.mu.Lock()
		if o.epoch == epoch {
			switch o.state.status {
			case types.StatusCompleted:
				o.appendLocked(types.NewMessage(types.SenderSummary, text))
			default:
				// Reactivated while the summary was in flight. Dropping the
				// result mid-conversation would make it the next prompt, so
				// release the latch and let the next completion regenerate.
				o.state.summarized = false
			}
		}
		o.mu.Unlock()
		o.broadcast()
	}

	if hook != nil {
		hook(o.Snapshot())
	}
}

func (o *Orchestrator) generateSummary(topic string, transcript []types.Message, summarize SummarizeFunc) string {
	label := func(id string) string {
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.senderLabelLocked(id)
	}

	if summarize == nil {
		o.meter.RecordSummary("fallback")
		return FallbackSummary(topic, transcript, label,
			types.NewError(types.ErrConfiguration, "no summarizer configured"))
	}

	text, err := summarize(o.ctx, topic, transcript)
	if err != nil {
		o.logger.Warn("summary generation failed, using fallback", zap.Error(err))
		o.meter.RecordSummary("fallback")
		return FallbackSummary(topic, transcript, label, err)
	}
	o.meter.RecordSummary("provider")
	return text
}
