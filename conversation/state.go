package conversation

import (
	"time"

	"github.com/colloquy-ai/colloquy/types"
)

// Config is the conversation configuration captured when the orchestrator is
// created. It is editable only while the conversation is idle; Start and the
// implicit start of UserSubmit snapshot it for the remainder of the run.
type Config struct {
	Topic       string        `json:"topic" yaml:"topic"`
	Agents      []types.Agent `json:"agents" yaml:"agents"`
	MaxTurns    int           `json:"max_turns" yaml:"max_turns"` // per agent
	GlobalRules string        `json:"global_rules,omitempty" yaml:"global_rules,omitempty"`
	Credential  string        `json:"credential" yaml:"credential"`
	Model       string        `json:"model,omitempty" yaml:"model,omitempty"`
	TurnDelay   time.Duration `json:"turn_delay,omitempty" yaml:"turn_delay,omitempty"`
}

// Validate checks the static parts of the configuration. The credential is
// deliberately not checked here: its validation belongs to Start so the
// failure surfaces as a transcript message, per the error taxonomy.
func (c Config) Validate() error {
	if len(c.Agents) == 0 {
		return types.NewError(types.ErrConfiguration, "at least one agent is required")
	}
	if c.MaxTurns <= 0 {
		return types.NewError(types.ErrConfiguration, "max_turns must be positive")
	}
	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if err := a.Validate(); err != nil {
			return err
		}
		if seen[a.ID] {
			return types.NewError(types.ErrConfiguration, "duplicate agent id: "+a.ID)
		}
		seen[a.ID] = true
	}
	return nil
}

// state is the mutable aggregate owned exclusively by the orchestrator.
type state struct {
	status     types.Status
	turnCount  int
	speakerID  string
	transcript []types.Message

	// summarized is the one-shot latch: the summary runs exactly once per
	// completed conversation no matter how often completion is observed.
	summarized bool
}

// Snapshot is an immutable copy of the conversation state handed to the
// presentation boundary. Mutating it never affects the orchestrator.
type Snapshot struct {
	ID               string          `json:"id"`
	Status           types.Status    `json:"status"`
	TurnCount        int             `json:"turn_count"`
	CurrentSpeakerID string          `json:"current_speaker_id,omitempty"`
	Transcript       []types.Message `json:"transcript"`
	Topic            string          `json:"topic"`
	Agents           []types.Agent   `json:"agents"`
	Summarized       bool            `json:"summarized"`
}
