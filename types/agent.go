package types

// Color is a presentation-only tag attached to an agent. The orchestrator
// never interprets it; it is carried through snapshots for the UI.
type Color string

const (
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorPurple Color = "purple"
	ColorOrange Color = "orange"
	ColorRed    Color = "red"
	ColorTeal   Color = "teal"
)

// Agent describes one conversation participant. Agents are immutable while a
// conversation is active; roster edits are only accepted in the idle state.
type Agent struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt"`
	Color        Color  `json:"color,omitempty" yaml:"color,omitempty"`
	AvatarEmoji  string `json:"avatar_emoji,omitempty" yaml:"avatar_emoji,omitempty"`
}

// Validate reports whether the agent definition is usable.
func (a Agent) Validate() error {
	if a.ID == "" {
		return NewError(ErrConfiguration, "agent id must not be empty")
	}
	if a.ID == SenderUser || a.ID == SenderSystem || a.ID == SenderSummary {
		return NewError(ErrConfiguration, "agent id collides with a reserved sender: "+a.ID)
	}
	if a.Name == "" {
		return NewError(ErrConfiguration, "agent name must not be empty")
	}
	return nil
}
