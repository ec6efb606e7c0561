// Package avatar maps a coarse conversational state to continuous,
// physically smoothed head, eye, and body motion, advanced once per
// animation frame.
package avatar

// ConversationState is the coarse behavioral mode requested by the host.
type ConversationState string

const (
	StateIdle      ConversationState = "idle"
	StateListening ConversationState = "listening"
	StateThinking  ConversationState = "thinking"
	StateTalking   ConversationState = "talking"
)

// ParseState normalizes a state string. Unknown values fall back to idle;
// the second return reports whether the input was recognized.
func ParseState(s string) (ConversationState, bool) {
	switch ConversationState(s) {
	case StateIdle, StateListening, StateThinking, StateTalking:
		return ConversationState(s), true
	default:
		return StateIdle, false
	}
}

// Phase is the meta-state every conversational state change passes
// through: behavior suspends while the pose returns to neutral, holds
// there briefly, then the new state's behavior takes over.
type Phase int

const (
	PhaseTransitioning Phase = iota
	PhaseLocked
	PhaseActive
)

func (p Phase) String() string {
	switch p {
	case PhaseTransitioning:
		return "transitioning"
	case PhaseLocked:
		return "locked"
	case PhaseActive:
		return "active"
	}
	return "unknown"
}

// PoseVector is the machine's per-frame output. Head and body fields are
// normalized offsets from neutral: positive pitch looks down, positive
// yaw looks to the viewer's left, roll tilts the head. Eye fields are
// normalized gaze offsets in -1..1 and blink is eyelid closure in 0..1.
// The renderer scales these onto its rig.
type PoseVector struct {
	HeadPitch float64 `json:"headPitch"`
	HeadYaw   float64 `json:"headYaw"`
	HeadRoll  float64 `json:"headRoll"`
	BodyLean  float64 `json:"bodyLean"`
	EyeX      float64 `json:"eyeX"`
	EyeY      float64 `json:"eyeY"`
	Blink     float64 `json:"blink"`
}
