// Package bridge streams animation frames to render adapters over
// WebSocket and accepts their control commands.
package bridge

import (
	"encoding/json"

	"github.com/normanking/monavatar/internal/avatar"
	"github.com/normanking/monavatar/internal/lipsync"
)

// Frame is the per-tick payload pushed to every connected adapter. The
// renderer applies Pose to its rig bones and Mouth to its blend shapes;
// it never interpolates across frames, the host already smoothed them.
type Frame struct {
	Type     string                `json:"type"` // always "frame"
	T        float64               `json:"t"`    // host clock, seconds
	State    string                `json:"state"`
	Phase    string                `json:"phase"`
	Strategy string                `json:"strategy"`
	Pose     avatar.PoseVector     `json:"pose"`
	Mouth    lipsync.PhonemeVector `json:"mouth"`
}

// Notice mirrors an internal bus event onto the wire so adapters can
// react to degradations and utterance boundaries.
type Notice struct {
	Type  string         `json:"type"` // always "event"
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// Command is a control message sent by an adapter or operator UI.
//
//	{"type":"state","state":"listening"}
//	{"type":"say","text":"hello there","cues":[...]}
//	{"type":"stop"}
//
// The cue payload, when present, is the speech backend's cue track and
// is handed to the lip-sync engine untouched.
type Command struct {
	Type  string          `json:"type"`
	State string          `json:"state,omitempty"`
	Text  string          `json:"text,omitempty"`
	Cues  json.RawMessage `json:"cues,omitempty"`
}
