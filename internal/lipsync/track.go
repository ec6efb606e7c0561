package lipsync

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/normanking/monavatar/internal/config"
)

// ErrInvalidTrack marks cue material the engine must treat as absent.
var ErrInvalidTrack = errors.New("lipsync: invalid cue track")

// Cue is one timed mouth segment of an utterance, in seconds on the
// utterance playback clock.
type Cue struct {
	Start   float64       `json:"start"`
	End     float64       `json:"end"`
	Shape   string        `json:"shape,omitempty"`
	Targets PhonemeVector `json:"phonemes"`
	Silence bool          `json:"silence,omitempty"`
}

// Duration returns the cue length in seconds.
func (c Cue) Duration() float64 {
	return c.End - c.Start
}

// Track is a validated, ordered, non-overlapping cue list.
type Track struct {
	cues     []Cue
	duration float64
}

// NewTrack validates cue material. Cues must be finite, strictly ordered
// by start, non-overlapping, and positive-length.
func NewTrack(cues []Cue) (*Track, error) {
	if len(cues) == 0 {
		return nil, fmt.Errorf("%w: no cues", ErrInvalidTrack)
	}
	prevEnd := math.Inf(-1)
	prevStart := math.Inf(-1)
	for i, c := range cues {
		if !isFinite(c.Start) || !isFinite(c.End) {
			return nil, fmt.Errorf("%w: cue %d has non-finite bounds", ErrInvalidTrack, i)
		}
		if c.End <= c.Start {
			return nil, fmt.Errorf("%w: cue %d ends at or before its start", ErrInvalidTrack, i)
		}
		if c.Start <= prevStart {
			return nil, fmt.Errorf("%w: cue %d out of order", ErrInvalidTrack, i)
		}
		if c.Start < prevEnd-1e-6 {
			return nil, fmt.Errorf("%w: cue %d overlaps its predecessor", ErrInvalidTrack, i)
		}
		for _, ch := range c.Targets.Channels() {
			if !isFinite(ch) {
				return nil, fmt.Errorf("%w: cue %d has non-finite targets", ErrInvalidTrack, i)
			}
		}
		prevStart = c.Start
		prevEnd = c.End
	}
	out := make([]Cue, len(cues))
	copy(out, cues)
	for i := range out {
		out[i].Targets = out[i].Targets.Clamp(1)
	}
	return &Track{cues: out, duration: out[len(out)-1].End}, nil
}

// Duration returns the end time of the last cue.
func (t *Track) Duration() float64 { return t.duration }

// Len returns the cue count.
func (t *Track) Len() int { return len(t.cues) }

// Cues returns a copy of the cue list.
func (t *Track) Cues() []Cue {
	out := make([]Cue, len(t.cues))
	copy(out, t.cues)
	return out
}

// blendWindow returns the coarticulation window for a cue: at most 80 ms
// and at most 30% of the cue, both configurable downward.
func blendWindow(c Cue, p config.CueConfig) float64 {
	w := p.BlendWindowMax
	if f := p.BlendWindowFraction * c.Duration(); f < w {
		w = f
	}
	if w < 0 {
		w = 0
	}
	return w
}

// sample returns the coarticulated targets at the given playback time and
// whether the mouth is in (or past) silence there. Before the first cue,
// inside gaps, and after the last cue the mouth is silent.
func (t *Track) sample(at float64, p config.CueConfig) (PhonemeVector, bool) {
	if len(t.cues) == 0 || !isFinite(at) {
		return PhonemeVector{}, true
	}
	// Last cue starting at or before `at`.
	idx := sort.Search(len(t.cues), func(i int) bool { return t.cues[i].Start > at }) - 1
	if idx < 0 {
		return PhonemeVector{}, true
	}
	cue := t.cues[idx]
	if at >= cue.End {
		return PhonemeVector{}, true
	}

	base := cue.Targets
	w := blendWindow(cue, p)

	if w > 0 && idx > 0 {
		prev := t.cues[idx-1]
		if contiguous(prev.End, cue.Start) && at-cue.Start < w {
			s := (at - cue.Start) / w
			base = prev.Targets.Lerp(cue.Targets, s)
		}
	}
	if w > 0 && idx+1 < len(t.cues) {
		next := t.cues[idx+1]
		if contiguous(cue.End, next.Start) && cue.End-at < w {
			f := (1 - (cue.End-at)/w) * p.NextInfluenceMax
			base = base.Lerp(next.Targets, f)
		}
	}
	return base, cue.Silence
}

// silenceAhead reports whether the cue at (or immediately after) the given
// time is silent, so closing can start ahead of the boundary.
func (t *Track) silenceAhead(at, lookahead float64) bool {
	_, silent := t.sample(at, config.CueConfig{})
	if silent {
		return true
	}
	_, silentAhead := t.sample(at+lookahead, config.CueConfig{})
	return silentAhead
}

func contiguous(a, b float64) bool {
	return math.Abs(a-b) < 1e-3
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// wireCue is the shape cues arrive in from the speech backend. Weights may
// come inline or as a shape code resolved through the table; a missing end
// extends to the next cue's start (or a tenth of a second for the last).
type wireCue struct {
	Start    float64            `json:"start"`
	End      *float64           `json:"end,omitempty"`
	Shape    string             `json:"shape,omitempty"`
	Phonemes map[string]float64 `json:"phonemes,omitempty"`
	Silence  bool               `json:"silence,omitempty"`
}

// ParseTrack decodes backend cue JSON (an array of cues, or an object with
// a "cues" field) into a validated Track, resolving shape codes through
// the given table.
func ParseTrack(data []byte, table *ShapeTable) (*Track, error) {
	if table == nil {
		table = DefaultShapeTable()
	}

	var wire []wireCue
	if err := json.Unmarshal(data, &wire); err != nil {
		var wrapped struct {
			Cues []wireCue `json:"cues"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil || wrapped.Cues == nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTrack, err)
		}
		wire = wrapped.Cues
	}

	cues := make([]Cue, 0, len(wire))
	for i, wc := range wire {
		c := Cue{Start: wc.Start, Shape: wc.Shape, Silence: wc.Silence}

		switch {
		case wc.Phonemes != nil:
			c.Targets = PhonemeVector{
				AA: wc.Phonemes["aa"],
				EE: wc.Phonemes["ee"],
				IH: wc.Phonemes["ih"],
				OH: wc.Phonemes["oh"],
				OU: wc.Phonemes["ou"],
			}
			if _, ok := wc.Phonemes["_silence"]; ok {
				c.Silence = true
			}
		case wc.Shape != "":
			row, ok := table.Row(wc.Shape)
			if !ok {
				return nil, fmt.Errorf("%w: cue %d has unknown shape %q", ErrInvalidTrack, i, wc.Shape)
			}
			c.Targets = row.Weights
			c.Silence = c.Silence || row.Silence
		default:
			return nil, fmt.Errorf("%w: cue %d carries neither phonemes nor a shape", ErrInvalidTrack, i)
		}

		switch {
		case wc.End != nil:
			c.End = *wc.End
		case i+1 < len(wire):
			c.End = wire[i+1].Start
		default:
			c.End = c.Start + 0.1
		}

		cues = append(cues, c)
	}
	return NewTrack(cues)
}

// ShapeCue is the minimal cue form some backends send: a shape code and a
// start time.
type ShapeCue struct {
	Start float64
	End   float64 // zero extends to the next cue
	Shape string
}

// TrackFromShapeCues resolves shape cues through the table into a
// validated Track.
func TrackFromShapeCues(shapeCues []ShapeCue, table *ShapeTable) (*Track, error) {
	if table == nil {
		table = DefaultShapeTable()
	}
	cues := make([]Cue, 0, len(shapeCues))
	for i, sc := range shapeCues {
		row, ok := table.Row(sc.Shape)
		if !ok {
			return nil, fmt.Errorf("%w: cue %d has unknown shape %q", ErrInvalidTrack, i, sc.Shape)
		}
		end := sc.End
		if end == 0 {
			if i+1 < len(shapeCues) {
				end = shapeCues[i+1].Start
			} else {
				end = sc.Start + 0.1
			}
		}
		cues = append(cues, Cue{
			Start:   sc.Start,
			End:     end,
			Shape:   sc.Shape,
			Targets: row.Weights,
			Silence: row.Silence,
		})
	}
	return NewTrack(cues)
}
