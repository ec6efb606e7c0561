package lipsync

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/monavatar/internal/config"
)

func cueConfig() config.CueConfig {
	return config.DefaultConfig().LipSync.Cues
}

func TestNewTrackRejectsBadCues(t *testing.T) {
	tests := []struct {
		name string
		cues []Cue
	}{
		{"empty", nil},
		{"nan start", []Cue{{Start: math.NaN(), End: 1}}},
		{"infinite end", []Cue{{Start: 0, End: math.Inf(1)}}},
		{"zero length", []Cue{{Start: 0.5, End: 0.5}}},
		{"inverted", []Cue{{Start: 1, End: 0.5}}},
		{"out of order", []Cue{{Start: 1, End: 2}, {Start: 0, End: 0.5}}},
		{"overlapping", []Cue{{Start: 0, End: 1}, {Start: 0.5, End: 1.5}}},
		{"nan targets", []Cue{{Start: 0, End: 1, Targets: PhonemeVector{AA: math.NaN()}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTrack(tt.cues)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidTrack)
		})
	}
}

func TestNewTrackClampsTargets(t *testing.T) {
	track, err := NewTrack([]Cue{{Start: 0, End: 1, Targets: PhonemeVector{AA: 1.5, EE: -0.2}}})
	require.NoError(t, err)

	got := track.Cues()[0].Targets
	assert.Equal(t, 1.0, got.AA)
	assert.Equal(t, 0.0, got.EE)
	assert.Equal(t, 1.0, track.Duration())
}

func TestSampleOutsideCuesIsSilent(t *testing.T) {
	track, err := NewTrack([]Cue{
		{Start: 0.2, End: 0.6, Targets: PhonemeVector{AA: 1}},
		{Start: 0.8, End: 1.2, Targets: PhonemeVector{EE: 1}},
	})
	require.NoError(t, err)

	for _, at := range []float64{0, 0.1, 0.7, 1.3, math.NaN()} {
		v, silent := track.sample(at, cueConfig())
		assert.True(t, silent, "at=%v", at)
		assert.True(t, v.IsZero(0), "at=%v", at)
	}

	v, silent := track.sample(0.4, cueConfig())
	assert.False(t, silent)
	assert.Equal(t, 1.0, v.AA)
}

func TestSampleBlendsAcrossContiguousCues(t *testing.T) {
	track, err := NewTrack([]Cue{
		{Start: 0, End: 0.4, Targets: PhonemeVector{AA: 1}},
		{Start: 0.4, End: 1.0, Targets: PhonemeVector{EE: 1}},
	})
	require.NoError(t, err)
	p := cueConfig()

	// Mid-cue: no blending from either side.
	v, _ := track.sample(0.2, p)
	assert.InDelta(t, 1.0, v.AA, 1e-9)
	assert.InDelta(t, 0.0, v.EE, 1e-9)

	// Halfway through the inbound window of the second cue.
	v, _ = track.sample(0.44, p)
	assert.InDelta(t, 0.5, v.AA, 1e-9)
	assert.InDelta(t, 0.5, v.EE, 1e-9)

	// Halfway through the outbound window of the first cue: the next
	// shape leaks in at half its capped influence.
	v, _ = track.sample(0.36, p)
	assert.InDelta(t, 1-0.5*p.NextInfluenceMax, v.AA, 1e-9)
	assert.InDelta(t, 0.5*p.NextInfluenceMax, v.EE, 1e-9)
}

func TestSampleCapsNextInfluence(t *testing.T) {
	track, err := NewTrack([]Cue{
		{Start: 0, End: 0.4},
		{Start: 0.4, End: 0.8, Targets: PhonemeVector{OH: 1}},
	})
	require.NoError(t, err)
	p := cueConfig()

	v, _ := track.sample(0.3999, p)
	assert.LessOrEqual(t, v.OH, p.NextInfluenceMax)
	assert.Greater(t, v.OH, 0.5)
}

func TestSampleSkipsBlendingAcrossGaps(t *testing.T) {
	track, err := NewTrack([]Cue{
		{Start: 0, End: 0.4, Targets: PhonemeVector{AA: 1}},
		{Start: 0.6, End: 1.0, Targets: PhonemeVector{EE: 1}},
	})
	require.NoError(t, err)

	v, silent := track.sample(0.62, cueConfig())
	assert.False(t, silent)
	assert.Equal(t, 0.0, v.AA, "blending leaked across a gap")
	assert.Equal(t, 1.0, v.EE)
}

func TestBlendWindowTakesTheSmallerCap(t *testing.T) {
	p := cueConfig()
	short := Cue{Start: 0, End: 0.1}
	long := Cue{Start: 0, End: 1.0}

	assert.InDelta(t, p.BlendWindowFraction*0.1, blendWindow(short, p), 1e-9)
	assert.InDelta(t, p.BlendWindowMax, blendWindow(long, p), 1e-9)
}

func TestSilenceAheadLooksPastTheBoundary(t *testing.T) {
	track, err := NewTrack([]Cue{
		{Start: 0, End: 0.5, Targets: PhonemeVector{AA: 1}},
		{Start: 0.5, End: 1.0, Silence: true},
	})
	require.NoError(t, err)

	assert.False(t, track.silenceAhead(0.30, 0.08))
	assert.True(t, track.silenceAhead(0.45, 0.08))
	assert.True(t, track.silenceAhead(0.70, 0.08))
}

func TestParseTrackForms(t *testing.T) {
	t.Run("array with phonemes", func(t *testing.T) {
		track, err := ParseTrack([]byte(`[{"start":0,"end":0.5,"phonemes":{"aa":0.7,"ou":0.2}}]`), nil)
		require.NoError(t, err)
		require.Equal(t, 1, track.Len())
		got := track.Cues()[0]
		assert.Equal(t, 0.7, got.Targets.AA)
		assert.Equal(t, 0.2, got.Targets.OU)
	})

	t.Run("wrapped object", func(t *testing.T) {
		track, err := ParseTrack([]byte(`{"cues":[{"start":0,"end":0.3,"shape":"D"}]}`), nil)
		require.NoError(t, err)
		assert.Equal(t, 1, track.Len())
		assert.Equal(t, 0.9, track.Cues()[0].Targets.AA)
	})

	t.Run("silence marker", func(t *testing.T) {
		track, err := ParseTrack([]byte(`[{"start":0,"end":0.2,"phonemes":{"aa":0.1,"_silence":1}}]`), nil)
		require.NoError(t, err)
		assert.True(t, track.Cues()[0].Silence)
	})

	t.Run("missing end extends to next cue", func(t *testing.T) {
		track, err := ParseTrack([]byte(`[{"start":0,"shape":"D"},{"start":0.3,"shape":"X"}]`), nil)
		require.NoError(t, err)
		cues := track.Cues()
		require.Len(t, cues, 2)
		assert.Equal(t, 0.3, cues[0].End)
		assert.InDelta(t, 0.4, cues[1].End, 1e-9)
		assert.True(t, cues[1].Silence, "rest shape should carry silence")
	})

	t.Run("unknown shape", func(t *testing.T) {
		_, err := ParseTrack([]byte(`[{"start":0,"end":0.5,"shape":"Z"}]`), nil)
		assert.ErrorIs(t, err, ErrInvalidTrack)
	})

	t.Run("neither shape nor phonemes", func(t *testing.T) {
		_, err := ParseTrack([]byte(`[{"start":0,"end":0.5}]`), nil)
		assert.ErrorIs(t, err, ErrInvalidTrack)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := ParseTrack([]byte(`mouth cues incoming`), nil)
		assert.ErrorIs(t, err, ErrInvalidTrack)
	})
}

func TestTrackFromShapeCues(t *testing.T) {
	track, err := TrackFromShapeCues([]ShapeCue{
		{Start: 0, Shape: "D"},
		{Start: 0.25, Shape: "C"},
		{Start: 0.5, End: 0.9, Shape: "X"},
	}, nil)
	require.NoError(t, err)

	cues := track.Cues()
	require.Len(t, cues, 3)
	assert.Equal(t, 0.25, cues[0].End, "zero end should extend to the next start")
	assert.Equal(t, 0.9, cues[2].End)
	assert.True(t, cues[2].Silence)

	_, err = TrackFromShapeCues([]ShapeCue{{Start: 0, Shape: "ZZ"}}, nil)
	assert.ErrorIs(t, err, ErrInvalidTrack)
}
