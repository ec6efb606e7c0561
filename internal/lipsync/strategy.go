package lipsync

// Strategy identifies how the engine derives mouth targets for the
// current utterance. It is resolved once when a source attaches, from the
// capabilities the source declares, and changes only on attach, detach,
// or cue-track replacement.
type Strategy int

const (
	StrategySilent Strategy = iota
	StrategySyntheticEnvelope
	StrategySpectralCentroid
	StrategyTimedCue
	StrategyFormantLayered
)

var strategyNames = map[Strategy]string{
	StrategySilent:            "silent",
	StrategySyntheticEnvelope: "synthetic_envelope",
	StrategySpectralCentroid:  "spectral_centroid",
	StrategyTimedCue:          "timed_cue",
	StrategyFormantLayered:    "formant_layered",
}

func (s Strategy) String() string {
	if n, ok := strategyNames[s]; ok {
		return n
	}
	return "unknown"
}
