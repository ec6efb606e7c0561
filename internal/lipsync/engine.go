package lipsync

import (
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/normanking/monavatar/internal/audio"
	"github.com/normanking/monavatar/internal/bus"
	"github.com/normanking/monavatar/internal/config"
	"github.com/normanking/monavatar/internal/metrics"
)

// analysisFailLimit is how many consecutive empty reads from a playing
// source we tolerate before giving up on its analysis capability.
const analysisFailLimit = 30

// Engine derives the mouth vector for the currently attached utterance.
// One frame loop owns it: Attach, SetCueTrack, Detach and Update must all
// be called from that goroutine.
type Engine struct {
	cfg    config.LipSyncConfig
	log    zerolog.Logger
	events *bus.Bus

	src       audio.Source
	analyser  audio.Analyser
	faulter   audio.Faulter
	track     *Track
	strategy  Strategy
	utterance uuid.UUID

	current  PhonemeVector
	smoother Smoother

	waveBuf     []float32
	specBuf     []float32
	binHz       float64
	failedReads int
}

// New creates an engine with no utterance attached. events may be nil.
func New(cfg config.LipSyncConfig, log zerolog.Logger, events *bus.Bus) *Engine {
	return &Engine{
		cfg:      cfg,
		log:      log,
		events:   events,
		strategy: StrategySilent,
		smoother: newSmoother(cfg.Smoothing),
	}
}

// ApplyConfig swaps tuning between frames. Smoothing state and the
// current utterance binding are preserved.
func (e *Engine) ApplyConfig(cfg config.LipSyncConfig) {
	e.cfg = cfg
	e.smoother = newSmoother(cfg.Smoothing)
	e.resolveStrategy()
}

// Attach binds the engine to a new utterance: its audio source and, when
// available, its cue track. Any current utterance is detached first. The
// strategy is resolved here, once, from the source's declared
// capabilities. Returns the new utterance ID.
func (e *Engine) Attach(src audio.Source, track *Track) uuid.UUID {
	if e.src != nil {
		e.Detach()
	}

	e.src = src
	e.analyser = nil
	e.faulter = nil
	e.failedReads = 0
	if src != nil {
		if an, ok := src.(audio.Analyser); ok && an.FFTSize() > 0 && an.SampleRate() > 0 {
			e.analyser = an
			e.waveBuf = ensureLen(e.waveBuf, an.FFTSize())
			e.specBuf = ensureLen(e.specBuf, an.FFTSize()/2)
			e.binHz = float64(an.SampleRate()) / float64(an.FFTSize())
		}
		if f, ok := src.(audio.Faulter); ok {
			e.faulter = f
		}
	}
	e.track = track
	e.utterance = uuid.New()
	e.resolveStrategy()

	metrics.UtterancesTotal.Inc()
	e.log.Info().
		Str("utterance", e.utterance.String()).
		Str("strategy", e.strategy.String()).
		Bool("cues", track != nil).
		Msg("utterance attached")
	e.publish(bus.EventTypeUtteranceStarted, map[string]any{
		"utterance": e.utterance.String(),
		"strategy":  e.strategy.String(),
	})
	return e.utterance
}

// Detach drops the current utterance. Output decays to closed over the
// following frames.
func (e *Engine) Detach() {
	if e.src == nil {
		return
	}
	e.publish(bus.EventTypeUtteranceFinished, map[string]any{
		"utterance": e.utterance.String(),
	})
	e.log.Debug().Str("utterance", e.utterance.String()).Msg("utterance detached")

	e.src = nil
	e.analyser = nil
	e.faulter = nil
	e.track = nil
	e.failedReads = 0
	e.resolveStrategy()
}

// SetCueTrack replaces (or clears, with nil) the cue data for the current
// utterance and re-resolves the strategy.
func (e *Engine) SetCueTrack(track *Track) {
	e.track = track
	e.resolveStrategy()
}

// SetCueTrackBytes parses backend cue JSON and installs it. Invalid
// material is treated as absent: the engine logs one warning, emits the
// diagnostics, and continues on the next strategy down.
func (e *Engine) SetCueTrackBytes(data []byte, table *ShapeTable) error {
	track, err := ParseTrack(data, table)
	if err != nil {
		from := e.strategy
		e.SetCueTrack(nil)
		metrics.CueTracksRejected.Inc()
		e.log.Warn().Err(err).Msg("cue track rejected, continuing without cues")
		e.publish(bus.EventTypeCueTrackRejected, map[string]any{
			"utterance": e.utterance.String(),
			"error":     err.Error(),
		})
		if from == StrategyTimedCue && e.strategy != from {
			e.degraded(from)
		}
		return err
	}
	e.SetCueTrack(track)
	return nil
}

// Strategy returns the currently resolved strategy.
func (e *Engine) Strategy() Strategy { return e.strategy }

// Current returns the last smoothed output.
func (e *Engine) Current() PhonemeVector { return e.current }

// Utterance returns the active utterance ID.
func (e *Engine) Utterance() uuid.UUID { return e.utterance }

// Update advances one frame and returns the smoothed mouth vector. It
// never fails; placement problems degrade toward silence.
func (e *Engine) Update(dt float64) PhonemeVector {
	if math.IsNaN(dt) || dt < 0 {
		dt = 0
	} else if dt > 0.1 {
		dt = 0.1
	}

	if e.faulter != nil {
		if err := e.faulter.TakeFault(); err != nil {
			metrics.PlaybackErrors.Inc()
			e.log.Warn().Err(err).
				Str("utterance", e.utterance.String()).
				Msg("transient playback fault, keeping intent")
			e.publish(bus.EventTypePlaybackError, map[string]any{
				"utterance": e.utterance.String(),
				"error":     err.Error(),
			})
		}
	}

	target, closing := e.computeTargets()
	target = sanitizeVector(target)
	e.current = e.smoother.Smooth(e.current, target, closing, dt).Clamp(1)
	return e.current
}

// resolveStrategy picks the best strategy the current bindings support.
// Called only at attach, detach, cue replacement, and config swap.
func (e *Engine) resolveStrategy() {
	next := StrategySilent
	switch {
	case e.analyser != nil && e.cfg.HighFidelity:
		next = StrategyFormantLayered
	case e.src != nil && e.track != nil:
		next = StrategyTimedCue
	case e.analyser != nil:
		next = StrategySpectralCentroid
	case e.src != nil:
		next = StrategySyntheticEnvelope
	}
	if next != e.strategy {
		e.strategy = next
		e.publish(bus.EventTypeStrategyResolved, map[string]any{
			"utterance": e.utterance.String(),
			"strategy":  next.String(),
		})
	}
	for s, name := range strategyNames {
		v := 0.0
		if s == e.strategy {
			v = 1.0
		}
		metrics.LipsyncStrategy.WithLabelValues(name).Set(v)
	}
}

// degraded records that a higher strategy was lost to unusable input.
func (e *Engine) degraded(from Strategy) {
	metrics.LipsyncDegradations.WithLabelValues(from.String(), e.strategy.String()).Inc()
	e.log.Warn().
		Str("from", from.String()).
		Str("to", e.strategy.String()).
		Str("utterance", e.utterance.String()).
		Msg("lip-sync strategy degraded")
	e.publish(bus.EventTypeStrategyDegraded, map[string]any{
		"utterance": e.utterance.String(),
		"from":      from.String(),
		"to":        e.strategy.String(),
	})
}

func (e *Engine) computeTargets() (PhonemeVector, bool) {
	switch e.strategy {
	case StrategyTimedCue:
		return e.cueTargets()
	case StrategySpectralCentroid:
		return e.centroidTargets()
	case StrategyFormantLayered:
		return e.formantTargets()
	case StrategySyntheticEnvelope:
		return e.syntheticTargets()
	default:
		return PhonemeVector{}, true
	}
}

func (e *Engine) cueTargets() (PhonemeVector, bool) {
	if e.src == nil || e.track == nil {
		return PhonemeVector{}, true
	}
	at := e.src.Clock()
	target, silent := e.track.sample(at, e.cfg.Cues)
	if !silent {
		// Start closing slightly before a rest so the boundary reads crisp.
		silent = e.track.silenceAhead(at, e.cfg.Cues.BlendWindowMax)
	}
	return target, silent
}

// readWindow pulls the current waveform and handles the runtime loss of
// the analysis capability.
func (e *Engine) readWindow() ([]float32, bool) {
	n := e.analyser.Waveform(e.waveBuf)
	if n == 0 {
		if e.src.Playing() {
			e.failedReads++
			if e.failedReads >= analysisFailLimit {
				from := e.strategy
				e.analyser = nil
				e.resolveStrategy()
				e.degraded(from)
			}
		}
		return nil, false
	}
	e.failedReads = 0
	return e.waveBuf[:n], true
}

func (e *Engine) centroidTargets() (PhonemeVector, bool) {
	if e.analyser == nil || e.src == nil || !e.src.Playing() {
		return PhonemeVector{}, true
	}
	window, ok := e.readWindow()
	if !ok {
		return PhonemeVector{}, true
	}

	a := e.cfg.Analysis
	level := rmsLevel(window)
	if level < a.SilenceThreshold {
		return PhonemeVector{}, true
	}

	jaw := math.Min(a.MaxMouthOpen, level*a.Gain)
	vowel := clamp(level*a.Gain, 0, 1) * 0.9

	m := e.analyser.Spectrum(e.specBuf)
	c := spectralCentroid(e.specBuf[:m])

	v := PhonemeVector{AA: jaw}
	switch {
	case c >= a.CentroidBright:
		v.EE = vowel
	case c >= a.CentroidMid:
		v.IH = vowel
	case c >= a.CentroidDark:
		v.OH = vowel
	default:
		v.OU = vowel
	}
	return v, false
}

func (e *Engine) formantTargets() (PhonemeVector, bool) {
	if e.analyser == nil || e.src == nil || !e.src.Playing() {
		return PhonemeVector{}, true
	}
	window, ok := e.readWindow()
	if !ok {
		return PhonemeVector{}, true
	}

	a := e.cfg.Analysis
	level := rmsLevel(window)
	if level < a.SilenceThreshold {
		return PhonemeVector{}, true
	}

	m := e.analyser.Spectrum(e.specBuf)
	mags := e.specBuf[:m]

	f1e, f1c := bandStats(mags, e.binHz, a.F1Low, a.F1High)
	f2e, f2c := bandStats(mags, e.binHz, a.F2Low, a.F2High)
	sibE, _ := bandStats(mags, e.binHz, a.SibilantLow, a.SibilantHigh)

	jaw := clamp(0.5*level*a.Gain+0.8*f1e*a.Gain, 0, a.MaxMouthOpen)

	// Vowel identity on two axes: F2 centroid separates front from back
	// (an empty F2 band reads as back), F1 centroid separates open from
	// closed.
	frontness := 0.0
	if f2e > 1e-4 {
		frontness = smoothstep(f2c)
	}
	openness := 0.0
	if f1e > 1e-4 {
		openness = smoothstep(f1c)
	}

	vowel := clamp(level*a.Gain, 0, 1) * 0.9
	v := PhonemeVector{
		AA: jaw,
		EE: vowel * frontness * (1 - openness),
		IH: vowel * frontness * openness,
		OH: vowel * (1 - frontness) * openness,
		OU: vowel * (1 - frontness) * (1 - openness),
	}

	// Sibilance narrows the jaw and tenses the lips.
	total := f1e + f2e + sibE
	if total > 1e-6 {
		sibRatio := sibE / total
		v.AA *= 1 - a.SibilantSuppress*sibRatio
		v.IH = clamp(v.IH+a.SibilantTension*sibRatio, 0, 1)
	}

	// Micro-jitter keeps held vowels alive.
	if a.JitterAmplitude > 0 {
		t := e.src.Clock() * a.JitterSpeed
		ch := v.Channels()
		for i := range ch {
			ch[i] = clamp(ch[i]*(1+a.JitterAmplitude*layeredNoise(t+float64(i)*1.7)), 0, 1)
		}
		v = fromChannels(ch)
	}

	// A concurrent cue track refines, never dominates.
	if e.track != nil && a.CueBlend > 0 {
		cueT, cueSilent := e.track.sample(e.src.Clock(), e.cfg.Cues)
		if !cueSilent {
			v = v.Lerp(cueT, a.CueBlend)
		}
	}
	return v, false
}

func (e *Engine) syntheticTargets() (PhonemeVector, bool) {
	if e.src == nil || !e.src.Playing() {
		return PhonemeVector{}, true
	}
	s := e.cfg.Synth
	t := e.src.Clock() * s.Speed

	env := (layeredNoise(t) + 1) / 2
	base := s.Intensity * (0.25 + 0.75*env)

	return PhonemeVector{
		AA: base,
		OH: 0.3 * base * (1 + math.Sin(t*0.71)) / 2,
		EE: 0.25 * base * (1 + math.Sin(t*0.53+2.1)) / 2,
	}, false
}

// layeredNoise sums incommensurate sines into a -1..1 wander.
func layeredNoise(t float64) float64 {
	return (math.Sin(t) + 0.5*math.Sin(t*2.3+1.7) + 0.25*math.Sin(t*4.1+3.2)) / 1.75
}

func (e *Engine) publish(t bus.EventType, data map[string]any) {
	if e.events == nil {
		return
	}
	e.events.Publish(bus.Event{Type: t, Data: data})
}

func sanitizeVector(v PhonemeVector) PhonemeVector {
	ch := v.Channels()
	for i := range ch {
		if math.IsNaN(ch[i]) || math.IsInf(ch[i], 0) {
			ch[i] = 0
		}
	}
	return fromChannels(ch)
}

func ensureLen(buf []float32, n int) []float32 {
	if cap(buf) >= n {
		return buf[:n]
	}
	return make([]float32, n)
}
