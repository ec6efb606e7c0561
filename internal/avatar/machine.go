package avatar

import (
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/monavatar/internal/bus"
	"github.com/normanking/monavatar/internal/config"
	"github.com/normanking/monavatar/internal/metrics"
)

// eventQueue holds scheduled head retargets ordered by apply time.
// Behaviors only push with increasing applyAt, so append keeps order.
type eventQueue struct {
	items []scheduledTarget
}

func (q *eventQueue) push(ev scheduledTarget) {
	q.items = append(q.items, ev)
}

func (q *eventQueue) pop(now float64) (scheduledTarget, bool) {
	if len(q.items) == 0 || q.items[0].applyAt > now {
		return scheduledTarget{}, false
	}
	ev := q.items[0]
	q.items = append(q.items[:0], q.items[1:]...)
	return ev, true
}

func (q *eventQueue) clear() {
	q.items = q.items[:0]
}

// Machine turns a requested conversational state into continuous pose
// output. All motion flows through the same pipeline: behaviors move
// targets, springs and exponential lerps chase them, blink and sway run
// on their own clocks. Not safe for concurrent use; the host drives it
// from a single frame loop.
type Machine struct {
	cfg    config.MotionConfig
	log    zerolog.Logger
	events *bus.Bus
	rng    *rand.Rand

	state        ConversationState
	phase        Phase
	stateClock   float64 // seconds in the current state, reset when Active begins
	phaseElapsed float64

	tg    targets
	queue eventQueue

	headPitch springState
	headYaw   springState
	headRoll  springState
	eyeX      lerpState
	eyeY      lerpState
	blink     *blinkController

	sway         lerpState
	swayElapsed  float64
	swayDeadline float64

	idle      idleScratch
	listening listeningScratch
	thinking  thinkingScratch
	talking   talkingScratch
}

// New creates a machine starting in idle at the active phase. events may
// be nil when no bus consumers exist.
func New(cfg config.MotionConfig, log zerolog.Logger, events *bus.Bus) *Machine {
	return newWithRand(cfg, log, events, rand.New(rand.NewSource(time.Now().UnixNano())))
}

func newWithRand(cfg config.MotionConfig, log zerolog.Logger, events *bus.Bus, rng *rand.Rand) *Machine {
	m := &Machine{
		cfg:    cfg,
		log:    log,
		events: events,
		rng:    rng,
		state:  StateIdle,
		phase:  PhaseActive,
	}
	m.blink = newBlinkController(rng, cfg.Blink)
	m.swayDeadline = randRange(rng, cfg.Sway.IntervalMin, cfg.Sway.IntervalMax)
	m.resetScratch(StateIdle)
	return m
}

// SetState requests a conversational state. Requesting the current state
// is a no-op; anything else suspends behavior and starts the return to
// neutral. Springs keep their position and velocity so the exit is
// smooth. Unknown states clamp to idle.
func (m *Machine) SetState(s ConversationState) {
	next, ok := ParseState(string(s))
	if !ok {
		m.log.Warn().Str("state", string(s)).Msg("Unknown conversation state, using idle")
	}
	if next == m.state {
		return
	}
	from := m.state
	m.state = next
	m.phase = PhaseTransitioning
	m.phaseElapsed = 0
	m.stateClock = 0
	m.queue.clear()
	m.resetScratch(next)

	metrics.StateTransitions.WithLabelValues(string(from), string(next)).Inc()
	m.log.Debug().Str("from", string(from)).Str("to", string(next)).Msg("Conversation state changed")
	m.publish(bus.Event{
		Type: bus.EventTypeStateChanged,
		Data: map[string]any{"from": string(from), "to": string(next)},
	})
}

func (m *Machine) State() ConversationState { return m.state }

func (m *Machine) Phase() Phase { return m.phase }

// ApplyConfig swaps the parameter records between frames. Scratch timers
// and spring positions survive; new ranges take effect on the next roll.
func (m *Machine) ApplyConfig(cfg config.MotionConfig) {
	m.cfg = cfg
}

// Update advances the machine by dt seconds and returns the new pose.
func (m *Machine) Update(dt float64) PoseVector {
	if math.IsNaN(dt) || dt < 0 {
		dt = 0
	}
	if limit := m.cfg.Physics.MaxDeltaTime; limit > 0 && dt > limit {
		dt = limit
	}
	m.stateClock += dt
	m.phaseElapsed += dt

	tr := m.cfg.Transition
	switch m.phase {
	case PhaseTransitioning:
		m.tg.decay(tr.NeutralRate, dt)
		if m.phaseElapsed >= tr.MinDuration && m.nearNeutral(tr.Epsilon) {
			m.tg.zero()
			m.setPhase(PhaseLocked)
		}
	case PhaseLocked:
		m.tg.zero()
		if m.phaseElapsed >= tr.SettleDuration {
			m.setPhase(PhaseActive)
			m.stateClock = 0
		}
	case PhaseActive:
		m.runBehavior(dt)
		for {
			ev, ok := m.queue.pop(m.stateClock)
			if !ok {
				break
			}
			m.tg.headPitch = ev.pitch
			m.tg.headYaw = ev.yaw
		}
	}

	accel, eyeRate := m.motionRates()
	ph := m.cfg.Physics

	m.headPitch.target = m.tg.headPitch + m.tg.driftPitch
	m.headYaw.target = m.tg.headYaw + m.tg.driftYaw
	m.headRoll.target = m.tg.headRoll
	m.headPitch.step(accel, ph.Damping, dt, ph.FrameRateNormalizer)
	m.headYaw.step(accel, ph.Damping, dt, ph.FrameRateNormalizer)
	m.headRoll.step(accel, ph.Damping, dt, ph.FrameRateNormalizer)

	m.eyeX.target = m.tg.eyeX + m.tg.jitterX
	m.eyeY.target = m.tg.eyeY + m.tg.jitterY
	m.eyeX.step(eyeRate, dt)
	m.eyeY.step(eyeRate, dt)

	m.updateSway(dt)

	blinkValue, blinkStarted := m.blink.update(dt, m.cfg.Blink)
	if blinkStarted {
		m.publish(bus.Event{Type: bus.EventTypeBlinkStarted})
	}

	return sanitizePose(PoseVector{
		HeadPitch: m.headPitch.current,
		HeadYaw:   m.headYaw.current,
		HeadRoll:  m.headRoll.current,
		BodyLean:  m.sway.current,
		EyeX:      clampF(m.eyeX.current, -1, 1),
		EyeY:      clampF(m.eyeY.current, -1, 1),
		Blink:     blinkValue,
	})
}

func (m *Machine) runBehavior(dt float64) {
	switch m.state {
	case StateListening:
		updateListening(&m.listening, m.cfg.Listening, m.rng, &m.tg, dt)
	case StateThinking:
		updateThinking(&m.thinking, m.cfg.Thinking, m.rng, &m.tg, &m.queue, m.stateClock, dt)
	case StateTalking:
		updateTalking(&m.talking, m.cfg.Talking, m.rng, &m.tg, dt)
	default:
		updateIdle(&m.idle, m.cfg.Idle, m.rng, &m.tg, m.stateClock, dt)
	}
}

// motionRates picks the spring acceleration and eye rate for the frame.
// Transitions use their own rates so every state exits at the same speed.
func (m *Machine) motionRates() (accel, eyeRate float64) {
	if m.phase != PhaseActive {
		return m.cfg.Transition.Accel, m.cfg.Transition.EyeRate
	}
	switch m.state {
	case StateListening:
		return m.cfg.Listening.Accel, m.cfg.Listening.EyeRate
	case StateThinking:
		return m.cfg.Thinking.Accel, m.cfg.Thinking.EyeRate
	case StateTalking:
		return m.cfg.Talking.Accel, m.cfg.Talking.EyeRate
	default:
		return m.cfg.Idle.Accel, m.cfg.Idle.EyeRate
	}
}

func (m *Machine) nearNeutral(eps float64) bool {
	return math.Abs(m.headPitch.current) < eps &&
		math.Abs(m.headYaw.current) < eps &&
		math.Abs(m.headRoll.current) < eps
}

func (m *Machine) setPhase(p Phase) {
	if p == m.phase {
		return
	}
	m.phase = p
	m.phaseElapsed = 0
	m.log.Trace().Str("state", string(m.state)).Str("phase", p.String()).Msg("Motion phase changed")
	m.publish(bus.Event{
		Type: bus.EventTypePhaseChanged,
		Data: map[string]any{"state": string(m.state), "phase": p.String()},
	})
}

func (m *Machine) resetScratch(s ConversationState) {
	switch s {
	case StateListening:
		m.listening = listeningScratch{
			glanceDeadline: randRange(m.rng, m.cfg.Listening.GlanceIntervalMin, m.cfg.Listening.GlanceIntervalMax),
		}
	case StateThinking:
		m.thinking = thinkingScratch{
			lookDeadline: randRange(m.rng, m.cfg.Thinking.LookIntervalMin, m.cfg.Thinking.LookIntervalMax),
		}
	case StateTalking:
		m.talking = talkingScratch{
			rerollDeadline: randRange(m.rng, m.cfg.Talking.NodRerollMin, m.cfg.Talking.NodRerollMax),
			tiltDeadline:   randRange(m.rng, m.cfg.Talking.TiltIntervalMin, m.cfg.Talking.TiltIntervalMax),
			turnDeadline:   randRange(m.rng, m.cfg.Talking.TurnIntervalMin, m.cfg.Talking.TurnIntervalMax),
			eyeDeadline:    randRange(m.rng, m.cfg.Talking.EyeDriftMin, m.cfg.Talking.EyeDriftMax),
		}
	default:
		m.idle = idleScratch{
			lookDeadline: randRange(m.rng, m.cfg.Idle.LookIntervalMin, m.cfg.Idle.LookIntervalMax),
			noisePhase:   m.rng.Float64() * 100,
		}
	}
}

func (m *Machine) updateSway(dt float64) {
	m.swayElapsed += dt
	if m.swayElapsed >= m.swayDeadline {
		m.swayElapsed = 0
		m.swayDeadline = randRange(m.rng, m.cfg.Sway.IntervalMin, m.cfg.Sway.IntervalMax)
		m.sway.target = (m.rng.Float64()*2 - 1) * m.cfg.Sway.Amplitude
	}
	m.sway.step(m.cfg.Sway.Rate, dt)
}

func (m *Machine) publish(ev bus.Event) {
	if m.events != nil {
		m.events.Publish(ev)
	}
}

func sanitizePose(p PoseVector) PoseVector {
	fix := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	}
	p.HeadPitch = fix(p.HeadPitch)
	p.HeadYaw = fix(p.HeadYaw)
	p.HeadRoll = fix(p.HeadRoll)
	p.BodyLean = fix(p.BodyLean)
	p.EyeX = fix(p.EyeX)
	p.EyeY = fix(p.EyeY)
	p.Blink = clampF(fix(p.Blink), 0, 1)
	return p
}
