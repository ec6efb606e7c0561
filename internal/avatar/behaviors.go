package avatar

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/normanking/monavatar/internal/config"
)

// targets holds the pose endpoints the integrators chase. Behavior
// functions write the base fields on their own schedules; drift and
// jitter are overwritten every frame and layered on top at integration
// time so they never accumulate into the base targets.
type targets struct {
	headPitch float64
	headYaw   float64
	headRoll  float64
	eyeX      float64
	eyeY      float64

	driftPitch float64
	driftYaw   float64
	jitterX    float64
	jitterY    float64
}

func (t *targets) decay(rate, dt float64) {
	k := math.Exp(-rate * dt)
	t.headPitch *= k
	t.headYaw *= k
	t.headRoll *= k
	t.eyeX *= k
	t.eyeY *= k
	t.driftPitch = 0
	t.driftYaw = 0
	t.jitterX = 0
	t.jitterY = 0
}

func (t *targets) zero() {
	*t = targets{}
}

// scheduledTarget is a head retarget waiting for its apply time. The
// thinking state queues these so the eyes visibly lead the head.
type scheduledTarget struct {
	applyAt float64 // state clock seconds
	pitch   float64
	yaw     float64
}

type idleScratch struct {
	lookElapsed  float64
	lookDeadline float64
	noisePhase   float64
}

type listeningScratch struct {
	cycleTime      float64
	glanceElapsed  float64
	glanceDeadline float64
	glanceHold     float64
	jitterElapsed  float64
	jitterX        float64
	jitterY        float64
}

type thinkingScratch struct {
	lookElapsed  float64
	lookDeadline float64
}

type talkingScratch struct {
	rerollElapsed  float64
	rerollDeadline float64
	nodActive      bool
	nodFreq        float64
	nodAmp         float64
	nodPhase       float64
	tiltElapsed    float64
	tiltDeadline   float64
	turnElapsed    float64
	turnDeadline   float64
	eyeElapsed     float64
	eyeDeadline    float64
}

// updateIdle retargets gaze on a relaxed randomized schedule. Most looks
// wander off-center; some return squarely to the viewer and hold there.
// A slow layered-noise drift keeps the head from ever freezing.
func updateIdle(sc *idleScratch, p config.IdleParams, rng *rand.Rand, tg *targets, elapsed, dt float64) {
	sc.lookElapsed += dt
	if sc.lookElapsed >= sc.lookDeadline {
		sc.lookElapsed = 0
		if rng.Float64() < p.UserLookChance {
			tg.headPitch = 0
			tg.headYaw = 0
			tg.eyeX = 0
			tg.eyeY = 0
			sc.lookDeadline = randRange(rng, p.UserLookHoldMin, p.UserLookHoldMax)
		} else {
			dir := randomDirection(rng)
			tg.headYaw = dir.X() * p.HeadYawRange
			tg.headPitch = dir.Y() * p.HeadPitchRange
			tg.eyeX = dir.X() * p.EyeRange
			tg.eyeY = dir.Y() * p.EyeRange
			sc.lookDeadline = randRange(rng, p.LookIntervalMin, p.LookIntervalMax)
		}
	}

	t := elapsed*p.DriftSpeed + sc.noisePhase
	tg.driftYaw = p.DriftAmplitude * layeredNoise(t)
	tg.driftPitch = p.DriftAmplitude * layeredNoise(0.8*t+11.3)
}

// updateListening keeps the gaze pinned on the speaker and runs a nod
// cycle that is active only for the leading fraction of each period, so
// nods read as deliberate acknowledgements rather than a metronome.
func updateListening(sc *listeningScratch, p config.ListeningParams, rng *rand.Rand, tg *targets, dt float64) {
	cycle := math.Max(p.NodCycle, 0.1)
	sc.cycleTime += dt
	for sc.cycleTime >= cycle {
		sc.cycleTime -= cycle
	}
	active := cycle * clampF(p.NodActiveFraction, 0, 1)
	if active > 0 && sc.cycleTime < active {
		tg.headPitch = math.Sin(sc.cycleTime/active*2*math.Pi) * p.NodAmplitude
	} else {
		tg.headPitch = 0
	}
	tg.headYaw = 0
	tg.eyeY = 0

	if sc.glanceHold > 0 {
		sc.glanceHold -= dt
		if sc.glanceHold <= 0 {
			tg.eyeX = 0
		}
	} else {
		sc.glanceElapsed += dt
		if sc.glanceElapsed >= sc.glanceDeadline {
			sc.glanceElapsed = 0
			sc.glanceDeadline = randRange(rng, p.GlanceIntervalMin, p.GlanceIntervalMax)
			if rng.Float64() < p.GlanceChance {
				tg.eyeX = randSign(rng) * p.GlanceAmount
				sc.glanceHold = randRange(rng, p.GlanceHoldMin, p.GlanceHoldMax)
			}
		}
	}

	sc.jitterElapsed += dt
	if sc.jitterElapsed >= p.JitterInterval {
		sc.jitterElapsed = 0
		sc.jitterX = (rng.Float64()*2 - 1) * p.JitterAmount
		sc.jitterY = (rng.Float64()*2 - 1) * p.JitterAmount
	}
	tg.jitterX = sc.jitterX
	tg.jitterY = sc.jitterY
}

// updateThinking wanders the gaze with an upward bias. Eye targets move
// immediately; the matching head retarget is pushed onto the event queue
// and applied a beat later.
func updateThinking(sc *thinkingScratch, p config.ThinkingParams, rng *rand.Rand, tg *targets, q *eventQueue, elapsed, dt float64) {
	sc.lookElapsed += dt
	if sc.lookElapsed < sc.lookDeadline {
		return
	}
	sc.lookElapsed = 0
	sc.lookDeadline = randRange(rng, p.LookIntervalMin, p.LookIntervalMax)
	lead := randRange(rng, p.EyeLeadMin, p.EyeLeadMax)

	if rng.Float64() < p.UserLookChance {
		tg.eyeX = 0
		tg.eyeY = 0
		q.push(scheduledTarget{applyAt: elapsed + lead})
		return
	}

	dir := randomDirection(rng)
	pitch := dir.Y()*p.HeadPitchRange - p.UpwardBias
	yaw := dir.X() * p.HeadYawRange

	eyeDir := dir
	if rng.Float64() < p.EyeDivergeChance {
		eyeDir = randomDirection(rng)
	}
	tg.eyeX = eyeDir.X() * p.EyeRange
	tg.eyeY = eyeDir.Y()*p.EyeRange - p.UpwardBias

	q.push(scheduledTarget{applyAt: elapsed + lead, pitch: pitch, yaw: yaw})
}

// updateTalking layers re-rolled nod bursts with sporadic tilt and turn
// impulses that decay geometrically, approximating the loose emphasis of
// natural speech.
func updateTalking(sc *talkingScratch, p config.TalkingParams, rng *rand.Rand, tg *targets, dt float64) {
	sc.rerollElapsed += dt
	if sc.rerollElapsed >= sc.rerollDeadline {
		sc.rerollElapsed = 0
		sc.rerollDeadline = randRange(rng, p.NodRerollMin, p.NodRerollMax)
		sc.nodActive = rng.Float64() < p.NodActiveChance
		if sc.nodActive {
			sc.nodFreq = randRange(rng, p.NodFreqMin, p.NodFreqMax)
			sc.nodAmp = randRange(rng, p.NodAmplitudeMin, p.NodAmplitudeMax)
		}
	}
	if sc.nodActive {
		sc.nodPhase += dt * sc.nodFreq * 2 * math.Pi
		tg.headPitch = math.Sin(sc.nodPhase) * sc.nodAmp
	} else {
		tg.headPitch *= math.Exp(-p.NodDecay * dt)
	}

	sc.tiltElapsed += dt
	if sc.tiltElapsed >= sc.tiltDeadline {
		sc.tiltElapsed = 0
		sc.tiltDeadline = randRange(rng, p.TiltIntervalMin, p.TiltIntervalMax)
		tg.headRoll = randSign(rng) * p.TiltAmount
	} else {
		tg.headRoll *= frameDecay(p.TiltDecay, dt)
	}

	sc.turnElapsed += dt
	if sc.turnElapsed >= sc.turnDeadline {
		sc.turnElapsed = 0
		sc.turnDeadline = randRange(rng, p.TurnIntervalMin, p.TurnIntervalMax)
		tg.headYaw = randSign(rng) * p.TurnAmount
	} else {
		tg.headYaw *= frameDecay(p.TurnDecay, dt)
	}

	sc.eyeElapsed += dt
	if sc.eyeElapsed >= sc.eyeDeadline {
		sc.eyeElapsed = 0
		sc.eyeDeadline = randRange(rng, p.EyeDriftMin, p.EyeDriftMax)
		tg.eyeX = (rng.Float64()*2 - 1) * p.EyeDriftRange
		tg.eyeY = (rng.Float64()*2 - 1) * p.EyeDriftRange * 0.6
	}
}

func randRange(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}

func randSign(rng *rand.Rand) float64 {
	if rng.Float64() < 0.5 {
		return -1
	}
	return 1
}

// randomDirection returns a unit vector with a uniformly random heading.
func randomDirection(rng *rand.Rand) mgl64.Vec2 {
	a := rng.Float64() * 2 * math.Pi
	return mgl64.Vec2{math.Cos(a), math.Sin(a)}
}

// frameDecay converts a per-reference-frame retention factor into one
// scaled for the actual elapsed time.
func frameDecay(factor, dt float64) float64 {
	if factor <= 0 {
		return 0
	}
	if factor >= 1 {
		return 1
	}
	return math.Pow(factor, dt*60)
}

func clampF(v, lo, hi float64) float64 {
	return mgl64.Clamp(v, lo, hi)
}
