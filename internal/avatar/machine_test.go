package avatar

import (
	"math"
	"math/rand"
	"testing"

	"github.com/normanking/monavatar/internal/config"
	"github.com/normanking/monavatar/internal/logging"
)

func testMachine(seed int64) *Machine {
	cfg := config.DefaultConfig()
	return newWithRand(cfg.Motion, logging.Nop(), nil, rand.New(rand.NewSource(seed)))
}

func poseFinite(p PoseVector) bool {
	for _, v := range []float64{p.HeadPitch, p.HeadYaw, p.HeadRoll, p.BodyLean, p.EyeX, p.EyeY, p.Blink} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func TestMachineStartsIdleActive(t *testing.T) {
	m := testMachine(1)

	if m.State() != StateIdle {
		t.Errorf("expected idle start state, got %s", m.State())
	}
	if m.Phase() != PhaseActive {
		t.Errorf("expected active start phase, got %s", m.Phase())
	}
}

func TestUpdateSurvivesBadDeltaTime(t *testing.T) {
	m := testMachine(2)
	m.SetState(StateTalking)

	inputs := []float64{math.NaN(), -1, 0, 1e9, 0.016, math.Inf(1), -0.0001}
	for i := 0; i < 600; i++ {
		pose := m.Update(inputs[i%len(inputs)])
		if !poseFinite(pose) {
			t.Fatalf("frame %d produced non-finite pose: %+v", i, pose)
		}
		if pose.Blink < 0 || pose.Blink > 1 {
			t.Fatalf("frame %d blink out of range: %f", i, pose.Blink)
		}
	}
}

func TestSetStateSameValueIsNoOp(t *testing.T) {
	m := testMachine(3)

	m.SetState(StateListening)
	if m.Phase() != PhaseTransitioning {
		t.Fatalf("expected transitioning after state change, got %s", m.Phase())
	}

	for i := 0; i < 600 && m.Phase() != PhaseActive; i++ {
		m.Update(0.016)
	}
	if m.Phase() != PhaseActive {
		t.Fatal("transition never reached active phase")
	}

	m.SetState(StateListening)
	if m.Phase() != PhaseActive {
		t.Errorf("same-state request restarted the transition, phase %s", m.Phase())
	}
}

func TestTransitionEndsNearNeutral(t *testing.T) {
	m := testMachine(4)
	eps := config.DefaultConfig().Motion.Transition.Epsilon

	// Let talking behavior move the head well away from neutral.
	m.SetState(StateTalking)
	for i := 0; i < 600; i++ {
		m.Update(0.016)
	}

	m.SetState(StateIdle)
	var pose PoseVector
	for i := 0; i < 1200; i++ {
		pose = m.Update(0.016)
		if m.Phase() == PhaseActive {
			break
		}
	}
	if m.Phase() != PhaseActive {
		t.Fatal("transition never completed")
	}
	if math.Abs(pose.HeadPitch) >= eps || math.Abs(pose.HeadYaw) >= eps || math.Abs(pose.HeadRoll) >= eps {
		t.Errorf("head not near neutral when active began: pitch=%f yaw=%f roll=%f",
			pose.HeadPitch, pose.HeadYaw, pose.HeadRoll)
	}
}

func TestTransitionPassesThroughLocked(t *testing.T) {
	m := testMachine(5)
	m.SetState(StateThinking)

	sawLocked := false
	for i := 0; i < 1200 && m.Phase() != PhaseActive; i++ {
		m.Update(0.016)
		if m.Phase() == PhaseLocked {
			sawLocked = true
		}
	}
	if !sawLocked {
		t.Error("transition skipped the locked phase")
	}
	if m.Phase() != PhaseActive {
		t.Error("transition never reached active")
	}
}

func TestRetargetDuringTransition(t *testing.T) {
	m := testMachine(6)

	m.SetState(StateListening)
	m.Update(0.016)
	m.SetState(StateThinking)

	if m.State() != StateThinking {
		t.Errorf("expected thinking, got %s", m.State())
	}
	if m.Phase() != PhaseTransitioning {
		t.Errorf("expected transitioning after retarget, got %s", m.Phase())
	}
}

func TestUnknownStateClampsToIdle(t *testing.T) {
	if st, ok := ParseState("confused"); ok || st != StateIdle {
		t.Errorf("unknown state parsed as %s ok=%v", st, ok)
	}

	m := testMachine(7)
	m.SetState(StateTalking)
	m.SetState(ConversationState("confused"))
	if m.State() != StateIdle {
		t.Errorf("unknown state should land on idle, got %s", m.State())
	}
}

func TestZeroDeltaTimeHoldsPose(t *testing.T) {
	m := testMachine(8)
	m.SetState(StateTalking)
	for i := 0; i < 300; i++ {
		m.Update(0.016)
	}

	before := m.Update(0.016)
	after := m.Update(0)
	if before != after {
		t.Errorf("dt=0 changed the pose: %+v vs %+v", before, after)
	}
}

func TestBlinkCompletesWithinDuration(t *testing.T) {
	m := testMachine(12)
	dur := config.DefaultConfig().Motion.Blink.Duration
	const dt = 0.004

	completed := 0
	inBlink := false
	elapsed := 0.0
	for i := 0; i < 7500; i++ { // 30 simulated seconds
		blink := m.Update(dt).Blink
		if blink < 0 || blink > 1 {
			t.Fatalf("frame %d blink out of range: %f", i, blink)
		}
		switch {
		case !inBlink && blink > 0:
			inBlink = true
			elapsed = dt
		case inBlink && blink > 0:
			elapsed += dt
		case inBlink && blink == 0:
			elapsed += dt
			if elapsed > dur+2*dt {
				t.Fatalf("blink %d took %f s, configured duration %f", completed, elapsed, dur)
			}
			completed++
			inBlink = false
		}
	}
	if completed < 3 {
		t.Errorf("expected several blinks over 30s, saw %d", completed)
	}
}

func TestThinkingQueuesHeadRetargets(t *testing.T) {
	m := testMachine(9)
	m.SetState(StateThinking)

	for i := 0; i < 1200 && m.Phase() != PhaseActive; i++ {
		m.Update(0.016)
	}

	queued := false
	moved := false
	for i := 0; i < 3600; i++ {
		m.Update(0.016)
		if len(m.queue.items) > 0 {
			queued = true
		}
		if m.tg.headPitch != 0 || m.tg.headYaw != 0 {
			moved = true
		}
		if queued && moved {
			break
		}
	}
	if !queued {
		t.Error("thinking behavior never queued a head retarget")
	}
	if !moved {
		t.Error("queued head retarget never applied")
	}
}

func TestStateChangeClearsQueue(t *testing.T) {
	m := testMachine(10)
	m.queue.push(scheduledTarget{applyAt: 5, pitch: 0.3})
	m.SetState(StateListening)
	if len(m.queue.items) != 0 {
		t.Error("state change should clear scheduled retargets")
	}
}

func TestEventQueueOrder(t *testing.T) {
	var q eventQueue
	q.push(scheduledTarget{applyAt: 1, pitch: 0.1})
	q.push(scheduledTarget{applyAt: 2, pitch: 0.2})

	if _, ok := q.pop(0.5); ok {
		t.Error("pop before applyAt should return nothing")
	}
	ev, ok := q.pop(1.5)
	if !ok || ev.pitch != 0.1 {
		t.Errorf("expected first event, got %+v ok=%v", ev, ok)
	}
	ev, ok = q.pop(3)
	if !ok || ev.pitch != 0.2 {
		t.Errorf("expected second event, got %+v ok=%v", ev, ok)
	}
	if _, ok := q.pop(10); ok {
		t.Error("drained queue should be empty")
	}
}

func TestSpringConvergesForEveryStateAccel(t *testing.T) {
	motion := config.DefaultConfig().Motion
	phys := motion.Physics
	accels := map[string]float64{
		"transition": motion.Transition.Accel,
		"idle":       motion.Idle.Accel,
		"listening":  motion.Listening.Accel,
		"thinking":   motion.Thinking.Accel,
		"talking":    motion.Talking.Accel,
	}

	for name, accel := range accels {
		t.Run(name, func(t *testing.T) {
			s := springState{target: 0.5}
			for i := 0; i < 600; i++ {
				s.step(accel, phys.Damping, 1.0/60, phys.FrameRateNormalizer)
				if math.Abs(s.current) > 2 {
					t.Fatalf("spring diverged at frame %d: %f", i, s.current)
				}
			}
			if math.Abs(s.current-0.5) > 0.01 {
				t.Errorf("spring did not converge: %f", s.current)
			}
		})
	}
}

func TestSpringStableAtMaxFrameGap(t *testing.T) {
	phys := config.DefaultConfig().Motion.Physics

	// Worst legal combination: the largest accel Clamp admits stepped at
	// the largest frame gap Update will integrate.
	s := springState{target: 0.5}
	for i := 0; i < 240; i++ {
		s.step(0.25, phys.Damping, phys.MaxDeltaTime, phys.FrameRateNormalizer)
		if math.Abs(s.current) > 4 {
			t.Fatalf("spring diverged at step %d: %f", i, s.current)
		}
	}
	if math.Abs(s.current-0.5) > 0.01 {
		t.Errorf("spring did not converge at max frame gap: %f", s.current)
	}
}

func TestEyeLerpConverges(t *testing.T) {
	l := lerpState{target: -0.4}
	for i := 0; i < 300; i++ {
		l.step(5, 1.0/60)
	}
	if math.Abs(l.current+0.4) > 0.01 {
		t.Errorf("eye lerp did not converge: %f", l.current)
	}
}

func TestApplyConfigKeepsRunning(t *testing.T) {
	m := testMachine(11)
	m.SetState(StateListening)
	for i := 0; i < 120; i++ {
		m.Update(0.016)
	}

	cfg := config.DefaultConfig().Motion
	cfg.Listening.NodAmplitude = 0.5
	m.ApplyConfig(cfg)

	for i := 0; i < 120; i++ {
		if !poseFinite(m.Update(0.016)) {
			t.Fatal("pose went non-finite after config swap")
		}
	}
	if m.State() != StateListening {
		t.Errorf("config swap changed state to %s", m.State())
	}
}
