package avatar

import "math"

// springState integrates one pose channel with inertia. The force model
// is tuned against a 60fps reference frame: acceleration and damping act
// per frame, and only the position step scales by real elapsed time.
// The step is stable only while accel*damping*dt*norm < 2*(1+damping);
// config.Clamp keeps accel and the frame-gap cap inside that bound.
type springState struct {
	current  float64
	target   float64
	velocity float64
}

func (s *springState) step(accel, damping, dt, norm float64) {
	force := (s.target - s.current) * accel
	s.velocity = (s.velocity + force) * damping
	s.current += s.velocity * dt * norm
}

func (s *springState) reset() {
	s.current = 0
	s.target = 0
	s.velocity = 0
}

// lerpState is the velocity-free smoother used for gaze. Eyes saccade
// rather than swing, so they converge exponentially with no overshoot.
type lerpState struct {
	current float64
	target  float64
}

func (l *lerpState) step(rate, dt float64) {
	l.current += (l.target - l.current) * (1 - math.Exp(-rate*dt))
}

func (l *lerpState) reset() {
	l.current = 0
	l.target = 0
}

func easeOutQuad(t float64) float64 { return t * (2 - t) }

func easeInQuad(t float64) float64 { return t * t }

// layeredNoise sums three detuned sines into a smooth aperiodic wander
// in roughly -1..1.
func layeredNoise(t float64) float64 {
	return (math.Sin(t) + 0.5*math.Sin(2.3*t+1.7) + 0.25*math.Sin(4.1*t+3.2)) / 1.75
}
