package avatar

import (
	"math"
	"math/rand"

	"github.com/normanking/monavatar/internal/config"
)

// blinkController runs the autonomous eyelid cycle. It is independent of
// conversational state and keeps running through transitions. Closing is
// faster than opening, matching how real lids move, and a completed
// blink occasionally schedules a quick follow-up.
type blinkController struct {
	rng *rand.Rand

	elapsed       float64 // since the last blink finished
	threshold     float64 // elapsed value that starts the next blink
	blinking      bool
	progress      float64 // seconds into the current blink
	pendingDouble bool
	value         float64
}

func newBlinkController(rng *rand.Rand, p config.BlinkParams) *blinkController {
	return &blinkController{
		rng:       rng,
		threshold: randRange(rng, p.IntervalMin, p.IntervalMax),
	}
}

// update advances the cycle and returns the eyelid closure in 0..1 plus
// whether a new blink started this frame.
func (b *blinkController) update(dt float64, p config.BlinkParams) (float64, bool) {
	started := false
	if !b.blinking {
		b.elapsed += dt
		if b.elapsed >= b.threshold {
			b.blinking = true
			b.progress = 0
			b.pendingDouble = false
			started = true
		} else {
			return 0, false
		}
	}

	b.progress += dt
	dur := math.Max(p.Duration, 1e-3)
	closeTime := dur * clampF(p.CloseFraction, 0.05, 0.95)
	switch {
	case b.progress < closeTime:
		b.value = easeOutQuad(b.progress / closeTime)
	case b.progress < dur:
		b.value = 1 - easeInQuad((b.progress-closeTime)/(dur-closeTime))
	default:
		b.value = 0
		b.blinking = false
		b.elapsed = 0
		b.pendingDouble = b.rng.Float64() < p.DoubleBlinkChance
		if b.pendingDouble {
			b.threshold = randRange(b.rng, p.DoubleDelayMin, p.DoubleDelayMax)
		} else {
			b.threshold = randRange(b.rng, p.IntervalMin, p.IntervalMax)
		}
	}
	return clampF(b.value, 0, 1), started
}
