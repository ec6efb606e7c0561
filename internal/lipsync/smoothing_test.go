package lipsync

import (
	"math"
	"testing"

	"github.com/normanking/monavatar/internal/config"
)

func TestFrameFactor(t *testing.T) {
	tests := []struct {
		name  string
		coeff float64
		dt    float64
		want  float64
	}{
		{"reference frame applies the raw coefficient", 0.35, 1.0 / 60, 0.35},
		{"zero dt freezes", 0.35, 0, 0},
		{"zero coeff freezes", 0, 1.0 / 60, 0},
		{"full coeff snaps", 1.0, 1.0 / 60, 1},
		{"above one snaps", 1.5, 1.0 / 60, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := frameFactor(tt.coeff, tt.dt); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("frameFactor(%v, %v) = %v, want %v", tt.coeff, tt.dt, got, tt.want)
			}
		})
	}

	// Two half-steps must land where one full step does.
	one := 1 - math.Pow(1-0.35, 1)
	half := frameFactor(0.35, 0.5/60)
	composed := half + (1-half)*half
	if math.Abs(composed-one) > 1e-9 {
		t.Errorf("frame factor is not rate independent: %v vs %v", composed, one)
	}
}

func TestSymmetricSmootherSilenceOverride(t *testing.T) {
	cfg := config.DefaultConfig().LipSync.Smoothing
	cfg.Mode = "symmetric"
	s := newSmoother(cfg)

	cur := PhonemeVector{AA: 0.8, EE: 0.4}
	dt := 1.0 / 60

	// Ordinary closing uses the symmetric coefficient.
	got := s.Smooth(cur, PhonemeVector{}, false, dt)
	want := 0.8 * (1 - cfg.SymmetricCoeff)
	if math.Abs(got.AA-want) > 1e-9 {
		t.Errorf("plain close: got %v want %v", got.AA, want)
	}

	// Closing into silence uses the faster coefficient.
	got = s.Smooth(cur, PhonemeVector{}, true, dt)
	want = 0.8 * (1 - cfg.SilenceCloseCoeff)
	if math.Abs(got.AA-want) > 1e-9 {
		t.Errorf("silence close: got %v want %v", got.AA, want)
	}

	// Opening ignores the silence coefficient.
	got = s.Smooth(PhonemeVector{}, PhonemeVector{AA: 1}, true, dt)
	want = cfg.SymmetricCoeff
	if math.Abs(got.AA-want) > 1e-9 {
		t.Errorf("open during silence: got %v want %v", got.AA, want)
	}
}

func TestAsymmetricSmootherAttackAndRelease(t *testing.T) {
	cfg := config.DefaultConfig().LipSync.Smoothing
	cfg.Mode = "asymmetric"
	s := newSmoother(cfg)
	dt := 1.0 / 60

	got := s.Smooth(PhonemeVector{}, PhonemeVector{AA: 1, OU: 1}, false, dt)
	if math.Abs(got.AA-cfg.AA.Attack) > 1e-9 {
		t.Errorf("aa attack: got %v want %v", got.AA, cfg.AA.Attack)
	}
	if math.Abs(got.OU-cfg.OU.Attack) > 1e-9 {
		t.Errorf("ou attack: got %v want %v", got.OU, cfg.OU.Attack)
	}
	if got.AA <= got.OU {
		t.Error("jaw should open faster than rounded lips")
	}

	got = s.Smooth(PhonemeVector{AA: 1}, PhonemeVector{}, false, dt)
	want := 1 - cfg.AA.Release
	if math.Abs(got.AA-want) > 1e-9 {
		t.Errorf("aa release: got %v want %v", got.AA, want)
	}

	// Silence close overrides a slower release.
	got = s.Smooth(PhonemeVector{OU: 1}, PhonemeVector{}, true, dt)
	want = 1 - cfg.SilenceCloseCoeff
	if math.Abs(got.OU-want) > 1e-9 {
		t.Errorf("ou silence close: got %v want %v", got.OU, want)
	}
}

func TestSmootherConvergesEitherMode(t *testing.T) {
	for _, mode := range []string{"symmetric", "asymmetric"} {
		t.Run(mode, func(t *testing.T) {
			cfg := config.DefaultConfig().LipSync.Smoothing
			cfg.Mode = mode
			s := newSmoother(cfg)

			cur := PhonemeVector{}
			target := PhonemeVector{AA: 0.7, EE: 0.3, IH: 0.5, OH: 0.2, OU: 0.9}
			for i := 0; i < 240; i++ {
				cur = s.Smooth(cur, target, false, 1.0/60)
			}
			channels := cur.Channels()
			wanted := target.Channels()
			for i, ch := range channels {
				if math.Abs(ch-wanted[i]) > 1e-3 {
					t.Errorf("channel %s stuck at %v, want %v", ChannelNames[i], ch, wanted[i])
				}
			}
		})
	}
}
