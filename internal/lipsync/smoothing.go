package lipsync

import (
	"math"

	"github.com/normanking/monavatar/internal/config"
)

// Smoother advances the output vector toward raw targets each frame.
// closingSilence marks frames where the utterance sits in (or is about to
// enter) a rest, so closing can run faster than ordinary releases.
type Smoother interface {
	Smooth(current, target PhonemeVector, closingSilence bool, dt float64) PhonemeVector
}

func newSmoother(cfg config.SmoothingConfig) Smoother {
	if cfg.Mode == "symmetric" {
		return &symmetricSmoother{
			coeff:        cfg.SymmetricCoeff,
			silenceCoeff: cfg.SilenceCloseCoeff,
		}
	}
	return &asymmetricSmoother{
		coeffs: [5]config.ChannelCoeffs{
			cfg.AA, cfg.EE, cfg.IH, cfg.OH, cfg.OU,
		},
		silenceCoeff: cfg.SilenceCloseCoeff,
	}
}

// frameFactor converts a per-reference-frame coefficient (60 Hz) into the
// fraction to apply for this dt, so smoothing speed does not depend on
// frame rate.
func frameFactor(coeff, dt float64) float64 {
	if coeff >= 1 {
		return 1
	}
	if coeff <= 0 || dt <= 0 {
		return 0
	}
	return 1 - math.Pow(1-coeff, dt*60)
}

// symmetricSmoother applies one coefficient to every channel in both
// directions, switching to the silence coefficient while closing into a
// rest.
type symmetricSmoother struct {
	coeff        float64
	silenceCoeff float64
}

func (s *symmetricSmoother) Smooth(current, target PhonemeVector, closingSilence bool, dt float64) PhonemeVector {
	k := frameFactor(s.coeff, dt)
	ks := frameFactor(s.silenceCoeff, dt)

	cur := current.Channels()
	tgt := target.Channels()
	for i := range cur {
		f := k
		if closingSilence && tgt[i] < cur[i] && ks > k {
			f = ks
		}
		cur[i] += (tgt[i] - cur[i]) * f
	}
	return fromChannels(cur)
}

// asymmetricSmoother applies per-channel attack and release coefficients,
// modeling mouths that open faster than they relax.
type asymmetricSmoother struct {
	coeffs       [5]config.ChannelCoeffs
	silenceCoeff float64
}

func (s *asymmetricSmoother) Smooth(current, target PhonemeVector, closingSilence bool, dt float64) PhonemeVector {
	cur := current.Channels()
	tgt := target.Channels()
	for i := range cur {
		coeff := s.coeffs[i].Attack
		if tgt[i] < cur[i] {
			coeff = s.coeffs[i].Release
			if closingSilence && s.silenceCoeff > coeff {
				coeff = s.silenceCoeff
			}
		}
		cur[i] += (tgt[i] - cur[i]) * frameFactor(coeff, dt)
	}
	return fromChannels(cur)
}
