// Package lipsync maps playing utterance audio, or its cue metadata, to a
// five-channel mouth shape vector once per animation frame.
package lipsync

// ChannelNames lists the mouth channels in vector order.
var ChannelNames = [5]string{"aa", "ee", "ih", "oh", "ou"}

// PhonemeVector holds the five viseme blend channels the renderer applies
// to the mouth. aa opens the jaw, ee and ih shape front vowels, oh and ou
// round the lips.
type PhonemeVector struct {
	AA float64 `json:"aa" yaml:"aa"`
	EE float64 `json:"ee" yaml:"ee"`
	IH float64 `json:"ih" yaml:"ih"`
	OH float64 `json:"oh" yaml:"oh"`
	OU float64 `json:"ou" yaml:"ou"`
}

// Channels returns the vector as an array in ChannelNames order.
func (v PhonemeVector) Channels() [5]float64 {
	return [5]float64{v.AA, v.EE, v.IH, v.OH, v.OU}
}

func fromChannels(c [5]float64) PhonemeVector {
	return PhonemeVector{AA: c[0], EE: c[1], IH: c[2], OH: c[3], OU: c[4]}
}

// Lerp interpolates toward to by t (0..1).
func (v PhonemeVector) Lerp(to PhonemeVector, t float64) PhonemeVector {
	return PhonemeVector{
		AA: lerp(v.AA, to.AA, t),
		EE: lerp(v.EE, to.EE, t),
		IH: lerp(v.IH, to.IH, t),
		OH: lerp(v.OH, to.OH, t),
		OU: lerp(v.OU, to.OU, t),
	}
}

// Scale multiplies every channel by f.
func (v PhonemeVector) Scale(f float64) PhonemeVector {
	return PhonemeVector{AA: v.AA * f, EE: v.EE * f, IH: v.IH * f, OH: v.OH * f, OU: v.OU * f}
}

// Clamp bounds every channel to [0, max].
func (v PhonemeVector) Clamp(max float64) PhonemeVector {
	return PhonemeVector{
		AA: clamp(v.AA, 0, max),
		EE: clamp(v.EE, 0, max),
		IH: clamp(v.IH, 0, max),
		OH: clamp(v.OH, 0, max),
		OU: clamp(v.OU, 0, max),
	}
}

// Max returns the largest channel value.
func (v PhonemeVector) Max() float64 {
	m := v.AA
	for _, c := range [4]float64{v.EE, v.IH, v.OH, v.OU} {
		if c > m {
			m = c
		}
	}
	return m
}

// IsZero reports whether every channel is within eps of zero.
func (v PhonemeVector) IsZero(eps float64) bool {
	for _, c := range v.Channels() {
		if c > eps || c < -eps {
			return false
		}
	}
	return true
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
