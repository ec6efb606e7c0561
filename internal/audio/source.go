// Package audio supplies the playback-side primitives the animation
// engines consume: a playback clock, transport intent, and optional
// time/frequency-domain analysis taps. The engines never own audio; they
// are handed a Source at utterance start and read from it each frame.
package audio

import (
	"encoding/binary"
	"sync"
)

// Source is the narrow surface the lip-sync engine binds to for one
// utterance. Clock reports seconds of playback position. Intent stays
// true from Play until Stop or natural end, across transient stalls.
type Source interface {
	Clock() float64
	Playing() bool
	Intent() bool
}

// Analyser is the optional analysis capability of a Source, discovered by
// interface assertion at attach time. Waveform fills dst with the most
// recent samples (-1..1) ending at the playback position and returns the
// count written. Spectrum fills dst with normalized magnitude bins (0..1);
// its full length is half the waveform's.
type Analyser interface {
	Waveform(dst []float32) int
	Spectrum(dst []float32) int
	SampleRate() int
	FFTSize() int
}

// Controls is the optional transport capability of a Source.
type Controls interface {
	Play() error
	Pause()
	Stop()
}

// Faulter reports and clears the most recent transient playback error.
// Consumers poll it; a fault never clears playback intent.
type Faulter interface {
	TakeFault() error
}

// ring keeps the most recent fftSize samples pushed by a feeder goroutine
// and snapshots them for the frame loop.
type ring struct {
	mu     sync.Mutex
	buf    []float32
	pos    int
	filled bool
}

func newRing(size int) *ring {
	return &ring{buf: make([]float32, size)}
}

func (r *ring) push(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range samples {
		r.buf[r.pos] = s
		r.pos++
		if r.pos == len(r.buf) {
			r.pos = 0
			r.filled = true
		}
	}
}

// snapshot writes the buffered samples oldest-first into dst and returns
// the count written. Unfilled rings yield only what has been pushed.
func (r *ring) snapshot(dst []float32) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.buf)
	if !r.filled {
		n = r.pos
	}
	if n > len(dst) {
		n = len(dst)
	}
	start := r.pos - n
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < n; i++ {
		dst[i] = r.buf[(start+i)%len(r.buf)]
	}
	return n
}

// DecodePCM16 converts little-endian 16-bit PCM bytes to -1..1 samples.
func DecodePCM16(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(v) / 32768.0
	}
	return out
}

// EncodePCM16 converts -1..1 samples to little-endian 16-bit PCM bytes.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s*32767)))
	}
	return out
}
