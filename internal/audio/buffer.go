package audio

import (
	"sync"
	"time"
)

// ClipSource holds utterance PCM in memory and models playback against the
// wall clock, the way a media element does. It implements Source,
// Analyser, and Controls. Samples may be appended while playing (streamed
// synthesis); Finalize marks the clip complete so playback can end
// naturally.
type ClipSource struct {
	mu        sync.Mutex
	samples   []float32
	rate      int
	fftSize   int
	analyzer  *spectrumAnalyzer
	playing   bool
	intent    bool
	final     bool
	startWall time.Time
	offset    float64 // seconds accumulated across pauses
	winBuf    []float32
}

// NewClipSource creates an empty streaming clip.
func NewClipSource(sampleRate, fftSize int) *ClipSource {
	return &ClipSource{
		rate:     sampleRate,
		fftSize:  fftSize,
		analyzer: newSpectrumAnalyzer(fftSize),
		winBuf:   make([]float32, fftSize),
	}
}

// NewClip creates a finalized clip from complete sample data.
func NewClip(samples []float32, sampleRate, fftSize int) *ClipSource {
	c := NewClipSource(sampleRate, fftSize)
	c.samples = samples
	c.final = true
	return c
}

// Append adds samples to the end of the clip.
func (c *ClipSource) Append(samples []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = append(c.samples, samples...)
}

// AppendPCM16 adds little-endian 16-bit PCM to the end of the clip.
func (c *ClipSource) AppendPCM16(pcm []byte) {
	c.Append(DecodePCM16(pcm))
}

// Finalize marks the clip complete; playback past the last sample then
// counts as a natural end.
func (c *ClipSource) Finalize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.final = true
}

// Duration returns the loaded clip length in seconds.
func (c *ClipSource) Duration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.durationLocked()
}

func (c *ClipSource) durationLocked() float64 {
	return float64(len(c.samples)) / float64(c.rate)
}

func (c *ClipSource) clockLocked() float64 {
	t := c.offset
	if c.playing {
		t += time.Since(c.startWall).Seconds()
	}
	if d := c.durationLocked(); t > d {
		t = d
	}
	return t
}

// Clock returns the playback position in seconds.
func (c *ClipSource) Clock() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clockLocked()
}

// Playing reports whether the clip is currently advancing.
func (c *ClipSource) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return false
	}
	if c.final && c.clockLocked() >= c.durationLocked() {
		return false
	}
	return true
}

// Intent reports playback intent: true from Play until Stop or natural
// end. Pauses and buffer underruns before Finalize keep the intent (the
// feed is still coming).
func (c *ClipSource) Intent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.intent {
		return false
	}
	if c.final && c.clockLocked() >= c.durationLocked() {
		return false
	}
	return true
}

// Play starts or resumes playback.
func (c *ClipSource) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intent = true
	if c.playing {
		return nil
	}
	c.playing = true
	c.startWall = time.Now()
	return nil
}

// Pause suspends playback, keeping the position and the intent.
func (c *ClipSource) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return
	}
	c.offset = c.clockLocked()
	c.playing = false
}

// Stop halts playback and clears intent.
func (c *ClipSource) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		c.offset = c.clockLocked()
	}
	c.playing = false
	c.intent = false
}

// Seek moves the playback position.
func (c *ClipSource) Seek(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	if d := c.durationLocked(); seconds > d {
		seconds = d
	}
	c.offset = seconds
	c.startWall = time.Now()
}

// Waveform fills dst with the samples leading up to the playback position
// and returns the count written. The window is zero-padded when the clock
// sits near the clip start.
func (c *ClipSource) Waveform(dst []float32) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.windowLocked(dst)
}

func (c *ClipSource) windowLocked(dst []float32) int {
	n := c.fftSize
	if n > len(dst) {
		n = len(dst)
	}
	end := int(c.clockLocked() * float64(c.rate))
	if end > len(c.samples) {
		end = len(c.samples)
	}
	start := end - n
	for i := 0; i < n; i++ {
		j := start + i
		if j < 0 || j >= len(c.samples) {
			dst[i] = 0
		} else {
			dst[i] = c.samples[j]
		}
	}
	return n
}

// Spectrum fills dst with normalized magnitude bins for the current
// window and returns the count written.
func (c *ClipSource) Spectrum(dst []float32) int {
	c.mu.Lock()
	n := c.windowLocked(c.winBuf)
	c.mu.Unlock()
	return c.analyzer.magnitudes(c.winBuf[:n], dst)
}

// SampleRate returns the clip sample rate.
func (c *ClipSource) SampleRate() int { return c.rate }

// FFTSize returns the analysis window size.
func (c *ClipSource) FFTSize() int { return c.fftSize }
