package audio

import (
	"fmt"
	"io"
	"sync"

	"github.com/hajimehoshi/oto/v2"
)

// oto allows one context per process; everything shares the first one.
var (
	otoMu   sync.Mutex
	otoCtx  *oto.Context
	otoRate int
)

func otoContext(sampleRate int) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()
	if otoCtx != nil {
		if sampleRate != otoRate {
			return nil, fmt.Errorf("audio: output context already open at %d Hz", otoRate)
		}
		return otoCtx, nil
	}
	ctx, ready, err := oto.NewContext(sampleRate, 1, 2)
	if err != nil {
		return nil, err
	}
	<-ready
	otoCtx = ctx
	otoRate = sampleRate
	return ctx, nil
}

// OtoSource renders mono 16-bit PCM through the system output while
// exposing the playback clock and analysis taps. The feeding reader tees
// every sample it hands the device into the analysis ring, and the clock
// derives from bytes consumed minus the device's unplayed buffer.
type OtoSource struct {
	rate     int
	fftSize  int
	player   oto.Player
	reader   *teeReader
	analyzer *spectrumAnalyzer
	winBuf   []float32

	mu      sync.Mutex
	intent  bool
	faulted bool
}

// NewOtoSource opens (or reuses) the output device context and prepares a
// player over the given PCM.
func NewOtoSource(pcm []byte, sampleRate, fftSize int) (*OtoSource, error) {
	ctx, err := otoContext(sampleRate)
	if err != nil {
		return nil, err
	}
	s := &OtoSource{
		rate:     sampleRate,
		fftSize:  fftSize,
		analyzer: newSpectrumAnalyzer(fftSize),
		winBuf:   make([]float32, fftSize),
		reader: &teeReader{
			pcm: pcm,
			tap: newRing(fftSize),
		},
	}
	s.player = ctx.NewPlayer(s.reader)
	return s, nil
}

// Play starts or resumes playback.
func (s *OtoSource) Play() error {
	s.mu.Lock()
	s.intent = true
	s.mu.Unlock()
	s.player.Play()
	return nil
}

// Pause suspends playback, keeping the intent.
func (s *OtoSource) Pause() {
	s.player.Pause()
}

// Stop halts playback and clears intent.
func (s *OtoSource) Stop() {
	s.mu.Lock()
	s.intent = false
	s.mu.Unlock()
	s.player.Pause()
}

// Close releases the device player.
func (s *OtoSource) Close() error {
	s.Stop()
	return s.player.Close()
}

// Clock returns seconds of audio actually played.
func (s *OtoSource) Clock() float64 {
	played := s.reader.consumed() - s.player.UnplayedBufferSize()
	if played < 0 {
		played = 0
	}
	return float64(played) / float64(s.rate*2)
}

// Playing reports whether the device is rendering.
func (s *OtoSource) Playing() bool {
	return s.player.IsPlaying()
}

// Intent reports playback intent; it survives device stalls and only
// clears on Stop or when the clip has fully drained.
func (s *OtoSource) Intent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.intent {
		return false
	}
	if s.reader.done() && s.player.UnplayedBufferSize() == 0 {
		return false
	}
	return true
}

// TakeFault reports the player's sticky error once.
func (s *OtoSource) TakeFault() error {
	err := s.player.Err()
	if err == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.faulted {
		return nil
	}
	s.faulted = true
	return err
}

// Waveform fills dst with the most recently fed samples.
func (s *OtoSource) Waveform(dst []float32) int {
	return s.reader.tap.snapshot(dst)
}

// Spectrum fills dst with normalized magnitude bins for the current tap.
func (s *OtoSource) Spectrum(dst []float32) int {
	n := s.reader.tap.snapshot(s.winBuf)
	return s.analyzer.magnitudes(s.winBuf[:n], dst)
}

// SampleRate returns the device sample rate.
func (s *OtoSource) SampleRate() int { return s.rate }

// FFTSize returns the analysis window size.
func (s *OtoSource) FFTSize() int { return s.fftSize }

// teeReader feeds PCM to the device while copying decoded samples into
// the analysis ring.
type teeReader struct {
	mu  sync.Mutex
	pcm []byte
	pos int
	tap *ring
}

func (r *teeReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pos >= len(r.pcm) {
		return 0, io.EOF
	}
	n := copy(p, r.pcm[r.pos:])
	if n%2 == 1 {
		n--
	}
	if n == 0 {
		return 0, io.EOF
	}
	r.tap.push(DecodePCM16(r.pcm[r.pos : r.pos+n]))
	r.pos += n
	return n, nil
}

func (r *teeReader) consumed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos
}

func (r *teeReader) done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos >= len(r.pcm)
}
