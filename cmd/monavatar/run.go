package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/normanking/monavatar/internal/audio"
	"github.com/normanking/monavatar/internal/avatar"
	"github.com/normanking/monavatar/internal/bridge"
	"github.com/normanking/monavatar/internal/bus"
	"github.com/normanking/monavatar/internal/config"
	"github.com/normanking/monavatar/internal/lipsync"
	"github.com/normanking/monavatar/internal/metrics"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the headless animation host",
		Long: `Run starts the frame loop, the render adapter WebSocket server and
the metrics endpoint. Adapters connect to /ws/frames and receive one
frame per tick; control messages on the same socket switch states and
start utterances.`,
		RunE: runHost,
	}
}

// host owns the engines. Everything that crosses a goroutine boundary
// (adapter commands, config reloads) lands in a channel the loop drains,
// so engine Update paths stay single-threaded.
type host struct {
	cfg     *config.Config
	log     zerolog.Logger
	events  *bus.Bus
	machine *avatar.Machine
	engine  *lipsync.Engine
	hub     *bridge.Hub
	table   *lipsync.ShapeTable

	clock  float64
	speech *audio.ClipSource
}

func runHost(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	for _, adj := range cfg.Clamp() {
		log.Zerolog().Warn().Str("component", "config").Msg(adj)
	}

	events := bus.New()
	defer events.Close()
	h := &host{
		cfg:     cfg,
		log:     log.Component("host"),
		events:  events,
		machine: avatar.New(cfg.Motion, log.Component("avatar"), events),
		engine:  lipsync.New(cfg.LipSync, log.Component("lipsync"), events),
		hub:     bridge.NewHub(log.Component("bridge"), events),
		table:   loadShapeTable(cfg.ShapeTablePath, log.Component("lipsync")),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := bridge.NewServer(cfg.Bridge, log.Component("bridge"), h.hub)
	server.ForwardEvents(events)
	go func() {
		if err := server.Start(ctx); err != nil {
			h.log.Error().Err(err).Msg("Bridge server failed")
			cancel()
		}
	}()

	reloads := make(chan *config.Config, 1)
	if path := configFilePath(); path != "" {
		watcher, err := config.NewWatcher(path, log.Component("config"), func(c *config.Config, adjusted []string) {
			select {
			case reloads <- c:
			default:
			}
		})
		if err != nil {
			h.log.Warn().Err(err).Msg("Config hot reload unavailable")
		} else {
			defer watcher.Stop()
		}
	}

	defer log.Close()
	return h.loop(ctx, reloads)
}

func (h *host) loop(ctx context.Context, reloads <-chan *config.Config) error {
	rate := h.cfg.Bridge.FrameRate
	if rate <= 0 {
		rate = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	h.log.Info().Int("fps", rate).Str("addr", h.cfg.Bridge.Addr).Msg("Animation host started")
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Shutdown signal received")
			h.stopSpeaking()
			return nil

		case c := <-reloads:
			h.applyConfig(c)
			if r := c.Bridge.FrameRate; r > 0 && r != rate {
				rate = r
				ticker.Reset(time.Second / time.Duration(rate))
			}

		case cmd := <-h.hub.Commands():
			h.handleCommand(cmd)

		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			h.step(dt)
		}
	}
}

func (h *host) step(dt float64) {
	start := time.Now()
	pose := h.machine.Update(dt)
	mouth := h.engine.Update(dt)
	h.clock += dt

	h.finishSpeech(mouth)

	h.hub.Broadcast(bridge.Frame{
		T:        h.clock,
		State:    string(h.machine.State()),
		Phase:    h.machine.Phase().String(),
		Strategy: h.engine.Strategy().String(),
		Pose:     pose,
		Mouth:    mouth,
	})
	metrics.FramesTotal.Inc()
	metrics.FrameDuration.Observe(time.Since(start).Seconds())
}

// finishSpeech detaches the utterance once playback has ended and the
// smoothed mouth has settled closed, so the close-out is never cut off.
// The machine returns to idle unless a command moved it elsewhere while
// the utterance played.
func (h *host) finishSpeech(mouth lipsync.PhonemeVector) {
	if h.speech == nil || h.speech.Playing() || h.speech.Intent() {
		return
	}
	if !mouth.IsZero(0.005) {
		return
	}
	h.engine.Detach()
	h.speech = nil
	if h.machine.State() == avatar.StateTalking {
		h.machine.SetState(avatar.StateIdle)
	}
}

func (h *host) handleCommand(cmd bridge.Command) {
	switch cmd.Type {
	case "state":
		st, ok := avatar.ParseState(cmd.State)
		if !ok {
			h.log.Warn().Str("state", cmd.State).Msg("Unknown state requested, using idle")
		}
		h.machine.SetState(st)
	case "say":
		h.say(cmd.Text, cmd.Cues)
	case "stop":
		h.stopSpeaking()
	default:
		h.log.Warn().Str("type", cmd.Type).Msg("Unknown command type")
	}
}

// say starts a new utterance, stopping any current one first. Text is
// rendered through the placeholder synthesizer; a real deployment feeds
// PCM from its speech backend instead.
func (h *host) say(text string, cues []byte) {
	if text == "" && len(cues) == 0 {
		h.log.Warn().Msg("Say command carried neither text nor cues")
		return
	}
	h.stopSpeaking()

	rate := h.cfg.Audio.SampleRate
	var samples []float32
	if text != "" {
		samples = audio.SynthesizeSpeech(audio.PlanSpeech(text), rate)
	} else {
		// Cue-only utterance: a silent clip sized to the track keeps
		// the playback clock running for the cue strategy.
		track, err := lipsync.ParseTrack(cues, h.table)
		if err != nil {
			h.log.Warn().Err(err).Msg("Say command with invalid cue track and no text")
			return
		}
		samples = make([]float32, int(track.Duration()*float64(rate)))
	}

	clip := audio.NewClip(samples, rate, h.cfg.Audio.FFTSize)
	id := h.engine.Attach(clip, nil)
	if len(cues) > 0 {
		if err := h.engine.SetCueTrackBytes(cues, h.table); err != nil {
			h.log.Debug().Err(err).Msg("Cue track rejected, analysis fallback in effect")
		}
	}
	clip.Play()
	h.speech = clip
	h.machine.SetState(avatar.StateTalking)
	h.log.Info().
		Str("utterance", id.String()).
		Float64("seconds", clip.Duration()).
		Str("strategy", h.engine.Strategy().String()).
		Msg("Utterance started")
}

func (h *host) stopSpeaking() {
	if h.speech == nil {
		return
	}
	h.speech.Stop()
	h.engine.Detach()
	h.speech = nil
}

func (h *host) applyConfig(c *config.Config) {
	for _, adj := range c.Clamp() {
		h.log.Warn().Msg(adj)
	}
	h.cfg = c
	h.machine.ApplyConfig(c.Motion)
	h.engine.ApplyConfig(c.LipSync)
	h.table = loadShapeTable(c.ShapeTablePath, h.log)
	h.events.Publish(bus.Event{Type: bus.EventTypeConfigReloaded})
	h.log.Info().Msg("Configuration reloaded")
}

func loadShapeTable(path string, log zerolog.Logger) *lipsync.ShapeTable {
	if path == "" {
		return lipsync.DefaultShapeTable()
	}
	table, err := lipsync.LoadShapeTable(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Shape table load failed, using defaults")
		return lipsync.DefaultShapeTable()
	}
	return table
}

func configFilePath() string {
	if cfgPath != "" {
		return cfgPath
	}
	dir, err := config.GetConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}
