package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/normanking/monavatar/internal/audio"
	"github.com/normanking/monavatar/internal/avatar"
	"github.com/normanking/monavatar/internal/config"
	"github.com/normanking/monavatar/internal/lipsync"
)

const previewFPS = 30

func previewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Interactive terminal preview of the animation engines",
		Long: `Preview drives the state machine and lip-sync engine locally and
renders their output as terminal gauges. No render adapter or speech
backend is needed; demo utterances use the built-in synthesizer.`,
		RunE: runPreview,
	}
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Clamp()

	p := tea.NewProgram(newPreviewModel(cfg), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

type frameTickMsg time.Time

func frameTick() tea.Cmd {
	return tea.Tick(time.Second/previewFPS, func(t time.Time) tea.Msg {
		return frameTickMsg(t)
	})
}

type previewStyles struct {
	title   lipgloss.Style
	section lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	muted   lipgloss.Style
	keys    lipgloss.Style
}

func newPreviewStyles() previewStyles {
	return previewStyles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			Padding(0, 1),
		section: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")),
		label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("114")),
		muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		keys: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Padding(0, 1),
	}
}

type previewModel struct {
	cfg     *config.Config
	machine *avatar.Machine
	engine  *lipsync.Engine
	table   *lipsync.ShapeTable
	bars    []progress.Model
	styles  previewStyles

	speech *audio.ClipSource
	pose   avatar.PoseVector
	mouth  lipsync.PhonemeVector
	last   time.Time
	width  int
	highFi bool
}

func newPreviewModel(cfg *config.Config) *previewModel {
	bars := make([]progress.Model, len(lipsync.ChannelNames)+1)
	for i := range bars {
		bars[i] = progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(32),
			progress.WithoutPercentage(),
		)
	}
	return &previewModel{
		cfg:     cfg,
		machine: avatar.New(cfg.Motion, log.Component("avatar"), nil),
		engine:  lipsync.New(cfg.LipSync, log.Component("lipsync"), nil),
		table:   lipsync.DefaultShapeTable(),
		bars:    bars,
		styles:  newPreviewStyles(),
		highFi:  cfg.LipSync.HighFidelity,
	}
}

func (m *previewModel) Init() tea.Cmd {
	m.last = time.Now()
	return frameTick()
}

func (m *previewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.stopSpeaking()
			return m, tea.Quit
		case "i":
			m.machine.SetState(avatar.StateIdle)
		case "l":
			m.machine.SetState(avatar.StateListening)
		case "t":
			m.machine.SetState(avatar.StateThinking)
		case "k":
			m.machine.SetState(avatar.StateTalking)
		case " ":
			m.sayDemo(true)
		case "a":
			m.sayDemo(false)
		case "f":
			m.highFi = !m.highFi
			cfg := m.cfg.LipSync
			cfg.HighFidelity = m.highFi
			m.cfg.LipSync = cfg
			m.engine.ApplyConfig(cfg)
		case "s":
			m.stopSpeaking()
		}
		return m, nil

	case frameTickMsg:
		now := time.Time(msg)
		dt := now.Sub(m.last).Seconds()
		m.last = now
		m.pose = m.machine.Update(dt)
		m.mouth = m.engine.Update(dt)
		m.finishSpeech()
		return m, frameTick()
	}
	return m, nil
}

// sayDemo starts a canned utterance. With cues the engine follows the
// bundled shape track; without, it analyses the synthesized audio.
func (m *previewModel) sayDemo(withCues bool) {
	m.stopSpeaking()

	samples := audio.SynthesizeSpeech(
		audio.PlanSpeech("hello there how are you today"),
		m.cfg.Audio.SampleRate,
	)
	clip := audio.NewClip(samples, m.cfg.Audio.SampleRate, m.cfg.Audio.FFTSize)

	var track *lipsync.Track
	if withCues {
		track, _ = lipsync.TrackFromShapeCues(demoCues(), m.table)
	}

	m.engine.Attach(clip, track)
	clip.Play()
	m.speech = clip
	m.machine.SetState(avatar.StateTalking)
}

func (m *previewModel) stopSpeaking() {
	if m.speech == nil {
		return
	}
	m.speech.Stop()
	m.engine.Detach()
	m.speech = nil
}

func (m *previewModel) finishSpeech() {
	if m.speech == nil || m.speech.Playing() || m.speech.Intent() {
		return
	}
	if !m.mouth.IsZero(0.005) {
		return
	}
	m.engine.Detach()
	m.speech = nil
	if m.machine.State() == avatar.StateTalking {
		m.machine.SetState(avatar.StateIdle)
	}
}

func (m *previewModel) View() string {
	var b strings.Builder
	s := m.styles

	status := fmt.Sprintf("state %s  phase %s  strategy %s",
		m.machine.State(), m.machine.Phase(), m.engine.Strategy())
	b.WriteString(s.title.Render("monavatar preview"))
	b.WriteString("  ")
	b.WriteString(s.muted.Render(status))
	b.WriteString("\n\n")

	b.WriteString(s.section.Render("Pose"))
	b.WriteString("\n")
	b.WriteString(m.poseLine("pitch", m.pose.HeadPitch))
	b.WriteString(m.poseLine("yaw", m.pose.HeadYaw))
	b.WriteString(m.poseLine("roll", m.pose.HeadRoll))
	b.WriteString(m.poseLine("lean", m.pose.BodyLean))
	b.WriteString(m.poseLine("eye x", m.pose.EyeX))
	b.WriteString(m.poseLine("eye y", m.pose.EyeY))
	b.WriteString(fmt.Sprintf("  %s %s %s\n",
		s.label.Render(fmt.Sprintf("%-6s", "blink")),
		m.bars[len(lipsync.ChannelNames)].ViewAs(m.pose.Blink),
		s.value.Render(fmt.Sprintf("%5.2f", m.pose.Blink))))
	b.WriteString("\n")

	b.WriteString(s.section.Render("Mouth"))
	b.WriteString("\n")
	channels := m.mouth.Channels()
	for i, name := range lipsync.ChannelNames {
		v := channels[i]
		b.WriteString(fmt.Sprintf("  %s %s %s\n",
			s.label.Render(fmt.Sprintf("%-6s", name)),
			m.bars[i].ViewAs(v),
			s.value.Render(fmt.Sprintf("%5.2f", v))))
	}
	b.WriteString("\n")

	if m.speech != nil {
		b.WriteString(s.muted.Render(fmt.Sprintf("  speaking %.2fs / %.2fs",
			m.speech.Clock(), m.speech.Duration())))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(s.keys.Render(
		"[i]dle  [l]isten  [t]hink  tal[k]  [space] say cues  [a] say analysis  [f] fidelity  [s]top  [q]uit"))
	b.WriteString("\n")
	return b.String()
}

func (m *previewModel) poseLine(label string, v float64) string {
	return fmt.Sprintf("  %s %s %s\n",
		m.styles.label.Render(fmt.Sprintf("%-6s", label)),
		signedBar(v, 33),
		m.styles.value.Render(fmt.Sprintf("%+5.2f", v)))
}

// signedBar renders a -1..1 value as a marker on a centered track.
func signedBar(v float64, width int) string {
	if width%2 == 0 {
		width++
	}
	center := width / 2
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	pos := center + int(math.Round(v*float64(center)))
	runes := []rune(strings.Repeat("·", width))
	runes[center] = '|'
	runes[pos] = '●'
	return string(runes)
}

// demoCues approximates the bundled demo phrase. Timings are loose on
// purpose; they exercise blending, silence closing and shape lookup.
func demoCues() []lipsync.ShapeCue {
	return []lipsync.ShapeCue{
		{Start: 0.00, Shape: "X"},
		{Start: 0.10, Shape: "H"},
		{Start: 0.24, Shape: "C"},
		{Start: 0.40, Shape: "F"},
		{Start: 0.58, Shape: "X"},
		{Start: 0.70, Shape: "D"},
		{Start: 0.88, Shape: "E"},
		{Start: 1.04, Shape: "X"},
		{Start: 1.16, Shape: "B"},
		{Start: 1.34, Shape: "F"},
		{Start: 1.52, Shape: "G"},
		{Start: 1.70, Shape: "X"},
		{Start: 1.82, Shape: "D"},
		{Start: 2.00, Shape: "C"},
		{Start: 2.20, Shape: "E"},
		{Start: 2.40, Shape: "B"},
		{Start: 2.60, End: 2.85, Shape: "X"},
	}
}
