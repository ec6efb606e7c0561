// Package config provides configuration management for monavatar
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Motion         MotionConfig  `mapstructure:"motion" yaml:"motion"`
	LipSync        LipSyncConfig `mapstructure:"lipsync" yaml:"lipsync"`
	Audio          AudioConfig   `mapstructure:"audio" yaml:"audio"`
	Bridge         BridgeConfig  `mapstructure:"bridge" yaml:"bridge"`
	Logging        LoggingConfig `mapstructure:"logging" yaml:"logging"`
	ShapeTablePath string        `mapstructure:"shape_table_path" yaml:"shape_table_path"`
}

// MotionConfig holds every tunable of the avatar state machine. The
// per-state records are immutable once handed to the machine; a reload
// swaps whole records between frames.
type MotionConfig struct {
	Physics    PhysicsParams    `mapstructure:"physics" yaml:"physics"`
	Blink      BlinkParams      `mapstructure:"blink" yaml:"blink"`
	Transition TransitionParams `mapstructure:"transition" yaml:"transition"`
	Sway       SwayParams       `mapstructure:"sway" yaml:"sway"`
	Idle       IdleParams       `mapstructure:"idle" yaml:"idle"`
	Listening  ListeningParams  `mapstructure:"listening" yaml:"listening"`
	Thinking   ThinkingParams   `mapstructure:"thinking" yaml:"thinking"`
	Talking    TalkingParams    `mapstructure:"talking" yaml:"talking"`
}

// PhysicsParams configures the shared spring integrator.
type PhysicsParams struct {
	Damping             float64 `mapstructure:"damping" yaml:"damping"`                             // velocity retained per step, 0..1
	FrameRateNormalizer float64 `mapstructure:"frame_rate_normalizer" yaml:"frame_rate_normalizer"` // reference frame rate for velocity scaling
	MaxDeltaTime        float64 `mapstructure:"max_delta_time" yaml:"max_delta_time"`               // seconds; larger frame gaps are clamped
}

// BlinkParams configures the autonomous blink cycle.
type BlinkParams struct {
	IntervalMin       float64 `mapstructure:"interval_min" yaml:"interval_min"`         // seconds between blinks, lower bound
	IntervalMax       float64 `mapstructure:"interval_max" yaml:"interval_max"`
	Duration          float64 `mapstructure:"duration" yaml:"duration"`                 // seconds for a full close+open
	CloseFraction     float64 `mapstructure:"close_fraction" yaml:"close_fraction"`     // fraction of duration spent closing
	DoubleBlinkChance float64 `mapstructure:"double_blink_chance" yaml:"double_blink_chance"`
	DoubleDelayMin    float64 `mapstructure:"double_delay_min" yaml:"double_delay_min"` // seconds until the follow-up blink
	DoubleDelayMax    float64 `mapstructure:"double_delay_max" yaml:"double_delay_max"`
}

// TransitionParams configures the return-to-neutral phase between states.
type TransitionParams struct {
	NeutralRate    float64 `mapstructure:"neutral_rate" yaml:"neutral_rate"` // exponential pull of targets toward zero
	Epsilon        float64 `mapstructure:"epsilon" yaml:"epsilon"`           // pose distance considered "at neutral"
	MinDuration    float64 `mapstructure:"min_duration" yaml:"min_duration"` // seconds before neutral check may pass
	SettleDuration float64 `mapstructure:"settle_duration" yaml:"settle_duration"`
	Accel          float64 `mapstructure:"accel" yaml:"accel"`
	EyeRate        float64 `mapstructure:"eye_rate" yaml:"eye_rate"`
}

// SwayParams configures the autonomous body lean oscillation.
type SwayParams struct {
	IntervalMin float64 `mapstructure:"interval_min" yaml:"interval_min"`
	IntervalMax float64 `mapstructure:"interval_max" yaml:"interval_max"`
	Amplitude   float64 `mapstructure:"amplitude" yaml:"amplitude"`
	Rate        float64 `mapstructure:"rate" yaml:"rate"`
}

// IdleParams drives relaxed look-around behavior.
type IdleParams struct {
	Accel           float64 `mapstructure:"accel" yaml:"accel"`
	EyeRate         float64 `mapstructure:"eye_rate" yaml:"eye_rate"`
	LookIntervalMin float64 `mapstructure:"look_interval_min" yaml:"look_interval_min"`
	LookIntervalMax float64 `mapstructure:"look_interval_max" yaml:"look_interval_max"`
	UserLookChance  float64 `mapstructure:"user_look_chance" yaml:"user_look_chance"`
	UserLookHoldMin float64 `mapstructure:"user_look_hold_min" yaml:"user_look_hold_min"`
	UserLookHoldMax float64 `mapstructure:"user_look_hold_max" yaml:"user_look_hold_max"`
	HeadYawRange    float64 `mapstructure:"head_yaw_range" yaml:"head_yaw_range"`
	HeadPitchRange  float64 `mapstructure:"head_pitch_range" yaml:"head_pitch_range"`
	EyeRange        float64 `mapstructure:"eye_range" yaml:"eye_range"`
	DriftAmplitude  float64 `mapstructure:"drift_amplitude" yaml:"drift_amplitude"`
	DriftSpeed      float64 `mapstructure:"drift_speed" yaml:"drift_speed"`
}

// ListeningParams drives attentive nodding and glances.
type ListeningParams struct {
	Accel             float64 `mapstructure:"accel" yaml:"accel"`
	EyeRate           float64 `mapstructure:"eye_rate" yaml:"eye_rate"`
	NodCycle          float64 `mapstructure:"nod_cycle" yaml:"nod_cycle"`                     // seconds per nod cycle
	NodActiveFraction float64 `mapstructure:"nod_active_fraction" yaml:"nod_active_fraction"` // leading fraction of the cycle that nods
	NodAmplitude      float64 `mapstructure:"nod_amplitude" yaml:"nod_amplitude"`
	GlanceIntervalMin float64 `mapstructure:"glance_interval_min" yaml:"glance_interval_min"`
	GlanceIntervalMax float64 `mapstructure:"glance_interval_max" yaml:"glance_interval_max"`
	GlanceChance      float64 `mapstructure:"glance_chance" yaml:"glance_chance"`
	GlanceAmount      float64 `mapstructure:"glance_amount" yaml:"glance_amount"`
	GlanceHoldMin     float64 `mapstructure:"glance_hold_min" yaml:"glance_hold_min"`
	GlanceHoldMax     float64 `mapstructure:"glance_hold_max" yaml:"glance_hold_max"`
	JitterInterval    float64 `mapstructure:"jitter_interval" yaml:"jitter_interval"`
	JitterAmount      float64 `mapstructure:"jitter_amount" yaml:"jitter_amount"`
}

// ThinkingParams drives upward pondering with eye-lead retargets.
type ThinkingParams struct {
	Accel            float64 `mapstructure:"accel" yaml:"accel"`
	EyeRate          float64 `mapstructure:"eye_rate" yaml:"eye_rate"`
	LookIntervalMin  float64 `mapstructure:"look_interval_min" yaml:"look_interval_min"`
	LookIntervalMax  float64 `mapstructure:"look_interval_max" yaml:"look_interval_max"`
	UserLookChance   float64 `mapstructure:"user_look_chance" yaml:"user_look_chance"`
	UpwardBias       float64 `mapstructure:"upward_bias" yaml:"upward_bias"`
	HeadYawRange     float64 `mapstructure:"head_yaw_range" yaml:"head_yaw_range"`
	HeadPitchRange   float64 `mapstructure:"head_pitch_range" yaml:"head_pitch_range"`
	EyeRange         float64 `mapstructure:"eye_range" yaml:"eye_range"`
	EyeLeadMin       float64 `mapstructure:"eye_lead_min" yaml:"eye_lead_min"` // seconds the eyes move ahead of the head
	EyeLeadMax       float64 `mapstructure:"eye_lead_max" yaml:"eye_lead_max"`
	EyeDivergeChance float64 `mapstructure:"eye_diverge_chance" yaml:"eye_diverge_chance"`
}

// TalkingParams drives speech-accompanying nods, tilts and turns.
type TalkingParams struct {
	Accel           float64 `mapstructure:"accel" yaml:"accel"`
	EyeRate         float64 `mapstructure:"eye_rate" yaml:"eye_rate"`
	NodRerollMin    float64 `mapstructure:"nod_reroll_min" yaml:"nod_reroll_min"` // seconds between nod character re-rolls
	NodRerollMax    float64 `mapstructure:"nod_reroll_max" yaml:"nod_reroll_max"`
	NodActiveChance float64 `mapstructure:"nod_active_chance" yaml:"nod_active_chance"`
	NodFreqMin      float64 `mapstructure:"nod_freq_min" yaml:"nod_freq_min"`     // Hz
	NodFreqMax      float64 `mapstructure:"nod_freq_max" yaml:"nod_freq_max"`
	NodAmplitudeMin float64 `mapstructure:"nod_amplitude_min" yaml:"nod_amplitude_min"`
	NodAmplitudeMax float64 `mapstructure:"nod_amplitude_max" yaml:"nod_amplitude_max"`
	NodDecay        float64 `mapstructure:"nod_decay" yaml:"nod_decay"`           // exponential decay rate while inactive
	TiltIntervalMin float64 `mapstructure:"tilt_interval_min" yaml:"tilt_interval_min"`
	TiltIntervalMax float64 `mapstructure:"tilt_interval_max" yaml:"tilt_interval_max"`
	TiltAmount      float64 `mapstructure:"tilt_amount" yaml:"tilt_amount"`
	TiltDecay       float64 `mapstructure:"tilt_decay" yaml:"tilt_decay"`         // per-reference-frame geometric decay, 0..1
	TurnIntervalMin float64 `mapstructure:"turn_interval_min" yaml:"turn_interval_min"`
	TurnIntervalMax float64 `mapstructure:"turn_interval_max" yaml:"turn_interval_max"`
	TurnAmount      float64 `mapstructure:"turn_amount" yaml:"turn_amount"`
	TurnDecay       float64 `mapstructure:"turn_decay" yaml:"turn_decay"`
	EyeDriftMin     float64 `mapstructure:"eye_drift_min" yaml:"eye_drift_min"`   // seconds between gaze drifts
	EyeDriftMax     float64 `mapstructure:"eye_drift_max" yaml:"eye_drift_max"`
	EyeDriftRange   float64 `mapstructure:"eye_drift_range" yaml:"eye_drift_range"`
}

// LipSyncConfig holds every tunable of the lip-sync engine.
type LipSyncConfig struct {
	HighFidelity bool            `mapstructure:"high_fidelity" yaml:"high_fidelity"` // allow the formant strategy
	Smoothing    SmoothingConfig `mapstructure:"smoothing" yaml:"smoothing"`
	Analysis     AnalysisConfig  `mapstructure:"analysis" yaml:"analysis"`
	Cues         CueConfig       `mapstructure:"cues" yaml:"cues"`
	Synth        SynthConfig     `mapstructure:"synth" yaml:"synth"`
}

// SmoothingConfig selects and tunes the per-frame smoothing model.
// Coefficients are per reference frame (60 Hz) and normalized by dt.
type SmoothingConfig struct {
	Mode              string        `mapstructure:"mode" yaml:"mode"` // "symmetric" or "asymmetric"
	SymmetricCoeff    float64       `mapstructure:"symmetric_coeff" yaml:"symmetric_coeff"`
	SilenceCloseCoeff float64       `mapstructure:"silence_close_coeff" yaml:"silence_close_coeff"`
	AA                ChannelCoeffs `mapstructure:"aa" yaml:"aa"`
	EE                ChannelCoeffs `mapstructure:"ee" yaml:"ee"`
	IH                ChannelCoeffs `mapstructure:"ih" yaml:"ih"`
	OH                ChannelCoeffs `mapstructure:"oh" yaml:"oh"`
	OU                ChannelCoeffs `mapstructure:"ou" yaml:"ou"`
}

// ChannelCoeffs carries asymmetric attack/release for one mouth channel.
type ChannelCoeffs struct {
	Attack  float64 `mapstructure:"attack" yaml:"attack"`
	Release float64 `mapstructure:"release" yaml:"release"`
}

// AnalysisConfig tunes the amplitude/centroid/formant strategies.
type AnalysisConfig struct {
	SilenceThreshold float64 `mapstructure:"silence_threshold" yaml:"silence_threshold"` // RMS below this is silence
	Gain             float64 `mapstructure:"gain" yaml:"gain"`                           // RMS to jaw-open scale
	MaxMouthOpen     float64 `mapstructure:"max_mouth_open" yaml:"max_mouth_open"`
	CentroidBright   float64 `mapstructure:"centroid_bright" yaml:"centroid_bright"`     // normalized centroid thresholds
	CentroidMid      float64 `mapstructure:"centroid_mid" yaml:"centroid_mid"`
	CentroidDark     float64 `mapstructure:"centroid_dark" yaml:"centroid_dark"`
	F1Low            float64 `mapstructure:"f1_low" yaml:"f1_low"`                       // Hz
	F1High           float64 `mapstructure:"f1_high" yaml:"f1_high"`
	F2Low            float64 `mapstructure:"f2_low" yaml:"f2_low"`
	F2High           float64 `mapstructure:"f2_high" yaml:"f2_high"`
	SibilantLow      float64 `mapstructure:"sibilant_low" yaml:"sibilant_low"`
	SibilantHigh     float64 `mapstructure:"sibilant_high" yaml:"sibilant_high"`
	SibilantSuppress float64 `mapstructure:"sibilant_suppress" yaml:"sibilant_suppress"` // jaw suppression per unit sibilance
	SibilantTension  float64 `mapstructure:"sibilant_tension" yaml:"sibilant_tension"`   // lip tension added per unit sibilance
	JitterAmplitude  float64 `mapstructure:"jitter_amplitude" yaml:"jitter_amplitude"`
	JitterSpeed      float64 `mapstructure:"jitter_speed" yaml:"jitter_speed"`
	CueBlend         float64 `mapstructure:"cue_blend" yaml:"cue_blend"`                 // max blend toward cue targets in formant mode
}

// CueConfig tunes timed-cue coarticulation.
type CueConfig struct {
	BlendWindowMax      float64 `mapstructure:"blend_window_max" yaml:"blend_window_max"`           // seconds
	BlendWindowFraction float64 `mapstructure:"blend_window_fraction" yaml:"blend_window_fraction"` // of cue duration
	NextInfluenceMax    float64 `mapstructure:"next_influence_max" yaml:"next_influence_max"`
}

// SynthConfig tunes the playback-intent-only envelope.
type SynthConfig struct {
	Speed     float64 `mapstructure:"speed" yaml:"speed"`
	Intensity float64 `mapstructure:"intensity" yaml:"intensity"`
}

// AudioConfig configures the bundled playback sources.
type AudioConfig struct {
	SampleRate int `mapstructure:"sample_rate" yaml:"sample_rate"`
	FFTSize    int `mapstructure:"fft_size" yaml:"fft_size"`
}

// BridgeConfig configures the render adapter server.
type BridgeConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	FrameRate int    `mapstructure:"frame_rate" yaml:"frame_rate"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level   string `mapstructure:"level" yaml:"level"`
	Console bool   `mapstructure:"console" yaml:"console"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
}

// DefaultConfig returns the built-in tuning. Every value here matches the
// engines' documented behavior; config files override partially.
func DefaultConfig() *Config {
	return &Config{
		Motion: MotionConfig{
			Physics: PhysicsParams{
				Damping:             0.85,
				FrameRateNormalizer: 60,
				MaxDeltaTime:        0.1,
			},
			Blink: BlinkParams{
				IntervalMin:       2.0,
				IntervalMax:       6.0,
				Duration:          0.18,
				CloseFraction:     0.35,
				DoubleBlinkChance: 0.25,
				DoubleDelayMin:    0.12,
				DoubleDelayMax:    0.28,
			},
			Transition: TransitionParams{
				NeutralRate:    5.0,
				Epsilon:        0.015,
				MinDuration:    0.15,
				SettleDuration: 0.25,
				Accel:          0.05,
				EyeRate:        5.0,
			},
			Sway: SwayParams{
				IntervalMin: 3.0,
				IntervalMax: 7.0,
				Amplitude:   0.03,
				Rate:        1.2,
			},
			Idle: IdleParams{
				Accel:           0.03,
				EyeRate:         4.0,
				LookIntervalMin: 2.5,
				LookIntervalMax: 6.5,
				UserLookChance:  0.4,
				UserLookHoldMin: 1.5,
				UserLookHoldMax: 3.5,
				HeadYawRange:    0.22,
				HeadPitchRange:  0.12,
				EyeRange:        0.5,
				DriftAmplitude:  0.012,
				DriftSpeed:      0.35,
			},
			Listening: ListeningParams{
				Accel:             0.04,
				EyeRate:           7.0,
				NodCycle:          2.2,
				NodActiveFraction: 0.45,
				NodAmplitude:      0.06,
				GlanceIntervalMin: 1.8,
				GlanceIntervalMax: 4.2,
				GlanceChance:      0.35,
				GlanceAmount:      0.35,
				GlanceHoldMin:     0.3,
				GlanceHoldMax:     0.9,
				JitterInterval:    0.18,
				JitterAmount:      0.04,
			},
			Thinking: ThinkingParams{
				Accel:            0.02,
				EyeRate:          5.0,
				LookIntervalMin:  1.6,
				LookIntervalMax:  4.0,
				UserLookChance:   0.15,
				UpwardBias:       0.10,
				HeadYawRange:     0.26,
				HeadPitchRange:   0.10,
				EyeRange:         0.7,
				EyeLeadMin:       0.15,
				EyeLeadMax:       0.45,
				EyeDivergeChance: 0.3,
			},
			Talking: TalkingParams{
				Accel:           0.06,
				EyeRate:         6.0,
				NodRerollMin:    0.8,
				NodRerollMax:    2.2,
				NodActiveChance: 0.7,
				NodFreqMin:      1.2,
				NodFreqMax:      2.6,
				NodAmplitudeMin: 0.02,
				NodAmplitudeMax: 0.07,
				NodDecay:        8.0,
				TiltIntervalMin: 1.5,
				TiltIntervalMax: 4.5,
				TiltAmount:      0.08,
				TiltDecay:       0.92,
				TurnIntervalMin: 2.0,
				TurnIntervalMax: 6.0,
				TurnAmount:      0.12,
				TurnDecay:       0.94,
				EyeDriftMin:     0.5,
				EyeDriftMax:     1.4,
				EyeDriftRange:   0.25,
			},
		},
		LipSync: LipSyncConfig{
			HighFidelity: true,
			Smoothing: SmoothingConfig{
				Mode:              "asymmetric",
				SymmetricCoeff:    0.35,
				SilenceCloseCoeff: 0.55,
				AA:                ChannelCoeffs{Attack: 0.55, Release: 0.30},
				EE:                ChannelCoeffs{Attack: 0.45, Release: 0.25},
				IH:                ChannelCoeffs{Attack: 0.50, Release: 0.28},
				OH:                ChannelCoeffs{Attack: 0.42, Release: 0.24},
				OU:                ChannelCoeffs{Attack: 0.40, Release: 0.22},
			},
			Analysis: AnalysisConfig{
				SilenceThreshold: 0.01,
				Gain:             6.5,
				MaxMouthOpen:     0.85,
				CentroidBright:   0.62,
				CentroidMid:      0.38,
				CentroidDark:     0.18,
				F1Low:            200,
				F1High:           900,
				F2Low:            900,
				F2High:           2500,
				SibilantLow:      4000,
				SibilantHigh:     10000,
				SibilantSuppress: 0.6,
				SibilantTension:  0.35,
				JitterAmplitude:  0.04,
				JitterSpeed:      7.0,
				CueBlend:         0.3,
			},
			Cues: CueConfig{
				BlendWindowMax:      0.08,
				BlendWindowFraction: 0.30,
				NextInfluenceMax:    0.6,
			},
			Synth: SynthConfig{
				Speed:     9.0,
				Intensity: 0.5,
			},
		},
		Audio: AudioConfig{
			SampleRate: 24000,
			FFTSize:    1024,
		},
		Bridge: BridgeConfig{
			Addr:      ":7483",
			FrameRate: 60,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Dir:     "",
		},
	}
}

// Load reads configuration from file and environment. An empty path uses
// the default search locations (~/.monavatar, then the working directory).
// Absent keys keep their defaults; out-of-range values are clamped by the
// caller via Clamp.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return cfg, err
		}
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(homeDir, ".monavatar"))
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MONAVATAR")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if os.IsNotExist(err) {
				return cfg, nil
			}
			return cfg, err
		}
		return cfg, nil
	}

	if err := v.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Save writes the configuration to the given path (or the default
// ~/.monavatar/config.yaml when empty). It marshals through yaml tags
// directly so a saved file loads back field for field.
func Save(cfg *Config, path string) error {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		configDir := filepath.Join(homeDir, ".monavatar")
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return err
		}
		path = filepath.Join(configDir, "config.yaml")
	} else if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".monavatar"), nil
}

// clampRule bounds one float field.
type clampRule struct {
	name string
	val  *float64
	min  float64
	max  float64
}

// Clamp forces every tunable into its documented range and returns a
// description of each adjustment. Invalid values never reject a config.
func (c *Config) Clamp() []string {
	var adjusted []string

	m := &c.Motion
	l := &c.LipSync
	rules := []clampRule{
		{"motion.physics.damping", &m.Physics.Damping, 0.5, 0.999},
		{"motion.physics.frame_rate_normalizer", &m.Physics.FrameRateNormalizer, 1, 240},
		{"motion.physics.max_delta_time", &m.Physics.MaxDeltaTime, 0.01, 0.25},
		{"motion.blink.interval_min", &m.Blink.IntervalMin, 0.5, 30},
		{"motion.blink.interval_max", &m.Blink.IntervalMax, 0.5, 60},
		{"motion.blink.duration", &m.Blink.Duration, 0.05, 1},
		{"motion.blink.close_fraction", &m.Blink.CloseFraction, 0.1, 0.9},
		{"motion.blink.double_blink_chance", &m.Blink.DoubleBlinkChance, 0, 1},
		{"motion.blink.double_delay_min", &m.Blink.DoubleDelayMin, 0.05, 1},
		{"motion.blink.double_delay_max", &m.Blink.DoubleDelayMax, 0.05, 2},
		{"motion.transition.neutral_rate", &m.Transition.NeutralRate, 0.5, 30},
		{"motion.transition.epsilon", &m.Transition.Epsilon, 0.001, 0.2},
		{"motion.transition.min_duration", &m.Transition.MinDuration, 0, 2},
		{"motion.transition.settle_duration", &m.Transition.SettleDuration, 0, 2},
		{"motion.transition.accel", &m.Transition.Accel, 0.005, 0.25},
		{"motion.transition.eye_rate", &m.Transition.EyeRate, 0.5, 30},
		{"motion.sway.amplitude", &m.Sway.Amplitude, 0, 0.3},
		{"motion.idle.accel", &m.Idle.Accel, 0.005, 0.25},
		{"motion.idle.eye_rate", &m.Idle.EyeRate, 0.5, 30},
		{"motion.idle.user_look_chance", &m.Idle.UserLookChance, 0, 1},
		{"motion.idle.head_yaw_range", &m.Idle.HeadYawRange, 0, 1},
		{"motion.idle.head_pitch_range", &m.Idle.HeadPitchRange, 0, 1},
		{"motion.idle.eye_range", &m.Idle.EyeRange, 0, 1},
		{"motion.listening.accel", &m.Listening.Accel, 0.005, 0.25},
		{"motion.listening.eye_rate", &m.Listening.EyeRate, 0.5, 30},
		{"motion.listening.nod_active_fraction", &m.Listening.NodActiveFraction, 0.05, 0.95},
		{"motion.listening.glance_chance", &m.Listening.GlanceChance, 0, 1},
		{"motion.listening.glance_amount", &m.Listening.GlanceAmount, 0, 1},
		{"motion.thinking.accel", &m.Thinking.Accel, 0.005, 0.25},
		{"motion.thinking.eye_rate", &m.Thinking.EyeRate, 0.5, 30},
		{"motion.thinking.user_look_chance", &m.Thinking.UserLookChance, 0, 1},
		{"motion.thinking.upward_bias", &m.Thinking.UpwardBias, 0, 0.5},
		{"motion.thinking.eye_diverge_chance", &m.Thinking.EyeDivergeChance, 0, 1},
		{"motion.talking.accel", &m.Talking.Accel, 0.005, 0.25},
		{"motion.talking.eye_rate", &m.Talking.EyeRate, 0.5, 30},
		{"motion.talking.nod_active_chance", &m.Talking.NodActiveChance, 0, 1},
		{"motion.talking.tilt_decay", &m.Talking.TiltDecay, 0.5, 0.999},
		{"motion.talking.turn_decay", &m.Talking.TurnDecay, 0.5, 0.999},
		{"lipsync.smoothing.symmetric_coeff", &l.Smoothing.SymmetricCoeff, 0.01, 1},
		{"lipsync.smoothing.silence_close_coeff", &l.Smoothing.SilenceCloseCoeff, 0.01, 1},
		{"lipsync.smoothing.aa.attack", &l.Smoothing.AA.Attack, 0.01, 1},
		{"lipsync.smoothing.aa.release", &l.Smoothing.AA.Release, 0.01, 1},
		{"lipsync.smoothing.ee.attack", &l.Smoothing.EE.Attack, 0.01, 1},
		{"lipsync.smoothing.ee.release", &l.Smoothing.EE.Release, 0.01, 1},
		{"lipsync.smoothing.ih.attack", &l.Smoothing.IH.Attack, 0.01, 1},
		{"lipsync.smoothing.ih.release", &l.Smoothing.IH.Release, 0.01, 1},
		{"lipsync.smoothing.oh.attack", &l.Smoothing.OH.Attack, 0.01, 1},
		{"lipsync.smoothing.oh.release", &l.Smoothing.OH.Release, 0.01, 1},
		{"lipsync.smoothing.ou.attack", &l.Smoothing.OU.Attack, 0.01, 1},
		{"lipsync.smoothing.ou.release", &l.Smoothing.OU.Release, 0.01, 1},
		{"lipsync.analysis.silence_threshold", &l.Analysis.SilenceThreshold, 0, 0.5},
		{"lipsync.analysis.gain", &l.Analysis.Gain, 0.1, 50},
		{"lipsync.analysis.max_mouth_open", &l.Analysis.MaxMouthOpen, 0.1, 1},
		{"lipsync.analysis.centroid_bright", &l.Analysis.CentroidBright, 0, 1},
		{"lipsync.analysis.centroid_mid", &l.Analysis.CentroidMid, 0, 1},
		{"lipsync.analysis.centroid_dark", &l.Analysis.CentroidDark, 0, 1},
		{"lipsync.analysis.sibilant_suppress", &l.Analysis.SibilantSuppress, 0, 1},
		{"lipsync.analysis.sibilant_tension", &l.Analysis.SibilantTension, 0, 1},
		{"lipsync.analysis.cue_blend", &l.Analysis.CueBlend, 0, 0.3},
		{"lipsync.cues.blend_window_max", &l.Cues.BlendWindowMax, 0, 0.08},
		{"lipsync.cues.blend_window_fraction", &l.Cues.BlendWindowFraction, 0, 0.30},
		{"lipsync.cues.next_influence_max", &l.Cues.NextInfluenceMax, 0, 0.6},
		{"lipsync.synth.intensity", &l.Synth.Intensity, 0, 1},
	}

	for _, r := range rules {
		if *r.val < r.min {
			adjusted = append(adjusted, fmt.Sprintf("%s: %.4g clamped to %.4g", r.name, *r.val, r.min))
			*r.val = r.min
		} else if *r.val > r.max {
			adjusted = append(adjusted, fmt.Sprintf("%s: %.4g clamped to %.4g", r.name, *r.val, r.max))
			*r.val = r.max
		}
	}

	if m.Blink.IntervalMax < m.Blink.IntervalMin {
		adjusted = append(adjusted, "motion.blink.interval_max: below interval_min, raised")
		m.Blink.IntervalMax = m.Blink.IntervalMin
	}
	if m.Blink.DoubleDelayMax < m.Blink.DoubleDelayMin {
		adjusted = append(adjusted, "motion.blink.double_delay_max: below double_delay_min, raised")
		m.Blink.DoubleDelayMax = m.Blink.DoubleDelayMin
	}
	if l.Analysis.F1High <= l.Analysis.F1Low {
		adjusted = append(adjusted, "lipsync.analysis.f1 band: inverted, reset to defaults")
		l.Analysis.F1Low, l.Analysis.F1High = 200, 900
	}
	if l.Analysis.F2High <= l.Analysis.F2Low {
		adjusted = append(adjusted, "lipsync.analysis.f2 band: inverted, reset to defaults")
		l.Analysis.F2Low, l.Analysis.F2High = 900, 2500
	}
	if l.Analysis.SibilantHigh <= l.Analysis.SibilantLow {
		adjusted = append(adjusted, "lipsync.analysis.sibilant band: inverted, reset to defaults")
		l.Analysis.SibilantLow, l.Analysis.SibilantHigh = 4000, 10000
	}
	if l.Smoothing.Mode != "symmetric" && l.Smoothing.Mode != "asymmetric" {
		adjusted = append(adjusted, fmt.Sprintf("lipsync.smoothing.mode: %q unknown, using asymmetric", l.Smoothing.Mode))
		l.Smoothing.Mode = "asymmetric"
	}
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		adjusted = append(adjusted, fmt.Sprintf("audio.sample_rate: %d out of range, using 24000", c.Audio.SampleRate))
		c.Audio.SampleRate = 24000
	}
	if c.Audio.FFTSize < 256 || c.Audio.FFTSize > 16384 || c.Audio.FFTSize&(c.Audio.FFTSize-1) != 0 {
		adjusted = append(adjusted, fmt.Sprintf("audio.fft_size: %d not a power of two in range, using 1024", c.Audio.FFTSize))
		c.Audio.FFTSize = 1024
	}
	if c.Bridge.FrameRate < 1 || c.Bridge.FrameRate > 240 {
		adjusted = append(adjusted, fmt.Sprintf("bridge.frame_rate: %d out of range, using 60", c.Bridge.FrameRate))
		c.Bridge.FrameRate = 60
	}

	// The spring step is stable only while accel*damping*dt*norm stays
	// under 2*(1+damping). dt is capped by max_delta_time, so shrink that
	// cap until the worst-case stalled frame cannot diverge.
	worst := m.Transition.Accel
	for _, a := range []float64{m.Idle.Accel, m.Listening.Accel, m.Thinking.Accel, m.Talking.Accel} {
		worst = math.Max(worst, a)
	}
	d, norm := m.Physics.Damping, m.Physics.FrameRateNormalizer
	if limit := 1.8 * (1 + d) / (worst * d * norm); m.Physics.MaxDeltaTime > limit {
		adjusted = append(adjusted, fmt.Sprintf("motion.physics.max_delta_time: %.4g unstable with accel %.4g, lowered to %.4g",
			m.Physics.MaxDeltaTime, worst, limit))
		m.Physics.MaxDeltaTime = limit
	}

	return adjusted
}
