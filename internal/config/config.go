// Package config loads and validates the pipeline's runtime configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration tree for the threat-detection pipeline.
// One sub-struct per pipeline component, mirroring the component list in
// the system overview.
type Config struct {
	Demux       DemuxConfig       `yaml:"demux"`
	Analyzer    AnalyzerConfig    `yaml:"analyzer"`
	History     HistoryConfig     `yaml:"history"`
	Replay      ReplayConfig      `yaml:"replay"`
	Jamming     JammingConfig     `yaml:"jamming"`
	BruteForce  BruteForceConfig  `yaml:"brute_force"`
	Correlation CorrelationConfig `yaml:"correlation"`
	Outbound    OutboundConfig    `yaml:"outbound"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
	Prometheus  PrometheusConfig  `yaml:"prometheus"`
}

// DemuxConfig controls IQ frame chunking.
type DemuxConfig struct {
	SampleRateHz    uint64  `yaml:"sample_rate_hz"`
	FrameDurationMs float64 `yaml:"frame_duration_ms"`
	CenterFreqHz    uint64  `yaml:"center_freq_hz"`
	QueueCapacity   int     `yaml:"queue_capacity"`
}

// FrameSamples returns the number of IQ samples per frame.
func (d DemuxConfig) FrameSamples() int {
	return int(float64(d.SampleRateHz) * d.FrameDurationMs / 1000.0)
}

// AnalyzerConfig controls feature extraction and template matching.
type AnalyzerConfig struct {
	FFTSize              int       `yaml:"fft_size"`
	MinConfidence        float64   `yaml:"min_confidence"`
	MinSNRDb             float64   `yaml:"min_snr_db"`
	ChannelAllowlistHz   []float64 `yaml:"channel_allowlist_hz"`
	ChannelToleranceHz   float64   `yaml:"channel_tolerance_hz"`
	WorkerDeadlineMs     int       `yaml:"worker_deadline_ms"`
	TPMSMinGapSeconds    float64   `yaml:"tpms_min_gap_seconds"`
}

// HistoryConfig bounds the Signal History Buffer.
type HistoryConfig struct {
	MaxSize        int     `yaml:"max_size"`
	RetentionSecs  float64 `yaml:"retention_s"`
}

// ReplayConfig controls the Replay Detector.
type ReplayConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	WindowSeconds       float64 `yaml:"window_s"`
	MinDeltaSeconds     float64 `yaml:"min_delta_s"`
}

// JammingConfig controls the Jamming Detector.
type JammingConfig struct {
	NoiseElevationDb  float64 `yaml:"noise_elevation_db"`
	FlatnessThreshold float64 `yaml:"flatness_threshold"`
	SpotPeakRatio     float64 `yaml:"spot_peak_ratio"`
	SpotMinPowerDb    float64 `yaml:"spot_min_power"`
	HistoryWindowSecs float64 `yaml:"history_window_s"`
	MinConfidence     float64 `yaml:"min_confidence"`
}

// BruteForceConfig controls the Brute-Force Detector's sliding windows.
type BruteForceConfig struct {
	ShortWindowSecs   float64 `yaml:"short_window_s"`
	ShortThreshold    int     `yaml:"short_threshold"`
	MediumWindowSecs  float64 `yaml:"medium_window_s"`
	MediumThreshold   int     `yaml:"medium_threshold"`
	LongWindowSecs    float64 `yaml:"long_window_s"`
	LongThreshold     int     `yaml:"long_threshold"`
	BurstWindowSecs   float64 `yaml:"burst_window_s"`
	BurstThreshold    int     `yaml:"burst_threshold"`
	BurstMaxCV        float64 `yaml:"burst_max_cv"`
}

// CorrelationConfig controls the Proximity Correlator.
type CorrelationConfig struct {
	TimeoutSeconds float64 `yaml:"timeout_s"`
	QueueCapacity  int     `yaml:"queue_capacity"`
}

// OutboundConfig controls the Event Emitter's outbound queue.
type OutboundConfig struct {
	QueueCapacity   int `yaml:"queue_capacity"`
	ShutdownDrainMs int `yaml:"shutdown_drain_ms"`
}

// MQTTConfig controls the optional embedded-alert-client bridge.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      byte   `yaml:"qos"`
}

// DashboardConfig controls the optional WebSocket dashboard bridge.
type DashboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

// PrometheusConfig controls optional metrics export.
type PrometheusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

// Error is a structured configuration error, fatal at startup per the
// error-handling design (ConfigError).
type Error struct {
	Field string
	Msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

// Default returns a Config populated with the documented defaults.
func Default() *Config {
	return &Config{
		Demux: DemuxConfig{
			SampleRateHz:    2_048_000,
			FrameDurationMs: 100,
			QueueCapacity:   64,
		},
		Analyzer: AnalyzerConfig{
			FFTSize:            65536,
			MinConfidence:      0.6,
			MinSNRDb:           10,
			ChannelAllowlistHz: []float64{315_000_000, 433_920_000, 868_000_000},
			ChannelToleranceHz: 100_000,
			WorkerDeadlineMs:   100,
			TPMSMinGapSeconds:  30,
		},
		History: HistoryConfig{
			MaxSize:       1000,
			RetentionSecs: 300,
		},
		Replay: ReplayConfig{
			SimilarityThreshold: 0.95,
			WindowSeconds:       300,
			MinDeltaSeconds:     1,
		},
		Jamming: JammingConfig{
			NoiseElevationDb:  10,
			FlatnessThreshold: 0.5,
			SpotPeakRatio:     10,
			SpotMinPowerDb:    2,
			HistoryWindowSecs: 45,
			MinConfidence:     0.5,
		},
		BruteForce: BruteForceConfig{
			ShortWindowSecs:  10,
			ShortThreshold:   5,
			MediumWindowSecs: 60,
			MediumThreshold:  10,
			LongWindowSecs:   300,
			LongThreshold:    25,
			BurstWindowSecs:  1,
			BurstThreshold:   4,
			BurstMaxCV:       0.15,
		},
		Correlation: CorrelationConfig{
			TimeoutSeconds: 30,
			QueueCapacity:  1024,
		},
		Outbound: OutboundConfig{
			QueueCapacity:   4096,
			ShutdownDrainMs: 2000,
		},
	}
}

// Load reads and parses a YAML config file over Default(), so fields the
// file omits keep their defaults (a field set explicitly to zero stays
// zero), and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Field: "path", Msg: err.Error()}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &Error{Field: "yaml", Msg: err.Error()}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks invariants that a malformed config file could violate.
func (c *Config) Validate() error {
	if c.Demux.SampleRateHz == 0 {
		return &Error{Field: "demux.sample_rate_hz", Msg: "must be positive"}
	}
	if c.Demux.FrameDurationMs <= 0 {
		return &Error{Field: "demux.frame_duration_ms", Msg: "must be positive"}
	}
	if c.Analyzer.FFTSize <= 0 || c.Analyzer.FFTSize&(c.Analyzer.FFTSize-1) != 0 {
		return &Error{Field: "analyzer.fft_size", Msg: "must be a power of two"}
	}
	if c.Analyzer.FFTSize > 65536 {
		return &Error{Field: "analyzer.fft_size", Msg: "must not exceed 65536"}
	}
	if c.Analyzer.MinConfidence < 0 || c.Analyzer.MinConfidence > 1 {
		return &Error{Field: "analyzer.min_confidence", Msg: "must be in [0,1]"}
	}
	if c.History.MaxSize <= 0 {
		return &Error{Field: "history.max_size", Msg: "must be positive"}
	}
	if c.History.RetentionSecs <= 0 {
		return &Error{Field: "history.retention_s", Msg: "must be positive"}
	}
	if c.Correlation.TimeoutSeconds <= 0 {
		return &Error{Field: "correlation.timeout_s", Msg: "must be positive"}
	}
	if c.Outbound.QueueCapacity <= 0 {
		return &Error{Field: "outbound.queue_capacity", Msg: "must be positive"}
	}
	return nil
}

// WorkerDeadline returns the per-call CPU-offload deadline as a duration.
func (a AnalyzerConfig) WorkerDeadline() time.Duration {
	return time.Duration(a.WorkerDeadlineMs) * time.Millisecond
}

// ShutdownDrainDeadline returns the graceful-shutdown drain deadline.
func (o OutboundConfig) ShutdownDrainDeadline() time.Duration {
	return time.Duration(o.ShutdownDrainMs) * time.Millisecond
}

// CorrelationTimeout returns the correlation window length as a duration.
func (c CorrelationConfig) CorrelationTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}
