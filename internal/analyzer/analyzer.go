package analyzer

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/cwsl/rfthreat/internal/config"
	"github.com/cwsl/rfthreat/internal/dsp"
	"github.com/cwsl/rfthreat/internal/iq"
)

// FrameError reports an invalid input frame that the Analyzer recovers
// from by skipping it (§4.2 failure semantics).
type FrameError struct {
	Reason string
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("analyzer: frame error: %s", e.Reason)
}

const (
	envelopeVarianceThreshold = 0.02
	ookVarianceThreshold      = 0.08
	widebandBandwidthHz       = 100_000
	widebandMaxSNRDb          = 3
	fskFreqStdThresholdHz     = 1000
	fskFreqRangeThresholdHz   = 5000
)

// Analyzer extracts SignalFeatures from IQFrames and matches them
// against the KeyFob/TPMS templates, carrying the small amount of state
// needed for TPMS's inter-burst-gap-since-last-signal check.
type Analyzer struct {
	cfg config.AnalyzerConfig

	mu             sync.Mutex
	lastTPMSByFreq map[uint64]float64
}

// New creates an Analyzer.
func New(cfg config.AnalyzerConfig) *Analyzer {
	return &Analyzer{
		cfg:            cfg,
		lastTPMSByFreq: make(map[uint64]float64),
	}
}

// Analyze implements §4.2's per-frame algorithm. It returns (nil, nil)
// when the frame should be silently discarded (no template match and
// SNR below the jamming-input floor).
func (a *Analyzer) Analyze(frame iq.Frame) (*DetectedSignal, error) {
	if len(frame.Samples) == 0 {
		return nil, &FrameError{Reason: "empty frame"}
	}
	for _, s := range frame.Samples {
		if math.IsNaN(real(s)) || math.IsNaN(imag(s)) {
			return nil, &FrameError{Reason: "NaN sample"}
		}
	}

	features := a.extractFeatures(frame)

	absoluteFreq := float64(frame.CenterFreq) + features.PeakFreqOffsetHz

	best := templateScore{signalType: SignalTypeUnknown, score: 0}

	if score, ok := scoreKeyFob(features, absoluteFreq, a.cfg.ChannelAllowlistHz, a.cfg.ChannelToleranceHz); ok && score > best.score {
		best = templateScore{signalType: SignalTypeKeyFob, score: score}
	}

	tpmsGapOK := a.tpmsGapOK(frame.CenterFreq, frame.Timestamp)
	if score, ok := scoreTPMS(features, absoluteFreq, a.cfg.ChannelAllowlistHz, a.cfg.ChannelToleranceHz, tpmsGapOK); ok && score > best.score {
		best = templateScore{signalType: SignalTypeTPMS, score: score}
	}

	minConfidence := a.cfg.MinConfidence
	if minConfidence <= 0 {
		minConfidence = 0.6
	}

	if best.score >= minConfidence {
		if best.signalType == SignalTypeTPMS {
			a.recordTPMS(frame.CenterFreq, frame.Timestamp)
		}
		return &DetectedSignal{
			ID:         uuid.NewString(),
			Timestamp:  frame.Timestamp,
			CenterFreq: frame.CenterFreq,
			Features:   features,
			SignalType: best.signalType,
			Confidence: best.score,
		}, nil
	}

	if features.SNRDb >= a.cfg.MinSNRDb {
		return &DetectedSignal{
			ID:         uuid.NewString(),
			Timestamp:  frame.Timestamp,
			CenterFreq: frame.CenterFreq,
			Features:   features,
			SignalType: SignalTypeUnknown,
			Confidence: best.score,
		}, nil
	}

	return nil, nil
}

func (a *Analyzer) tpmsGapOK(centerFreq uint64, now float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	last, ok := a.lastTPMSByFreq[centerFreq]
	if !ok {
		return true
	}
	gap := a.cfg.TPMSMinGapSeconds
	if gap <= 0 {
		gap = 30
	}
	return now-last >= gap
}

func (a *Analyzer) recordTPMS(centerFreq uint64, ts float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastTPMSByFreq[centerFreq] = ts
}

// extractFeatures implements §4.2 steps 1-6.
func (a *Analyzer) extractFeatures(frame iq.Frame) SignalFeatures {
	fftCap := a.cfg.FFTSize
	if fftCap <= 0 || fftCap > 65536 {
		fftCap = 65536
	}
	fftSize := dsp.LargestPowerOfTwoLE(len(frame.Samples), fftCap)

	spectrum := dsp.PowerSpectrumDB(frame.Samples, fftSize)

	noiseFloor := dsp.MedianOfLowerFraction(spectrum, 0.4)
	rssi := dsp.MeanOfTopFraction(spectrum, 0.1)
	snr := rssi - noiseFloor

	peakBin := argmax(spectrum)
	peakFreqOffset := dsp.BinFrequencyHz(peakBin, fftSize, frame.SampleRate)
	bandwidth := bandwidthAt3dB(spectrum, peakBin, fftSize, frame.SampleRate)

	instFreq := dsp.InstantaneousFrequency(frame.Samples, frame.SampleRate)
	freqStd, freqRange := dsp.FreqStats(instFreq)

	// The spectrum is an unnormalised Hann-windowed FFT, so its noise floor
	// sits 10*log10(sum(w^2)) dB above the per-sample envelope power that
	// extractBursts thresholds; rescale it to that per-sample level.
	windowEnergy := 0.0
	for _, w := range dsp.HannWindow(fftSize) {
		windowEnergy += w * w
	}
	sampleNoiseFloor := noiseFloor - 10*math.Log10(windowEnergy)

	durations, gaps, count := extractBursts(frame.Samples, frame.SampleRate, sampleNoiseFloor)

	modulation := classifyModulation(frame.Samples, freqStd, freqRange, bandwidth, snr)

	return SignalFeatures{
		PowerSpectrumDB:  spectrum,
		PeakFreqOffsetHz: peakFreqOffset,
		BandwidthHz:      bandwidth,
		SNRDb:            snr,
		RSSIDb:           rssi,
		NoiseFloorDb:     noiseFloor,
		BurstTiming:      gaps,
		BurstDurations:   durations,
		BurstCount:       count,
		FreqDeviationHz:  freqRange / 2,
		FreqStdHz:        freqStd,
		Modulation:       modulation,
	}
}

func argmax(data []float64) int {
	best := 0
	for i, v := range data {
		if v > data[best] {
			best = i
		}
	}
	return best
}

// bandwidthAt3dB finds the width (in Hz) of the contiguous region around
// peakBin that stays within 3dB of the peak (§4.2 step 3).
func bandwidthAt3dB(spectrum []float64, peakBin, fftSize int, sampleRate uint64) float64 {
	if len(spectrum) == 0 {
		return 0
	}
	peakPower := spectrum[peakBin]
	threshold := peakPower - 3

	lo := peakBin
	for lo > 0 && spectrum[lo-1] >= threshold {
		lo--
	}
	hi := peakBin
	for hi < len(spectrum)-1 && spectrum[hi+1] >= threshold {
		hi++
	}

	binWidthHz := float64(sampleRate) / float64(fftSize)
	return float64(hi-lo+1) * binWidthHz
}

// classifyModulation implements §4.2 step 5.
func classifyModulation(samples []complex128, freqStd, freqRange, bandwidth, snr float64) Modulation {
	if freqStd > fskFreqStdThresholdHz && freqRange > fskFreqRangeThresholdHz {
		if isSmoothDeviation(samples) {
			return ModulationGFSK
		}
		return ModulationFSK
	}

	if freqStd <= fskFreqStdThresholdHz {
		envelope := envelopeMagnitudes(samples)
		v := dsp.Variance(envelope)
		if v > envelopeVarianceThreshold {
			if v > ookVarianceThreshold {
				return ModulationOOK
			}
			return ModulationASK
		}
	}

	if bandwidth > widebandBandwidthHz && snr < widebandMaxSNRDb {
		return ModulationWideband
	}

	return ModulationUnknown
}

func envelopeMagnitudes(samples []complex128) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = math.Hypot(real(s), imag(s))
	}
	return out
}

// isSmoothDeviation distinguishes GFSK from raw FSK by the smoothness of
// the instantaneous-frequency trajectory: GFSK's Gaussian pre-filter
// produces a lower-jerk (smoother) frequency trajectory than hard FSK
// switching for the same deviation/std.
func isSmoothDeviation(samples []complex128) bool {
	// The sample rate only scales instantaneous frequency uniformly, so
	// the jerk/std shape ratio used here is rate-invariant; a fixed
	// reference rate of 1 is enough to compare smoothness.
	freq := dsp.InstantaneousFrequency(samples, 1)
	if len(freq) < 3 {
		return false
	}
	std, _ := dsp.FreqStats(freq)
	if std == 0 {
		return false
	}
	diffs := make([]float64, len(freq)-1)
	for i := range diffs {
		diffs[i] = freq[i+1] - freq[i]
	}
	jerkStd := dsp.StdDev(diffs)
	return jerkStd < std*0.5
}
