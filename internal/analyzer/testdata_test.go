package analyzer

import (
	"math"
	"math/rand"

	"github.com/cwsl/rfthreat/internal/iq"
)

// synthesizeFSKBursts builds an IQFrame containing burstCount FSK bursts
// of the given duration, separated by interBurstGap, riding on a noise
// floor, matching §8 scenario 1's literal parameters. snrDb controls
// burst power above the synthesized noise floor.
func synthesizeFSKBursts(sampleRate uint64, ts float64, centerFreq uint64, burstCount int, burstDurSec, interBurstGapSec, snrDb float64, shiftHz float64) iq.Frame {
	rng := rand.New(rand.NewSource(1))

	totalDur := float64(burstCount)*burstDurSec + float64(burstCount-1)*interBurstGapSec + 0.01
	n := int(totalDur * float64(sampleRate))
	samples := make([]complex128, n)

	noiseAmp := 0.01
	burstAmp := noiseAmp * math.Pow(10, snrDb/20)

	for i := range samples {
		re := noiseAmp * (rng.Float64()*2 - 1)
		im := noiseAmp * (rng.Float64()*2 - 1)
		samples[i] = complex(re, im)
	}

	t := 0.0
	phase := 0.0
	for b := 0; b < burstCount; b++ {
		startSample := int(t * float64(sampleRate))
		burstSamples := int(burstDurSec * float64(sampleRate))
		markSpacePeriod := int(float64(sampleRate) / (2 * shiftHz))
		if markSpacePeriod < 1 {
			markSpacePeriod = 1
		}
		for j := 0; j < burstSamples && startSample+j < len(samples); j++ {
			// Toggle between mark/space tones periodically to produce a
			// frequency-shifted signal with real deviation.
			toneHz := shiftHz
			if (j/markSpacePeriod)%2 == 1 {
				toneHz = -shiftHz
			}
			phase += 2 * math.Pi * toneHz / float64(sampleRate)
			samples[startSample+j] = complex(burstAmp*math.Cos(phase), burstAmp*math.Sin(phase))
		}
		t += burstDurSec + interBurstGapSec
	}

	return iq.Frame{
		Timestamp:  ts,
		SampleRate: sampleRate,
		CenterFreq: centerFreq,
		Samples:    samples,
	}
}
