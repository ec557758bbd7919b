package threat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwsl/rfthreat/internal/analyzer"
	"github.com/cwsl/rfthreat/internal/detect"
)

func TestSecurityEventRoundTripsThroughJSON(t *testing.T) {
	original := SecurityEvent{
		EventID:     "evt-1",
		Timestamp:   123.456,
		Source:      SourceRF,
		ThreatLevel: LevelMalicious,
		Signal: analyzer.DetectedSignal{
			SignalType: analyzer.SignalTypeKeyFob,
			CenterFreq: 433_920_000,
			Confidence: 0.82,
			Features: analyzer.SignalFeatures{
				RSSIDb:      -45.5,
				SNRDb:       22.1,
				Modulation:  analyzer.ModulationFSK,
				BandwidthHz: 12_500,
				BurstCount:  5,
			},
		},
		Verdicts: []detect.Verdict{
			{Kind: detect.KindReplay, Confidence: 0.97, Evidence: detect.Evidence{"time_delta_s": 30.0}},
		},
		Action: ActionAlert,
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded SecurityEvent
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, original.EventID, decoded.EventID)
	assert.InDelta(t, original.Timestamp, decoded.Timestamp, 1e-9)
	assert.Equal(t, original.Source, decoded.Source)
	assert.Equal(t, original.ThreatLevel, decoded.ThreatLevel)
	assert.Equal(t, original.Signal.SignalType, decoded.Signal.SignalType)
	assert.Equal(t, original.Signal.CenterFreq, decoded.Signal.CenterFreq)
	assert.InDelta(t, original.Signal.Confidence, decoded.Signal.Confidence, 1e-9)
	assert.InDelta(t, original.Signal.Features.RSSIDb, decoded.Signal.Features.RSSIDb, 1e-9)
	assert.Equal(t, original.Signal.Features.Modulation, decoded.Signal.Features.Modulation)
	assert.Equal(t, original.Signal.Features.BurstCount, decoded.Signal.Features.BurstCount)
	require.Len(t, decoded.Verdicts, 1)
	assert.Equal(t, original.Verdicts[0].Kind, decoded.Verdicts[0].Kind)
	assert.InDelta(t, original.Verdicts[0].Confidence, decoded.Verdicts[0].Confidence, 1e-9)
	assert.Equal(t, original.Action, decoded.Action)
}

func TestAuxiliaryEventMarshalsWithTypeField(t *testing.T) {
	event := SecurityEvent{
		EventID:     "evt-1-activation",
		Timestamp:   10,
		AuxKind:     "correlation_activated",
		RFTriggerID: "evt-1",
	}
	data, err := json.Marshal(event)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "correlation_activated", raw["type"])
	assert.Equal(t, "evt-1", raw["rf_trigger_id"])
	_, hasSignal := raw["signal"]
	assert.False(t, hasSignal)
}
