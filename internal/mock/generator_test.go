package mock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connectedlabs/lab-instrument-gateway/internal/domain"
)

func TestInstrumentIDs(t *testing.T) {
	ids := InstrumentIDs()
	require.Len(t, ids, len(Profiles))
	assert.Contains(t, ids, "thermocycler-01")
	assert.Contains(t, ids, "incubator-01")
}

func TestEntryShape(t *testing.T) {
	g := NewGeneratorWithSeed(1)
	ts := time.Now().UTC()

	e := g.Entry("incubator-01", ts)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "incubator-01", e.InstrumentID)
	assert.Equal(t, ts, e.Timestamp)
	assert.Contains(t, []string{domain.LevelInfo, domain.LevelWarning, domain.LevelError, domain.LevelDebug}, e.Level)
	assert.NotEmpty(t, e.Message)
	assert.Equal(t, "Thermo Scientific Heracell", e.Metadata["instrument_model"])
	assert.Equal(t, "incubator", e.Metadata["instrument_type"])

	temp, ok := e.Metadata["temperature"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, temp, 35.0)
	assert.LessOrEqual(t, temp, 39.0)
	assert.Contains(t, e.Metadata, "pressure")
	assert.Contains(t, e.Metadata, "humidity")
}

func TestErrorEntriesCarryCode(t *testing.T) {
	g := NewGeneratorWithSeed(2)
	ts := time.Now().UTC()

	// Enough draws to hit every level at the 70/20/8/2 mix.
	sawError := false
	for i := 0; i < 500; i++ {
		e := g.Entry("spectrometer-01", ts)
		if e.Level == domain.LevelError {
			sawError = true
			code, ok := e.Metadata["error_code"].(string)
			require.True(t, ok)
			assert.Regexp(t, `^ERR_\d{3}$`, code)
		} else {
			assert.NotContains(t, e.Metadata, "error_code")
		}
	}
	assert.True(t, sawError)
}

func TestLevelDistribution(t *testing.T) {
	g := NewGeneratorWithSeed(3)
	ts := time.Now().UTC()

	counts := map[string]int{}
	const n = 2000
	for i := 0; i < n; i++ {
		counts[g.Entry("centrifuge-01", ts).Level]++
	}

	// Wide bands around 70/20/8/2.
	assert.InDelta(t, 0.70, float64(counts[domain.LevelInfo])/n, 0.05)
	assert.InDelta(t, 0.20, float64(counts[domain.LevelWarning])/n, 0.05)
	assert.InDelta(t, 0.08, float64(counts[domain.LevelError])/n, 0.04)
}

func TestHistoricalLogsSortedOldestFirst(t *testing.T) {
	g := NewGeneratorWithSeed(4)

	logs := g.HistoricalLogs(2, 10, 0.05)
	require.NotEmpty(t, logs)

	for i := 1; i < len(logs); i++ {
		assert.False(t, logs[i].Timestamp.Before(logs[i-1].Timestamp))
	}

	perInstrument := map[string]int{}
	for _, e := range logs {
		perInstrument[e.InstrumentID]++
	}
	assert.Len(t, perInstrument, len(Profiles))
}

func TestAnomalyScenarios(t *testing.T) {
	g := NewGeneratorWithSeed(5)

	t.Run("temp_spike", func(t *testing.T) {
		logs := g.AnomalyScenario("temp_spike", "incubator-01")
		require.Len(t, logs, 10)

		p := profileFor("incubator-01")
		// The tail entries carry the injected out-of-envelope readings.
		for _, e := range logs[7:] {
			temp := e.Metadata["temperature"].(float64)
			assert.Greater(t, temp, p.TempMax)
			assert.Equal(t, domain.LevelError, e.Level)
		}
		for _, e := range logs[:7] {
			assert.Equal(t, domain.LevelWarning, e.Level)
		}
	})

	t.Run("temp_drop", func(t *testing.T) {
		logs := g.AnomalyScenario("temp_drop", "incubator-01")
		require.Len(t, logs, 10)
		p := profileFor("incubator-01")
		for _, e := range logs[7:] {
			assert.Less(t, e.Metadata["temperature"].(float64), p.TempMin)
		}
	})

	t.Run("error_burst", func(t *testing.T) {
		logs := g.AnomalyScenario("error_burst", "centrifuge-01")
		require.Len(t, logs, 15)
		for _, e := range logs {
			assert.Equal(t, domain.LevelError, e.Level)
			assert.Equal(t, "centrifuge-01", e.InstrumentID)
		}
	})

	t.Run("sensor_failure", func(t *testing.T) {
		logs := g.AnomalyScenario("sensor_failure", "spectrometer-01")
		require.Len(t, logs, 8)
		assert.Equal(t, "Temperature sensor reading unstable", logs[0].Message)
		assert.Equal(t, "Temperature sensor malfunction", logs[7].Message)
		assert.Equal(t, domain.LevelError, logs[7].Level)
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Nil(t, g.AnomalyScenario("volcano", "incubator-01"))
	})

	t.Run("default instrument", func(t *testing.T) {
		logs := g.AnomalyScenario("temp_spike", "")
		require.NotEmpty(t, logs)
		assert.Equal(t, Profiles[0].ID, logs[0].InstrumentID)
	})
}

func TestUnknownInstrumentFallsBackToFirstProfile(t *testing.T) {
	g := NewGeneratorWithSeed(6)
	e := g.Entry("mystery-99", time.Now().UTC())
	assert.Equal(t, Profiles[0].Model, e.Metadata["instrument_model"])
	assert.Equal(t, "mystery-99", e.InstrumentID)
}
