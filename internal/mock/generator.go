// Package mock generates synthetic instrument log traffic: background noise
// with realistic level distribution plus injectable anomaly scenarios, and a
// fake instrument HTTP API for the simulator binary.
package mock

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/connectedlabs/lab-instrument-gateway/internal/domain"
)

// Profile describes one simulated instrument's normal operating envelope.
type Profile struct {
	ID       string
	Model    string
	Type     string
	TempMin  float64
	TempMax  float64
	TempMean float64
	TempStd  float64
}

var Profiles = []Profile{
	{ID: "thermocycler-01", Model: "BioRad CFX96", Type: "thermocycler", TempMin: 20, TempMax: 95, TempMean: 55, TempStd: 15},
	{ID: "centrifuge-01", Model: "Eppendorf 5424R", Type: "centrifuge", TempMin: 4, TempMax: 25, TempMean: 15, TempStd: 5},
	{ID: "spectrometer-01", Model: "NanoDrop 2000", Type: "spectrometer", TempMin: 18, TempMax: 28, TempMean: 23, TempStd: 2},
	{ID: "incubator-01", Model: "Thermo Scientific Heracell", Type: "incubator", TempMin: 35, TempMax: 39, TempMean: 37, TempStd: 0.5},
	{ID: "avanti-centrifuge-01", Model: "Beckman Coulter Avanti J-26S XP", Type: "avanti_centrifuge", TempMin: 2, TempMax: 25, TempMean: 4, TempStd: 3},
}

var messages = map[string][]string{
	domain.LevelInfo: {
		"System initialization complete",
		"Routine self-check passed",
		"Temperature stabilized",
		"Run cycle started",
		"Run cycle completed successfully",
		"Calibration verified",
		"Data export completed",
		"Connection established",
		"Status update: Operating normally",
		"Maintenance check completed",
	},
	domain.LevelWarning: {
		"Temperature approaching upper limit",
		"Minor calibration drift detected",
		"Network latency detected",
		"Maintenance due in 7 days",
		"Consumable level low",
		"Unusual vibration detected",
		"Power fluctuation detected",
		"Door opened during run",
		"Sample temperature variation",
		"Communication timeout recovered",
	},
	domain.LevelError: {
		"Temperature sensor malfunction",
		"Run aborted due to system error",
		"Communication failure with controller",
		"Critical error: Emergency shutdown",
		"Hardware fault detected",
		"Sample contamination detected",
		"Calibration failed",
		"Power supply error",
		"Fan failure detected",
		"Data corruption detected",
	},
	domain.LevelDebug: {
		"Diagnostic mode enabled",
		"Reading sensor values",
		"Updating firmware parameters",
		"Cache cleared",
		"Debug trace: Protocol step 3",
	},
}

// Generator produces log entries from a seeded source so tests can be
// deterministic.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewGenerator() *Generator {
	return NewGeneratorWithSeed(time.Now().UnixNano())
}

func NewGeneratorWithSeed(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

type entryOpts struct {
	level       string
	anomaly     bool
	anomalyType string
}

func profileFor(instrumentID string) Profile {
	for _, p := range Profiles {
		if p.ID == instrumentID {
			return p
		}
	}
	return Profiles[0]
}

// InstrumentIDs lists every simulated instrument.
func InstrumentIDs() []string {
	out := make([]string, 0, len(Profiles))
	for _, p := range Profiles {
		out = append(out, p.ID)
	}
	return out
}

func (g *Generator) entry(instrumentID string, ts time.Time, o entryOpts) domain.LogEntry {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := profileFor(instrumentID)

	level := o.level
	if level == "" {
		if o.anomaly {
			// Bias anomalous entries toward error.
			level = []string{domain.LevelWarning, domain.LevelError, domain.LevelError}[g.rng.Intn(3)]
		} else {
			level = g.weightedLevel()
		}
	}

	msgs := messages[level]
	msg := msgs[g.rng.Intn(len(msgs))]

	meta := map[string]any{
		"instrument_model": p.Model,
		"instrument_type":  p.Type,
	}

	switch {
	case o.anomaly && o.anomalyType == "temp_spike":
		meta["temperature"] = round2(p.TempMax + 10 + g.rng.Float64()*20)
		meta["anomaly_injected"] = "temp_spike"
	case o.anomaly && o.anomalyType == "temp_drop":
		meta["temperature"] = round2(p.TempMin - 5 - g.rng.Float64()*10)
		meta["anomaly_injected"] = "temp_drop"
	default:
		t := g.rng.NormFloat64()*p.TempStd + p.TempMean
		t = math.Max(p.TempMin, math.Min(p.TempMax, t))
		meta["temperature"] = round2(t)
	}

	meta["pressure"] = round3(g.rng.NormFloat64()*0.1 + 1.0)
	meta["humidity"] = round1(g.rng.NormFloat64()*10 + 50)

	if level == domain.LevelError {
		meta["error_code"] = fmt.Sprintf("ERR_%d", 100+g.rng.Intn(900))
	}

	return domain.LogEntry{
		ID:           uuid.NewString(),
		InstrumentID: instrumentID,
		Timestamp:    ts,
		Level:        level,
		Message:      msg,
		Metadata:     meta,
	}
}

// weightedLevel draws from the normal traffic mix: 70% info, 20% warning,
// 8% error, 2% debug.
func (g *Generator) weightedLevel() string {
	n := g.rng.Intn(100)
	switch {
	case n < 70:
		return domain.LevelInfo
	case n < 90:
		return domain.LevelWarning
	case n < 98:
		return domain.LevelError
	default:
		return domain.LevelDebug
	}
}

// Entry generates one normal log line for an instrument at the given time.
func (g *Generator) Entry(instrumentID string, ts time.Time) domain.LogEntry {
	return g.entry(instrumentID, ts, entryOpts{})
}

// HistoricalLogs backfills traffic for every simulated instrument, with
// occasional anomaly injections, sorted oldest first.
func (g *Generator) HistoricalLogs(hoursBack, logsPerHour int, anomalyProbability float64) []domain.LogEntry {
	now := time.Now().UTC()
	var logs []domain.LogEntry

	for _, p := range Profiles {
		for hour := 0; hour < hoursBack; hour++ {
			base := now.Add(-time.Duration(hour) * time.Hour)

			g.mu.Lock()
			count := logsPerHour - 5 + g.rng.Intn(11)
			g.mu.Unlock()
			if count < 1 {
				count = 1
			}

			for i := 0; i < count; i++ {
				g.mu.Lock()
				ts := base.Add(-time.Duration(g.rng.Intn(3600)) * time.Second)
				anomaly := g.rng.Float64() < anomalyProbability
				var kind string
				if anomaly {
					kind = []string{"temp_spike", "temp_drop", "error_burst"}[g.rng.Intn(3)]
				}
				g.mu.Unlock()

				logs = append(logs, g.entry(p.ID, ts, entryOpts{anomaly: anomaly, anomalyType: kind}))
			}
		}
	}

	sortByTime(logs)
	return logs
}

// AnomalyScenario produces a short, recognizable log sequence for one of
// the named test scenarios. Unknown scenarios return nil.
func (g *Generator) AnomalyScenario(scenario, instrumentID string) []domain.LogEntry {
	now := time.Now().UTC()
	if instrumentID == "" {
		instrumentID = Profiles[0].ID
	}

	var logs []domain.LogEntry
	switch scenario {
	case "temp_spike", "temp_drop":
		for i := 0; i < 10; i++ {
			ts := now.Add(-time.Duration(10-i) * time.Minute)
			o := entryOpts{level: domain.LevelWarning}
			if i >= 7 {
				o = entryOpts{level: domain.LevelError, anomaly: true, anomalyType: scenario}
			}
			logs = append(logs, g.entry(instrumentID, ts, o))
		}
	case "error_burst":
		for i := 0; i < 15; i++ {
			ts := now.Add(-time.Duration(60-i*4) * time.Second)
			logs = append(logs, g.entry(instrumentID, ts, entryOpts{level: domain.LevelError, anomaly: true}))
		}
	case "sensor_failure":
		for i := 0; i < 8; i++ {
			ts := now.Add(-time.Duration(8-i) * time.Minute)
			level := domain.LevelWarning
			msg := "Temperature sensor reading unstable"
			if i >= 5 {
				level = domain.LevelError
				msg = "Temperature sensor malfunction"
			}
			e := g.entry(instrumentID, ts, entryOpts{level: level, anomaly: true})
			e.Message = msg
			logs = append(logs, e)
		}
	default:
		return nil
	}
	return logs
}

func sortByTime(logs []domain.LogEntry) {
	sort.Slice(logs, func(i, j int) bool { return logs[i].Timestamp.Before(logs[j].Timestamp) })
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
