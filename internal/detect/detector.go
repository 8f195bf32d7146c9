// Package detect runs statistical anomaly rules over recent instrument log
// lines: a temperature z-score check, an error-burst check, and a
// rapid-metric-change check. Each rule either fires one alert or stays
// silent; rules never mutate their input.
package detect

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/connectedlabs/lab-instrument-gateway/internal/domain"
)

const (
	tempZThreshold     = 3.0
	minTempSamples     = 5
	burstWindow        = 10 * time.Minute
	burstThreshold     = 5
	rapidChangeWindow  = 5 * time.Minute
	rapidChangePercent = 30.0
	rapidChangeMetric  = "temperature"
)

// Methods lists the detection rules in the order they run.
var Methods = []string{"temperature_anomaly", "error_burst", "rapid_change"}

// Detect runs every rule over the given logs and returns the alerts that
// fired. Input order does not matter; entries are sorted by timestamp
// before analysis.
func Detect(logs []domain.LogEntry, now time.Time) []domain.Alert {
	if len(logs) == 0 {
		return nil
	}

	sorted := make([]domain.LogEntry, len(logs))
	copy(sorted, logs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	var out []domain.Alert
	if a := temperatureAnomaly(sorted); a != nil {
		out = append(out, *a)
	}
	if a := errorBurst(sorted, now); a != nil {
		out = append(out, *a)
	}
	if a := rapidMetricChange(sorted, rapidChangeMetric, now); a != nil {
		out = append(out, *a)
	}
	return out
}

func metricValue(e domain.LogEntry, name string) (float64, bool) {
	if e.Metadata == nil {
		return 0, false
	}
	switch v := e.Metadata[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// temperatureAnomaly flags the latest temperature reading when it sits more
// than three standard deviations from the window mean.
func temperatureAnomaly(logs []domain.LogEntry) *domain.Alert {
	temps := make([]float64, 0, len(logs))
	for _, e := range logs {
		if t, ok := metricValue(e, "temperature"); ok {
			temps = append(temps, t)
		}
	}
	if len(temps) < minTempSamples {
		return nil
	}

	latest := logs[len(logs)-1]
	latestTemp, ok := metricValue(latest, "temperature")
	if !ok {
		return nil
	}

	mean, std := meanStd(temps)
	z := zScore(latestTemp, mean, std)
	if z <= tempZThreshold {
		return nil
	}

	severity := "medium"
	switch {
	case z > 5.0:
		severity = "critical"
	case z > 4.0:
		severity = "high"
	}

	direction := "spike"
	coolAction := "Inspect instrument cooling system"
	if latestTemp < mean {
		direction = "drop"
		coolAction = "Check heating element"
	}

	return &domain.Alert{
		ID:           uuid.NewString(),
		InstrumentID: latest.InstrumentID,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Severity:     severity,
		Description: fmt.Sprintf("Temperature %s detected: %.2f°C (mean: %.2f°C, z-score: %.2f)",
			direction, latestTemp, mean, z),
		Confidence: math.Min(z/5.0, 1.0),
		SuggestedActions: []string{
			"Check temperature sensor calibration",
			"Verify HVAC system operation",
			coolAction,
			"Review recent maintenance logs",
		},
		AnomalyType: "temperature_" + direction,
		Metrics: map[string]any{
			"current_temp": latestTemp,
			"mean_temp":    mean,
			"std_temp":     std,
			"z_score":      z,
		},
	}
}

// errorBurst fires when error-level lines pile up inside a short window.
func errorBurst(logs []domain.LogEntry, now time.Time) *domain.Alert {
	cutoff := now.Add(-burstWindow)

	var recent []domain.LogEntry
	for _, e := range logs {
		if e.Level == domain.LevelError && e.Timestamp.After(cutoff) {
			recent = append(recent, e)
		}
	}
	if len(recent) < burstThreshold {
		return nil
	}

	severity := "medium"
	switch {
	case len(recent) >= burstThreshold*3:
		severity = "critical"
	case len(recent) >= burstThreshold*2:
		severity = "high"
	}

	seen := make(map[string]bool)
	var unique []string
	for _, e := range recent {
		if !seen[e.Message] {
			seen[e.Message] = true
			unique = append(unique, e.Message)
		}
	}
	sample := unique
	if len(sample) > 5 {
		sample = sample[:5]
	}

	latest := logs[len(logs)-1]
	windowMinutes := int(burstWindow.Minutes())

	return &domain.Alert{
		ID:           uuid.NewString(),
		InstrumentID: latest.InstrumentID,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Severity:     severity,
		Description: fmt.Sprintf("Error burst detected: %d errors in %d minutes",
			len(recent), windowMinutes),
		Confidence: math.Min(float64(len(recent))/float64(burstThreshold*3), 1.0),
		SuggestedActions: []string{
			"Review error logs for patterns",
			"Check instrument connectivity",
			"Restart instrument if safe to do so",
			"Contact technical support if errors persist",
			"Document error sequence for diagnostics",
		},
		AnomalyType: "error_burst",
		Metrics: map[string]any{
			"error_count":         len(recent),
			"time_window_minutes": windowMinutes,
			"unique_errors":       len(unique),
			"error_messages":      sample,
		},
	}
}

// rapidMetricChange compares the first and last value of a metric inside the
// window and fires on a large relative swing.
func rapidMetricChange(logs []domain.LogEntry, metric string, now time.Time) *domain.Alert {
	cutoff := now.Add(-rapidChangeWindow)

	var values []float64
	for _, e := range logs {
		if !e.Timestamp.After(cutoff) {
			continue
		}
		if v, ok := metricValue(e, metric); ok {
			values = append(values, v)
		}
	}
	if len(values) < 2 {
		return nil
	}

	first, last := values[0], values[len(values)-1]
	if first == 0 {
		return nil
	}
	pct := math.Abs((last - first) / first * 100)
	if pct < rapidChangePercent {
		return nil
	}

	severity := "medium"
	if pct >= rapidChangePercent*2 {
		severity = "high"
	}
	direction := "increased"
	if last < first {
		direction = "decreased"
	}

	latest := logs[len(logs)-1]
	windowMinutes := int(rapidChangeWindow.Minutes())

	return &domain.Alert{
		ID:           uuid.NewString(),
		InstrumentID: latest.InstrumentID,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Severity:     severity,
		Description: fmt.Sprintf("Rapid %s change: %s %.1f%% in %d minutes",
			metric, direction, pct, windowMinutes),
		Confidence: math.Min(pct/(rapidChangePercent*2), 1.0),
		SuggestedActions: []string{
			fmt.Sprintf("Monitor %s closely", metric),
			"Check for environmental factors",
			"Verify instrument stability",
			"Review recent configuration changes",
		},
		AnomalyType: fmt.Sprintf("rapid_%s_change", metric),
		Metrics: map[string]any{
			"metric_name":         metric,
			"initial_value":       first,
			"current_value":       last,
			"percent_change":      pct,
			"time_window_minutes": windowMinutes,
		},
	}
}

func meanStd(values []float64) (mean, std float64) {
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	if len(values) < 2 {
		return mean, 0
	}
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values) - 1)
	return mean, math.Sqrt(variance)
}

func zScore(value, mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return math.Abs(value-mean) / std
}
