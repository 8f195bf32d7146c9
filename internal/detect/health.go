package detect

import (
	"fmt"
	"math"

	"github.com/connectedlabs/lab-instrument-gateway/internal/domain"
)

// Health summarizes an instrument's condition from its recent log mix.
type Health struct {
	Status       string  `json:"status"`
	Score        float64 `json:"score"`
	TotalLogs    int     `json:"total_logs,omitempty"`
	ErrorCount   int     `json:"error_count,omitempty"`
	WarningCount int     `json:"warning_count,omitempty"`
	ErrorRatio   float64 `json:"error_ratio,omitempty"`
	WarningRatio float64 `json:"warning_ratio,omitempty"`
	Message      string  `json:"message"`
}

// AnalyzeHealth scores an instrument 0-100 from its error and warning
// ratios. Errors weigh 50 points at saturation, warnings 20.
func AnalyzeHealth(logs []domain.LogEntry) Health {
	if len(logs) == 0 {
		return Health{Status: "unknown", Score: 0, Message: "No logs available"}
	}

	errors, warnings := 0, 0
	for _, e := range logs {
		switch e.Level {
		case domain.LevelError:
			errors++
		case domain.LevelWarning:
			warnings++
		}
	}

	total := len(logs)
	errorRatio := float64(errors) / float64(total)
	warningRatio := float64(warnings) / float64(total)

	score := 100 - errorRatio*50 - warningRatio*20
	score = math.Max(0, score)

	var status string
	switch {
	case score >= 90:
		status = "excellent"
	case score >= 75:
		status = "good"
	case score >= 50:
		status = "fair"
	case score >= 25:
		status = "poor"
	default:
		status = "critical"
	}

	return Health{
		Status:       status,
		Score:        math.Round(score*10) / 10,
		TotalLogs:    total,
		ErrorCount:   errors,
		WarningCount: warnings,
		ErrorRatio:   math.Round(errorRatio*10000) / 100,
		WarningRatio: math.Round(warningRatio*10000) / 100,
		Message:      fmt.Sprintf("Instrument health is %s (%.1f/100)", status, score),
	}
}
