// Package diagnose maps operator-reported symptoms and error codes, plus
// recent log statistics, to a ranked list of probable causes and
// recommended actions. Purely table-driven; no learning, no persistence.
package diagnose

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/connectedlabs/lab-instrument-gateway/internal/domain"
)

const (
	symptomWeight   = 1.0
	errorCodeWeight = 2.0 // error codes are stronger signals than keywords
	patternScore    = 0.5 // rules joined on log patterns alone rank lowest
)

// LogSummary is the log-statistics slice of a diagnosis result.
type LogSummary struct {
	TotalLogsAnalyzed int      `json:"total_logs_analyzed"`
	ErrorFrequency    float64  `json:"error_frequency"`
	WarningFrequency  float64  `json:"warning_frequency"`
	PatternsFound     int      `json:"patterns_found"`
	RecentErrors      []string `json:"recent_errors"`
}

// Result is the full diagnosis contract returned to the operator.
type Result struct {
	ID                 string     `json:"id"`
	InstrumentID       string     `json:"instrument_id"`
	Timestamp          string     `json:"timestamp"`
	ProbableCauses     []Cause    `json:"probable_causes"`
	RecommendedActions []string   `json:"recommended_actions"`
	Confidence         float64    `json:"confidence"`
	Urgency            string     `json:"urgency"`
	MatchedRules       []string   `json:"matched_rules,omitempty"`
	LogSummary         LogSummary `json:"log_summary"`
}

type match struct {
	rule  *Rule
	score float64
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9\s]`)

func normalize(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
}

// Diagnose runs the rule table against the operator input and the recent
// logs for the instrument.
func Diagnose(instrumentID string, symptoms, errorCodes []string, logs []domain.LogEntry) Result {
	matches := matchRules(symptoms, errorCodes)
	summary, patternRules := analyzeLogs(logs)

	// Rules seen only in log patterns join the ranking at a low score.
	for id := range patternRules {
		already := false
		for _, m := range matches {
			if m.rule.ID == id {
				already = true
				break
			}
		}
		if !already {
			if r := ruleByID(id); r != nil {
				matches = append(matches, match{rule: r, score: patternScore})
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	return buildResult(instrumentID, matches, summary)
}

func matchRules(symptoms, errorCodes []string) []match {
	normSymptoms := make([]string, 0, len(symptoms))
	for _, s := range symptoms {
		normSymptoms = append(normSymptoms, normalize(s))
	}
	normCodes := make([]string, 0, len(errorCodes))
	for _, c := range errorCodes {
		normCodes = append(normCodes, strings.ToUpper(c))
	}

	var out []match
	for i := range rules {
		r := &rules[i]
		score := 0.0

		for _, input := range normSymptoms {
			for _, kw := range r.Symptoms {
				nkw := normalize(kw)
				if strings.Contains(input, nkw) || strings.Contains(nkw, input) {
					score += symptomWeight
				}
			}
		}
		for _, code := range normCodes {
			for _, rc := range r.ErrorCodes {
				if code == strings.ToUpper(rc) {
					score += errorCodeWeight
				}
			}
		}

		if score > 0 {
			out = append(out, match{rule: r, score: score})
		}
	}
	return out
}

// analyzeLogs computes error/warning frequency and which rules' log
// patterns appear in recent messages.
func analyzeLogs(logs []domain.LogEntry) (LogSummary, map[string]int) {
	patternRules := make(map[string]int)
	summary := LogSummary{TotalLogsAnalyzed: len(logs), RecentErrors: []string{}}
	if len(logs) == 0 {
		return summary, patternRules
	}

	errors, warnings, patternHits := 0, 0, 0
	for _, e := range logs {
		switch e.Level {
		case domain.LevelError:
			errors++
			if len(summary.RecentErrors) < 5 {
				summary.RecentErrors = append(summary.RecentErrors, e.Message)
			}
		case domain.LevelWarning:
			warnings++
		}

		for i := range rules {
			for _, p := range rules[i].LogPatterns {
				if p.MatchString(e.Message) {
					patternRules[rules[i].ID]++
					patternHits++
				}
			}
		}
	}

	summary.ErrorFrequency = float64(errors) / float64(len(logs))
	summary.WarningFrequency = float64(warnings) / float64(len(logs))
	summary.PatternsFound = patternHits
	return summary, patternRules
}

func buildResult(instrumentID string, matches []match, summary LogSummary) Result {
	id := "diag_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	now := time.Now().UTC().Format(time.RFC3339)

	if len(matches) == 0 {
		return Result{
			ID:           id,
			InstrumentID: instrumentID,
			Timestamp:    now,
			ProbableCauses: []Cause{{
				Cause:       "Unable to determine cause",
				Probability: 0.0,
				Description: "No matching diagnosis rules found for the provided symptoms",
			}},
			RecommendedActions: []string{
				"Review instrument logs for error patterns",
				"Check instrument documentation",
				"Contact technical support with detailed symptoms",
			},
			Confidence: 0.0,
			Urgency:    "low",
			LogSummary: summary,
		}
	}

	top := matches
	if len(top) > 3 {
		top = top[:3]
	}

	var causes []Cause
	seen := make(map[string]bool)
	var actions []string
	matchedIDs := make([]string, 0, len(top))

	for _, m := range top {
		matchedIDs = append(matchedIDs, m.rule.ID)
		causes = append(causes, m.rule.ProbableCauses...)
		for _, a := range m.rule.RecommendedActions {
			if !seen[a] {
				seen[a] = true
				actions = append(actions, a)
			}
		}
	}

	sort.SliceStable(causes, func(i, j int) bool { return causes[i].Probability > causes[j].Probability })
	if len(causes) > 5 {
		causes = causes[:5]
	}
	if len(actions) > 8 {
		actions = actions[:8]
	}

	return Result{
		ID:                 id,
		InstrumentID:       instrumentID,
		Timestamp:          now,
		ProbableCauses:     causes,
		RecommendedActions: actions,
		Confidence:         confidence(matches, summary),
		Urgency:            urgency(top, summary),
		MatchedRules:       matchedIDs,
		LogSummary:         summary,
	}
}

func confidence(matches []match, summary LogSummary) float64 {
	if len(matches) == 0 {
		return 0
	}
	c := math.Min(matches[0].score/5.0, 1.0)
	c += math.Min(float64(summary.PatternsFound)*0.1, 0.3)
	if summary.ErrorFrequency > 0.2 {
		c += 0.1
	}
	return math.Round(math.Min(c, 1.0)*100) / 100
}

var urgencyRank = map[string]int{"low": 0, "medium": 1, "high": 2, "critical": 3}

func urgency(top []match, summary LogSummary) string {
	max := 0
	for _, m := range top {
		if r := urgencyRank[m.rule.Urgency]; r > max {
			max = r
		}
	}
	// A log stream dominated by errors is urgent no matter what matched.
	if summary.ErrorFrequency > 0.5 && max < urgencyRank["high"] {
		max = urgencyRank["high"]
	}
	for name, rank := range urgencyRank {
		if rank == max {
			return name
		}
	}
	return "low"
}

func ruleByID(id string) *Rule {
	for i := range rules {
		if rules[i].ID == id {
			return &rules[i]
		}
	}
	return nil
}
