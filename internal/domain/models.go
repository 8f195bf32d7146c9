package domain

import "time"

// Instrument is a device discovered on the lab network. The ID embeds the
// IP and the discovery instant (`<ip>-<unixMillis>`); the IP part is
// recoverable by splitting on the first dash.
type Instrument struct {
	ID    string `json:"id"`
	IP    string `json:"ip"`
	Model string `json:"model"`
}

type CommandStatus string

const (
	CommandPending   CommandStatus = "pending"
	CommandExecuting CommandStatus = "executing"
	CommandCompleted CommandStatus = "completed"
	CommandFailed    CommandStatus = "failed"
)

// Command is an operator-issued control instruction. Records live in memory
// for the lifetime of the process and are never deleted after creation.
type Command struct {
	ID           string             `json:"id"`
	InstrumentID string             `json:"instrumentId"`
	Command      string             `json:"command"`
	Parameters   map[string]float64 `json:"parameters"`
	CreatedAt    time.Time          `json:"createdAt"`
	Status       CommandStatus      `json:"status"`
	Result       map[string]any     `json:"result,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// Alert is an anomaly record produced by the detector (or manual test
// calls). id, instrument_id and severity are mandatory at ingestion;
// timestamp is defaulted server-side when absent.
type Alert struct {
	ID               string         `json:"id"`
	InstrumentID     string         `json:"instrument_id"`
	Timestamp        string         `json:"timestamp"`
	Severity         string         `json:"severity"`
	Description      string         `json:"description"`
	Confidence       float64        `json:"confidence"`
	SuggestedActions []string       `json:"suggested_actions,omitempty"`
	AnomalyType      string         `json:"anomaly_type,omitempty"`
	Metrics          map[string]any `json:"metrics,omitempty"`
}

var Severities = []string{"low", "medium", "high", "critical"}

// LogEntry is one synthetic instrument log line.
type LogEntry struct {
	ID           string         `json:"id"`
	InstrumentID string         `json:"instrument_id"`
	Timestamp    time.Time      `json:"timestamp"`
	Level        string         `json:"level"`
	Message      string         `json:"message"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
	LevelDebug   = "debug"
)
