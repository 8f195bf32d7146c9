package logstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/connectedlabs/lab-instrument-gateway/internal/domain"
)

// Ingestor feeds log lines from the MQTT transport into a Store.
type Ingestor struct {
	store Store
}

func NewIngestor(store Store) *Ingestor {
	return &Ingestor{store: store}
}

// FromMQTT decodes one published log line and inserts it. Missing ids and
// timestamps are filled in so hand-published test payloads still land.
func (in *Ingestor) FromMQTT(topic string, payload []byte) (domain.LogEntry, error) {
	var e domain.LogEntry
	if err := json.Unmarshal(payload, &e); err != nil {
		return domain.LogEntry{}, fmt.Errorf("decode log payload: %w", err)
	}
	if e.InstrumentID == "" {
		return domain.LogEntry{}, fmt.Errorf("log payload missing instrument_id")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Level == "" {
		e.Level = domain.LevelInfo
	}
	if _, err := in.store.Insert([]domain.LogEntry{e}); err != nil {
		return domain.LogEntry{}, err
	}
	return e, nil
}
