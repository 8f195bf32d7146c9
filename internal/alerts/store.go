// Package alerts is the in-process ingestion point for anomaly alerts: a
// fixed-capacity most-recent-first buffer with filtering, aggregate stats,
// and push fan-out on ingest. State lives from process start to process
// exit; a restart clears it.
package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/connectedlabs/lab-instrument-gateway/internal/domain"
)

// Capacity bounds the buffer; ingestion past it evicts the oldest record.
const Capacity = 500

// historySize is how many recent alerts a freshly subscribed client gets
// pushed before any live event.
const historySize = 10

type Broadcaster interface {
	Broadcast(channel, event string, payload any)
}

type Store struct {
	mu  sync.RWMutex
	buf []domain.Alert // newest first

	bus Broadcaster
	log zerolog.Logger
}

func NewStore(bus Broadcaster, log zerolog.Logger) *Store {
	return &Store{
		buf: make([]domain.Alert, 0, Capacity),
		bus: bus,
		log: log.With().Str("component", "alert-store").Logger(),
	}
}

// Ingest validates and stores an alert, then fans it out to the global feed
// and the per-instrument feed as two independent events. The timestamp is
// defaulted to ingestion time when absent. Stored alerts are never mutated.
func (s *Store) Ingest(a domain.Alert) (domain.Alert, error) {
	switch {
	case a.ID == "":
		return domain.Alert{}, fmt.Errorf("missing required field: id")
	case a.InstrumentID == "":
		return domain.Alert{}, fmt.Errorf("missing required field: instrument_id")
	case a.Severity == "":
		return domain.Alert{}, fmt.Errorf("missing required field: severity")
	}
	if a.Timestamp == "" {
		a.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	s.mu.Lock()
	s.buf = append([]domain.Alert{a}, s.buf...)
	if len(s.buf) > Capacity {
		s.buf = s.buf[:Capacity]
	}
	s.mu.Unlock()

	s.log.Info().Str("alert_id", a.ID).Str("instrument_id", a.InstrumentID).
		Str("severity", a.Severity).Msg("alert ingested")

	if s.bus != nil {
		s.bus.Broadcast("alerts", "alert", a)
		s.bus.Broadcast("alerts:"+a.InstrumentID, "instrument_alert", a)
	}
	return a, nil
}

// Filter narrows a query; zero values match everything. Limit defaults
// to 50.
type Filter struct {
	InstrumentID string
	Severity     string
	Limit        int
}

// Query returns matching alerts newest first, plus the total buffer size.
func (s *Store) Query(f Filter) ([]domain.Alert, int) {
	if f.Limit <= 0 {
		f.Limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Alert, 0)
	for _, a := range s.buf {
		if f.InstrumentID != "" && a.InstrumentID != f.InstrumentID {
			continue
		}
		if f.Severity != "" && a.Severity != f.Severity {
			continue
		}
		out = append(out, a)
		if len(out) >= f.Limit {
			break
		}
	}
	return out, len(s.buf)
}

// Recent returns up to historySize alerts for the subscription handshake.
func (s *Store) Recent() []domain.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := historySize
	if n > len(s.buf) {
		n = len(s.buf)
	}
	out := make([]domain.Alert, n)
	copy(out, s.buf[:n])
	return out
}

// Stats aggregates the full buffer.
type Stats struct {
	Total        int            `json:"total"`
	BySeverity   map[string]int `json:"by_severity"`
	ByInstrument map[string]int `json:"by_instrument"`
	LastHour     int            `json:"last_hour"`
	Last24Hours  int            `json:"last_24_hours"`
}

func (s *Store) Stats(now time.Time) Stats {
	st := Stats{
		BySeverity:   make(map[string]int, len(domain.Severities)),
		ByInstrument: make(map[string]int),
	}
	for _, sev := range domain.Severities {
		st.BySeverity[sev] = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	st.Total = len(s.buf)
	hourAgo := now.Add(-time.Hour)
	dayAgo := now.Add(-24 * time.Hour)

	for _, a := range s.buf {
		st.BySeverity[a.Severity]++
		st.ByInstrument[a.InstrumentID]++
		if ts, err := time.Parse(time.RFC3339, a.Timestamp); err == nil {
			if ts.After(hourAgo) {
				st.LastHour++
			}
			if ts.After(dayAgo) {
				st.Last24Hours++
			}
		}
	}
	return st
}

// Purge clears the buffer and reports how many records were dropped.
// Irreversible; there is no backup.
func (s *Store) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.buf)
	s.buf = s.buf[:0]
	s.log.Info().Int("removed", n).Msg("alert buffer purged")
	return n
}
