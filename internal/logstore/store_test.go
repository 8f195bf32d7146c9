package logstore

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connectedlabs/lab-instrument-gateway/internal/domain"
)

func entry(id, instrument, level string, ts time.Time) domain.LogEntry {
	return domain.LogEntry{
		ID:           id,
		InstrumentID: instrument,
		Timestamp:    ts,
		Level:        level,
		Message:      "test message",
	}
}

func TestMemoryStoreInsertAndRecent(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()

	n, err := s.Insert([]domain.LogEntry{
		entry("l1", "inst-1", domain.LevelInfo, now.Add(-2*time.Minute)),
		entry("l2", "inst-1", domain.LevelError, now.Add(-time.Minute)),
		entry("l3", "inst-2", domain.LevelInfo, now),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := s.Recent("", "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "l3", all[0].ID) // newest first

	byInstrument, err := s.Recent("inst-1", "", 0)
	require.NoError(t, err)
	require.Len(t, byInstrument, 2)
	assert.Equal(t, "l2", byInstrument[0].ID)

	byLevel, err := s.Recent("", domain.LevelError, 0)
	require.NoError(t, err)
	require.Len(t, byLevel, 1)
	assert.Equal(t, "l2", byLevel[0].ID)

	limited, err := s.Recent("", "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMemoryStoreEmpty(t *testing.T) {
	s := NewMemoryStore()
	out, err := s.Recent("", "", 10)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMemoryStoreEvictsOldest(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()

	batch := make([]domain.LogEntry, memoryCapacity+10)
	for i := range batch {
		batch[i] = entry(fmt.Sprintf("l%d", i), "inst-1", domain.LevelInfo, now.Add(time.Duration(i)*time.Millisecond))
	}
	_, err := s.Insert(batch)
	require.NoError(t, err)

	all, err := s.Recent("", "", memoryCapacity+10)
	require.NoError(t, err)
	require.Len(t, all, memoryCapacity)

	// The ten oldest were evicted; the newest survived.
	assert.Equal(t, fmt.Sprintf("l%d", memoryCapacity+9), all[0].ID)
	assert.Equal(t, "l10", all[len(all)-1].ID)
}

func TestIngestorFromMQTT(t *testing.T) {
	s := NewMemoryStore()
	ing := NewIngestor(s)

	payload := []byte(`{"instrument_id":"inst-1","level":"error","message":"Hardware fault detected"}`)
	stored, err := ing.FromMQTT("labs/logs", payload)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)

	out, err := s.Recent("inst-1", "", 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.NotEmpty(t, out[0].ID)
	assert.False(t, out[0].Timestamp.IsZero())
	assert.Equal(t, "error", out[0].Level)
}

func TestIngestorRejectsMissingInstrument(t *testing.T) {
	s := NewMemoryStore()
	ing := NewIngestor(s)

	_, err := ing.FromMQTT("labs/logs", []byte(`{"message":"orphan"}`))
	assert.Error(t, err)
	_, err = ing.FromMQTT("labs/logs", []byte(`not json`))
	assert.Error(t, err)

	out, err := s.Recent("", "", 0)
	require.NoError(t, err)
	assert.Empty(t, out)
}
