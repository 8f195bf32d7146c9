// Package command accepts control commands for an instrument, validates
// them against a fixed rule table, and executes them asynchronously through
// a pluggable executor. Accepted records are kept in memory for the life of
// the process.
package command

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/connectedlabs/lab-instrument-gateway/internal/domain"
)

// Broadcaster delivers command state transitions to push-channel
// subscribers. Delivery is fire-and-forget.
type Broadcaster interface {
	Broadcast(channel, event string, payload any)
}

type paramRange struct {
	Min, Max float64
}

type rule struct {
	required []string
	ranges   map[string]paramRange
}

// rules is the fixed validation table. Ranges are inclusive.
var rules = map[string]rule{
	"set_temperature": {required: []string{"value"}, ranges: map[string]paramRange{"value": {-80, 300}}},
	"set_speed":       {required: []string{"value"}, ranges: map[string]paramRange{"value": {500, 100000}}},
	"set_pressure":    {required: []string{"value"}, ranges: map[string]paramRange{"value": {0, 10}}},
	"start":           {},
	"stop":            {},
}

// Validate checks a command name and its parameters against the rule table.
// It runs before any record is created; a failed command leaves no state.
func Validate(name string, params map[string]float64) error {
	r, ok := rules[name]
	if !ok {
		return fmt.Errorf("Unknown command: %s", name)
	}
	for _, p := range r.required {
		if _, ok := params[p]; !ok {
			return fmt.Errorf("Missing required parameter: %s", p)
		}
	}
	for p, rng := range r.ranges {
		v, ok := params[p]
		if !ok {
			continue
		}
		if v < rng.Min || v > rng.Max {
			return fmt.Errorf("Parameter %s out of range (%g-%g)", p, rng.Min, rng.Max)
		}
	}
	return nil
}

type Queue struct {
	mu       sync.RWMutex
	commands map[string]*domain.Command

	exec Executor
	bus  Broadcaster
	log  zerolog.Logger
}

func NewQueue(exec Executor, bus Broadcaster, log zerolog.Logger) *Queue {
	return &Queue{
		commands: make(map[string]*domain.Command),
		exec:     exec,
		bus:      bus,
		log:      log.With().Str("component", "command-queue").Logger(),
	}
}

// Submit validates and enqueues a command. It returns as soon as the record
// exists in pending state; execution runs in its own goroutine. The contract
// is "queued for execution", not "completed".
func (q *Queue) Submit(instrumentID, name string, params map[string]float64) (*domain.Command, error) {
	if err := Validate(name, params); err != nil {
		return nil, err
	}

	cmd := &domain.Command{
		ID:           uuid.NewString(),
		InstrumentID: instrumentID,
		Command:      name,
		Parameters:   params,
		CreatedAt:    time.Now().UTC(),
		Status:       domain.CommandPending,
	}

	q.mu.Lock()
	q.commands[cmd.ID] = cmd
	q.mu.Unlock()

	q.log.Info().Str("command_id", cmd.ID).Str("instrument_id", instrumentID).
		Str("command", name).Msg("command queued")

	go q.run(cmd.ID)

	return snapshot(cmd), nil
}

// Get returns a copy of the command, or nil if unknown.
func (q *Queue) Get(id string) *domain.Command {
	q.mu.RLock()
	defer q.mu.RUnlock()
	cmd, ok := q.commands[id]
	if !ok {
		return nil
	}
	return snapshot(cmd)
}

// ForInstrument lists commands for one instrument, newest first, bounded by
// limit (default 50 when limit <= 0).
func (q *Queue) ForInstrument(instrumentID string, limit int) []*domain.Command {
	if limit <= 0 {
		limit = 50
	}

	q.mu.RLock()
	out := make([]*domain.Command, 0)
	for _, cmd := range q.commands {
		if cmd.InstrumentID == instrumentID {
			out = append(out, snapshot(cmd))
		}
	}
	q.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (q *Queue) run(id string) {
	cmd := q.transition(id, domain.CommandExecuting, nil, "")

	result, err := q.exec.Execute(context.Background(), *cmd)
	if err != nil {
		q.transition(id, domain.CommandFailed, nil, err.Error())
		q.log.Warn().Str("command_id", id).Err(err).Msg("command failed")
		return
	}
	q.transition(id, domain.CommandCompleted, result, "")
	q.log.Info().Str("command_id", id).Msg("command completed")
}

// transition updates the stored record and broadcasts the new state both on
// the global command feed and on the per-instrument feed.
func (q *Queue) transition(id string, status domain.CommandStatus, result map[string]any, errMsg string) *domain.Command {
	q.mu.Lock()
	cmd := q.commands[id]
	cmd.Status = status
	cmd.Result = result
	cmd.Error = errMsg
	cp := snapshot(cmd)
	q.mu.Unlock()

	if q.bus != nil {
		q.bus.Broadcast("commands", "command_update", cp)
		q.bus.Broadcast("commands:"+cp.InstrumentID, "instrument_command", cp)
	}
	return cp
}

func snapshot(cmd *domain.Command) *domain.Command {
	cp := *cmd
	return &cp
}
