package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connectedlabs/lab-instrument-gateway/internal/domain"
)

type stubExecutor struct {
	result map[string]any
	err    error
	delay  time.Duration
}

func (e *stubExecutor) Execute(_ context.Context, _ domain.Command) (map[string]any, error) {
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	return e.result, e.err
}

type recordingBus struct {
	mu     sync.Mutex
	events []string
}

func (b *recordingBus) Broadcast(channel, event string, _ any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, channel+"/"+event)
}

func (b *recordingBus) snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	copy(out, b.events)
	return out
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		command string
		params  map[string]float64
		wantErr string
	}{
		{"unknown", "self_destruct", nil, "Unknown command: self_destruct"},
		{"missing param", "set_temperature", map[string]float64{}, "Missing required parameter: value"},
		{"temp low", "set_temperature", map[string]float64{"value": -80.5}, "Parameter value out of range (-80-300)"},
		{"temp high", "set_temperature", map[string]float64{"value": 300.1}, "Parameter value out of range (-80-300)"},
		{"speed low", "set_speed", map[string]float64{"value": 499}, "Parameter value out of range (500-100000)"},
		{"speed high", "set_speed", map[string]float64{"value": 100001}, "Parameter value out of range (500-100000)"},
		{"pressure high", "set_pressure", map[string]float64{"value": 10.5}, "Parameter value out of range (0-10)"},
		{"temp min ok", "set_temperature", map[string]float64{"value": -80}, ""},
		{"temp max ok", "set_temperature", map[string]float64{"value": 300}, ""},
		{"speed min ok", "set_speed", map[string]float64{"value": 500}, ""},
		{"speed max ok", "set_speed", map[string]float64{"value": 100000}, ""},
		{"pressure zero ok", "set_pressure", map[string]float64{"value": 0}, ""},
		{"start no params", "start", nil, ""},
		{"stop ignores extras", "stop", map[string]float64{"whatever": 1}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.command, tc.params)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, tc.wantErr, err.Error())
			}
		})
	}
}

func TestSubmitRejectsInvalidWithoutRecord(t *testing.T) {
	q := NewQueue(&stubExecutor{}, nil, zerolog.Nop())

	_, err := q.Submit("inst-1", "warp_drive", nil)
	require.Error(t, err)
	assert.Empty(t, q.ForInstrument("inst-1", 0))
}

func TestSubmitReturnsPendingImmediately(t *testing.T) {
	exec := &stubExecutor{result: map[string]any{"ok": true}, delay: 100 * time.Millisecond}
	q := NewQueue(exec, nil, zerolog.Nop())

	cmd, err := q.Submit("inst-1", "start", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, cmd.ID)
	assert.Equal(t, domain.CommandPending, cmd.Status)
	assert.Equal(t, "inst-1", cmd.InstrumentID)
}

func waitForStatus(t *testing.T, q *Queue, id string, want domain.CommandStatus) *domain.Command {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cmd := q.Get(id); cmd != nil && cmd.Status == want {
			return cmd
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("command %s never reached status %s", id, want)
	return nil
}

func TestCommandCompletes(t *testing.T) {
	exec := &stubExecutor{result: map[string]any{"command": "start"}}
	q := NewQueue(exec, nil, zerolog.Nop())

	cmd, err := q.Submit("inst-1", "start", nil)
	require.NoError(t, err)

	done := waitForStatus(t, q, cmd.ID, domain.CommandCompleted)
	assert.Equal(t, "start", done.Result["command"])
	assert.Empty(t, done.Error)
}

func TestCommandFailureKeepsRecord(t *testing.T) {
	exec := &stubExecutor{err: assert.AnError}
	q := NewQueue(exec, nil, zerolog.Nop())

	cmd, err := q.Submit("inst-1", "stop", nil)
	require.NoError(t, err)

	failed := waitForStatus(t, q, cmd.ID, domain.CommandFailed)
	assert.Equal(t, assert.AnError.Error(), failed.Error)
	assert.Nil(t, failed.Result)
}

func TestGetUnknownReturnsNil(t *testing.T) {
	q := NewQueue(&stubExecutor{}, nil, zerolog.Nop())
	assert.Nil(t, q.Get("nope"))
}

func TestForInstrumentNewestFirst(t *testing.T) {
	q := NewQueue(&stubExecutor{}, nil, zerolog.Nop())

	for i := 0; i < 3; i++ {
		_, err := q.Submit("inst-1", "start", nil)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}
	_, err := q.Submit("inst-2", "stop", nil)
	require.NoError(t, err)

	cmds := q.ForInstrument("inst-1", 0)
	require.Len(t, cmds, 3)
	for i := 1; i < len(cmds); i++ {
		assert.True(t, !cmds[i-1].CreatedAt.Before(cmds[i].CreatedAt), "expected newest first")
	}

	limited := q.ForInstrument("inst-1", 2)
	assert.Len(t, limited, 2)
}

func TestTransitionsBroadcastBothFeeds(t *testing.T) {
	bus := &recordingBus{}
	q := NewQueue(&stubExecutor{result: map[string]any{}}, bus, zerolog.Nop())

	cmd, err := q.Submit("inst-9", "start", nil)
	require.NoError(t, err)
	waitForStatus(t, q, cmd.ID, domain.CommandCompleted)

	events := bus.snapshot()
	assert.Contains(t, events, "commands/command_update")
	assert.Contains(t, events, "commands:inst-9/instrument_command")
	// executing then completed, on both feeds
	assert.Len(t, events, 4)
}

func TestSimulatedExecutorFailureRate(t *testing.T) {
	exec := NewSimulatedExecutorWith(0.10, 0, 0)

	failures := 0
	for i := 0; i < 300; i++ {
		_, err := exec.Execute(context.Background(), domain.Command{Command: "start"})
		if err != nil {
			assert.Contains(t, err.Error(), "did not acknowledge")
			failures++
		}
	}
	// 300 Bernoulli(0.10) trials; bounds wide enough to be deterministic in
	// practice.
	assert.Greater(t, failures, 5)
	assert.Less(t, failures, 80)
}

func TestSimulatedExecutorSuccessPayload(t *testing.T) {
	exec := NewSimulatedExecutorWith(0, 0, 0)

	result, err := exec.Execute(context.Background(), domain.Command{Command: "set_speed"})
	require.NoError(t, err)
	assert.Equal(t, "set_speed", result["command"])
	assert.Contains(t, result, "durationMs")
	assert.Contains(t, result, "executedAt")
}

func TestSimulatedExecutorHonorsContext(t *testing.T) {
	exec := NewSimulatedExecutorWith(0, time.Second, 2*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := exec.Execute(ctx, domain.Command{Command: "start"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
