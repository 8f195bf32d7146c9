package command

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/connectedlabs/lab-instrument-gateway/internal/domain"
	"github.com/connectedlabs/lab-instrument-gateway/internal/instrument"
)

// Executor resolves an accepted command against an instrument. Two
// implementations exist: the simulated executor used for demos and tests,
// and the pass-through executor that drives a real instrument.
type Executor interface {
	Execute(ctx context.Context, cmd domain.Command) (map[string]any, error)
}

const (
	defaultFailureRate = 0.10
	defaultMinDelay    = 1000 * time.Millisecond
	defaultMaxDelay    = 3000 * time.Millisecond
)

// SimulatedExecutor waits a randomized interval and then fails with a fixed
// probability, standing in for "instrument refused/timed out" after an
// otherwise valid command was accepted.
type SimulatedExecutor struct {
	failureRate        float64
	minDelay, maxDelay time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulatedExecutor() *SimulatedExecutor {
	return NewSimulatedExecutorWith(defaultFailureRate, defaultMinDelay, defaultMaxDelay)
}

func NewSimulatedExecutorWith(failureRate float64, minDelay, maxDelay time.Duration) *SimulatedExecutor {
	return &SimulatedExecutor{
		failureRate: failureRate,
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (e *SimulatedExecutor) Execute(ctx context.Context, cmd domain.Command) (map[string]any, error) {
	e.mu.Lock()
	delay := e.minDelay
	if e.maxDelay > e.minDelay {
		delay += time.Duration(e.rng.Int63n(int64(e.maxDelay - e.minDelay)))
	}
	failed := e.rng.Float64() < e.failureRate
	e.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(delay):
	}

	if failed {
		return nil, fmt.Errorf("instrument did not acknowledge %s", cmd.Command)
	}

	return map[string]any{
		"command":    cmd.Command,
		"durationMs": delay.Milliseconds(),
		"executedAt": time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// InstrumentExecutor forwards commands to a real instrument through the
// client adapter.
type InstrumentExecutor struct {
	client *instrument.Client
}

func NewInstrumentExecutor(client *instrument.Client) *InstrumentExecutor {
	return &InstrumentExecutor{client: client}
}

func (e *InstrumentExecutor) Execute(ctx context.Context, cmd domain.Command) (map[string]any, error) {
	ip := instrument.ExtractIP(cmd.InstrumentID)
	if !instrument.ValidIPv4(ip) {
		return nil, fmt.Errorf("invalid instrument IP %q", ip)
	}

	var (
		resp *instrument.Response
		err  error
	)
	switch cmd.Command {
	case "set_temperature":
		resp, err = e.client.SetTemperature(ctx, ip, cmd.Parameters["value"])
	case "set_speed":
		resp, err = e.client.SetSpeed(ctx, ip, cmd.Parameters["value"])
	case "set_pressure":
		resp, err = e.client.SetPressure(ctx, ip, cmd.Parameters["value"])
	case "start":
		resp, err = e.client.StartOperation(ctx, ip)
	case "stop":
		resp, err = e.client.StopOperation(ctx, ip)
	default:
		return nil, fmt.Errorf("Unknown command: %s", cmd.Command)
	}
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("instrument returned %d", resp.StatusCode)
	}

	return map[string]any{
		"statusCode":      resp.StatusCode,
		"responsePreview": resp.Preview(),
	}, nil
}
