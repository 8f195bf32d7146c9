package scan

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	models map[string]string // ip -> model; absent means probe error
}

func (p *fakeProber) SystemModel(_ context.Context, ip string) (string, error) {
	model, ok := p.models[ip]
	if !ok {
		return "", fmt.Errorf("connection refused")
	}
	return model, nil
}

func TestHosts(t *testing.T) {
	hosts := Hosts("192.168.1", 100, 102)
	assert.Equal(t, []string{"127.0.0.1", "192.168.1.100", "192.168.1.101", "192.168.1.102"}, hosts)
}

func TestHostsEmptyRange(t *testing.T) {
	assert.Equal(t, []string{"127.0.0.1"}, Hosts("10.0.0", 5, 4))
}

func TestScanKeepsOnlyAnswers(t *testing.T) {
	prober := &fakeProber{models: map[string]string{
		"192.168.1.101": "BioRad CFX96",
		"192.168.1.105": "Eppendorf 5424R",
	}}
	s := New(prober, zerolog.Nop())

	found := s.Scan(context.Background(), Hosts("192.168.1", 100, 110))
	require.Len(t, found, 2)

	// Sorted by IP.
	assert.Equal(t, "192.168.1.101", found[0].IP)
	assert.Equal(t, "192.168.1.105", found[1].IP)
	assert.Equal(t, "BioRad CFX96", found[0].Model)
}

func TestScanAppliesModelAlias(t *testing.T) {
	prober := &fakeProber{models: map[string]string{"192.168.1.100": "Ampersand"}}
	s := New(prober, zerolog.Nop())

	found := s.Scan(context.Background(), []string{"192.168.1.100"})
	require.Len(t, found, 1)
	assert.Equal(t, "Vi-CELL BLU", found[0].Model)
}

func TestScanSkipsEmptyModels(t *testing.T) {
	prober := &fakeProber{models: map[string]string{"192.168.1.100": ""}}
	s := New(prober, zerolog.Nop())

	assert.Empty(t, s.Scan(context.Background(), []string{"192.168.1.100"}))
}

func TestScanEmptyHostList(t *testing.T) {
	s := New(&fakeProber{}, zerolog.Nop())
	assert.Empty(t, s.Scan(context.Background(), nil))
}

func TestScanIDEmbedsIPAndTimestamp(t *testing.T) {
	prober := &fakeProber{models: map[string]string{"10.0.0.7": "NanoDrop 2000"}}
	s := New(prober, zerolog.Nop())

	found := s.Scan(context.Background(), []string{"10.0.0.7"})
	require.Len(t, found, 1)

	parts := strings.SplitN(found[0].ID, "-", 2)
	require.Len(t, parts, 2)
	assert.Equal(t, "10.0.0.7", parts[0])
	millis, err := strconv.ParseInt(parts[1], 10, 64)
	require.NoError(t, err)
	assert.Greater(t, millis, int64(0))
}

func TestScanLargeBatch(t *testing.T) {
	models := make(map[string]string)
	var hosts []string
	for i := 0; i < 200; i++ {
		ip := fmt.Sprintf("10.1.%d.%d", i/250, i%250)
		hosts = append(hosts, ip)
		if i%10 == 0 {
			models[ip] = "Heracell"
		}
	}
	s := New(&fakeProber{models: models}, zerolog.Nop())

	found := s.Scan(context.Background(), hosts)
	assert.Len(t, found, 20)
}
