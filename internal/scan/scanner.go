// Package scan discovers instruments on a bounded address space by probing
// every candidate host concurrently and keeping the ones that answer the
// system-model probe.
package scan

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/connectedlabs/lab-instrument-gateway/internal/domain"
	"github.com/connectedlabs/lab-instrument-gateway/internal/instrument"
)

// Prober answers the discovery probe for one host.
type Prober interface {
	SystemModel(ctx context.Context, ip string) (string, error)
}

type Scanner struct {
	prober Prober
	log    zerolog.Logger
}

func New(prober Prober, log zerolog.Logger) *Scanner {
	return &Scanner{
		prober: prober,
		log:    log.With().Str("component", "scanner").Logger(),
	}
}

// Hosts builds the candidate list: the loopback alias first (the simulator
// runs there in dev), then the configured range.
func Hosts(subnet string, start, end int) []string {
	hosts := []string{"127.0.0.1"}
	for i := start; i <= end; i++ {
		hosts = append(hosts, fmt.Sprintf("%s.%d", subnet, i))
	}
	return hosts
}

// Scan probes every host at once and waits for the whole batch to settle
// before returning anything. Individual probe failures (timeouts, refused
// connections, unparseable documents, empty models) are swallowed; a host
// is an instrument iff its probe yielded a non-empty model.
func (s *Scanner) Scan(ctx context.Context, hosts []string) []domain.Instrument {
	var (
		mu    sync.Mutex
		found []domain.Instrument
		wg    sync.WaitGroup
	)

	for _, host := range hosts {
		wg.Add(1)
		go func(ip string) {
			defer wg.Done()

			model, err := s.prober.SystemModel(ctx, ip)
			if err != nil || model == "" {
				return
			}

			inst := domain.Instrument{
				ID:    fmt.Sprintf("%s-%d", ip, time.Now().UnixMilli()),
				IP:    ip,
				Model: instrument.DisplayModel(model),
			}

			mu.Lock()
			found = append(found, inst)
			mu.Unlock()
		}(host)
	}
	wg.Wait()

	sort.Slice(found, func(i, j int) bool { return found[i].IP < found[j].IP })

	s.log.Info().Int("hosts", len(hosts)).Int("found", len(found)).Msg("scan complete")
	return found
}
