package hunter

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/iphunt/iphunt/internal/config"
	"github.com/iphunt/iphunt/internal/iprange"
	"github.com/iphunt/iphunt/internal/logging"
)

// Match is one retained port. More than one appears only in the tolerated
// race where two attempts classify a match before either observes the other's
// stop signal.
type Match struct {
	PortID  string
	Address string
}

// Result is the outcome of a full hunt run.
type Result struct {
	Matched    bool
	PortID     string // first match
	Address    string // first match
	Matches    []Match
	Attempts   int // total attempts launched
	Reconciled int // orphans removed by the startup pass
}

// Pool launches attempts at a throttled rate while keeping at most
// MaxConcurrent in flight. It stops spawning once the stop signal is set, a
// configured bound is exhausted, or the context is cancelled, then waits for
// the in-flight attempts to resolve themselves.
type Pool struct {
	api    API
	cfg    config.HuntConfig
	ranges iprange.Set
	stop   *StopSignal
	obs    Observer
}

// NewPool builds a coordinator. A nil observer disables progress metrics.
func NewPool(api API, cfg config.HuntConfig, ranges iprange.Set, stop *StopSignal, obs Observer) *Pool {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Pool{api: api, cfg: cfg, ranges: ranges, stop: stop, obs: obs}
}

// Run drives the hunt to completion and returns once every launched attempt
// has resolved. The concurrency budget is a permit channel: a permit is taken
// before spawn and released on the attempt goroutine's exit path, so the
// number of in-flight attempts never exceeds MaxConcurrent.
func (p *Pool) Run(ctx context.Context) Result {
	if p.cfg.HuntTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.HuntTimeout)
		defer cancel()
	}

	log := logging.With(logging.Component("pool"))
	permits := make(chan struct{}, p.cfg.MaxConcurrent)
	limiter := rate.NewLimiter(rate.Every(p.cfg.SpawnInterval), 1)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var matches []Match
	launched := 0

	for {
		if p.stop.Stopped() || ctx.Err() != nil {
			break
		}
		if p.cfg.MaxAttempts > 0 && launched >= p.cfg.MaxAttempts {
			log.Warn("attempt budget exhausted", "max_attempts", p.cfg.MaxAttempts)
			break
		}

		if !acquire(ctx, permits) {
			break
		}
		// The stop signal may have been set while blocked on a permit.
		if p.stop.Stopped() || ctx.Err() != nil {
			<-permits
			break
		}

		launched++
		a := &attempt{
			id:           launched,
			api:          p.api,
			serverID:     p.cfg.ServerID,
			networkID:    p.cfg.NetworkID,
			protectedIP:  p.cfg.ProtectedIP,
			ranges:       p.ranges,
			pollInterval: p.cfg.PollInterval,
			pollTimeout:  p.cfg.PollTimeout,
			stop:         p.stop,
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-permits }()

			p.obs.AttemptStarted()
			res := a.run(ctx)
			p.obs.AttemptFinished(res.Outcome)

			if res.Outcome == OutcomeMatched {
				mu.Lock()
				matches = append(matches, Match{PortID: res.PortID, Address: res.Address})
				mu.Unlock()
			}
		}()

		// Throttle the next spawn so attempts don't land on the control
		// plane as a burst.
		if err := limiter.Wait(ctx); err != nil {
			break
		}
	}

	log.Info("waiting for in-flight attempts", "launched", launched)
	wg.Wait()

	result := Result{Matches: matches, Attempts: launched}
	if len(matches) > 0 {
		result.Matched = true
		result.PortID = matches[0].PortID
		result.Address = matches[0].Address
		if len(matches) > 1 {
			log.Warn("multiple attempts matched before observing each other's stop signal",
				"retained", len(matches))
		}
	}
	return result
}

// acquire takes one permit, or reports false when the context dies first.
func acquire(ctx context.Context, permits chan struct{}) bool {
	select {
	case permits <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}
