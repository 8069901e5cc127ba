package hunter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iphunt/iphunt/internal/config"
	"github.com/iphunt/iphunt/internal/iprange"
	"github.com/iphunt/iphunt/internal/logging"
	"github.com/iphunt/iphunt/internal/notify"
)

// ErrNoMatch is returned when the hunt ends without a retained port. The CLI
// maps it to a non-zero exit code.
var ErrNoMatch = errors.New("no matching address found")

// notifyTimeout bounds outbound notifications sent after the run context may
// already be gone.
const notifyTimeout = 15 * time.Second

// Hunter wires the startup reconciliation pass, the worker pool, and the
// terminal notification into one run.
type Hunter struct {
	api      API
	cfg      *config.Config
	ranges   iprange.Set
	notifier notify.Notifier
	obs      Observer
	stop     *StopSignal
}

// New builds a Hunter. A nil notifier or observer disables that concern.
func New(api API, cfg *config.Config, ranges iprange.Set, notifier notify.Notifier, obs Observer, stop *StopSignal) *Hunter {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if obs == nil {
		obs = nopObserver{}
	}
	if stop == nil {
		stop = &StopSignal{}
	}
	return &Hunter{api: api, cfg: cfg, ranges: ranges, notifier: notifier, obs: obs, stop: stop}
}

// Stop exposes the run's stop signal so the CLI's signal handler can trip it.
func (h *Hunter) Stop() *StopSignal {
	return h.stop
}

// Run executes a full hunt: reconcile orphans, drive the pool, report the
// terminal outcome. A match returns a nil error; anything else returns
// ErrNoMatch (wrapped) or the startup failure.
func (h *Hunter) Run(ctx context.Context) (Result, error) {
	reconciler := NewReconciler(h.api, h.cfg.Hunt.ServerID, h.cfg.Hunt.ProtectedIP, h.obs)
	removed, err := reconciler.Run(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("startup reconciliation: %w", err)
	}

	pool := NewPool(h.api, h.cfg.Hunt, h.ranges, h.stop, h.obs)
	result := pool.Run(ctx)
	result.Reconciled = removed

	// Notifications run on a detached context: the hunt may have ended
	// because the run context was cancelled.
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if result.Matched {
		logging.Info("hunt succeeded",
			logging.Addr(result.Address),
			logging.PortID(result.PortID),
			"attempts", result.Attempts,
		)
		h.notifier.Success(nctx, result.Address, result.PortID)
		return result, nil
	}

	if ctx.Err() == nil {
		// A shutdown request is not a reportable failure; exhaustion is.
		h.notifier.Failure(nctx, fmt.Sprintf("no match after %d attempts", result.Attempts))
	}
	return result, fmt.Errorf("%w after %d attempts", ErrNoMatch, result.Attempts)
}
