package hunter

import (
	"context"
	"log/slog"
	"time"

	"github.com/iphunt/iphunt/internal/iprange"
	"github.com/iphunt/iphunt/internal/logging"
)

// teardownTimeout bounds best-effort cleanup. Teardown runs on a context
// detached from the run context so a cancelled hunt still deletes its ports.
const teardownTimeout = 2 * time.Minute

// AttemptResult is the resolution of one attempt. State is always terminal.
type AttemptResult struct {
	State   State
	Outcome string
	PortID  string
	Address string
	// Claimed is true when this attempt won the stop-signal claim. In the
	// tolerated race where two attempts match near-simultaneously, both
	// report Matched but only one reports Claimed.
	Claimed bool
}

// attempt drives a single candidate port through its lifecycle. One instance
// per concurrent attempt; it owns its port from create to resolution.
type attempt struct {
	id           int
	api          API
	serverID     string
	networkID    string
	protectedIP  string
	ranges       iprange.Set
	pollInterval time.Duration
	pollTimeout  time.Duration
	stop         *StopSignal
}

// run executes the state machine. Every exit path resolves to Matched (port
// retained), Deleted (teardown attempted), or Failed (nothing was created).
func (a *attempt) run(ctx context.Context) AttemptResult {
	log := logging.With(logging.Component("attempt"), slog.Int("attempt", a.id))

	port, err := a.api.CreatePort(ctx, a.networkID)
	if err != nil {
		log.Error("port create failed", logging.Err(err))
		return AttemptResult{State: StateFailed, Outcome: OutcomeCreateFailed}
	}
	log = log.With(logging.PortID(port.ID))
	log.Info("port created")

	if a.halted(ctx) {
		return a.teardown(ctx, port.ID, "", OutcomeStopped, log)
	}

	if err := a.api.AttachInterface(ctx, a.serverID, port.ID); err != nil {
		// The port exists but never attached; it must still be deleted.
		log.Error("attach failed", logging.Err(err))
		return a.teardown(ctx, port.ID, "", OutcomeAttachFailed, log)
	}
	log.Info("port attached", logging.ServerID(a.serverID))

	deadline := time.NewTimer(a.pollTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		if a.halted(ctx) {
			return a.teardown(ctx, port.ID, "", OutcomeStopped, log)
		}

		current, err := a.api.GetPort(ctx, port.ID)
		if err != nil {
			log.Warn("port poll failed", logging.Err(err))
		} else if addr := current.Address(); addr != "" {
			if r, ok := a.ranges.Match(addr); ok {
				claimed := a.stop.Claim()
				log.Info("address matched", logging.Addr(addr), "range", r.String(), "claimed", claimed)
				return AttemptResult{
					State:   StateMatched,
					Outcome: OutcomeMatched,
					PortID:  port.ID,
					Address: addr,
					Claimed: claimed,
				}
			}
			log.Info("address out of range", logging.Addr(addr))
			return a.teardown(ctx, port.ID, addr, OutcomeUnmatched, log)
		}

		select {
		case <-ctx.Done():
			return a.teardown(ctx, port.ID, "", OutcomeStopped, log)
		case <-deadline.C:
			log.Warn("no address within deadline", "deadline", a.pollTimeout)
			return a.teardown(ctx, port.ID, "", OutcomeTimedOut, log)
		case <-ticker.C:
		}
	}
}

// halted reports whether the attempt should abandon forward progress before
// its next remote call.
func (a *attempt) halted(ctx context.Context) bool {
	return a.stop.Stopped() || ctx.Err() != nil
}

// teardown detaches and deletes the port, best effort: each failure is
// logged and the next step still runs. The protected address is never torn
// down, whatever state the attempt is in.
func (a *attempt) teardown(ctx context.Context, portID, addr, outcome string, log *slog.Logger) AttemptResult {
	if addr != "" && addr == a.protectedIP {
		log.Error("refusing teardown: port carries the protected address", logging.Addr(addr))
		return AttemptResult{State: StateMatched, Outcome: OutcomeProtected, PortID: portID, Address: addr}
	}

	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
	defer cancel()

	log.Debug("tearing down port", "reason", outcome)
	if err := a.api.DetachInterface(tctx, a.serverID, portID); err != nil {
		log.Warn("detach failed during teardown", logging.Err(err))
	}
	if err := a.api.DeletePort(tctx, portID); err != nil {
		log.Warn("delete failed during teardown", logging.Err(err))
	} else {
		log.Info("port deleted", "reason", outcome)
	}
	return AttemptResult{State: StateDeleted, Outcome: outcome, PortID: portID, Address: addr}
}
