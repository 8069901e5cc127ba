// Package hunter implements the concurrent port-hunting engine: a bounded
// pool of attempts, each driving one candidate port through
// create → attach → poll → classify → keep-or-destroy, plus the startup
// reconciliation pass that clears orphans from prior runs.
package hunter

import (
	"context"

	"github.com/iphunt/iphunt/internal/cloud"
)

// API is the slice of the control-plane client the engine consumes.
type API interface {
	CreatePort(ctx context.Context, networkID string) (cloud.Port, error)
	GetPort(ctx context.Context, id string) (cloud.Port, error)
	ListPorts(ctx context.Context) ([]cloud.Port, error)
	DeletePort(ctx context.Context, id string) error
	AttachInterface(ctx context.Context, serverID, portID string) error
	DetachInterface(ctx context.Context, serverID, portID string) error
}

// Observer receives engine progress events. Implemented by the metrics
// package.
type Observer interface {
	AttemptStarted()
	AttemptFinished(outcome string)
	PortReconciled()
}

// nopObserver is used when no metrics sink is wired in.
type nopObserver struct{}

func (nopObserver) AttemptStarted()        {}
func (nopObserver) AttemptFinished(string) {}
func (nopObserver) PortReconciled()        {}

// State is a port attempt's position in its lifecycle.
type State int

const (
	StateStart State = iota
	StateCreated
	StateAttached
	StatePolling
	StateMatched  // terminal: port retained
	StateUnmatched
	StateTimedOut
	StateDeleting
	StateDeleted // terminal: port gone
	StateFailed  // terminal: port was never created
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateCreated:
		return "created"
	case StateAttached:
		return "attached"
	case StatePolling:
		return "polling"
	case StateMatched:
		return "matched"
	case StateUnmatched:
		return "unmatched"
	case StateTimedOut:
		return "timed_out"
	case StateDeleting:
		return "deleting"
	case StateDeleted:
		return "deleted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state resolves an attempt. Every attempt ends
// in exactly one of these.
func (s State) Terminal() bool {
	return s == StateMatched || s == StateDeleted || s == StateFailed
}

// Attempt outcome labels, used for logs and metrics.
const (
	OutcomeMatched      = "matched"
	OutcomeUnmatched    = "unmatched"
	OutcomeTimedOut     = "timed_out"
	OutcomeStopped      = "stopped"       // a sibling won or shutdown was requested
	OutcomeCreateFailed = "create_failed" // nothing was provisioned
	OutcomeAttachFailed = "attach_failed"
	OutcomeProtected    = "protected" // teardown refused: port carries the protected address
)
