package hunter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iphunt/iphunt/internal/cloud"
	"github.com/iphunt/iphunt/internal/logging"
)

// Reconciler removes interfaces left behind by prior runs: unattached orphans
// and extra ports attached to the target instance. Ports carrying the
// protected address or attached to any other device are never touched.
type Reconciler struct {
	api         API
	serverID    string
	protectedIP string
	obs         Observer

	// DryRun only reports what would be removed.
	DryRun bool
}

// NewReconciler builds a reconciliation pass. A nil observer disables metrics.
func NewReconciler(api API, serverID, protectedIP string, obs Observer) *Reconciler {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Reconciler{api: api, serverID: serverID, protectedIP: protectedIP, obs: obs}
}

// Run lists every port visible to the project and removes the ones this
// system owns. Individual failures are logged and the pass continues; only a
// failed listing aborts. Running it twice with no intervening changes removes
// nothing the second time.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	log := logging.With(logging.Component("reconciler"))

	ports, err := r.api.ListPorts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list ports: %w", err)
	}
	log.Info("reconciling ports", "total", len(ports))

	removed := 0
	for _, port := range ports {
		if r.isProtected(port) {
			log.Info("skipping protected port", logging.PortID(port.ID), logging.Addr(r.protectedIP))
			continue
		}

		switch {
		case !port.Attached():
			log.Info("found orphaned port", logging.PortID(port.ID), logging.Addr(port.Address()))
			if r.remove(ctx, port, false, log) {
				removed++
			}
		case port.DeviceID == r.serverID:
			log.Info("found stale port on target instance", logging.PortID(port.ID), logging.Addr(port.Address()))
			if r.remove(ctx, port, true, log) {
				removed++
			}
		default:
			// Attached to some other device: not ours to manage.
			log.Debug("leaving foreign port untouched", logging.PortID(port.ID), "device_id", port.DeviceID)
		}
	}

	log.Info("reconciliation finished", "removed", removed)
	return removed, nil
}

// remove detaches (when requested) and deletes one port, logging failures
// without aborting the pass. Returns true when the delete went through.
func (r *Reconciler) remove(ctx context.Context, port cloud.Port, detach bool, log *slog.Logger) bool {
	if r.DryRun {
		return false
	}
	if detach {
		if err := r.api.DetachInterface(ctx, r.serverID, port.ID); err != nil {
			log.Warn("detach failed", logging.PortID(port.ID), logging.Err(err))
		}
	}
	if err := r.api.DeletePort(ctx, port.ID); err != nil {
		log.Warn("delete failed", logging.PortID(port.ID), logging.Err(err))
		return false
	}
	r.obs.PortReconciled()
	return true
}

// isProtected reports whether any of the port's addresses is the protected
// one. The protected address is never the target of a detach or delete.
func (r *Reconciler) isProtected(port cloud.Port) bool {
	for _, ip := range port.FixedIPs {
		if ip.IPAddress == r.protectedIP {
			return true
		}
	}
	return false
}
