package hunter

import (
	"context"
	"fmt"
	"sync"

	"github.com/iphunt/iphunt/internal/cloud"
)

// fakeCloud is an in-memory control plane. Address delivery is scripted per
// port through assign, which is called on every poll with the port id and the
// 1-based poll count.
type fakeCloud struct {
	mu sync.Mutex

	nextID        int
	ports         map[string]*cloud.Port
	polls         map[string]int
	deleted       []string
	detachedPorts []string

	// assign returns the address to deliver for a port at a given poll,
	// or "" when no address is assigned yet.
	assign func(portID string, poll int) string

	// createErr and attachErr inject failures; nil means success.
	createErr func(callNum int) error
	attachErr func(portID string) error
	deleteErr func(portID string) error
	listErr   error

	// seeded ports returned by ListPorts in addition to created ones.
	seed []cloud.Port

	createCalls int
	active      int // created minus deleted
	maxActive   int
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{
		ports: make(map[string]*cloud.Port),
		polls: make(map[string]int),
	}
}

func (f *fakeCloud) CreatePort(ctx context.Context, networkID string) (cloud.Port, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createCalls++
	if f.createErr != nil {
		if err := f.createErr(f.createCalls); err != nil {
			return cloud.Port{}, err
		}
	}

	f.nextID++
	id := fmt.Sprintf("port-%d", f.nextID)
	f.ports[id] = &cloud.Port{ID: id, NetworkID: networkID}
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	return *f.ports[id], nil
}

func (f *fakeCloud) GetPort(ctx context.Context, id string) (cloud.Port, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.ports[id]
	if !ok {
		return cloud.Port{}, &cloud.APIError{StatusCode: 404}
	}
	f.polls[id]++
	if f.assign != nil && len(p.FixedIPs) == 0 {
		if addr := f.assign(id, f.polls[id]); addr != "" {
			p.FixedIPs = []cloud.FixedIP{{IPAddress: addr}}
		}
	}
	return *p, nil
}

func (f *fakeCloud) ListPorts(ctx context.Context) ([]cloud.Port, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]cloud.Port, 0, len(f.seed))
	for _, p := range f.seed {
		if !f.isDeletedLocked(p.ID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCloud) DeletePort(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr != nil {
		if err := f.deleteErr(id); err != nil {
			return err
		}
	}
	if _, ok := f.ports[id]; ok {
		delete(f.ports, id)
		f.active--
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeCloud) AttachInterface(ctx context.Context, serverID, portID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.attachErr != nil {
		if err := f.attachErr(portID); err != nil {
			return err
		}
	}
	if p, ok := f.ports[portID]; ok {
		p.DeviceID = serverID
	}
	return nil
}

func (f *fakeCloud) DetachInterface(ctx context.Context, serverID, portID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.detachedPorts = append(f.detachedPorts, portID)
	if p, ok := f.ports[portID]; ok {
		p.DeviceID = ""
	}
	return nil
}

func (f *fakeCloud) isDeletedLocked(id string) bool {
	for _, d := range f.deleted {
		if d == id {
			return true
		}
	}
	return false
}

func (f *fakeCloud) wasDeleted(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isDeletedLocked(id)
}

func (f *fakeCloud) wasDetached(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.detachedPorts {
		if d == id {
			return true
		}
	}
	return false
}

func (f *fakeCloud) deletedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deleted)
}

func (f *fakeCloud) livePorts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ports)
}

func (f *fakeCloud) maxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}
