package observable

import (
	"maps"
	"slices"
)

// Disposer is implemented by observables that own resources.
type Disposer interface {
	Dispose()
}

// Domain groups named observables and snapshots them into a plain value bag.
type Domain struct {
	state map[string]Snapshotter
}

// NewDomain creates a Domain over the given named observables. The map is
// copied; later changes to it are not seen by the Domain.
func NewDomain(state map[string]Snapshotter) *Domain {
	return &Domain{state: maps.Clone(state)}
}

// Names returns the member names in sorted order.
func (d *Domain) Names() []string {
	return slices.Sorted(maps.Keys(d.state))
}

// Values returns a fresh snapshot of every member's current value.
func (d *Domain) Values() map[string]any {
	values := make(map[string]any, len(d.state))
	for name, s := range d.state {
		values[name] = s.Snapshot()
	}
	return values
}

// Get returns the named member, if present.
func (d *Domain) Get(name string) (Snapshotter, bool) {
	s, ok := d.state[name]
	return s, ok
}

// Dispose disposes every member that implements Disposer.
func (d *Domain) Dispose() {
	for _, s := range d.state {
		if disposer, ok := s.(Disposer); ok {
			disposer.Dispose()
		}
	}
}
