package sensor

import (
	"errors"
	"fmt"
)

var (
	ErrRegistryFull = errors.New("sensor: registry full")
	ErrDuplicateID  = errors.New("sensor: id already registered")
)

// Registry holds the rig's driver instances in registration order. Capacity
// is bound at MaxSensors; drivers are registered once at startup and owned
// for the process lifetime.
type Registry struct {
	drivers [MaxSensors]Driver
	count   int
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a driver to the next free slot.
func (r *Registry) Register(d Driver) error {
	if r.count >= MaxSensors {
		return ErrRegistryFull
	}
	for i := 0; i < r.count; i++ {
		if r.drivers[i].ID() == d.ID() {
			return fmt.Errorf("%w: %#02x", ErrDuplicateID, uint8(d.ID()))
		}
	}
	r.drivers[r.count] = d
	r.count++
	return nil
}

// ByID looks a driver up by its sensor id.
func (r *Registry) ByID(id ID) (Driver, bool) {
	for i := 0; i < r.count; i++ {
		if r.drivers[i].ID() == id {
			return r.drivers[i], true
		}
	}
	return nil, false
}

// ByIndex looks a driver up by registration ordinal, for enumeration.
func (r *Registry) ByIndex(i int) (Driver, bool) {
	if i < 0 || i >= r.count {
		return nil, false
	}
	return r.drivers[i], true
}

// Count returns the number of registered drivers.
func (r *Registry) Count() int {
	return r.count
}

// IsValidID reports whether id names a registered sensor.
func (r *Registry) IsValidID(id ID) bool {
	_, ok := r.ByID(id)
	return ok
}
