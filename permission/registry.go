package permission

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnknownCapability is returned when a capability name was never registered.
	ErrUnknownCapability = errors.New("unknown capability")
	// ErrRegistryFrozen is returned by Register after Freeze.
	ErrRegistryFrozen = errors.New("registry frozen")
)

// Registry maps capability names to bit positions within a [Mask64].
type Registry struct {
	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName map[int]string
	frozen    bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		nameToBit: make(map[string]int),
		bitToName: make(map[int]string),
	}
}

// Register assigns the next available bit to name and returns it. Must be
// called before [Registry.Freeze].
func (r *Registry) Register(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, ErrRegistryFrozen
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return -1, errors.New("capability name cannot be empty")
	}
	if strings.ContainsAny(name, ", ") {
		return -1, fmt.Errorf("capability name %q contains a separator", name)
	}
	if _, exists := r.nameToBit[name]; exists {
		return -1, fmt.Errorf("capability %q already registered", name)
	}

	nextBit := len(r.nameToBit)
	if nextBit >= MaxCapabilities {
		return -1, errors.New("capability limit exceeded")
	}

	r.nameToBit[name] = nextBit
	r.bitToName[nextBit] = name
	return nextBit, nil
}

// Bit returns the bit index for name, or false if not registered.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the capability name for bit, or false if unassigned.
func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bitToName[bit]
	return name, ok
}

// MaskOf returns the mask with the bits of every named capability set.
func (r *Registry) MaskOf(names ...string) (Mask64, error) {
	var m Mask64
	for _, name := range names {
		bit, ok := r.Bit(strings.TrimSpace(name))
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownCapability, name)
		}
		m.Set(bit)
	}
	return m, nil
}

// Names lists the capabilities set in m, sorted.
func (r *Registry) Names(m Mask64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.bitToName))
	for bit, name := range r.bitToName {
		if m.Has(bit) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered capabilities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}
