package permission

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tvshows/authclient/session"
)

// RoleManager holds the capability mask granted to each role.
//
// RoleManager instances are configured during initialization and then treated
// as immutable.
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[session.Role]Mask64
	frozen bool
}

// NewRoleManager creates a manager resolving capability names through registry.
func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[session.Role]Mask64),
	}
}

// Registry returns the registry capability names resolve through.
func (rm *RoleManager) Registry() *Registry {
	return rm.registry
}

// RegisterRole grants role the named capabilities.
func (rm *RoleManager) RegisterRole(role session.Role, capabilities []string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return errors.New("role manager frozen")
	}
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	if _, exists := rm.roles[role]; exists {
		return fmt.Errorf("role %s already registered", role)
	}

	mask, err := rm.registry.MaskOf(capabilities...)
	if err != nil {
		return err
	}
	rm.roles[role] = mask
	return nil
}

// Mask returns the capability mask for role.
func (rm *RoleManager) Mask(role session.Role) (Mask64, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	mask, ok := rm.roles[role]
	return mask, ok
}

// Allows reports whether role holds the named capability. Unregistered names
// return [ErrUnknownCapability]; unregistered roles hold nothing.
func (rm *RoleManager) Allows(role session.Role, capability string) (bool, error) {
	bit, ok := rm.registry.Bit(capability)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownCapability, capability)
	}
	mask, _ := rm.Mask(role)
	return mask.Has(bit), nil
}

// AllowsAll reports whether role holds every bit in required.
func (rm *RoleManager) AllowsAll(role session.Role, required Mask64) bool {
	mask, _ := rm.Mask(role)
	return mask.HasAll(required)
}

// Freeze prevents further role registration.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

// Count returns the number of registered roles.
func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}
