package policy

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the registered policies, one per resource. Registration is
// strict: a second Register for the same resource fails, and callers that
// want to change a policy drop it first and re-register.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]*ResourcePolicy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{policies: make(map[string]*ResourcePolicy)}
}

// Register adds a policy. Returns ErrPolicyExists when the resource already
// has one.
func (r *Registry) Register(p *ResourcePolicy) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.policies[p.Resource]; exists {
		return fmt.Errorf("%w: %s", ErrPolicyExists, p.Resource)
	}
	r.policies[p.Resource] = p
	return nil
}

// Drop removes the policy for a resource.
func (r *Registry) Drop(resource string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.policies[resource]; !exists {
		return fmt.Errorf("%w: %s", ErrPolicyNotFound, resource)
	}
	delete(r.policies, resource)
	return nil
}

// Replace drops any existing policy for the resource and registers the new
// one atomically.
func (r *Registry) Replace(p *ResourcePolicy) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.policies[p.Resource] = p
	return nil
}

// Get returns the policy for a resource.
func (r *Registry) Get(resource string) (*ResourcePolicy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.policies[resource]
	return p, ok
}

// Resources lists the registered resource names, sorted.
func (r *Registry) Resources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.policies))
	for name := range r.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load replaces the registry's entire contents with the given policies.
// Used by configuration reload so a half-applied file never serves.
func (r *Registry) Load(policies []*ResourcePolicy) error {
	next := make(map[string]*ResourcePolicy, len(policies))
	for _, p := range policies {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
		}
		if _, dup := next[p.Resource]; dup {
			return fmt.Errorf("%w: %s", ErrPolicyExists, p.Resource)
		}
		next[p.Resource] = p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies = next
	return nil
}
