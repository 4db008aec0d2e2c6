// Package dispatch implements priority-based override resolution for named
// operations declared across a type hierarchy.
//
// An operation has exactly one base implementation and any number of override
// candidates contributed by other types in a hierarchy. Hierarchies are
// declared explicitly as ordered chains of type names, most-derived first, so
// resolution never depends on reflection. The highest-priority override wins;
// a tie at the top is an error rather than an arbitrary pick; with no
// overrides the base implementation runs.
package dispatch

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Handler is one implementation of an operation. It receives the instance the
// operation was resolved against and the call arguments, forwarded unchanged.
type Handler func(instance interface{}, args ...interface{}) (interface{}, error)

// Hierarchical exposes the ordered chain of type names composing a value,
// most-derived first.
type Hierarchical interface {
	TypeChain() []string
}

// Descriptor identifies one candidate implementation of an operation.
type Descriptor struct {
	Operation     string
	DeclaringType string
	Priority      int
	Override      bool

	fn Handler
	id uint64 // registration identity, used to deduplicate shared candidates
}

// String renders the candidate as declaring-type.operation, the form used in
// ambiguity errors.
func (d *Descriptor) String() string {
	return d.DeclaringType + "." + d.Operation
}

// Handler returns the underlying implementation.
func (d *Descriptor) Handler() Handler { return d.fn }

// Option configures a candidate registration.
type Option func(*Descriptor)

// WithPriority sets the candidate's priority. Default is 1; higher wins.
func WithPriority(p int) Option {
	return func(d *Descriptor) { d.Priority = p }
}

// AsOverride marks the candidate as eligible to supersede the base
// implementation. Unmarked candidates are base implementations.
func AsOverride() Option {
	return func(d *Descriptor) { d.Override = true }
}

// Resolver owns the candidate registry and the resolution cache. The cache is
// keyed by hierarchy shape and operation name and lives for the lifetime of
// the resolver; registering a candidate after first resolution invalidates it.
// All methods are safe for concurrent use.
type Resolver struct {
	mu     sync.RWMutex
	byType map[string]map[string][]*Descriptor // type name -> operation -> declared candidates
	cache  map[string]*Descriptor
	nextID uint64
	scans  atomic.Uint64
}

// NewResolver returns an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{
		byType: make(map[string]map[string][]*Descriptor),
		cache:  make(map[string]*Descriptor),
	}
}

// Register declares a candidate implementation of operation on the given type
// and returns its descriptor. Registration invalidates the resolution cache:
// cached choices are only valid while the candidate set is fixed.
func (r *Resolver) Register(typeName, operation string, fn Handler, opts ...Option) *Descriptor {
	d := &Descriptor{
		Operation:     operation,
		DeclaringType: typeName,
		Priority:      1,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.fn = fn

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	d.id = r.nextID
	r.attachLocked(typeName, d)
	r.cache = make(map[string]*Descriptor)
	return d
}

// Attach exposes an already-declared candidate through an additional type, the
// way an inherited method is reachable from every subclass. The candidate
// keeps its identity, so a hierarchy seeing it through several types still
// counts it once. Attach invalidates the resolution cache.
func (r *Resolver) Attach(typeName string, d *Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attachLocked(typeName, d)
	r.cache = make(map[string]*Descriptor)
}

func (r *Resolver) attachLocked(typeName string, d *Descriptor) {
	ops, ok := r.byType[typeName]
	if !ok {
		ops = make(map[string][]*Descriptor)
		r.byType[typeName] = ops
	}
	ops[d.Operation] = append(ops[d.Operation], d)
}

// Resolve picks the implementation of operation that should run for the given
// hierarchy chain. Repeated calls with an unchanged chain hit the cache and do
// not re-scan. Returns AmbiguousOverrideError when the two highest-priority
// override candidates tie, and MissingOperationError when nothing implements
// the operation at all.
func (r *Resolver) Resolve(chain []string, operation string) (*Descriptor, error) {
	key := cacheKey(chain, operation)

	r.mu.RLock()
	if d, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return d, nil
	}
	r.mu.RUnlock()

	d, err := r.scan(chain, operation)
	if err != nil {
		return nil, err
	}

	// Concurrent first resolutions may race here; the scan is pure, so
	// last-write-wins converges on the same entry.
	r.mu.Lock()
	r.cache[key] = d
	r.mu.Unlock()
	return d, nil
}

// Invoke resolves operation for the instance's hierarchy and calls the chosen
// implementation with the instance and arguments forwarded unchanged.
func (r *Resolver) Invoke(instance Hierarchical, operation string, args ...interface{}) (interface{}, error) {
	d, err := r.Resolve(instance.TypeChain(), operation)
	if err != nil {
		return nil, err
	}
	return d.fn(instance, args...)
}

// Scans reports how many full hierarchy scans have run. Steady-state traffic
// should leave this flat: the cache is the fast path.
func (r *Resolver) Scans() uint64 { return r.scans.Load() }

func (r *Resolver) scan(chain []string, operation string) (*Descriptor, error) {
	r.scans.Add(1)

	r.mu.RLock()
	seen := make(map[uint64]struct{})
	var candidates []*Descriptor
	for _, typeName := range chain {
		for _, d := range r.byType[typeName][operation] {
			if _, dup := seen[d.id]; dup {
				continue
			}
			seen[d.id] = struct{}{}
			candidates = append(candidates, d)
		}
	}
	r.mu.RUnlock()

	var overrides []*Descriptor
	var base *Descriptor
	for _, d := range candidates {
		if d.Override {
			overrides = append(overrides, d)
		} else if base == nil {
			// First base in chain order, i.e. the most-derived declaration.
			base = d
		}
	}

	sort.SliceStable(overrides, func(i, j int) bool {
		return overrides[i].Priority > overrides[j].Priority
	})

	// Only a tie between the top two candidates is ambiguous. Ties further
	// down the sorted list are irrelevant once a unique winner exists.
	if len(overrides) >= 2 && overrides[0].Priority == overrides[1].Priority {
		return nil, &AmbiguousOverrideError{
			Operation: operation,
			First:     overrides[0],
			Second:    overrides[1],
		}
	}

	if len(overrides) > 0 {
		return overrides[0], nil
	}
	if base != nil {
		return base, nil
	}
	return nil, &MissingOperationError{Operation: operation, Chain: append([]string(nil), chain...)}
}

func cacheKey(chain []string, operation string) string {
	return strings.Join(chain, "\x1f") + "\x1e" + operation
}
