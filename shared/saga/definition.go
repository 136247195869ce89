package saga

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// RetryPolicy bounds the in-place retry loop for a step's forward action.
// Exhausting MaxAttempts escalates the last retryable error to a fatal one.
type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
	AttemptTimeout    time.Duration
}

// DefaultRetryPolicy returns the policy applied to steps that declare none
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		InitialBackoff:    200 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxBackoff:        5 * time.Second,
		AttemptTimeout:    30 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.BackoffMultiplier <= 1 {
		p.BackoffMultiplier = def.BackoffMultiplier
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = def.AttemptTimeout
	}
	return p
}

// StepDefinition binds a named step to its contract and retry policy.
//
// NonCompensatable marks a step whose forward action cannot be undone. Such a
// step is only valid as the last step of a definition, unless FailFast is also
// set, in which case the compensation pass skips it.
type StepDefinition struct {
	Name             string
	Step             StepContract
	Retry            RetryPolicy
	NonCompensatable bool
	FailFast         bool
}

// Definition is an immutable, ordered list of steps declared once per saga
// type and shared read-only across all instances.
type Definition struct {
	id    string
	steps []StepDefinition
}

// NewDefinition validates and builds a saga definition
func NewDefinition(id string, steps ...StepDefinition) (*Definition, error) {
	if id == "" {
		return nil, errors.New("definition id is required")
	}
	if len(steps) == 0 {
		return nil, errors.New("definition requires at least one step")
	}

	seen := make(map[string]struct{}, len(steps))
	for i, sd := range steps {
		if sd.Name == "" {
			return nil, errors.Errorf("step %d has no name", i)
		}
		if sd.Step == nil {
			return nil, errors.Errorf("step %q has no contract", sd.Name)
		}
		if _, dup := seen[sd.Name]; dup {
			return nil, errors.Errorf("duplicate step name %q", sd.Name)
		}
		seen[sd.Name] = struct{}{}

		if sd.NonCompensatable && i != len(steps)-1 && !sd.FailFast {
			return nil, errors.Errorf(
				"non-compensatable step %q must be the last step or marked fail-fast", sd.Name)
		}

		steps[i].Retry = sd.Retry.normalized()
	}

	copied := make([]StepDefinition, len(steps))
	copy(copied, steps)

	return &Definition{id: id, steps: copied}, nil
}

// ID returns the definition identifier
func (d *Definition) ID() string {
	return d.id
}

// Len returns the number of steps
func (d *Definition) Len() int {
	return len(d.steps)
}

// Step returns the step definition at the given index
func (d *Definition) Step(i int) StepDefinition {
	return d.steps[i]
}

// StepNames returns the ordered step names
func (d *Definition) StepNames() []string {
	names := make([]string, len(d.steps))
	for i, sd := range d.steps {
		names[i] = sd.Name
	}
	return names
}

// Registry resolves definition IDs to definitions. Definitions are registered
// at process startup and the registry is read-only afterwards.
type Registry struct {
	mux  sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry creates an empty definition registry
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds a definition to the registry
func (r *Registry) Register(def *Definition) error {
	r.mux.Lock()
	defer r.mux.Unlock()

	if _, exists := r.defs[def.ID()]; exists {
		return errors.Errorf("definition %q already registered", def.ID())
	}
	r.defs[def.ID()] = def
	return nil
}

// Get resolves a definition by ID
func (r *Registry) Get(definitionID string) (*Definition, error) {
	r.mux.RLock()
	defer r.mux.RUnlock()

	def, ok := r.defs[definitionID]
	if !ok {
		return nil, errors.Errorf("unknown saga definition %q", definitionID)
	}
	return def, nil
}
