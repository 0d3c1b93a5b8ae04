package manifest

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/abicall/abicall/pkg/abi"
)

var (
	// ErrUnknownMethod is returned when there is no method with the requested
	// name and argument types.
	ErrUnknownMethod = errors.New("unknown method")
	// ErrDuplicateSignature is returned when a method with the same name and
	// argument types is already registered.
	ErrDuplicateSignature = errors.New("duplicate method signature")
	// ErrFrozen is returned on attempt to modify a frozen registry.
	ErrFrozen = errors.New("registry is read-only")
)

// ABI is a registry of contract methods. Methods are identified by name and
// argument types, so overloads are allowed. Once frozen, ABI is read-only and
// safe for concurrent use.
type ABI struct {
	lock    sync.RWMutex
	methods []Method
	frozen  bool
}

// NewABI creates a registry populated with the given methods.
func NewABI(methods ...Method) (*ABI, error) {
	a := new(ABI)
	for i := range methods {
		if err := a.Register(methods[i]); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Register adds a method to the registry.
func (a *ABI) Register(m Method) error {
	if err := m.IsValid(); err != nil {
		return fmt.Errorf("method %q/%d: %w", m.Name, len(m.Parameters), err)
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.frozen {
		return fmt.Errorf("%w: can't register %s", ErrFrozen, m.Signature())
	}
	if a.find(m.Name, m.Parameters.Types()) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateSignature, m.Signature())
	}
	m.Parameters = slices.Clone(m.Parameters)
	m.Returns = slices.Clone(m.Returns)
	a.methods = append(a.methods, m)
	return nil
}

// Freeze makes the registry read-only.
func (a *ABI) Freeze() {
	a.lock.Lock()
	a.frozen = true
	a.lock.Unlock()
}

// IsFrozen tells whether the registry is read-only.
func (a *ABI) IsFrozen() bool {
	a.lock.RLock()
	defer a.lock.RUnlock()
	return a.frozen
}

// Resolve returns the method with the specified name and argument types.
func (a *ABI) Resolve(name string, argTypes []abi.Type) (*Method, error) {
	a.lock.RLock()
	defer a.lock.RUnlock()
	i := a.find(name, argTypes)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s(%s)", ErrUnknownMethod, name, abi.TypesString(argTypes))
	}
	m := a.methods[i]
	return &m, nil
}

// GetMethod returns the first registered method with the specified name and
// number of parameters (-1 matches any number). nil is returned if there is
// no such method.
func (a *ABI) GetMethod(name string, paramCount int) *Method {
	a.lock.RLock()
	defer a.lock.RUnlock()
	for i := range a.methods {
		if a.methods[i].Name == name && (paramCount == -1 || len(a.methods[i].Parameters) == paramCount) {
			m := a.methods[i]
			return &m
		}
	}
	return nil
}

// Overloads returns all methods with the given name in registration order.
func (a *ABI) Overloads(name string) []Method {
	a.lock.RLock()
	defer a.lock.RUnlock()
	var res []Method
	for i := range a.methods {
		if a.methods[i].Name == name {
			res = append(res, a.methods[i])
		}
	}
	return res
}

// Methods returns all methods in registration order.
func (a *ABI) Methods() []Method {
	a.lock.RLock()
	defer a.lock.RUnlock()
	return slices.Clone(a.methods)
}

func (a *ABI) find(name string, types []abi.Type) int {
	for i := range a.methods {
		if a.methods[i].Name == name && typesEqual(a.methods[i].Parameters, types) {
			return i
		}
	}
	return -1
}

func typesEqual(ps Parameters, types []abi.Type) bool {
	if len(ps) != len(types) {
		return false
	}
	for i := range ps {
		if !ps[i].Type.Equals(types[i]) {
			return false
		}
	}
	return true
}
