package contract

import (
	"fmt"
	"math/big"
	"slices"

	"github.com/abicall/abicall/pkg/abi"
	"github.com/abicall/abicall/pkg/manifest"
)

// BoundMethod is a callable bound to the contract, it covers all overloads
// of the method with the same name.
type BoundMethod struct {
	contract  *Contract
	name      string
	overloads []manifest.Method
}

// Method returns the callable for the method with the given name.
func (c *Contract) Method(name string) (*BoundMethod, error) {
	ms := c.abi.Overloads(name)
	if len(ms) == 0 {
		return nil, fmt.Errorf("%w: %s", manifest.ErrUnknownMethod, name)
	}
	return &BoundMethod{contract: c, name: name, overloads: ms}, nil
}

// Methods returns callables for all contract methods by their names.
func (c *Contract) Methods() map[string]*BoundMethod {
	res := make(map[string]*BoundMethod)
	for _, m := range c.abi.Methods() {
		b, ok := res[m.Name]
		if !ok {
			b = &BoundMethod{contract: c, name: m.Name}
			res[m.Name] = b
		}
		b.overloads = append(b.overloads, m)
	}
	return res
}

// Name returns the method name.
func (b *BoundMethod) Name() string {
	return b.name
}

// Overloads returns all methods with this name in declaration order.
func (b *BoundMethod) Overloads() []manifest.Method {
	return slices.Clone(b.overloads)
}

// IsReadOnly tells whether all overloads of the method are pure or view.
func (b *BoundMethod) IsReadOnly() bool {
	for i := range b.overloads {
		if !b.overloads[i].IsReadOnly() {
			return false
		}
	}
	return true
}

// Invoke is the same as Contract.Invoke for this method.
func (b *BoundMethod) Invoke(args ...abi.Value) (*Invocation, error) {
	return b.contract.Invoke(b.name, args...)
}

// InvokeWithValue is the same as Contract.InvokeWithValue for this method.
func (b *BoundMethod) InvokeWithValue(value *big.Int, args ...abi.Value) (*Invocation, error) {
	return b.contract.InvokeWithValue(value, b.name, args...)
}
