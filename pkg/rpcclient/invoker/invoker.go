/*
Package invoker provides a convenient wrapper to perform read-only calls
via RPC client.

Calls are executed with eth_call, they never produce transactions and never
change the state of the chain. Invoker can be bound to the current state or
to some fixed height (historic calls), in the latter case the node must keep
the state for that height.
*/
package invoker

import (
	"fmt"
	"math/big"

	"github.com/abicall/abicall/pkg/abi"
	"github.com/abicall/abicall/pkg/manifest"
	"github.com/ethereum/go-ethereum/common"
)

// RPCInvoke is a set of RPC methods needed to execute things at the current
// blockchain height.
type RPCInvoke interface {
	Call(from *common.Address, to common.Address, data []byte, value *big.Int) ([]byte, error)
}

// RPCInvokeHistoric is a set of RPC methods needed to execute things at some
// fixed point in blockchain's life.
type RPCInvokeHistoric interface {
	CallAtHeight(height uint64, from *common.Address, to common.Address, data []byte, value *big.Int) ([]byte, error)
}

// Invoker allows to test-execute things using RPC client. Its API simplifies
// reusing the same sender for a series of invocations and at the same time
// uses ABI method descriptions for call parameters and results. Invoker does
// not produce any transactions and does not change the state of the chain.
type Invoker struct {
	client RPCInvoke
	sender *common.Address
}

type historicConverter struct {
	client RPCInvokeHistoric
	height *uint64
}

// New creates an Invoker to test-execute things at the current blockchain
// height. Sender is optional, it's passed as "from" field of calls if set.
func New(client RPCInvoke, sender *common.Address) *Invoker {
	if sender != nil {
		s := *sender
		sender = &s
	}
	return &Invoker{client, sender}
}

// NewHistoricAtHeight creates an Invoker to test-execute things at some given height.
func NewHistoricAtHeight(height uint64, client RPCInvokeHistoric, sender *common.Address) *Invoker {
	return New(&historicConverter{
		client: client,
		height: &height,
	}, sender)
}

func (h *historicConverter) Call(from *common.Address, to common.Address, data []byte, value *big.Int) ([]byte, error) {
	if h.height != nil {
		return h.client.CallAtHeight(*h.height, from, to, data, value)
	}
	panic("uninitialized historicConverter")
}

// Sender returns the address used as the sender of calls, nil if there is
// none.
func (v *Invoker) Sender() *common.Address {
	if v.sender == nil {
		return nil
	}
	s := *v.sender
	return &s
}

// Run executes the given call data against the contract and returns raw
// result as is.
func (v *Invoker) Run(contract common.Address, data []byte) ([]byte, error) {
	return v.client.Call(v.sender, contract, data, nil)
}

// RunWithValue is the same as Run, but also transfers the given amount of
// native currency in the call (it's only simulated, nothing is spent).
func (v *Invoker) RunWithValue(contract common.Address, data []byte, value *big.Int) ([]byte, error) {
	return v.client.Call(v.sender, contract, data, value)
}

// Call packs the arguments for the method, executes it and unpacks the
// result according to method outputs.
func (v *Invoker) Call(contract common.Address, m *manifest.Method, args ...abi.Value) ([]abi.Value, error) {
	data, err := m.Pack(args...)
	if err != nil {
		return nil, err
	}
	raw, err := v.Run(contract, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Signature(), err)
	}
	return m.Unpack(raw)
}
