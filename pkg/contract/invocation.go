package contract

import (
	"math/big"

	"github.com/abicall/abicall/pkg/abi"
	"github.com/abicall/abicall/pkg/manifest"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// State is the state of a single invocation.
type State byte

// Invocation states. Every invocation starts as Built and ends as either
// Completed or Failed.
const (
	// Built means the method is resolved and the arguments are accepted.
	Built State = iota
	// Encoded means the call data is ready.
	Encoded
	// Dispatched means the call data is handed to the transport.
	Dispatched
	// Completed means the result (values or transaction hash) is available.
	Completed
	// Failed is terminal, the invocation carries an error.
	Failed
)

// String implements fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case Built:
		return "built"
	case Encoded:
		return "encoded"
	case Dispatched:
		return "dispatched"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Invocation is the record of a single method call. It's owned by the caller
// once returned and is never reused by Contract.
type Invocation struct {
	// ID correlates log messages of the invocation.
	ID uuid.UUID
	// Method is the resolved method, nil if it can't be resolved.
	Method *manifest.Method
	// Args are the arguments the method is invoked with.
	Args []abi.Value
	// Value is the amount of native currency attached to the call, nil
	// if none.
	Value *big.Int
	State State
	// CallData is the selector followed by encoded arguments.
	CallData []byte
	// Values are decoded results of read-only methods.
	Values []abi.Value
	// TxID is the hash of the transaction sent for state-changing methods.
	TxID common.Hash
	// Err is set for Failed invocations.
	Err error
}

// IsReadOnly tells whether the invocation is (or would be) a query.
func (i *Invocation) IsReadOnly() bool {
	return i.Method != nil && i.Method.IsReadOnly()
}
