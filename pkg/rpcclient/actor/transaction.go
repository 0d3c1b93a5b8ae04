package actor

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/atomic"
)

// SignedTransaction is a signed transaction ready to be sent with
// Actor.Send. It can only be sent once.
type SignedTransaction struct {
	tx      *types.Transaction
	chainID *big.Int
	from    common.Address
	sent    atomic.Bool
}

// Transaction returns the underlying transaction.
func (t *SignedTransaction) Transaction() *types.Transaction {
	return t.tx
}

// Hash returns the transaction hash (its ID).
func (t *SignedTransaction) Hash() common.Hash {
	return t.tx.Hash()
}

// From returns the sender address.
func (t *SignedTransaction) From() common.Address {
	return t.from
}

// To returns the target contract address.
func (t *SignedTransaction) To() common.Address {
	return *t.tx.To()
}

// Nonce returns the sender nonce of the transaction.
func (t *SignedTransaction) Nonce() uint64 {
	return t.tx.Nonce()
}

// Data returns a copy of the call data.
func (t *SignedTransaction) Data() []byte {
	return t.tx.Data()
}

// Value returns the amount of native currency transferred.
func (t *SignedTransaction) Value() *big.Int {
	return t.tx.Value()
}

// ChainID returns the chain the transaction is signed for.
func (t *SignedTransaction) ChainID() *big.Int {
	return new(big.Int).Set(t.chainID)
}

// IsSent tells whether the transaction was passed to Actor.Send already.
func (t *SignedTransaction) IsSent() bool {
	return t.sent.Load()
}

// Bytes returns the serialized transaction as it's sent to the node.
func (t *SignedTransaction) Bytes() ([]byte, error) {
	return t.tx.MarshalBinary()
}
