/*
Package actor provides a way to change chain state via RPC client.

This layer builds on top of the basic RPC client and [invoker] package, it
simplifies creating, signing and sending transactions to the network (since
that's the only way chain state is changed). It's generic enough to be used
for any contract that you may want to invoke and contract-specific functions
can build on top of it.

Transactions are signed with a single private key held in memory using the
EIP-155 legacy envelope. The chain ID is fetched from the node once and
cached, nonces are tracked locally (see [Actor.NextNonce]).
*/
package actor

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/abicall/abicall/pkg/crypto/keys"
	"github.com/abicall/abicall/pkg/ethrpc"
	"github.com/abicall/abicall/pkg/rpcclient/invoker"
	"github.com/abicall/abicall/pkg/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// DefaultGasMultiplier is applied to gas estimations if no other multiplier
// is set in Options.
const DefaultGasMultiplier = 1.2

var (
	// ErrChainIdentityUnset is returned when a transaction is to be signed
	// before the chain ID was fetched from the node.
	ErrChainIdentityUnset = errors.New("chain identity is not set")
	// ErrAlreadySent is returned on attempt to send the same signed
	// transaction twice.
	ErrAlreadySent = errors.New("transaction is already sent")
)

// RPCActor is an interface required from the RPC client to successfully
// create and send transactions.
type RPCActor interface {
	invoker.RPCInvoke

	ChainID() (*big.Int, error)
	EstimateGas(args ethrpc.CallArgs) (uint64, error)
	GasPrice() (*big.Int, error)
	GetTransactionCount(addr common.Address, block string) (uint64, error)
	SendRawTransaction(tx *types.Transaction) (common.Hash, error)
}

// Options are used to create Actor with non-standard gas settings, nonce
// persistence or logging.
type Options struct {
	// GasPrice is used for all transactions if set, otherwise the price
	// is requested from the node for every transaction.
	GasPrice *big.Int
	// GasLimit is used for all transactions if set, otherwise the gas is
	// estimated by the node and multiplied by GasMultiplier.
	GasLimit uint64
	// GasMultiplier is applied to gas estimations, DefaultGasMultiplier is
	// used if not set.
	GasMultiplier float64
	// NonceStore keeps the next nonce between restarts if set. It's owned
	// by the caller and is not closed by Actor.
	NonceStore storage.Store
	// PollInterval is used by Wait, one second if not set.
	PollInterval time.Duration
	// Logger receives debug messages, nop logger is used if not set.
	Logger *zap.Logger
}

// TxParams are transaction parameters other than the target, call data and
// nonce.
type TxParams struct {
	Value    *big.Int
	GasPrice *big.Int
	Gas      uint64
}

// Actor keeps a connection to the RPC endpoint and allows to perform
// state-changing actions (via transactions that can also be created without
// sending them to the network) on behalf of a single sender. It also
// provides an Invoker interface to perform read-only calls with the same
// sender.
//
// Actor is safe for concurrent use except for Reset. Nonce allocation is
// serialized, so concurrent SendCall invocations always use different
// nonces.
type Actor struct {
	invoker.Invoker

	client RPCActor
	key    *keys.PrivateKey
	sender common.Address
	opts   Options
	log    *zap.Logger

	chainLock sync.RWMutex
	chainID   *big.Int

	nonceLock   sync.Mutex
	nonceSynced bool
	nextNonce   uint64
	nonceKey    []byte
}

// New creates an Actor instance using the specified RPC interface and the
// key. No network requests are made here, the chain ID is fetched on the
// first SendCall or FetchChainID call.
func New(ra RPCActor, key *keys.PrivateKey, opts Options) (*Actor, error) {
	if ra == nil {
		return nil, errors.New("no RPC client")
	}
	if key == nil {
		return nil, fmt.Errorf("%w: no key", keys.ErrInvalidKey)
	}
	if opts.GasMultiplier <= 0 {
		opts.GasMultiplier = DefaultGasMultiplier
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	a := &Actor{
		key:    key,
		sender: key.Address(),
		opts:   opts,
		log:    opts.Logger,
	}
	a.setClient(ra)
	return a, nil
}

func (a *Actor) setClient(ra RPCActor) {
	a.client = ra
	a.Invoker = *invoker.New(ra, &a.sender)
}

// Sender returns the sender address that will be used in transactions
// created by Actor.
func (a *Actor) Sender() common.Address {
	return a.sender
}

// FetchChainID returns the chain ID, it's requested from the node once and
// then cached.
func (a *Actor) FetchChainID() (*big.Int, error) {
	if id, err := a.ChainID(); err == nil {
		return id, nil
	}
	a.chainLock.Lock()
	defer a.chainLock.Unlock()
	if a.chainID == nil {
		id, err := a.client.ChainID()
		if err != nil {
			return nil, fmt.Errorf("failed to get chain ID: %w", err)
		}
		if id == nil || id.Sign() <= 0 {
			return nil, fmt.Errorf("invalid chain ID %v", id)
		}
		a.chainID = id
		a.log.Debug("chain ID fetched", zap.Stringer("chain", id))
	}
	return new(big.Int).Set(a.chainID), nil
}

// ChainID returns the cached chain ID or ErrChainIdentityUnset if it was not
// fetched yet.
func (a *Actor) ChainID() (*big.Int, error) {
	a.chainLock.RLock()
	defer a.chainLock.RUnlock()
	if a.chainID == nil {
		return nil, ErrChainIdentityUnset
	}
	return new(big.Int).Set(a.chainID), nil
}

// Reset binds Actor to another RPC endpoint. Cached chain ID and nonce are
// dropped, so they're requested from the new node. It must not be called
// concurrently with other Actor methods.
func (a *Actor) Reset(ra RPCActor) {
	a.chainLock.Lock()
	a.nonceLock.Lock()
	a.setClient(ra)
	a.chainID = nil
	a.nonceSynced = false
	a.nonceKey = nil
	a.nonceLock.Unlock()
	a.chainLock.Unlock()
}

// Sign creates a transaction calling the target with the given data and
// signs it. The result is deterministic for the same set of parameters, the
// signature is always checked to recover to the sender.
func (a *Actor) Sign(target common.Address, data []byte, nonce uint64, params TxParams) (*SignedTransaction, error) {
	chainID, err := a.ChainID()
	if err != nil {
		return nil, err
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: params.GasPrice,
		Gas:      params.Gas,
		To:       &target,
		Value:    params.Value,
		Data:     data,
	})
	signer := types.NewEIP155Signer(chainID)
	sig := a.key.SignHash(signer.Hash(tx))
	signed, err := tx.WithSignature(signer, sig)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	from, err := types.Sender(signer, signed)
	if err != nil {
		return nil, fmt.Errorf("failed to verify signature: %w", err)
	}
	if from != a.sender {
		return nil, fmt.Errorf("signature recovers to %s instead of %s", from, a.sender)
	}
	return &SignedTransaction{tx: signed, chainID: chainID, from: from}, nil
}

// Send allows to send arbitrary prepared transaction to the network. Every
// SignedTransaction can only be sent once, ErrAlreadySent is returned for
// subsequent attempts.
func (a *Actor) Send(stx *SignedTransaction) (common.Hash, error) {
	if !stx.sent.CompareAndSwap(false, true) {
		return common.Hash{}, ErrAlreadySent
	}
	return a.client.SendRawTransaction(stx.tx)
}

// SendCall creates a transaction that calls the target with the given data
// (and value if it's not nil), signs it with a fresh nonce and sends it to
// the network. The nonce is returned for reuse if the node rejects the
// transaction, it's resynchronized from the node if it was too low or if
// the outcome is unknown.
func (a *Actor) SendCall(target common.Address, data []byte, value *big.Int) (common.Hash, error) {
	if _, err := a.FetchChainID(); err != nil {
		return common.Hash{}, err
	}
	params, err := a.txParams(target, data, value)
	if err != nil {
		return common.Hash{}, err
	}
	nonce, err := a.NextNonce()
	if err != nil {
		return common.Hash{}, err
	}
	stx, err := a.Sign(target, data, nonce, params)
	if err != nil {
		a.rollbackNonce(nonce)
		return common.Hash{}, err
	}
	h, err := a.Send(stx)
	if err != nil {
		var rpcErr *ethrpc.Error
		switch {
		case errors.Is(err, ethrpc.ErrNonceTooLow):
			a.resyncNonce()
		case errors.As(err, &rpcErr):
			a.rollbackNonce(nonce)
		default:
			a.resyncNonce()
		}
		return common.Hash{}, err
	}
	a.log.Debug("transaction sent",
		zap.Stringer("hash", h),
		zap.Stringer("to", target),
		zap.Uint64("nonce", nonce))
	return h, nil
}

// txParams fills gas parameters for the call.
func (a *Actor) txParams(target common.Address, data []byte, value *big.Int) (TxParams, error) {
	var (
		err    error
		params = TxParams{
			Value:    value,
			GasPrice: a.opts.GasPrice,
			Gas:      a.opts.GasLimit,
		}
	)
	if params.GasPrice == nil {
		params.GasPrice, err = a.client.GasPrice()
		if err != nil {
			return params, fmt.Errorf("failed to get gas price: %w", err)
		}
	}
	if params.Gas == 0 {
		est, err := a.client.EstimateGas(ethrpc.NewCallArgs(&a.sender, target, data, value))
		if err != nil {
			return params, fmt.Errorf("failed to estimate gas: %w", err)
		}
		params.Gas = uint64(float64(est) * a.opts.GasMultiplier)
	}
	return params, nil
}
