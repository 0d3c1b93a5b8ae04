/*
Package contract provides a handle to a deployed contract that exposes its
ABI methods as callables.

Contract binds an address, an ABI registry and RPC collaborators. Pure and
view methods are executed as read-only calls and their results are decoded,
state-changing methods are sent as signed transactions and only the
transaction hash is returned (there is nothing to decode before the
transaction is included into a block, see [Contract.Wait]). The two kinds of
calls are never mixed up: [Contract.Query] refuses state-changing methods
and [Contract.Submit] refuses read-only ones.
*/
package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"

	"github.com/abicall/abicall/pkg/abi"
	"github.com/abicall/abicall/pkg/ethrpc"
	"github.com/abicall/abicall/pkg/manifest"
	"github.com/abicall/abicall/pkg/rpcclient/actor"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Reader executes read-only calls, it's implemented by invoker.Invoker and
// actor.Actor. Read-only methods are never payable, so no value is passed.
type Reader interface {
	Run(contract common.Address, data []byte) ([]byte, error)
}

// Signer signs and sends transactions, it's implemented by actor.Actor. It
// must allocate a fresh nonce for every call.
type Signer interface {
	SendCall(target common.Address, data []byte, value *big.Int) (common.Hash, error)
}

// Waiter awaits transactions sent by Signer, it's implemented by
// actor.Actor.
type Waiter interface {
	Wait(ctx context.Context, h common.Hash) (*ethrpc.Receipt, error)
}

// Options are optional Contract settings.
type Options struct {
	// PureCacheSize is the number of pure method results to keep, results
	// are cached by call data. No caching is done if zero.
	PureCacheSize int
	// Logger receives invocation state transitions at debug level, nop
	// logger is used if not set.
	Logger *zap.Logger
}

// Contract is a handle to a deployed contract. It keeps no state between
// invocations (except for the pure results cache) and is safe for
// concurrent use.
type Contract struct {
	address common.Address
	abi     *manifest.ABI
	reader  Reader
	signer  Signer
	cache   *lru.Cache[string, []byte]
	log     *zap.Logger

	// closers release resources owned by the contract created with Dial.
	closers []func()
}

type dispatchMode byte

const (
	anyMode dispatchMode = iota
	queryMode
	submitMode
)

// New creates a contract handle. The ABI is frozen and must not be changed
// after that. Signer is optional, state-changing methods fail with
// ErrNoSigningContext without it. If reader is nil, signer is used for
// read-only calls if it implements Reader.
func New(addr common.Address, a *manifest.ABI, reader Reader, signer Signer, opts Options) (*Contract, error) {
	if a == nil {
		return nil, errors.New("no ABI")
	}
	if reader == nil {
		r, ok := signer.(Reader)
		if !ok {
			return nil, errors.New("no reader")
		}
		reader = r
	}
	if opts.PureCacheSize < 0 {
		return nil, fmt.Errorf("negative cache size %d", opts.PureCacheSize)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	a.Freeze()
	c := &Contract{
		address: addr,
		abi:     a,
		reader:  reader,
		signer:  signer,
		log:     opts.Logger,
	}
	if opts.PureCacheSize > 0 {
		cache, err := lru.New[string, []byte](opts.PureCacheSize)
		if err != nil {
			return nil, err
		}
		c.cache = cache
	}
	return c, nil
}

// Address returns the contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// ABI returns the (frozen) registry of contract methods.
func (c *Contract) ABI() *manifest.ABI {
	return c.abi
}

// CanSign tells whether state-changing methods can be invoked.
func (c *Contract) CanSign() bool {
	return c.signer != nil
}

// Invoke calls the method with the given name resolved by the types of
// the arguments. Read-only methods are queried and their results are
// decoded, state-changing methods are sent as transactions. The invocation
// is returned even if it has failed (in Failed state, with the same error).
func (c *Contract) Invoke(name string, args ...abi.Value) (*Invocation, error) {
	return c.invoke(anyMode, nil, name, args)
}

// InvokeWithValue is the same as Invoke, but also attaches the given amount
// of native currency to the call. Non-zero value is only accepted by
// payable methods.
func (c *Contract) InvokeWithValue(value *big.Int, name string, args ...abi.Value) (*Invocation, error) {
	return c.invoke(anyMode, value, name, args)
}

// Query executes a read-only method and returns its decoded results. It
// fails with ErrNotReadOnly for state-changing methods.
func (c *Contract) Query(name string, args ...abi.Value) ([]abi.Value, error) {
	inv, err := c.invoke(queryMode, nil, name, args)
	if err != nil {
		return nil, err
	}
	return inv.Values, nil
}

// Submit sends a transaction calling the state-changing method and returns
// its hash. It fails with ErrReadOnly for pure and view methods.
func (c *Contract) Submit(name string, args ...abi.Value) (common.Hash, error) {
	return c.SubmitWithValue(nil, name, args...)
}

// SubmitWithValue is the same as Submit, but also attaches the given amount
// of native currency to the transaction.
func (c *Contract) SubmitWithValue(value *big.Int, name string, args ...abi.Value) (common.Hash, error) {
	inv, err := c.invoke(submitMode, value, name, args)
	if err != nil {
		return common.Hash{}, err
	}
	return inv.TxID, nil
}

// Wait awaits the transaction sent by this contract. It's only supported if
// the signer implements Waiter.
func (c *Contract) Wait(ctx context.Context, h common.Hash) (*ethrpc.Receipt, error) {
	w, ok := c.signer.(Waiter)
	if !ok {
		return nil, actor.ErrAwaitingNotSupported
	}
	return w.Wait(ctx, h)
}

// Close releases connections and stores opened by Dial. It's a no-op for
// contracts created with New.
func (c *Contract) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func (c *Contract) invoke(mode dispatchMode, value *big.Int, name string, args []abi.Value) (*Invocation, error) {
	inv := &Invocation{
		ID:    uuid.New(),
		Args:  slices.Clone(args),
		Value: value,
	}

	m, err := c.resolve(name, args)
	if err != nil {
		return c.fail(inv, err)
	}
	inv.Method = m
	if err := checkDispatch(mode, m, value); err != nil {
		return c.fail(inv, err)
	}
	c.setState(inv, Built)

	inv.CallData, err = m.Pack(args...)
	if err != nil {
		return c.fail(inv, err)
	}
	c.setState(inv, Encoded)

	if m.IsReadOnly() {
		err = c.query(inv)
	} else {
		err = c.submit(inv)
	}
	if err != nil {
		return c.fail(inv, err)
	}
	c.setState(inv, Completed)
	return inv, nil
}

func checkDispatch(mode dispatchMode, m *manifest.Method, value *big.Int) error {
	switch {
	case mode == queryMode && !m.IsReadOnly():
		return fmt.Errorf("%w: %s is %s", ErrNotReadOnly, m.Signature(), m.Mutability)
	case mode == submitMode && m.IsReadOnly():
		return fmt.Errorf("%w: %s is %s", ErrReadOnly, m.Signature(), m.Mutability)
	}
	if value != nil {
		if value.Sign() < 0 {
			return fmt.Errorf("%w: negative value %s", abi.ErrValueOutOfRange, value)
		}
		if value.Sign() > 0 && m.Mutability != manifest.Payable {
			return fmt.Errorf("%w: %s is %s", ErrNotPayable, m.Signature(), m.Mutability)
		}
	}
	return nil
}

// resolve finds the method by name and argument types. If there is a single
// method with this name, it's returned for any arguments, so that encoding
// reports the exact mismatch.
func (c *Contract) resolve(name string, args []abi.Value) (*manifest.Method, error) {
	types := make([]abi.Type, len(args))
	for i := range args {
		types[i] = args[i].Type
	}
	m, err := c.abi.Resolve(name, types)
	if err == nil {
		return m, nil
	}
	if ms := c.abi.Overloads(name); len(ms) == 1 {
		return &ms[0], nil
	}
	return nil, err
}

func (c *Contract) query(inv *Invocation) error {
	m := inv.Method
	cacheable := c.cache != nil && m.Mutability == manifest.Pure
	if cacheable {
		if raw, ok := c.cache.Get(string(inv.CallData)); ok {
			c.log.Debug("pure result cached", zap.Stringer("id", inv.ID))
			return c.decode(inv, raw)
		}
	}

	c.setState(inv, Dispatched)
	raw, err := c.reader.Run(c.address, inv.CallData)
	if err != nil {
		return fmt.Errorf("%s: %w", m.Signature(), err)
	}
	if err := c.decode(inv, raw); err != nil {
		return err
	}
	if cacheable {
		c.cache.Add(string(inv.CallData), raw)
	}
	return nil
}

func (c *Contract) decode(inv *Invocation, raw []byte) error {
	vals, err := inv.Method.Unpack(raw)
	if err != nil {
		return err
	}
	inv.Values = vals
	return nil
}

func (c *Contract) submit(inv *Invocation) error {
	if c.signer == nil {
		return fmt.Errorf("%w: %s is %s", ErrNoSigningContext, inv.Method.Signature(), inv.Method.Mutability)
	}
	c.setState(inv, Dispatched)
	h, err := c.signer.SendCall(c.address, inv.CallData, inv.Value)
	if err != nil {
		return fmt.Errorf("%s: %w", inv.Method.Signature(), err)
	}
	inv.TxID = h
	return nil
}

func (c *Contract) setState(inv *Invocation, s State) {
	inv.State = s
	if ce := c.log.Check(zap.DebugLevel, "invocation"); ce != nil {
		fields := []zap.Field{
			zap.Stringer("id", inv.ID),
			zap.Stringer("state", s),
		}
		if inv.Method != nil {
			fields = append(fields, zap.String("method", inv.Method.Signature()))
		}
		if s == Completed && !inv.IsReadOnly() {
			fields = append(fields, zap.Stringer("tx", inv.TxID))
		}
		if inv.Err != nil {
			fields = append(fields, zap.Error(inv.Err))
		}
		ce.Write(fields...)
	}
}

func (c *Contract) fail(inv *Invocation, err error) (*Invocation, error) {
	inv.Err = err
	c.setState(inv, Failed)
	return inv, err
}
