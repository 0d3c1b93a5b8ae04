package contract

import (
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/abicall/abicall/pkg/abi"
	"github.com/abicall/abicall/pkg/crypto/keys"
	"github.com/abicall/abicall/pkg/ethrpc"
	"github.com/abicall/abicall/pkg/manifest"
	"github.com/abicall/abicall/pkg/manifest/standard"
	"github.com/abicall/abicall/pkg/rpcclient/actor"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

type testReader struct {
	lock  sync.Mutex
	err   error
	res   []byte
	calls int
	data  []byte
}

func (r *testReader) Run(contract common.Address, data []byte) ([]byte, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.calls++
	r.data = data
	return r.res, r.err
}

type testSigner struct {
	lock  sync.Mutex
	err   error
	hash  common.Hash
	calls int
	data  []byte
	value *big.Int
}

func (s *testSigner) SendCall(target common.Address, data []byte, value *big.Int) (common.Hash, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.calls++
	s.data = data
	s.value = value
	return s.hash, s.err
}

var contractAddr = common.Address{1, 2, 3}

func words(t *testing.T, ws ...string) []byte {
	b, err := hex.DecodeString(strings.Join(ws, ""))
	require.NoError(t, err)
	return b
}

func word(n uint64) string {
	return hex.EncodeToString(common.LeftPadBytes(new(big.Int).SetUint64(n).Bytes(), abi.SlotSize))
}

func wethABI(t *testing.T) *manifest.ABI {
	a, err := standard.WETH.ABI()
	require.NoError(t, err)
	return a
}

func newTestContract(t *testing.T, a *manifest.ABI, signer Signer, opts Options) (*Contract, *testReader) {
	r := new(testReader)
	c, err := New(contractAddr, a, r, signer, opts)
	require.NoError(t, err)
	return c, r
}

func u256(n int64) abi.Value {
	return abi.NewUint256(big.NewInt(n))
}

func requireUint(t *testing.T, expected int64, v abi.Value) {
	i, err := v.TryBigInt()
	require.NoError(t, err)
	require.Zero(t, i.Cmp(big.NewInt(expected)), "got %s", i)
}

func TestNew(t *testing.T) {
	_, err := New(contractAddr, nil, new(testReader), nil, Options{})
	require.Error(t, err)

	_, err = New(contractAddr, wethABI(t), nil, new(testSigner), Options{})
	require.Error(t, err)

	_, err = New(contractAddr, wethABI(t), new(testReader), nil, Options{PureCacheSize: -1})
	require.Error(t, err)

	a := wethABI(t)
	c, err := New(contractAddr, a, new(testReader), nil, Options{})
	require.NoError(t, err)
	require.True(t, a.IsFrozen())
	require.Equal(t, contractAddr, c.Address())
	require.Same(t, a, c.ABI())
	require.False(t, c.CanSign())
	c.Close()
}

func TestSum(t *testing.T) {
	c, r := newTestContract(t, wethABI(t), nil, Options{})
	r.res = words(t, word(0x40), word(16), word(0))

	inv, err := c.Invoke("sum", abi.NewArray(abi.UintType(256), u256(16)))
	require.NoError(t, err)
	require.Equal(t, Completed, inv.State)
	require.NoError(t, inv.Err)
	require.Equal(t, 1, r.calls)
	require.Equal(t, inv.CallData, r.data)

	sel := inv.Method.Selector()
	require.Equal(t, append(sel[:], words(t, word(0x20), word(1), word(16))...), inv.CallData)

	require.Len(t, inv.Values, 2)
	require.Equal(t, abi.NewString(""), inv.Values[0])
	require.Equal(t, abi.UintType(256), inv.Values[1].Type)
	requireUint(t, 16, inv.Values[1])
}

func TestDecimals(t *testing.T) {
	c, r := newTestContract(t, wethABI(t), nil, Options{})
	r.res = words(t, word(18))

	vals, err := c.Query("decimals")
	require.NoError(t, err)
	require.Len(t, vals, 1)
	require.Equal(t, abi.UintType(8), vals[0].Type)
	requireUint(t, 18, vals[0])

	r.res = words(t, word(300))
	_, err = c.Query("decimals")
	require.ErrorIs(t, err, abi.ErrValueOutOfRange)
	require.True(t, IsEncodingError(err))

	r.res = nil
	_, err = c.Query("decimals")
	require.ErrorIs(t, err, abi.ErrDecodeTruncated)
}

func TestReadOnlyNeverSigns(t *testing.T) {
	s := new(testSigner)
	c, r := newTestContract(t, wethABI(t), s, Options{})
	require.True(t, c.CanSign())

	r.res = words(t, word(7))
	for _, name := range []string{"decimals", "balanceOf"} {
		var args []abi.Value
		if name == "balanceOf" {
			args = append(args, abi.NewAddress(common.Address{4, 5}))
		}
		inv, err := c.Invoke(name, args...)
		require.NoError(t, err)
		require.True(t, inv.IsReadOnly())
		require.Equal(t, common.Hash{}, inv.TxID)
	}
	require.Equal(t, 2, r.calls)
	require.Equal(t, 0, s.calls)
}

func TestSubmit(t *testing.T) {
	s := &testSigner{hash: common.Hash{0xaa}}
	c, r := newTestContract(t, wethABI(t), s, Options{})
	r.res = words(t, word(1))

	inv, err := c.Invoke("transfer", abi.NewAddress(common.Address{4, 5}), u256(10))
	require.NoError(t, err)
	require.Equal(t, Completed, inv.State)
	require.Equal(t, s.hash, inv.TxID)
	require.Nil(t, inv.Values)
	require.Equal(t, inv.CallData, s.data)
	require.Nil(t, s.value)
	require.Equal(t, 0, r.calls)

	h, err := c.Submit("withdraw", u256(10))
	require.NoError(t, err)
	require.Equal(t, s.hash, h)

	s.err = ethrpc.NewError(ethrpc.ServerErrorCode, "transaction underpriced")
	inv, err = c.Invoke("withdraw", u256(10))
	require.ErrorIs(t, err, ethrpc.ErrUnderpriced)
	require.True(t, IsTransportError(err))
	require.Contains(t, err.Error(), "withdraw(uint256)")
	require.Equal(t, Failed, inv.State)
	require.Equal(t, err, inv.Err)
	require.Equal(t, common.Hash{}, inv.TxID)
}

func TestNoSigningContext(t *testing.T) {
	c, r := newTestContract(t, wethABI(t), nil, Options{})
	for _, f := range []func() error{
		func() error {
			_, err := c.Invoke("transfer", abi.NewAddress(common.Address{4, 5}), u256(10))
			return err
		},
		func() error {
			_, err := c.Submit("approve", abi.NewAddress(common.Address{4, 5}), u256(10))
			return err
		},
		func() error {
			_, err := c.InvokeWithValue(big.NewInt(1), "deposit")
			return err
		},
	} {
		err := f()
		require.ErrorIs(t, err, ErrNoSigningContext)
		require.True(t, IsStateError(err))
	}
	require.Equal(t, 0, r.calls)
}

func TestQuerySubmitSeparation(t *testing.T) {
	s := new(testSigner)
	c, r := newTestContract(t, wethABI(t), s, Options{})

	_, err := c.Query("transfer", abi.NewAddress(common.Address{4, 5}), u256(10))
	require.ErrorIs(t, err, ErrNotReadOnly)
	require.True(t, IsStateError(err))

	_, err = c.Submit("balanceOf", abi.NewAddress(common.Address{4, 5}))
	require.ErrorIs(t, err, ErrReadOnly)
	require.True(t, IsStateError(err))

	require.Equal(t, 0, r.calls)
	require.Equal(t, 0, s.calls)
}

func TestUnknownMethod(t *testing.T) {
	s := new(testSigner)
	c, r := newTestContract(t, wethABI(t), s, Options{})

	inv, err := c.Invoke("mint", u256(1))
	require.ErrorIs(t, err, manifest.ErrUnknownMethod)
	require.True(t, IsStateError(err))
	require.Equal(t, Failed, inv.State)
	require.Nil(t, inv.Method)
	require.Nil(t, inv.CallData)
	require.False(t, inv.IsReadOnly())
	require.Equal(t, 0, r.calls)
	require.Equal(t, 0, s.calls)

	_, err = c.Method("mint")
	require.ErrorIs(t, err, manifest.ErrUnknownMethod)
}

func TestValueOutOfRange(t *testing.T) {
	a, err := manifest.FromHumanReadable([]string{
		"function setLevel(uint8 level) external",
		"function level(uint8 shift) external view returns (uint8)",
	})
	require.NoError(t, err)
	s := new(testSigner)
	c, r := newTestContract(t, a, s, Options{})

	for _, name := range []string{"setLevel", "level"} {
		inv, err := c.Invoke(name, abi.NewUint(8, big.NewInt(300)))
		require.ErrorIs(t, err, abi.ErrValueOutOfRange)
		require.True(t, IsEncodingError(err))
		require.Equal(t, Failed, inv.State)
		require.NotNil(t, inv.Method)
	}
	require.Equal(t, 0, r.calls)
	require.Equal(t, 0, s.calls)
}

func TestArgumentMismatch(t *testing.T) {
	s := new(testSigner)
	c, r := newTestContract(t, wethABI(t), s, Options{})

	_, err := c.Invoke("withdraw")
	require.ErrorIs(t, err, abi.ErrArgumentMismatch)

	_, err = c.Invoke("withdraw", abi.NewString("10"))
	require.ErrorIs(t, err, abi.ErrArgumentMismatch)

	_, err = c.Invoke("sum", abi.NewArray(abi.UintType(256), u256(1), abi.NewBool(true)))
	require.ErrorIs(t, err, abi.ErrArgumentMismatch)

	require.Equal(t, 0, r.calls)
	require.Equal(t, 0, s.calls)
}

func TestOverloads(t *testing.T) {
	a, err := manifest.FromHumanReadable([]string{
		"function get(uint256 id) external view returns (string)",
		"function get(address owner) external view returns (uint256)",
	})
	require.NoError(t, err)
	c, r := newTestContract(t, a, nil, Options{})

	r.res = words(t, word(5))
	vals, err := c.Query("get", abi.NewAddress(common.Address{1}))
	require.NoError(t, err)
	requireUint(t, 5, vals[0])

	r.res = words(t, word(0x20), word(2), hex.EncodeToString(common.RightPadBytes([]byte("ok"), abi.SlotSize)))
	vals, err = c.Query("get", u256(1))
	require.NoError(t, err)
	require.Equal(t, []abi.Value{abi.NewString("ok")}, vals)

	// Ambiguous, no such overload.
	_, err = c.Query("get", abi.NewBool(true))
	require.ErrorIs(t, err, manifest.ErrUnknownMethod)
	require.Equal(t, 2, r.calls)

	m, err := c.Method("get")
	require.NoError(t, err)
	require.Equal(t, "get", m.Name())
	require.Len(t, m.Overloads(), 2)
	require.True(t, m.IsReadOnly())
}

func TestPayable(t *testing.T) {
	s := &testSigner{hash: common.Hash{1}}
	c, r := newTestContract(t, wethABI(t), s, Options{})

	inv, err := c.InvokeWithValue(big.NewInt(100), "deposit")
	require.NoError(t, err)
	require.Equal(t, Completed, inv.State)
	require.Equal(t, big.NewInt(100), s.value)

	for _, name := range []string{"withdraw", "sum"} {
		arg := u256(1)
		if name == "sum" {
			arg = abi.NewArray(abi.UintType(256))
		}
		_, err = c.InvokeWithValue(big.NewInt(1), name, arg)
		require.ErrorIs(t, err, ErrNotPayable)
	}
	_, err = c.InvokeWithValue(big.NewInt(-1), "deposit")
	require.ErrorIs(t, err, abi.ErrValueOutOfRange)

	// Read-only methods can't receive value either.
	inv, err = c.InvokeWithValue(big.NewInt(1), "decimals")
	require.ErrorIs(t, err, ErrNotPayable)
	require.Equal(t, Failed, inv.State)
	_, err = c.InvokeWithValue(big.NewInt(1), "balanceOf", abi.NewAddress(common.Address{1}))
	require.ErrorIs(t, err, ErrNotPayable)

	// Zero value is fine for everything.
	_, err = c.SubmitWithValue(big.NewInt(0), "withdraw", u256(1))
	require.NoError(t, err)
	r.res = words(t, word(18))
	vals, err := c.InvokeWithValue(big.NewInt(0), "decimals")
	require.NoError(t, err)
	requireUint(t, 18, vals.Values[0])
	require.Equal(t, 2, s.calls)
	require.Equal(t, 1, r.calls)
}

func TestPureCache(t *testing.T) {
	c, r := newTestContract(t, wethABI(t), nil, Options{PureCacheSize: 2})
	r.res = words(t, word(18))

	for range 3 {
		vals, err := c.Query("decimals")
		require.NoError(t, err)
		requireUint(t, 18, vals[0])
	}
	require.Equal(t, 1, r.calls)

	// View methods are not cached.
	for range 2 {
		_, err := c.Query("balanceOf", abi.NewAddress(common.Address{1}))
		require.NoError(t, err)
	}
	require.Equal(t, 3, r.calls)

	// Failed calls are not cached.
	r.err = ethrpc.NewError(ethrpc.ServerErrorCode, "oops")
	r.res = nil
	_, err := c.Query("symbol")
	require.True(t, IsTransportError(err))
	r.err = nil
	r.res = words(t, word(0x20), word(3), hex.EncodeToString(common.RightPadBytes([]byte("TOK"), abi.SlotSize)))
	vals, err := c.Query("symbol")
	require.NoError(t, err)
	require.Equal(t, []abi.Value{abi.NewString("TOK")}, vals)
	require.Equal(t, 5, r.calls)
}

func TestRevert(t *testing.T) {
	c, r := newTestContract(t, wethABI(t), nil, Options{})
	r.err = &ethrpc.RevertError{Reason: "Insufficient balance", Err: ethrpc.NewError(ethrpc.ExecutionRevertedCode, "execution reverted")}

	inv, err := c.Invoke("balanceOf", abi.NewAddress(common.Address{1}))
	require.Equal(t, Failed, inv.State)
	var re *ethrpc.RevertError
	require.ErrorAs(t, err, &re)
	require.Equal(t, "Insufficient balance", re.Reason)
	require.True(t, IsTransportError(err))
	require.False(t, IsStateError(err))
	require.False(t, IsEncodingError(err))
}

func TestMethods(t *testing.T) {
	s := &testSigner{hash: common.Hash{1}}
	c, r := newTestContract(t, wethABI(t), s, Options{})
	ms := c.Methods()
	require.Len(t, ms, len(wethABI(t).Methods()))
	for _, name := range []string{"name", "symbol", "decimals", "balanceOf", "transfer", "deposit", "withdraw", "sum"} {
		require.Contains(t, ms, name)
	}
	require.True(t, ms["decimals"].IsReadOnly())
	require.False(t, ms["deposit"].IsReadOnly())

	r.res = words(t, word(18))
	inv, err := ms["decimals"].Invoke()
	require.NoError(t, err)
	requireUint(t, 18, inv.Values[0])

	inv, err = ms["deposit"].InvokeWithValue(big.NewInt(5))
	require.NoError(t, err)
	require.Equal(t, s.hash, inv.TxID)
}

func TestWaitNotSupported(t *testing.T) {
	c, _ := newTestContract(t, wethABI(t), new(testSigner), Options{})
	_, err := c.Wait(t.Context(), common.Hash{1})
	require.ErrorIs(t, err, actor.ErrAwaitingNotSupported)
}

func TestClassifiers(t *testing.T) {
	err := errors.New("some")
	require.False(t, IsConfigurationError(err))
	require.False(t, IsEncodingError(err))
	require.False(t, IsTransportError(err))
	require.False(t, IsStateError(err))
	require.True(t, IsConfigurationError(keys.ErrInvalidKey))
	require.True(t, IsStateError(actor.ErrChainIdentityUnset))
	require.True(t, IsTransportError(ethrpc.ErrNonceTooLow))
}

func TestStateString(t *testing.T) {
	for s, str := range map[State]string{
		Built:      "built",
		Encoded:    "encoded",
		Dispatched: "dispatched",
		Completed:  "completed",
		Failed:     "failed",
		State(42):  "unknown",
	} {
		require.Equal(t, str, s.String())
	}
}

// rpcActor is a minimal node used with a real actor.
type rpcActor struct {
	lock  sync.Mutex
	calls int
	sent  []*types.Transaction
}

func (r *rpcActor) Call(from *common.Address, to common.Address, data []byte, value *big.Int) ([]byte, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.calls++
	return common.LeftPadBytes([]byte{18}, abi.SlotSize), nil
}
func (r *rpcActor) ChainID() (*big.Int, error) { return big.NewInt(421614), nil }
func (r *rpcActor) EstimateGas(args ethrpc.CallArgs) (uint64, error) {
	return 50000, nil
}
func (r *rpcActor) GasPrice() (*big.Int, error) { return big.NewInt(100000000), nil }
func (r *rpcActor) GetTransactionCount(addr common.Address, block string) (uint64, error) {
	return 3, nil
}
func (r *rpcActor) SendRawTransaction(tx *types.Transaction) (common.Hash, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.sent = append(r.sent, tx)
	return tx.Hash(), nil
}

func TestConcurrentSubmit(t *testing.T) {
	key, err := keys.NewPrivateKey()
	require.NoError(t, err)
	ra := new(rpcActor)
	act, err := actor.New(ra, key, actor.Options{})
	require.NoError(t, err)
	c, err := New(contractAddr, wethABI(t), nil, act, Options{})
	require.NoError(t, err)

	const n = 20
	var (
		wg     sync.WaitGroup
		hashes = make([]common.Hash, n)
		errs   = make([]error, n)
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hashes[i], errs[i] = c.Submit("withdraw", u256(int64(i+1)))
		}()
	}
	wg.Wait()
	for i := range n {
		require.NoError(t, errs[i])
	}

	require.Len(t, ra.sent, n)
	nonces := make(map[uint64]bool)
	for _, tx := range ra.sent {
		require.False(t, nonces[tx.Nonce()], "nonce %d reused", tx.Nonce())
		nonces[tx.Nonce()] = true
		require.Equal(t, contractAddr, *tx.To())
		require.Zero(t, tx.ChainId().Cmp(big.NewInt(421614)))
	}
	for i := range uint64(n) {
		require.True(t, nonces[3+i])
	}

	// Reads go through the same actor and don't produce transactions.
	vals, err := c.Query("decimals")
	require.NoError(t, err)
	requireUint(t, 18, vals[0])
	require.Equal(t, 1, ra.calls)
	require.Len(t, ra.sent, n)
}
