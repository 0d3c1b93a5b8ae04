/*
Package weth contains RPC wrappers for wrapped native token contracts.

Besides ERC-20 methods, WETH contract converts native currency into tokens
(deposit) and back (withdraw). It also has a couple of pure helpers
summing arrays of numbers.
*/
package weth

import (
	"fmt"
	"math/big"

	"github.com/abicall/abicall/pkg/abi"
	"github.com/abicall/abicall/pkg/rpcclient/erc20"
	"github.com/abicall/abicall/pkg/rpcclient/unwrap"
	"github.com/ethereum/go-ethereum/common"
)

// Invoker is used by TokenReader to call read-only methods.
type Invoker = erc20.Invoker

// Actor is used by Token to send transactions, it's implemented by
// contract.Contract.
type Actor interface {
	erc20.Actor

	SubmitWithValue(value *big.Int, name string, args ...abi.Value) (common.Hash, error)
}

// TokenReader represents safe methods of WETH contract.
type TokenReader struct {
	erc20.TokenReader

	invoker Invoker
}

// Token provides full WETH interface.
type Token struct {
	TokenReader
	erc20.TokenWriter

	actor Actor
}

// NewReader creates an instance of TokenReader for the given contract.
func NewReader(invoker Invoker) *TokenReader {
	return &TokenReader{*erc20.NewReader(invoker), invoker}
}

// New creates an instance of Token for the given contract.
func New(actor Actor) *Token {
	return &Token{*NewReader(actor), *erc20.NewWriter(actor), actor}
}

// Sum returns the sum of values along with the contract message.
func (t *TokenReader) Sum(values []*big.Int) (string, *big.Int, error) {
	r, err := t.invoker.Query("sum", uints(values))
	r, err = unwrap.Items(r, err, 2)
	if err != nil {
		return "", nil, err
	}
	return parseSum(r)
}

// SumWithHelper returns the sum of values computed by the helper contract.
func (t *TokenReader) SumWithHelper(helper common.Address, values []*big.Int) (*big.Int, error) {
	return unwrap.BigInt(t.invoker.Query("sumWithHelper", abi.NewAddress(helper), uints(values)))
}

// Deposit sends a transaction converting the amount of native currency
// into tokens.
func (t *Token) Deposit(amount *big.Int) (common.Hash, error) {
	return t.actor.SubmitWithValue(amount, "deposit")
}

// Withdraw sends a transaction converting the amount of tokens back into
// native currency.
func (t *Token) Withdraw(amount *big.Int) (common.Hash, error) {
	return t.actor.Submit("withdraw", abi.NewUint256(amount))
}

func uints(values []*big.Int) abi.Value {
	items := make([]abi.Value, len(values))
	for i := range values {
		items[i] = abi.NewUint256(values[i])
	}
	return abi.NewArray(abi.UintType(abi.MaxUintBits), items...)
}

func parseSum(r []abi.Value) (string, *big.Int, error) {
	msg, err := r[0].TryString()
	if err != nil {
		return "", nil, fmt.Errorf("message: %w", err)
	}
	sum, err := r[1].TryBigInt()
	if err != nil {
		return "", nil, fmt.Errorf("sum: %w", err)
	}
	return msg, sum, nil
}
