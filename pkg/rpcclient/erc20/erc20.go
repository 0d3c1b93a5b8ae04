/*
Package erc20 contains RPC wrappers for ERC-20 contracts.

TokenReader only needs a read-only contract handle, Token also sends
transfers and approvals and requires a contract with a signer. Transfer
methods return the transaction hash, the transaction is not awaited.
*/
package erc20

import (
	"math/big"

	"github.com/abicall/abicall/pkg/abi"
	"github.com/abicall/abicall/pkg/rpcclient/unwrap"
	"github.com/ethereum/go-ethereum/common"
)

// MaxValidDecimals is the maximum value 'decimals' contract method can
// return to be considered as valid. It's log10(2^256), higher values don't
// make any sense with 256-bit integers.
const MaxValidDecimals = 77

// Invoker is used by TokenReader to call read-only methods, it's
// implemented by contract.Contract.
type Invoker interface {
	Query(name string, args ...abi.Value) ([]abi.Value, error)
}

// Actor is used by Token to send transactions, it's implemented by
// contract.Contract.
type Actor interface {
	Invoker

	Submit(name string, args ...abi.Value) (common.Hash, error)
}

// TokenReader represents safe (read-only) methods of ERC-20 token.
type TokenReader struct {
	invoker Invoker
}

// TokenWriter contains state-changing methods of ERC-20 token, it's useful
// for wrappers of contracts extending ERC-20.
type TokenWriter struct {
	actor Actor
}

// Token provides full ERC-20 interface, both safe and state-changing methods.
type Token struct {
	TokenReader
	TokenWriter
}

// NewReader creates an instance of TokenReader for the given contract.
func NewReader(invoker Invoker) *TokenReader {
	return &TokenReader{invoker}
}

// New creates an instance of Token for the given contract.
func New(actor Actor) *Token {
	return &Token{*NewReader(actor), TokenWriter{actor}}
}

// NewWriter creates an instance of TokenWriter for the given contract.
func NewWriter(actor Actor) *TokenWriter {
	return &TokenWriter{actor}
}

// Name returns the token name.
func (t *TokenReader) Name() (string, error) {
	return unwrap.UTF8String(t.invoker.Query("name"))
}

// Symbol returns a short token identifier (like "WETH").
func (t *TokenReader) Symbol() (string, error) {
	return unwrap.PrintableASCIIString(t.invoker.Query("symbol"))
}

// Decimals returns the number of decimals used by token. Values more than
// MaxValidDecimals are considered to be invalid.
func (t *TokenReader) Decimals() (int, error) {
	r, err := t.invoker.Query("decimals")
	dec, err := unwrap.LimitedUint64(r, err, MaxValidDecimals)
	return int(dec), err
}

// BalanceOf returns the token balance of the given account (with decimals,
// 1 TOK with 2 decimals will lead to 100 returned from this method).
func (t *TokenReader) BalanceOf(account common.Address) (*big.Int, error) {
	return unwrap.BigInt(t.invoker.Query("balanceOf", abi.NewAddress(account)))
}

// Allowance returns the amount spender is still allowed to transfer from
// the owner account.
func (t *TokenReader) Allowance(owner, spender common.Address) (*big.Int, error) {
	return unwrap.BigInt(t.invoker.Query("allowance", abi.NewAddress(owner), abi.NewAddress(spender)))
}

// Transfer sends a transaction moving the amount of tokens from the sender
// to the given account. The transaction may still fail (like when there
// are not enough tokens).
func (t *TokenWriter) Transfer(to common.Address, amount *big.Int) (common.Hash, error) {
	return t.actor.Submit("transfer", abi.NewAddress(to), abi.NewUint256(amount))
}

// Approve sends a transaction allowing spender to transfer the amount of
// sender's tokens.
func (t *TokenWriter) Approve(spender common.Address, amount *big.Int) (common.Hash, error) {
	return t.actor.Submit("approve", abi.NewAddress(spender), abi.NewUint256(amount))
}

// TransferFrom sends a transaction moving the amount of tokens from one
// account to another using the allowance given to the sender.
func (t *TokenWriter) TransferFrom(from, to common.Address, amount *big.Int) (common.Hash, error) {
	return t.actor.Submit("transferFrom", abi.NewAddress(from), abi.NewAddress(to), abi.NewUint256(amount))
}
