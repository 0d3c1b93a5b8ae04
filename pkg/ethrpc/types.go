/*
Package ethrpc contains a set of types used for JSON-RPC communication with
EVM-compatible nodes. It defines basic request/response types, call and
receipt structures as well as a set of errors.
*/
package ethrpc

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	// JSONRPCVersion is the only JSON-RPC protocol version supported.
	JSONRPCVersion = "2.0"
)

// Block tags accepted by state-dependent methods.
const (
	BlockLatest  = "latest"
	BlockPending = "pending"
)

type (
	// Request represents JSON-RPC request.
	Request struct {
		// JSONRPC is the protocol version, only valid when it contains JSONRPCVersion.
		JSONRPC string `json:"jsonrpc"`
		// Method is the method being called.
		Method string `json:"method"`
		// Params is a set of method-specific parameters passed to the call,
		// always an array for Ethereum methods.
		Params []any `json:"params"`
		// ID is an identifier associated with this request, the client uses
		// numeric identifiers.
		ID uint64 `json:"id"`
	}

	// Header is a generic JSON-RPC 2.0 response header (ID and JSON-RPC version).
	Header struct {
		ID      json.RawMessage `json:"id"`
		JSONRPC string          `json:"jsonrpc"`
	}

	// HeaderAndError adds an Error (that can be empty) to the Header, it's used
	// to construct type-specific responses.
	HeaderAndError struct {
		Header
		Error *Error `json:"error,omitempty"`
	}

	// Response represents a standard raw JSON-RPC 2.0
	// response: http://www.jsonrpc.org/specification#response_object.
	Response struct {
		HeaderAndError
		Result json.RawMessage `json:"result,omitempty"`
	}

	// CallArgs is a message call description used by eth_call and
	// eth_estimateGas.
	CallArgs struct {
		From     *common.Address `json:"from,omitempty"`
		To       *common.Address `json:"to,omitempty"`
		Gas      *hexutil.Uint64 `json:"gas,omitempty"`
		GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
		Value    *hexutil.Big    `json:"value,omitempty"`
		Data     hexutil.Bytes   `json:"data,omitempty"`
	}

	// Receipt is a subset of transaction receipt fields.
	Receipt struct {
		TxHash            common.Hash     `json:"transactionHash"`
		BlockHash         common.Hash     `json:"blockHash"`
		BlockNumber       *hexutil.Big    `json:"blockNumber"`
		From              common.Address  `json:"from"`
		To                *common.Address `json:"to"`
		GasUsed           hexutil.Uint64  `json:"gasUsed"`
		EffectiveGasPrice *hexutil.Big    `json:"effectiveGasPrice,omitempty"`
		Status            hexutil.Uint64  `json:"status"`
	}
)

// ReceiptStatusSuccessful is the status of a successfully executed
// transaction.
const ReceiptStatusSuccessful = 1

// NewCallArgs creates call arguments for the given target and data, from
// and value are optional.
func NewCallArgs(from *common.Address, to common.Address, data []byte, value *big.Int) CallArgs {
	args := CallArgs{
		From: from,
		To:   &to,
		Data: data,
	}
	if value != nil && value.Sign() != 0 {
		args.Value = (*hexutil.Big)(value)
	}
	return args
}

// BlockNumber returns block parameter for the given height.
func BlockNumber(height uint64) string {
	return hexutil.EncodeUint64(height)
}

// Succeeded tells whether the transaction was executed successfully.
func (r *Receipt) Succeeded() bool {
	return r.Status == ReceiptStatusSuccessful
}
