package ethrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/abicall/abicall/pkg/abi"
	"github.com/abicall/abicall/pkg/crypto/hash"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Error codes used by nodes.
const (
	// ParseErrorCode is returned when the request can't be parsed.
	ParseErrorCode = -32700
	// InvalidRequestCode is returned for invalid request objects.
	InvalidRequestCode = -32600
	// MethodNotFoundCode is returned for unknown methods.
	MethodNotFoundCode = -32601
	// InvalidParamsCode is returned for invalid method parameters.
	InvalidParamsCode = -32602
	// InternalServerErrorCode is returned for internal node errors.
	InternalServerErrorCode = -32603
	// ServerErrorCode is a generic server error code, nodes use it for
	// transaction pool rejections.
	ServerErrorCode = -32000
	// ExecutionRevertedCode is returned when the call is reverted with data.
	ExecutionRevertedCode = 3
)

var (
	// ErrTransport is the root of all errors returned from the node or
	// caused by the communication with it.
	ErrTransport = errors.New("transport")
	// ErrUnderpriced is matched by node errors rejecting transactions for
	// too low gas price.
	ErrUnderpriced = fmt.Errorf("%w: transaction underpriced", ErrTransport)
	// ErrNonceTooLow is matched by node errors rejecting transactions with
	// already used nonce.
	ErrNonceTooLow = fmt.Errorf("%w: nonce too low", ErrTransport)
)

// Error is a JSON-RPC error returned by the node.
type Error struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// RevertError is returned when the node reports reverted execution.
type RevertError struct {
	// Reason is the decoded revert reason, it's empty if the revert data
	// doesn't follow Error(string) or Panic(uint256) conventions.
	Reason string
	// Data is raw revert data.
	Data []byte
	// Err is the original node error.
	Err *Error
}

var (
	underpricedMarkers = []string{
		"underpriced",
		"fee too low",
		"gas price too low",
		"max fee per gas less than block base fee",
	}
	nonceTooLowMarkers = []string{
		"nonce too low",
		"nonce has already been used",
		"invalid nonce",
	}

	errorSelector = hash.Selector("Error(string)")
	panicSelector = hash.Selector("Panic(uint256)")

	panicReasons = map[uint64]string{
		0x00: "generic panic",
		0x01: "assert failed",
		0x11: "arithmetic overflow or underflow",
		0x12: "division or modulo by zero",
		0x21: "invalid enum value",
		0x22: "invalid storage byte array",
		0x31: "pop from empty array",
		0x32: "array index out of bounds",
		0x41: "too much memory allocated",
		0x51: "call to zero-initialized function",
	}
)

// NewError creates a new Error with the given code and message.
func NewError(code int64, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("RPC error %d: %s (%s)", e.Code, e.Message, e.Data)
}

// Is denotes whether the error matches the target one. Any Error is a
// transport error, ErrUnderpriced and ErrNonceTooLow are recognized by the
// message, other *Error targets are compared by code.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return true
	case ErrUnderpriced:
		return containsAny(e.Message, underpricedMarkers)
	case ErrNonceTooLow:
		return containsAny(e.Message, nonceTooLowMarkers)
	}
	var clTarget *Error
	if errors.As(target, &clTarget) {
		return e.Code == clTarget.Code
	}
	return false
}

// IsRevert tells whether the error reports reverted execution.
func (e *Error) IsRevert() bool {
	return e.Code == ExecutionRevertedCode || strings.HasPrefix(strings.ToLower(e.Message), "execution reverted")
}

// Classify converts revert errors into RevertError and returns others as is.
func (e *Error) Classify() error {
	if !e.IsRevert() {
		return e
	}
	re := &RevertError{Err: e}
	var s string
	if len(e.Data) != 0 && json.Unmarshal(e.Data, &s) == nil {
		if data, err := hexutil.Decode(s); err == nil {
			re.Data = data
		}
	}
	if reason, ok := DecodeRevertReason(re.Data); ok {
		re.Reason = reason
	} else if msg, ok := strings.CutPrefix(e.Message, "execution reverted: "); ok {
		re.Reason = msg
	}
	return re
}

// Error implements the error interface.
func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.Reason
}

// Unwrap returns the original node error.
func (e *RevertError) Unwrap() error {
	return e.Err
}

// DecodeRevertReason decodes revert data produced by require/revert with a
// message (Error(string)) or by failed checks (Panic(uint256)).
func DecodeRevertReason(data []byte) (string, bool) {
	if len(data) < len(errorSelector) {
		return "", false
	}
	sel, payload := data[:len(errorSelector)], data[len(errorSelector):]
	switch {
	case bytes.Equal(sel, errorSelector[:]):
		vals, err := abi.Decode([]abi.Type{abi.StringType}, payload)
		if err != nil {
			return "", false
		}
		s, err := vals[0].TryString()
		return s, err == nil
	case bytes.Equal(sel, panicSelector[:]):
		vals, err := abi.Decode([]abi.Type{abi.UintType(abi.MaxUintBits)}, payload)
		if err != nil {
			return "", false
		}
		code, _ := vals[0].TryBigInt()
		reason := "unknown panic"
		if code.IsUint64() {
			if r, ok := panicReasons[code.Uint64()]; ok {
				reason = r
			}
		}
		return fmt.Sprintf("panic 0x%x (%s)", code, reason), true
	default:
		return "", false
	}
}

func containsAny(msg string, markers []string) bool {
	msg = strings.ToLower(msg)
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
