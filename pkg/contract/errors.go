package contract

import (
	"errors"

	"github.com/abicall/abicall/pkg/abi"
	"github.com/abicall/abicall/pkg/config"
	"github.com/abicall/abicall/pkg/crypto/keys"
	"github.com/abicall/abicall/pkg/encoding/address"
	"github.com/abicall/abicall/pkg/ethrpc"
	"github.com/abicall/abicall/pkg/manifest"
	"github.com/abicall/abicall/pkg/rpcclient/actor"
)

var (
	// ErrNoSigningContext is returned for state-changing methods invoked via
	// a contract that has no signer.
	ErrNoSigningContext = errors.New("no signing context")
	// ErrReadOnly is returned on attempt to submit a transaction for a pure
	// or view method.
	ErrReadOnly = errors.New("method is read-only")
	// ErrNotReadOnly is returned on attempt to query a state-changing
	// method.
	ErrNotReadOnly = errors.New("method changes state")
	// ErrNotPayable is returned when some value is attached to the call of
	// a method that can't accept it.
	ErrNotPayable = errors.New("method is not payable")
)

// IsConfigurationError tells whether the error is caused by a missing or
// invalid endpoint, credential, address or ABI.
func IsConfigurationError(err error) bool {
	return errors.Is(err, config.ErrConfiguration) ||
		errors.Is(err, address.ErrInvalidAddress) ||
		errors.Is(err, keys.ErrInvalidKey)
}

// IsEncodingError tells whether the error is caused by arguments that don't
// match the method or by the result that can't be decoded. Such calls can't
// succeed if repeated.
func IsEncodingError(err error) bool {
	return errors.Is(err, abi.ErrEncoding)
}

// IsTransportError tells whether the error is returned by the node or by the
// network. Use errors.Is with ethrpc.ErrUnderpriced or ethrpc.ErrNonceTooLow
// and errors.As with *ethrpc.RevertError for details.
func IsTransportError(err error) bool {
	return errors.Is(err, ethrpc.ErrTransport)
}

// IsStateError tells whether the error is caused by the contract misuse
// (like unknown method or state-changing call without a signer).
func IsStateError(err error) bool {
	for _, e := range []error{
		ErrNoSigningContext,
		ErrReadOnly,
		ErrNotReadOnly,
		ErrNotPayable,
		actor.ErrChainIdentityUnset,
		manifest.ErrUnknownMethod,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
