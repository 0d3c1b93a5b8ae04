package abi

import (
	"errors"
	"fmt"
)

// ErrEncoding is the root of all encoding errors returned by this package,
// any error produced by Encode or Decode can be matched against it with
// errors.Is.
var ErrEncoding = errors.New("abi")

var (
	// ErrArgumentMismatch is returned when the number of values or their
	// shape doesn't match declared types.
	ErrArgumentMismatch = fmt.Errorf("%w: argument mismatch", ErrEncoding)
	// ErrValueOutOfRange is returned for integers that don't fit into
	// declared bit width and for non-canonical encoded values.
	ErrValueOutOfRange = fmt.Errorf("%w: value out of range", ErrEncoding)
	// ErrDecodeTruncated is returned when encoded data is shorter than
	// required by the types it's decoded into.
	ErrDecodeTruncated = fmt.Errorf("%w: truncated data", ErrEncoding)
	// ErrUnsupportedType is returned for types not implemented by this
	// package.
	ErrUnsupportedType = fmt.Errorf("%w: unsupported type", ErrEncoding)
)
