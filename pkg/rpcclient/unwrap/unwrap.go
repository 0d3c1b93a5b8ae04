/*
Package unwrap provides a set of proxy methods to process call results.

Functions implemented there are intended to be used as wrappers for other
functions that return ([]abi.Value, error) pair (like invoker.Invoker.Call
or contract.Contract.Query). These functions will check for error, check
the number of results, cast them to appropriate type (if everything is OK)
and then return a result or error. They're mostly useful for other
higher-level contract-specific packages.
*/
package unwrap

import (
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/abicall/abicall/pkg/abi"
	"github.com/ethereum/go-ethereum/common"
)

// BigInt expects a single integer value returned.
func BigInt(r []abi.Value, err error) (*big.Int, error) {
	itm, err := Item(r, err)
	if err != nil {
		return nil, err
	}
	return itm.TryBigInt()
}

// Bool expects a single boolean value returned.
func Bool(r []abi.Value, err error) (bool, error) {
	itm, err := Item(r, err)
	if err != nil {
		return false, err
	}
	return itm.TryBool()
}

// Uint64 expects a single integer value returned that fits into uint64.
func Uint64(r []abi.Value, err error) (uint64, error) {
	i, err := BigInt(r, err)
	if err != nil {
		return 0, err
	}
	if !i.IsUint64() {
		return 0, errors.New("uint64 overflow")
	}
	return i.Uint64(), nil
}

// LimitedUint64 is similar to Uint64 except it allows to set maximum limit
// to be checked, so if it doesn't return an error the value is not more
// than max.
func LimitedUint64(r []abi.Value, err error, maxValue uint64) (uint64, error) {
	i, err := Uint64(r, err)
	if err != nil {
		return 0, err
	}
	if i > maxValue {
		return 0, errors.New("too big value")
	}
	return i, nil
}

// Bytes expects a single dynamic byte sequence returned.
func Bytes(r []abi.Value, err error) ([]byte, error) {
	itm, err := Item(r, err)
	if err != nil {
		return nil, err
	}
	return itm.TryBytes()
}

// UTF8String expects a single string value returned. The string is checked
// for UTF-8 correctness, valid strings are then returned.
func UTF8String(r []abi.Value, err error) (string, error) {
	itm, err := Item(r, err)
	if err != nil {
		return "", err
	}
	s, err := itm.TryString()
	if err != nil {
		return "", err
	}
	if !utf8.ValidString(s) {
		return "", errors.New("not a UTF-8 string")
	}
	return s, nil
}

// PrintableASCIIString is similar to UTF8String, but the string is also
// checked to only contain ASCII characters in printable range.
func PrintableASCIIString(r []abi.Value, err error) (string, error) {
	s, err := UTF8String(r, err)
	if err != nil {
		return "", err
	}
	for _, c := range s {
		if c < 32 || c >= 127 {
			return "", errors.New("not a printable ASCII string")
		}
	}
	return s, nil
}

// Address expects a single address value returned.
func Address(r []abi.Value, err error) (common.Address, error) {
	itm, err := Item(r, err)
	if err != nil {
		return common.Address{}, err
	}
	return itm.TryAddress()
}

// Array expects a single array (fixed or dynamic) value returned. Its
// elements are returned to the caller.
func Array(r []abi.Value, err error) ([]abi.Value, error) {
	itm, err := Item(r, err)
	if err != nil {
		return nil, err
	}
	return itm.TryArray()
}

// ArrayOfBigInts checks the result to be an array and then extracts a slice
// of integers from it.
func ArrayOfBigInts(r []abi.Value, err error) ([]*big.Int, error) {
	a, err := Array(r, err)
	if err != nil {
		return nil, err
	}
	res := make([]*big.Int, len(a))
	for i := range a {
		res[i], err = a[i].TryBigInt()
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return res, nil
}

// ArrayOfAddresses checks the result to be an array and then extracts a
// slice of addresses from it.
func ArrayOfAddresses(r []abi.Value, err error) ([]common.Address, error) {
	a, err := Array(r, err)
	if err != nil {
		return nil, err
	}
	res := make([]common.Address, len(a))
	for i := range a {
		res[i], err = a[i].TryAddress()
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return res, nil
}

// Items checks for error and returns exactly n values.
func Items(r []abi.Value, err error, n int) ([]abi.Value, error) {
	if err != nil {
		return nil, err
	}
	if len(r) != n {
		return nil, fmt.Errorf("expected %d result items, got %d", n, len(r))
	}
	return r, nil
}

// Item returns a value from the result if it's the only one returned.
func Item(r []abi.Value, err error) (abi.Value, error) {
	if err != nil {
		return abi.Value{}, err
	}
	if len(r) == 0 {
		return abi.Value{}, errors.New("result is empty")
	}
	if len(r) > 1 {
		return abi.Value{}, fmt.Errorf("too many (%d) result items", len(r))
	}
	return r[0], nil
}
