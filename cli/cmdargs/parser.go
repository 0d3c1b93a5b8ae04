package cmdargs

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/abicall/abicall/pkg/abi"
	"github.com/abicall/abicall/pkg/encoding/address"
	"github.com/abicall/abicall/pkg/manifest"
	"github.com/urfave/cli"
)

const (
	// ArrayStartSeparator marks the start of array cli arg.
	ArrayStartSeparator = "["
	// ArrayEndSeparator marks the end of array cli arg.
	ArrayEndSeparator = "]"
)

// ParamsParsingDoc is a documentation for parameters parsing.
const ParamsParsingDoc = `   Arguments are converted to the ABI types of the method parameters. If the
   method is overloaded, the first overload accepting all of the arguments is
   used. To pick the overload explicitly, use "type:value" syntax where the
   type is any supported ABI type ('uint8'..'uint256', 'address', 'bool',
   'string', 'bytes' or an array of those). Array values are given with
   special space-separated '[' and ']' symbols around them, nested arrays are
   supported as well.

   Values are checked against parameter types with the following rules:
    * 'uint<N>' values are decimal or 0x-prefixed hexadecimal integers that
      fit into N bits.
    * 'address' values are 20 bytes hex-encoded with optional 0x prefix,
      mixed-case values must have a valid EIP-55 checksum.
    * 'bool' values are 'true' and 'false'.
    * 'string' values are taken literally. In the value's part of the
      "type:value" string the colon looses it's special meaning.
    * 'bytes' values are hex-encoded with optional 0x prefix.

   Examples:
    * '42' is a uint value of 42 (or a string "42" for string parameter)
    * 'uint8:42' is a uint8 value of 42
    * '0x2a' is a uint value of 42 or 1 byte of bytes
    * 'string:http://example.com' is a string with a colon
    * '[ 1 2 3 ]' is an array of 3 values
    * '[ [ 1 2 ] [ 3 ] ]' is an array of 2 arrays
    * '[ ]' is an empty array`

// Param is a parameter parsed from the command line, it's either a single
// word or an array of parameters. Type is set if it was given explicitly.
type Param struct {
	Type  *abi.Type
	Value string
	Array []Param
	// IsArray distinguishes empty arrays from empty strings.
	IsArray bool
}

// EnsureNone returns an error if there are any positional arguments present.
// It can be used to check for them in commands that don't accept arguments.
func EnsureNone(ctx *cli.Context) *cli.ExitError {
	if ctx.Args().Present() {
		return cli.NewExitError("additional arguments given while this command expects none", 1)
	}
	return nil
}

// ParseParams extracts array of Param from the given args and returns the
// number of handled words, the array itself and an error. `calledFromMain`
// denotes whether the method was called from the outside or recursively and
// used to check if ArrayEndSeparator is allowed to be in `args` sequence.
func ParseParams(args []string, calledFromMain bool) (int, []Param, error) {
	res := []Param{}
	for k := 0; k < len(args); {
		s := args[k]
		switch s {
		case ArrayStartSeparator:
			numWordsRead, array, err := ParseParams(args[k+1:], false)
			if err != nil {
				return 0, nil, fmt.Errorf("failed to parse array: %w", err)
			}
			res = append(res, Param{Array: array, IsArray: true})
			k += 1 + numWordsRead // `1` for opening bracket
		case ArrayEndSeparator:
			if calledFromMain {
				return 0, nil, errors.New("invalid array syntax: missing opening bracket")
			}
			return k + 1, res, nil // `1`to convert index to numWordsRead
		default:
			res = append(res, newParamFromString(s))
			k++
		}
	}
	if calledFromMain {
		return len(args), res, nil
	}
	return 0, []Param{}, errors.New("invalid array syntax: missing closing bracket")
}

func newParamFromString(s string) Param {
	if typ, val, ok := strings.Cut(s, ":"); ok {
		if t, err := abi.ParseType(typ); err == nil {
			return Param{Type: &t, Value: val}
		}
	}
	return Param{Value: s}
}

// ResolveMethod picks the overload accepting the parameters and converts
// them to its argument types. If there is a single overload, its conversion
// error is returned as is.
func ResolveMethod(overloads []manifest.Method, params []Param) (*manifest.Method, []abi.Value, error) {
	if len(overloads) == 0 {
		return nil, nil, manifest.ErrUnknownMethod
	}
	var firstErr error
	for i := range overloads {
		vals, err := ConvertParams(params, overloads[i].Parameters.Types())
		if err == nil {
			return &overloads[i], vals, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if len(overloads) == 1 {
		return nil, nil, firstErr
	}
	return nil, nil, fmt.Errorf("%w: no overload of %s accepts %d given arguments",
		abi.ErrArgumentMismatch, overloads[0].Name, len(params))
}

// ConvertParams converts parameters to ABI values of the given types.
func ConvertParams(params []Param, types []abi.Type) ([]abi.Value, error) {
	if len(params) != len(types) {
		return nil, fmt.Errorf("%w: expected %d arguments, got %d", abi.ErrArgumentMismatch, len(types), len(params))
	}
	vals := make([]abi.Value, len(params))
	for i := range params {
		v, err := ConvertParam(params[i], types[i])
		if err != nil {
			return nil, fmt.Errorf("argument #%d: %w", i+1, err)
		}
		vals[i] = v
	}
	return vals, nil
}

// ConvertParam converts a single parameter to the ABI value of type t.
func ConvertParam(p Param, t abi.Type) (abi.Value, error) {
	if p.Type != nil && !p.Type.Equals(t) {
		return abi.Value{}, fmt.Errorf("%w: %s given for %s", abi.ErrArgumentMismatch, p.Type, t)
	}
	if t.Kind == abi.ArrayKind || t.Kind == abi.FixedArrayKind {
		if !p.IsArray {
			return abi.Value{}, fmt.Errorf("%w: %q given for %s", abi.ErrArgumentMismatch, p.Value, t)
		}
		if t.Kind == abi.FixedArrayKind && len(p.Array) != t.Size {
			return abi.Value{}, fmt.Errorf("%w: %d elements given for %s", abi.ErrArgumentMismatch, len(p.Array), t)
		}
		elems := make([]abi.Value, len(p.Array))
		for i := range p.Array {
			v, err := ConvertParam(p.Array[i], *t.Elem)
			if err != nil {
				return abi.Value{}, fmt.Errorf("element #%d: %w", i, err)
			}
			elems[i] = v
		}
		return abi.Value{Type: t, Value: elems}, nil
	}
	if p.IsArray {
		return abi.Value{}, fmt.Errorf("%w: array given for %s", abi.ErrArgumentMismatch, t)
	}

	switch t.Kind {
	case abi.UintKind:
		i, ok := parseUint(p.Value)
		if !ok {
			return abi.Value{}, fmt.Errorf("%w: %q is not an integer", abi.ErrArgumentMismatch, p.Value)
		}
		if i.Sign() < 0 || i.BitLen() > t.Size {
			return abi.Value{}, fmt.Errorf("%w: %s doesn't fit into %s", abi.ErrValueOutOfRange, i, t)
		}
		return abi.NewUint(t.Size, i), nil
	case abi.AddressKind:
		a, err := address.StringToAddress(p.Value)
		if err != nil {
			return abi.Value{}, fmt.Errorf("%w: %w", abi.ErrArgumentMismatch, err)
		}
		return abi.NewAddress(a), nil
	case abi.BoolKind:
		if p.Value != "true" && p.Value != "false" {
			return abi.Value{}, fmt.Errorf("%w: %q is not a bool", abi.ErrArgumentMismatch, p.Value)
		}
		return abi.NewBool(p.Value == "true"), nil
	case abi.StringKind:
		return abi.NewString(p.Value), nil
	case abi.BytesKind:
		s := strings.TrimPrefix(strings.TrimPrefix(p.Value, "0x"), "0X")
		b, err := hex.DecodeString(s)
		if err != nil {
			return abi.Value{}, fmt.Errorf("%w: %q is not hex: %w", abi.ErrArgumentMismatch, p.Value, err)
		}
		return abi.NewBytes(b), nil
	}
	return abi.Value{}, fmt.Errorf("%w: %s", abi.ErrUnsupportedType, t)
}

func parseUint(s string) (*big.Int, bool) {
	if h, ok := strings.CutPrefix(s, "0x"); ok {
		return new(big.Int).SetString(h, 16)
	}
	return new(big.Int).SetString(s, 10)
}
