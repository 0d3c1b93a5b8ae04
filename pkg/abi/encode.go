package abi

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Encode encodes values as a tuple of the given types. Values must
// structurally match types, no conversions are performed.
func Encode(types []Type, vals []Value) ([]byte, error) {
	if len(types) != len(vals) {
		return nil, fmt.Errorf("%w: %d values for %d parameters", ErrArgumentMismatch, len(vals), len(types))
	}
	for i := range types {
		if err := types[i].Validate(); err != nil {
			return nil, fmt.Errorf("argument #%d: %w", i, err)
		}
	}
	return encodeTuple(types, vals, "argument")
}

// EncodeCall returns call data: the selector followed by encoded arguments.
func EncodeCall(selector [4]byte, types []Type, vals []Value) ([]byte, error) {
	args, err := Encode(types, vals)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, len(selector)+len(args))
	data = append(data, selector[:]...)
	return append(data, args...), nil
}

func encodeTuple(types []Type, vals []Value, what string) ([]byte, error) {
	var (
		headLen = MinSize(types)
		head    = make([]byte, 0, headLen)
		tail    []byte
	)
	for i, t := range types {
		enc, err := encodeValue(t, vals[i])
		if err != nil {
			return nil, fmt.Errorf("%s #%d (%s): %w", what, i, t, err)
		}
		if t.IsDynamic() {
			head = append(head, encodeSize(headLen+len(tail))...)
			tail = append(tail, enc...)
		} else {
			head = append(head, enc...)
		}
	}
	return append(head, tail...), nil
}

func encodeValue(t Type, v Value) ([]byte, error) {
	if !v.Type.Equals(t) {
		return nil, fmt.Errorf("%w: got %s value", ErrArgumentMismatch, v.Type)
	}
	switch t.Kind {
	case UintKind:
		i, ok := v.Value.(*big.Int)
		if !ok || i == nil {
			return nil, fmt.Errorf("%w: %T is not an integer", ErrArgumentMismatch, v.Value)
		}
		if err := checkUint(t, i); err != nil {
			return nil, err
		}
		word, _ := uint256.FromBig(i)
		b := word.Bytes32()
		return b[:], nil
	case AddressKind:
		a, ok := v.Value.(common.Address)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not an address", ErrArgumentMismatch, v.Value)
		}
		return common.LeftPadBytes(a[:], SlotSize), nil
	case BoolKind:
		b, ok := v.Value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not a bool", ErrArgumentMismatch, v.Value)
		}
		word := make([]byte, SlotSize)
		if b {
			word[SlotSize-1] = 1
		}
		return word, nil
	case StringKind:
		s, ok := v.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not a string", ErrArgumentMismatch, v.Value)
		}
		return encodeBytes([]byte(s)), nil
	case BytesKind:
		b, ok := v.Value.([]byte)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not a byte sequence", ErrArgumentMismatch, v.Value)
		}
		return encodeBytes(b), nil
	case FixedArrayKind, ArrayKind:
		elems, ok := v.Value.([]Value)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not an array", ErrArgumentMismatch, v.Value)
		}
		if t.Kind == FixedArrayKind && len(elems) != t.Size {
			return nil, fmt.Errorf("%w: %d elements instead of %d", ErrArgumentMismatch, len(elems), t.Size)
		}
		enc, err := encodeTuple(repeat(*t.Elem, len(elems)), elems, "element")
		if err != nil {
			return nil, err
		}
		if t.Kind == ArrayKind {
			enc = append(encodeSize(len(elems)), enc...)
		}
		return enc, nil
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrUnsupportedType, t.Kind)
	}
}

// encodeBytes returns length-prefixed data padded to the slot boundary.
func encodeBytes(b []byte) []byte {
	padded := (len(b) + SlotSize - 1) / SlotSize * SlotSize
	res := make([]byte, SlotSize+padded)
	copy(res, encodeSize(len(b)))
	copy(res[SlotSize:], b)
	return res
}

func encodeSize(n int) []byte {
	b := uint256.NewInt(uint64(n)).Bytes32()
	return b[:]
}

func repeat(t Type, n int) []Type {
	types := make([]Type, n)
	for i := range types {
		types[i] = t
	}
	return types
}
