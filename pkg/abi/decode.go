package abi

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Decode decodes data encoded as a tuple of the given types.
func Decode(types []Type, data []byte) ([]Value, error) {
	for i := range types {
		if err := types[i].Validate(); err != nil {
			return nil, fmt.Errorf("return #%d: %w", i, err)
		}
	}
	if need := MinSize(types); len(data) < need {
		return nil, fmt.Errorf("%w: %d bytes, at least %d expected", ErrDecodeTruncated, len(data), need)
	}
	d := &decoder{budget: (len(data) + SlotSize - 1) / SlotSize}
	return d.decodeTuple(types, data, "return")
}

// decoder limits the amount of decoded data. Every offset, leaf value and
// dynamic array length is charged the number of slots it occupies. In a
// well-formed encoding these slots never overlap, so the total can't exceed
// the number of slots in the input. Offsets pointing to the same data make
// it exceed.
type decoder struct {
	budget int
}

func (d *decoder) charge(slots int) error {
	if slots > d.budget {
		return fmt.Errorf("%w: overlapping data references", ErrDecodeTruncated)
	}
	d.budget -= slots
	return nil
}

// decodeTuple decodes a tuple starting at the beginning of data, offsets of
// dynamic elements are relative to it.
func (d *decoder) decodeTuple(types []Type, data []byte, what string) ([]Value, error) {
	var (
		vals = make([]Value, len(types))
		pos  int
	)
	for i, t := range types {
		var (
			v   Value
			err error
		)
		if t.IsDynamic() {
			var off int
			off, err = readSize(data, pos)
			if err == nil {
				err = d.charge(1)
			}
			if err == nil {
				v, err = d.decodeValue(t, data[off:])
			}
		} else {
			if pos+t.headSize() > len(data) {
				err = fmt.Errorf("%w: head of %d bytes at %d", ErrDecodeTruncated, t.headSize(), pos)
			} else {
				v, err = d.decodeValue(t, data[pos:])
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%s #%d (%s): %w", what, i, t, err)
		}
		vals[i] = v
		pos += t.headSize()
	}
	return vals, nil
}

func (d *decoder) decodeValue(t Type, data []byte) (Value, error) {
	switch t.Kind {
	case UintKind, AddressKind, BoolKind:
		if err := d.charge(1); err != nil {
			return Value{}, err
		}
		return decodeWord(t, data)
	case StringKind, BytesKind:
		b, err := readBytes(data)
		if err != nil {
			return Value{}, err
		}
		if err := d.charge(1 + (len(b)+SlotSize-1)/SlotSize); err != nil {
			return Value{}, err
		}
		if t.Kind == StringKind {
			return NewString(string(b)), nil
		}
		return NewBytes(b), nil
	case FixedArrayKind:
		if need := t.Size * t.Elem.headSize(); need > len(data) {
			return Value{}, fmt.Errorf("%w: %d elements in %d bytes", ErrDecodeTruncated, t.Size, len(data))
		}
		elems, err := d.decodeTuple(repeat(*t.Elem, t.Size), data, "element")
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Value: elems}, nil
	case ArrayKind:
		n, err := readSize(data, 0)
		if err != nil {
			return Value{}, err
		}
		body := data[SlotSize:]
		// Every element takes at least its head size, this check
		// prevents huge allocations for bogus lengths.
		if n > len(body)/t.Elem.headSize() {
			return Value{}, fmt.Errorf("%w: %d elements in %d bytes", ErrDecodeTruncated, n, len(body))
		}
		if err := d.charge(1); err != nil {
			return Value{}, err
		}
		elems, err := d.decodeTuple(repeat(*t.Elem, n), body, "element")
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Value: elems}, nil
	default:
		return Value{}, fmt.Errorf("%w: kind %d", ErrUnsupportedType, t.Kind)
	}
}

func decodeWord(t Type, data []byte) (Value, error) {
	word, err := readWord(data, 0)
	if err != nil {
		return Value{}, err
	}
	switch t.Kind {
	case AddressKind:
		if !allZero(word[:SlotSize-common.AddressLength]) {
			return Value{}, fmt.Errorf("%w: dirty address padding", ErrValueOutOfRange)
		}
		return NewAddress(common.BytesToAddress(word[SlotSize-common.AddressLength:])), nil
	case BoolKind:
		if !allZero(word[:SlotSize-1]) || word[SlotSize-1] > 1 {
			return Value{}, fmt.Errorf("%w: %x is not a bool", ErrValueOutOfRange, word)
		}
		return NewBool(word[SlotSize-1] == 1), nil
	default:
		i := new(big.Int)
		if !allZero(word) {
			i.SetBytes(word)
		}
		if err := checkUint(t, i); err != nil {
			return Value{}, err
		}
		return NewUint(t.Size, i), nil
	}
}

func readWord(data []byte, pos int) ([]byte, error) {
	if pos < 0 || pos+SlotSize > len(data) {
		return nil, fmt.Errorf("%w: slot at %d, %d bytes available", ErrDecodeTruncated, pos, len(data))
	}
	return data[pos : pos+SlotSize], nil
}

// readSize reads an offset or a length and checks that it doesn't point
// beyond data.
func readSize(data []byte, pos int) (int, error) {
	word, err := readWord(data, pos)
	if err != nil {
		return 0, err
	}
	var u uint256.Int
	u.SetBytes32(word)
	if !u.IsUint64() || u.Uint64() > uint64(len(data)) {
		return 0, fmt.Errorf("%w: offset or length %s exceeds %d bytes", ErrDecodeTruncated, u.Dec(), len(data))
	}
	return int(u.Uint64()), nil
}

func readBytes(data []byte) ([]byte, error) {
	n, err := readSize(data, 0)
	if err != nil {
		return nil, err
	}
	if SlotSize+n > len(data) {
		return nil, fmt.Errorf("%w: %d bytes payload, %d available", ErrDecodeTruncated, n, len(data)-SlotSize)
	}
	b := make([]byte, n)
	copy(b, data[SlotSize:])
	return b, nil
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
