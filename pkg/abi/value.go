package abi

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Value is a typed ABI value. The Go type of Value depends on the Kind of
// Type:
//   - UintKind: *big.Int
//   - AddressKind: common.Address
//   - BoolKind: bool
//   - StringKind: string
//   - BytesKind: []byte
//   - FixedArrayKind, ArrayKind: []Value
type Value struct {
	Type  Type
	Value any
}

// NewUint returns an unsigned integer value of the given width. The value is
// not range-checked here, that's done by Encode.
func NewUint(bits int, x *big.Int) Value {
	return Value{Type: UintType(bits), Value: x}
}

// NewUint256 is a shortcut for NewUint(256, x).
func NewUint256(x *big.Int) Value {
	return NewUint(MaxUintBits, x)
}

// NewAddress returns an address value.
func NewAddress(a common.Address) Value {
	return Value{Type: AddressType, Value: a}
}

// NewBool returns a boolean value.
func NewBool(b bool) Value {
	return Value{Type: BoolType, Value: b}
}

// NewString returns a string value.
func NewString(s string) Value {
	return Value{Type: StringType, Value: s}
}

// NewBytes returns a dynamic byte sequence value.
func NewBytes(b []byte) Value {
	if b == nil {
		b = []byte{}
	}
	return Value{Type: BytesType, Value: b}
}

// NewArray returns a dynamic array of the given element type.
func NewArray(elem Type, vals ...Value) Value {
	if vals == nil {
		vals = []Value{}
	}
	return Value{Type: ArrayType(elem), Value: vals}
}

// NewFixedArray returns a fixed array of the given element type, its size is
// the number of values passed.
func NewFixedArray(elem Type, vals ...Value) Value {
	if vals == nil {
		vals = []Value{}
	}
	return Value{Type: FixedArrayType(elem, len(vals)), Value: vals}
}

// FromGo converts a Go value into a Value of the given type. Integers of any
// Go integer type and *big.Int are accepted for uint types, slices and
// arrays of anything convertible are accepted for array types. Values are
// range-checked.
func FromGo(t Type, x any) (Value, error) {
	if err := t.Validate(); err != nil {
		return Value{}, err
	}
	if v, ok := x.(Value); ok {
		if !v.Type.Equals(t) {
			return Value{}, fmt.Errorf("%w: %s value for %s", ErrArgumentMismatch, v.Type, t)
		}
		return v, nil
	}
	switch t.Kind {
	case UintKind:
		i, err := toBigInt(x)
		if err != nil {
			return Value{}, err
		}
		if err := checkUint(t, i); err != nil {
			return Value{}, err
		}
		return NewUint(t.Size, i), nil
	case AddressKind:
		switch a := x.(type) {
		case common.Address:
			return NewAddress(a), nil
		case *common.Address:
			if a != nil {
				return NewAddress(*a), nil
			}
		}
	case BoolKind:
		if b, ok := x.(bool); ok {
			return NewBool(b), nil
		}
	case StringKind:
		if s, ok := x.(string); ok {
			return NewString(s), nil
		}
	case BytesKind:
		if b, ok := x.([]byte); ok {
			return NewBytes(b), nil
		}
	case FixedArrayKind, ArrayKind:
		rv := reflect.ValueOf(x)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			break
		}
		if t.Kind == FixedArrayKind && rv.Len() != t.Size {
			return Value{}, fmt.Errorf("%w: %d elements for %s", ErrArgumentMismatch, rv.Len(), t)
		}
		elems := make([]Value, rv.Len())
		for i := range elems {
			var err error
			elems[i], err = FromGo(*t.Elem, rv.Index(i).Interface())
			if err != nil {
				return Value{}, fmt.Errorf("element #%d: %w", i, err)
			}
		}
		return Value{Type: t, Value: elems}, nil
	}
	return Value{}, fmt.Errorf("%w: %T can't be used as %s", ErrArgumentMismatch, x, t)
}

func toBigInt(x any) (*big.Int, error) {
	switch i := x.(type) {
	case *big.Int:
		if i == nil {
			return nil, fmt.Errorf("%w: nil integer", ErrArgumentMismatch)
		}
		return i, nil
	case int:
		return big.NewInt(int64(i)), nil
	case int8:
		return big.NewInt(int64(i)), nil
	case int16:
		return big.NewInt(int64(i)), nil
	case int32:
		return big.NewInt(int64(i)), nil
	case int64:
		return big.NewInt(i), nil
	case uint:
		return new(big.Int).SetUint64(uint64(i)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(i)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(i)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(i)), nil
	case uint64:
		return new(big.Int).SetUint64(i), nil
	default:
		return nil, fmt.Errorf("%w: %T is not an integer", ErrArgumentMismatch, x)
	}
}

func checkUint(t Type, i *big.Int) error {
	if i.Sign() < 0 || i.BitLen() > t.Size {
		return fmt.Errorf("%w: %s doesn't fit into %s", ErrValueOutOfRange, i, t)
	}
	return nil
}

// TryBigInt returns the integer stored in the value.
func (v Value) TryBigInt() (*big.Int, error) {
	i, ok := v.Value.(*big.Int)
	if !ok || v.Type.Kind != UintKind {
		return nil, fmt.Errorf("%s is not an integer", v.Type)
	}
	return i, nil
}

// TryAddress returns the address stored in the value.
func (v Value) TryAddress() (common.Address, error) {
	a, ok := v.Value.(common.Address)
	if !ok || v.Type.Kind != AddressKind {
		return common.Address{}, fmt.Errorf("%s is not an address", v.Type)
	}
	return a, nil
}

// TryBool returns the boolean stored in the value.
func (v Value) TryBool() (bool, error) {
	b, ok := v.Value.(bool)
	if !ok || v.Type.Kind != BoolKind {
		return false, fmt.Errorf("%s is not a bool", v.Type)
	}
	return b, nil
}

// TryString returns the string stored in the value.
func (v Value) TryString() (string, error) {
	s, ok := v.Value.(string)
	if !ok || v.Type.Kind != StringKind {
		return "", fmt.Errorf("%s is not a string", v.Type)
	}
	return s, nil
}

// TryBytes returns the byte sequence stored in the value.
func (v Value) TryBytes() ([]byte, error) {
	b, ok := v.Value.([]byte)
	if !ok || v.Type.Kind != BytesKind {
		return nil, fmt.Errorf("%s is not a byte sequence", v.Type)
	}
	return b, nil
}

// TryArray returns elements of a fixed or dynamic array.
func (v Value) TryArray() ([]Value, error) {
	a, ok := v.Value.([]Value)
	if !ok || (v.Type.Kind != ArrayKind && v.Type.Kind != FixedArrayKind) {
		return nil, fmt.Errorf("%s is not an array", v.Type)
	}
	return a, nil
}

// String implements the fmt.Stringer interface.
func (v Value) String() string {
	switch x := v.Value.(type) {
	case *big.Int:
		return x.String()
	case common.Address:
		return x.Hex()
	case bool:
		return strconv.FormatBool(x)
	case string:
		return strconv.Quote(x)
	case []byte:
		return hexutil.Encode(x)
	case []Value:
		elems := make([]string, len(x))
		for i := range x {
			elems[i] = x[i].String()
		}
		return "[" + strings.Join(elems, ", ") + "]"
	default:
		return fmt.Sprintf("%v", v.Value)
	}
}
