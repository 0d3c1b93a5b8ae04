package abi

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is a Type variant.
type Kind byte

// A list of supported kinds.
const (
	InvalidKind Kind = iota
	UintKind
	AddressKind
	BoolKind
	StringKind
	BytesKind
	FixedArrayKind
	ArrayKind
)

// SlotSize is the size of a single head slot.
const SlotSize = 32

// MaxUintBits is the largest supported unsigned integer width.
const MaxUintBits = 256

// MaxHeadSize is the largest head size of a single type, fixed arrays that
// are larger than that are not supported.
const MaxHeadSize = math.MaxInt32

// Type describes an ABI type.
type Type struct {
	Kind Kind
	// Size is the bit width for UintKind and the number of elements for
	// FixedArrayKind, it's not used by other kinds.
	Size int
	// Elem is the element type of FixedArrayKind and ArrayKind types.
	Elem *Type
}

// Leaf types that have no parameters.
var (
	AddressType = Type{Kind: AddressKind}
	BoolType    = Type{Kind: BoolKind}
	StringType  = Type{Kind: StringKind}
	BytesType   = Type{Kind: BytesKind}
)

// UintType returns an unsigned integer type of the given bit width.
func UintType(bits int) Type {
	return Type{Kind: UintKind, Size: bits}
}

// FixedArrayType returns a type of an array of n elements of the given type.
func FixedArrayType(elem Type, n int) Type {
	return Type{Kind: FixedArrayKind, Size: n, Elem: &elem}
}

// ArrayType returns a type of a variable-length array of the given element
// type.
func ArrayType(elem Type) Type {
	return Type{Kind: ArrayKind, Elem: &elem}
}

// Validate checks that the type is well-formed and supported.
func (t Type) Validate() error {
	switch t.Kind {
	case UintKind:
		if t.Size < 8 || t.Size > MaxUintBits || t.Size%8 != 0 {
			return fmt.Errorf("%w: uint%d", ErrUnsupportedType, t.Size)
		}
	case AddressKind, BoolKind, StringKind, BytesKind:
	case FixedArrayKind:
		if t.Size <= 0 {
			return fmt.Errorf("%w: fixed array of %d elements", ErrUnsupportedType, t.Size)
		}
		if t.Elem == nil {
			return fmt.Errorf("%w: array without element type", ErrUnsupportedType)
		}
		if err := t.Elem.Validate(); err != nil {
			return err
		}
		// Element heads are laid out one after another even for dynamic
		// fixed arrays.
		if t.Size > MaxHeadSize/t.Elem.headSize() {
			return fmt.Errorf("%w: fixed array of %d elements is too big", ErrUnsupportedType, t.Size)
		}
	case ArrayKind:
		if t.Elem == nil {
			return fmt.Errorf("%w: array without element type", ErrUnsupportedType)
		}
		return t.Elem.Validate()
	default:
		return fmt.Errorf("%w: kind %d", ErrUnsupportedType, t.Kind)
	}
	return nil
}

// IsDynamic returns true for types encoded in the tail with an offset in the
// head.
func (t Type) IsDynamic() bool {
	switch t.Kind {
	case StringKind, BytesKind, ArrayKind:
		return true
	case FixedArrayKind:
		return t.Elem.IsDynamic()
	default:
		return false
	}
}

// headSize returns the number of bytes the type occupies in the head of an
// enclosing tuple.
func (t Type) headSize() int {
	if t.Kind == FixedArrayKind && !t.IsDynamic() {
		return t.Size * t.Elem.headSize()
	}
	return SlotSize
}

// Equals checks whether two types are the same.
func (t Type) Equals(o Type) bool {
	if t.Kind != o.Kind || t.Size != o.Size {
		return false
	}
	if t.Elem == nil || o.Elem == nil {
		return t.Elem == o.Elem
	}
	return t.Elem.Equals(*o.Elem)
}

// String returns the canonical type name used in method signatures.
func (t Type) String() string {
	switch t.Kind {
	case UintKind:
		return "uint" + strconv.Itoa(t.Size)
	case AddressKind:
		return "address"
	case BoolKind:
		return "bool"
	case StringKind:
		return "string"
	case BytesKind:
		return "bytes"
	case FixedArrayKind:
		if t.Elem == nil {
			return "?[" + strconv.Itoa(t.Size) + "]"
		}
		return t.Elem.String() + "[" + strconv.Itoa(t.Size) + "]"
	case ArrayKind:
		if t.Elem == nil {
			return "?[]"
		}
		return t.Elem.String() + "[]"
	default:
		return "invalid"
	}
}

// MarshalJSON implements the json.Marshaler interface.
func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (t *Type) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	p, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = p
	return nil
}

// ParseType parses a type from its textual form ("uint256", "address[]",
// "string[2][]", etc). "uint" is an alias for "uint256".
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "]") {
		open := strings.LastIndexByte(s, '[')
		if open <= 0 {
			return Type{}, fmt.Errorf("%w: malformed array type %q", ErrUnsupportedType, s)
		}
		elem, err := ParseType(s[:open])
		if err != nil {
			return Type{}, err
		}
		dim := s[open+1 : len(s)-1]
		if dim == "" {
			return ArrayType(elem), nil
		}
		n, err := strconv.Atoi(dim)
		if err != nil || n <= 0 {
			return Type{}, fmt.Errorf("%w: bad array length in %q", ErrUnsupportedType, s)
		}
		t := FixedArrayType(elem, n)
		if err := t.Validate(); err != nil {
			return Type{}, err
		}
		return t, nil
	}
	switch s {
	case "address":
		return AddressType, nil
	case "bool":
		return BoolType, nil
	case "string":
		return StringType, nil
	case "bytes":
		return BytesType, nil
	case "uint":
		return UintType(MaxUintBits), nil
	}
	if bits, ok := strings.CutPrefix(s, "uint"); ok {
		n, err := strconv.Atoi(bits)
		if err == nil {
			t := UintType(n)
			if err := t.Validate(); err != nil {
				return Type{}, err
			}
			return t, nil
		}
	}
	return Type{}, fmt.Errorf("%w: %q", ErrUnsupportedType, s)
}

// MinSize returns the statically known minimal size of the tuple of the
// given types in encoded form.
func MinSize(types []Type) int {
	var n int
	for _, t := range types {
		n += t.headSize()
	}
	return n
}

// TypesString returns a comma-separated list of canonical type names.
func TypesString(types []Type) string {
	names := make([]string, len(types))
	for i := range types {
		names[i] = types[i].String()
	}
	return strings.Join(names, ",")
}
