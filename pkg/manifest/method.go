package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/abicall/abicall/pkg/abi"
	"github.com/abicall/abicall/pkg/crypto/hash"
)

// Mutability is a method state mutability class.
type Mutability byte

// A list of mutability classes.
const (
	NonPayable Mutability = iota
	Payable
	View
	Pure
)

// Parameter represents method's parameter or return value definition. Name
// is optional.
type Parameter struct {
	Name string   `json:"name"`
	Type abi.Type `json:"type"`
}

// Parameters is just an array of Parameter.
type Parameters []Parameter

// Method represents method's metadata.
type Method struct {
	Name       string     `json:"name"`
	Parameters Parameters `json:"inputs"`
	Returns    Parameters `json:"outputs"`
	Mutability Mutability `json:"stateMutability"`
}

// NewParameter returns a new parameter of the specified name and type.
func NewParameter(name string, typ abi.Type) Parameter {
	return Parameter{
		Name: name,
		Type: typ,
	}
}

// Types returns parameter types in order.
func (p Parameters) Types() []abi.Type {
	types := make([]abi.Type, len(p))
	for i := range p {
		types[i] = p[i].Type
	}
	return types
}

// AreValid checks all parameter types.
func (p Parameters) AreValid() error {
	for i := range p {
		if err := p[i].Type.Validate(); err != nil {
			return fmt.Errorf("parameter #%d/%q: %w", i, p[i].Name, err)
		}
	}
	return nil
}

// String implements the fmt.Stringer interface.
func (m Mutability) String() string {
	switch m {
	case NonPayable:
		return "nonpayable"
	case Payable:
		return "payable"
	case View:
		return "view"
	case Pure:
		return "pure"
	default:
		return fmt.Sprintf("Mutability(%d)", byte(m))
	}
}

// ParseMutability parses state mutability keyword. "constant" is accepted as
// a legacy alias for "view", empty string means nonpayable.
func ParseMutability(s string) (Mutability, error) {
	switch strings.ToLower(s) {
	case "", "nonpayable":
		return NonPayable, nil
	case "payable":
		return Payable, nil
	case "view", "constant":
		return View, nil
	case "pure":
		return Pure, nil
	default:
		return 0, fmt.Errorf("unknown state mutability %q", s)
	}
}

// IsReadOnly returns true for Pure and View methods.
func (m Mutability) IsReadOnly() bool {
	return m == Pure || m == View
}

// MarshalJSON implements the json.Marshaler interface.
func (m Mutability) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (m *Mutability) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	p, err := ParseMutability(s)
	if err != nil {
		return err
	}
	*m = p
	return nil
}

// Signature returns the canonical method signature, like
// "transfer(address,uint256)".
func (m *Method) Signature() string {
	return m.Name + "(" + abi.TypesString(m.Parameters.Types()) + ")"
}

// Selector returns the four-byte method selector.
func (m *Method) Selector() [4]byte {
	return hash.Selector(m.Signature())
}

// IsReadOnly returns true if the method doesn't change the state.
func (m *Method) IsReadOnly() bool {
	return m.Mutability.IsReadOnly()
}

// IsValid checks Method consistency and correctness.
func (m *Method) IsValid() error {
	if m.Name == "" {
		return errors.New("empty or absent name")
	}
	if strings.ContainsAny(m.Name, "(), \t") {
		return fmt.Errorf("invalid name %q", m.Name)
	}
	if m.Mutability > Pure {
		return fmt.Errorf("invalid mutability %d", m.Mutability)
	}
	if err := m.Parameters.AreValid(); err != nil {
		return err
	}
	if err := m.Returns.AreValid(); err != nil {
		return fmt.Errorf("returns: %w", err)
	}
	return nil
}

// Pack returns call data for the method invoked with the given arguments.
// Errors carry the method signature.
func (m *Method) Pack(args ...abi.Value) ([]byte, error) {
	data, err := abi.EncodeCall(m.Selector(), m.Parameters.Types(), args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Signature(), err)
	}
	return data, nil
}

// Unpack decodes method return values.
func (m *Method) Unpack(data []byte) ([]abi.Value, error) {
	vals, err := abi.Decode(m.Returns.Types(), data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Signature(), err)
	}
	return vals, nil
}

// String returns human-readable method declaration.
func (m Method) String() string {
	var sb strings.Builder
	sb.WriteString("function ")
	sb.WriteString(m.Name)
	writeParams(&sb, m.Parameters)
	if m.Mutability != NonPayable {
		sb.WriteByte(' ')
		sb.WriteString(m.Mutability.String())
	}
	if len(m.Returns) != 0 {
		sb.WriteString(" returns ")
		writeParams(&sb, m.Returns)
	}
	return sb.String()
}

func writeParams(sb *strings.Builder, ps Parameters) {
	sb.WriteByte('(')
	for i := range ps {
		if i != 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(ps[i].Type.String())
		if ps[i].Name != "" {
			sb.WriteByte(' ')
			sb.WriteString(ps[i].Name)
		}
	}
	sb.WriteByte(')')
}
