/*
Package standard contains well-known contract interfaces and functions to
check a registry for compliance with them.
*/
package standard

import (
	"errors"
	"fmt"

	"github.com/abicall/abicall/pkg/abi"
	"github.com/abicall/abicall/pkg/manifest"
)

// Various validation errors.
var (
	ErrMethodMissing      = errors.New("method missing")
	ErrInvalidReturnType  = errors.New("invalid return type")
	ErrMutabilityMismatch = errors.New("method has wrong mutability")
	ErrUnknownStandard    = errors.New("unknown standard")
)

// Standard names.
const (
	ERC20Name = "ERC-20"
	WETHName  = "WETH"
)

// Standard represents contract interface standard.
type Standard struct {
	// Name is a standard name.
	Name string
	// Base contains base standard.
	Base *Standard
	// Methods contains mandatory method declarations.
	Methods []string
}

// ERC20 is the fungible token interface.
var ERC20 = &Standard{
	Name: ERC20Name,
	Methods: []string{
		"function name() external pure returns (string memory)",
		"function symbol() external pure returns (string memory)",
		"function decimals() external pure returns (uint8)",
		"function balanceOf(address _address) external view returns (uint256)",
		"function transfer(address to, uint256 value) external returns (bool)",
		"function approve(address spender, uint256 value) external returns (bool)",
		"function transferFrom(address from, address to, uint256 value) external returns (bool)",
		"function allowance(address owner, address spender) external view returns (uint256)",
	},
}

// WETH is the wrapped native token interface, it extends ERC20.
var WETH = &Standard{
	Name: WETHName,
	Base: ERC20,
	Methods: []string{
		"function deposit() external payable",
		"function withdraw(uint256 amount) external",
		"function sum(uint256[] memory values) external pure returns (string memory, uint256)",
		"function sumWithHelper(address helper, uint256[] memory values) external view returns (uint256)",
	},
}

var checks = map[string]*Standard{
	ERC20Name: ERC20,
	WETHName:  WETH,
}

// Declarations returns all method declarations of the standard including
// the ones of its base.
func (s *Standard) Declarations() []string {
	var res []string
	if s.Base != nil {
		res = s.Base.Declarations()
	}
	return append(res, s.Methods...)
}

// ABI returns a new registry containing all standard methods.
func (s *Standard) ABI() (*manifest.ABI, error) {
	a, err := manifest.FromHumanReadable(s.Declarations())
	if err != nil {
		return nil, fmt.Errorf("standard %s: %w", s.Name, err)
	}
	return a, nil
}

// Names returns the names of all known standards.
func Names() []string {
	return []string{ERC20Name, WETHName}
}

// Get returns the standard by its name.
func Get(name string) (*Standard, error) {
	s, ok := checks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStandard, name)
	}
	return s, nil
}

// Check checks if the registry complies with all provided standards.
func Check(a *manifest.ABI, standards ...string) error {
	for i := range standards {
		s, err := Get(standards[i])
		if err != nil {
			return err
		}
		if err := Comply(a, s); err != nil {
			return fmt.Errorf("ABI is not compliant with '%s': %w", standards[i], err)
		}
	}
	return nil
}

// Comply checks if a has all methods from st with the same signatures,
// return types and mutability. Parameter names are ignored.
func Comply(a *manifest.ABI, st *Standard) error {
	sa, err := st.ABI()
	if err != nil {
		return err
	}
	for _, stm := range sa.Methods() {
		md, err := a.Resolve(stm.Name, stm.Parameters.Types())
		if err != nil {
			return fmt.Errorf("%w: %s", ErrMethodMissing, stm.Signature())
		}
		if !sameTypes(stm.Returns, md.Returns) {
			return fmt.Errorf("%w: '%s' (expected (%s), got (%s))", ErrInvalidReturnType,
				stm.Signature(), abi.TypesString(stm.Returns.Types()), abi.TypesString(md.Returns.Types()))
		}
		if stm.Mutability != md.Mutability {
			return fmt.Errorf("%w: '%s' (expected %s, got %s)", ErrMutabilityMismatch,
				stm.Signature(), stm.Mutability, md.Mutability)
		}
	}
	return nil
}

// Implemented returns names of all standards a complies with.
func Implemented(a *manifest.ABI) []string {
	var res []string
	for _, name := range Names() {
		if Comply(a, checks[name]) == nil {
			res = append(res, name)
		}
	}
	return res
}

func sameTypes(a, b manifest.Parameters) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Type.Equals(b[i].Type) {
			return false
		}
	}
	return true
}
