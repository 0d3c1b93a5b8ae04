package config

import (
	"fmt"

	"github.com/abicall/abicall/pkg/encoding/address"
	"github.com/abicall/abicall/pkg/manifest"
	"github.com/abicall/abicall/pkg/manifest/standard"
	"github.com/ethereum/go-ethereum/common"
)

// Contract describes the contract to interact with.
type Contract struct {
	// Address is a hex-encoded contract address, EIP-55 checksum is
	// checked for mixed-case strings.
	Address string `yaml:"Address"`
	// ABIPath is a path to the JSON ABI or to the file with human-readable
	// method declarations.
	ABIPath string `yaml:"ABIPath"`
	// Methods are human-readable method declarations, like
	// "function decimals() external view returns (uint8)".
	Methods []string `yaml:"Methods"`
	// Standards are names of well-known interfaces which methods are
	// added to the ABI ("ERC-20" or "WETH").
	Standards []string `yaml:"Standards"`
	// PureCacheSize is the number of pure method results to cache, no
	// caching if zero.
	PureCacheSize int `yaml:"PureCacheSize"`
}

// ParseAddress returns the contract address.
func (c Contract) ParseAddress() (common.Address, error) {
	return address.StringToAddress(c.Address)
}

// LoadABI builds the contract ABI from all configured sources: standards
// first, then the ABI file, then inline methods. The same method can't be
// declared twice.
func (c Contract) LoadABI() (*manifest.ABI, error) {
	var methods []manifest.Method
	for _, name := range c.Standards {
		st, err := standard.Get(name)
		if err != nil {
			return nil, err
		}
		a, err := st.ABI()
		if err != nil {
			return nil, err
		}
		methods = append(methods, a.Methods()...)
	}
	if c.ABIPath != "" {
		a, err := manifest.Load(c.ABIPath)
		if err != nil {
			return nil, err
		}
		methods = append(methods, a.Methods()...)
	}
	if len(c.Methods) != 0 {
		a, err := manifest.FromHumanReadable(c.Methods)
		if err != nil {
			return nil, err
		}
		methods = append(methods, a.Methods()...)
	}
	a, err := manifest.NewABI(methods...)
	if err != nil {
		return nil, fmt.Errorf("ABI: %w", err)
	}
	return a, nil
}
