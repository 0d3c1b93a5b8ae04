/*
Package address converts textual account addresses into common.Address and
back. Mixed-case input must carry a valid EIP-55 checksum, all-lowercase and
all-uppercase input is accepted without one.
*/
package address

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/abicall/abicall/pkg/crypto/hash"
	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidAddress is returned for malformed address strings.
var ErrInvalidAddress = errors.New("invalid address")

// StringToAddress parses "0x"-prefixed (or bare) hex address.
func StringToAddress(s string) (common.Address, error) {
	var a common.Address

	body := strings.TrimSpace(s)
	if p, ok := strings.CutPrefix(body, "0x"); ok {
		body = p
	} else if p, ok := strings.CutPrefix(body, "0X"); ok {
		body = p
	}
	if len(body) != 2*common.AddressLength {
		return a, fmt.Errorf("%w: %q has wrong length", ErrInvalidAddress, s)
	}
	b, err := hex.DecodeString(body)
	if err != nil {
		return a, fmt.Errorf("%w: %q: %w", ErrInvalidAddress, s, err)
	}
	copy(a[:], b)
	if isMixedCase(body) && checksum(a) != body {
		return a, fmt.Errorf("%w: %q has bad checksum", ErrInvalidAddress, s)
	}
	return a, nil
}

// AddressToString returns "0x"-prefixed EIP-55 checksummed address.
func AddressToString(a common.Address) string {
	return "0x" + checksum(a)
}

// checksum returns EIP-55 mixed-case hex of the address without prefix.
func checksum(a common.Address) string {
	buf := []byte(hex.EncodeToString(a[:]))
	h := hash.Keccak256(buf)
	for i := range buf {
		if buf[i] < 'a' {
			continue
		}
		nibble := h[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0xf >= 8 {
			buf[i] -= 'a' - 'A'
		}
	}
	return string(buf)
}

func isMixedCase(s string) bool {
	return strings.ToLower(s) != s && strings.ToUpper(s) != s
}
