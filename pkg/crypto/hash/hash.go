package hash

import (
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Keccak256 hashes the concatenation of the given byte slices using the
// legacy (pre-standard) Keccak-256 function.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		h.Write(b)
	}
	return h.Sum(nil)
}

// Keccak256Hash is the same as Keccak256, but returns common.Hash.
func Keccak256Hash(data ...[]byte) common.Hash {
	return common.BytesToHash(Keccak256(data...))
}

// Selector returns the first four bytes of the Keccak-256 hash of the given
// method signature.
func Selector(signature string) [4]byte {
	var s [4]byte
	copy(s[:], Keccak256([]byte(signature)))
	return s
}
