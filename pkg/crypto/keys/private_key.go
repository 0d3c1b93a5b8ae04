package keys

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/ethereum/go-ethereum/common"
)

// PrivateKeySize is the size of serialized private key.
const PrivateKeySize = 32

// SignatureSize is the size of recoverable signature in [R || S || V] form.
const SignatureSize = 65

// ErrInvalidKey is returned for malformed private keys.
var ErrInvalidKey = errors.New("invalid private key")

// PrivateKey represents a secp256k1 private key and provides a high level API
// around secp256k1.PrivateKey.
type PrivateKey struct {
	secp256k1.PrivateKey
}

// NewPrivateKey creates a new random private key. It's mostly useful for
// tests, keys are expected to be provided by the user.
func NewPrivateKey() (*PrivateKey, error) {
	k, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return &PrivateKey{*k}, nil
}

// NewPrivateKeyFromHex returns a PrivateKey created from the given hex
// string. Surrounding whitespace and "0x" prefix are ignored.
func NewPrivateKeyFromHex(str string) (*PrivateKey, error) {
	str = strings.TrimSpace(str)
	str = strings.TrimPrefix(strings.TrimPrefix(str, "0x"), "0X")
	b, err := hex.DecodeString(str)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	defer clear(b)
	return NewPrivateKeyFromBytes(b)
}

// NewPrivateKeyFromFile reads hex-encoded private key from the file.
func NewPrivateKeyFromFile(path string) (*PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read key file: %w", err)
	}
	defer clear(b)
	return NewPrivateKeyFromHex(string(b))
}

// NewPrivateKeyFromBytes returns a PrivateKey from the given byte slice, it
// must be a big-endian scalar in [1, N-1] range.
func NewPrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes got %d", ErrInvalidKey, PrivateKeySize, len(b))
	}
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(b); overflow || s.IsZero() {
		return nil, fmt.Errorf("%w: scalar out of range", ErrInvalidKey)
	}
	return &PrivateKey{*secp256k1.NewPrivateKey(&s)}, nil
}

// PublicKey derives the public key from the private key.
func (p *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{*p.PubKey()}
}

// Address returns the account address corresponding to the key.
func (p *PrivateKey) Address() common.Address {
	return p.PublicKey().Address()
}

// SignHash signs the given 32-byte digest. The signature is deterministic
// (RFC 6979) with canonical low S, it's returned in [R || S || V] form
// where V is the recovery id (0 or 1).
func (p *PrivateKey) SignHash(digest common.Hash) []byte {
	compact := ecdsa.SignCompact(&p.PrivateKey, digest[:], false)
	sig := make([]byte, SignatureSize)
	copy(sig, compact[1:])
	sig[SignatureSize-1] = compact[0] - compactRecoveryBase
	return sig
}

// String implements the stringer interface.
func (p *PrivateKey) String() string {
	return hex.EncodeToString(p.Bytes())
}

// Bytes returns the underlying bytes of the PrivateKey.
func (p *PrivateKey) Bytes() []byte {
	return p.Serialize()
}

// Destroy wipes the contents of the private key from memory. Any operations
// with the key after call to Destroy have undefined behavior.
func (p *PrivateKey) Destroy() {
	p.Zero()
}
