package keys

import (
	"encoding/hex"
	"fmt"

	"github.com/abicall/abicall/pkg/crypto/hash"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/ethereum/go-ethereum/common"
)

// compactRecoveryBase is added to the recovery id in compact signatures.
const compactRecoveryBase = 27

// PublicKey represents a secp256k1 public key.
type PublicKey struct {
	secp256k1.PublicKey
}

// NewPublicKeyFromBytes parses compressed or uncompressed public key.
func NewPublicKeyFromBytes(b []byte) (*PublicKey, error) {
	k, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, err
	}
	return &PublicKey{*k}, nil
}

// NewPublicKeyFromString returns a public key created from the given hex
// string.
func NewPublicKeyFromString(s string) (*PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return NewPublicKeyFromBytes(b)
}

// RecoverPublicKey returns the public key that produced the signature in
// [R || S || V] form for the digest.
func RecoverPublicKey(digest common.Hash, sig []byte) (*PublicKey, error) {
	if len(sig) != SignatureSize {
		return nil, fmt.Errorf("invalid signature length %d", len(sig))
	}
	if sig[SignatureSize-1] > 1 {
		return nil, fmt.Errorf("invalid recovery id %d", sig[SignatureSize-1])
	}
	compact := make([]byte, SignatureSize)
	compact[0] = sig[SignatureSize-1] + compactRecoveryBase
	copy(compact[1:], sig[:SignatureSize-1])
	k, _, err := ecdsa.RecoverCompact(compact, digest[:])
	if err != nil {
		return nil, err
	}
	return &PublicKey{*k}, nil
}

// Bytes returns compressed public key representation.
func (p *PublicKey) Bytes() []byte {
	return p.SerializeCompressed()
}

// UncompressedBytes returns uncompressed public key representation.
func (p *PublicKey) UncompressedBytes() []byte {
	return p.SerializeUncompressed()
}

// Address returns the account address: the last 20 bytes of Keccak-256 of
// the uncompressed point coordinates.
func (p *PublicKey) Address() common.Address {
	return common.BytesToAddress(hash.Keccak256(p.SerializeUncompressed()[1:]))
}

// Equal returns true if both keys are the same.
func (p *PublicKey) Equal(o *PublicKey) bool {
	return p.IsEqual(&o.PublicKey)
}

// Verify checks that the signature in [R || S || V] form for the digest was
// made by the key.
func (p *PublicKey) Verify(sig []byte, digest common.Hash) bool {
	k, err := RecoverPublicKey(digest, sig)
	return err == nil && p.Equal(k)
}

// String implements the Stringer interface.
func (p *PublicKey) String() string {
	return hex.EncodeToString(p.Bytes())
}
