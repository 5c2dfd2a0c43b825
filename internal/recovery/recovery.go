// Package recovery recovers guardian key fingerprints from secp256k1 signatures.
package recovery

import (
	"math/big"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	qverrors "QueryVerify/internal/errors"
)

// MaxRecoveryID is the largest recovery id accepted by the ledger's recovery primitive.
const MaxRecoveryID = 3

// Recoverer returns the fingerprint of the key that produced sig over digest.
// Implementations must be deterministic and must fail with ErrInvalidSignature
// when no key can be recovered.
type Recoverer interface {
	Recover(digest common.Hash, sig [crypto.SignatureLength]byte) (common.Address, error)
}

// Secp256k1 is the production Recoverer.
type Secp256k1 struct{}

// Recover implements Recoverer.
func (Secp256k1) Recover(digest common.Hash, sig [crypto.SignatureLength]byte) (common.Address, error) {
	v := sig[crypto.RecoveryIDOffset]
	if v > MaxRecoveryID {
		return common.Address{}, errorsmod.Wrapf(qverrors.ErrInvalidSignature, "recovery id %d", v)
	}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(v&1, r, s, false) {
		return common.Address{}, errorsmod.Wrap(qverrors.ErrInvalidSignature, "r or s out of range")
	}

	pub, err := crypto.Ecrecover(digest[:], sig[:])
	if err != nil {
		return common.Address{}, errorsmod.Wrap(qverrors.ErrInvalidSignature, err.Error())
	}

	return Fingerprint(pub), nil
}

// Fingerprint returns keccak256(x || y)[12:] of a 65-byte uncompressed public key.
func Fingerprint(pub []byte) common.Address {
	return common.BytesToAddress(crypto.Keccak256(pub[1:])[12:])
}
