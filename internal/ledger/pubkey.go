package ledger

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

// PubkeySize is the length of an account address.
const PubkeySize = 32

// Pubkey is a 32-byte account address, printed in base58.
type Pubkey [PubkeySize]byte

// SystemProgramID owns plain wallet accounts.
var SystemProgramID = Pubkey{}

// ParsePubkey decodes a base58 address.
func ParsePubkey(s string) (Pubkey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Pubkey{}, fmt.Errorf("decode pubkey %q:\n%w", s, err)
	}

	if len(raw) != PubkeySize {
		return Pubkey{}, fmt.Errorf("pubkey %q has %d bytes, want %d", s, len(raw), PubkeySize)
	}

	var pk Pubkey
	copy(pk[:], raw)

	return pk, nil
}

// MustPubkey is ParsePubkey for constants; it panics on malformed input.
func MustPubkey(s string) Pubkey {
	pk, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}

	return pk
}

// PubkeyFromEd25519 returns the address of an ed25519 public key.
func PubkeyFromEd25519(pub ed25519.PublicKey) (Pubkey, error) {
	if len(pub) != ed25519.PublicKeySize {
		return Pubkey{}, fmt.Errorf("ed25519 key has %d bytes", len(pub))
	}

	var pk Pubkey
	copy(pk[:], pub)

	return pk, nil
}

// String returns the base58 form.
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// IsZero reports whether p is the all-zero key.
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// MarshalText implements encoding.TextMarshaler.
func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pubkey) UnmarshalText(b []byte) error {
	pk, err := ParsePubkey(string(b))
	if err != nil {
		return err
	}

	*p = pk

	return nil
}
