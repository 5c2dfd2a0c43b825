package ledger

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

const (
	// MaxSeeds is the maximum number of seeds, bump included.
	MaxSeeds = 16

	// MaxSeedLen is the maximum length of one seed.
	MaxSeedLen = 32

	pdaMarker = "ProgramDerivedAddress"
)

// ErrOnCurve is returned when a seed set hashes to a valid ed25519 point.
var ErrOnCurve = errors.New("derived address is on the ed25519 curve")

// CreateProgramAddress hashes seeds under programID into an address that has
// no private key. Bit-compatible with the ledger's derivation rule.
func CreateProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return Pubkey{}, fmt.Errorf("too many seeds: %d > %d", len(seeds), MaxSeeds)
	}

	h := sha256.New()
	for i, s := range seeds {
		if len(s) > MaxSeedLen {
			return Pubkey{}, fmt.Errorf("seed %d too long: %d > %d", i, len(s), MaxSeedLen)
		}
		h.Write(s)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var addr Pubkey
	copy(addr[:], h.Sum(nil))

	if isOnCurve(addr) {
		return Pubkey{}, ErrOnCurve
	}

	return addr, nil
}

// FindProgramAddress searches bumps from 255 down and returns the first
// off-curve address together with its bump.
func FindProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}

		addr, err := CreateProgramAddress(withBump, programID)
		if errors.Is(err, ErrOnCurve) {
			continue
		}
		if err != nil {
			return Pubkey{}, 0, err
		}

		return addr, uint8(bump), nil
	}

	return Pubkey{}, 0, errors.New("no viable bump for seeds")
}

// isOnCurve reports whether b decodes to a point on edwards25519.
func isOnCurve(b Pubkey) bool {
	_, err := new(edwards25519.Point).SetBytes(b[:])
	return err == nil
}
