package sigbuf

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// RecordSize is the encoded size of one record: [1B index] [32B r] [32B s] [1B v].
const RecordSize = 1 + crypto.SignatureLength

// Record is one guardian's signature over a query response digest.
type Record struct {
	GuardianIndex uint8                        // GuardianIndex is the signer's position in the guardian set
	Signature     [crypto.SignatureLength]byte // Signature is r || s || v, v in 0..3
}

// Bytes returns the 66-byte buffer encoding.
func (r Record) Bytes() [RecordSize]byte {
	var out [RecordSize]byte
	out[0] = r.GuardianIndex
	copy(out[1:], r.Signature[:])

	return out
}

// RecoveryID returns v.
func (r Record) RecoveryID() byte {
	return r.Signature[crypto.RecoveryIDOffset]
}

// ParseRecord decodes the 66-byte buffer encoding.
func ParseRecord(b []byte) (Record, error) {
	if len(b) != RecordSize {
		return Record{}, fmt.Errorf("record has %d bytes, want %d", len(b), RecordSize)
	}

	var r Record
	r.GuardianIndex = b[0]
	copy(r.Signature[:], b[1:])

	return r, nil
}

// ParseGuardianSignature decodes the oracle's hex form, signature first and
// guardian index last: hex(r || s || v || index). A 0x prefix is accepted.
func ParseGuardianSignature(s string) (Record, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return Record{}, fmt.Errorf("decode guardian signature:\n%w", err)
	}

	if len(raw) != RecordSize {
		return Record{}, fmt.Errorf("guardian signature has %d bytes, want %d", len(raw), RecordSize)
	}

	var r Record
	copy(r.Signature[:], raw[:crypto.SignatureLength])
	r.GuardianIndex = raw[crypto.SignatureLength]

	return r, nil
}

// ParseGuardianSignatures decodes a list of oracle hex signatures, keeping order.
func ParseGuardianSignatures(sigs []string) ([]Record, error) {
	out := make([]Record, 0, len(sigs))
	for i, s := range sigs {
		r, err := ParseGuardianSignature(s)
		if err != nil {
			return nil, fmt.Errorf("signature %d:\n%w", i, err)
		}
		out = append(out, r)
	}

	return out, nil
}

// GuardianSignatureHex is the inverse of ParseGuardianSignature.
func GuardianSignatureHex(r Record) string {
	raw := make([]byte, 0, RecordSize)
	raw = append(raw, r.Signature[:]...)
	raw = append(raw, r.GuardianIndex)

	return hex.EncodeToString(raw)
}
