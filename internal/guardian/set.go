// Package guardian reads and publishes versioned guardian sets held in
// ledger accounts owned by the governance (core bridge) program.
package guardian

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"QueryVerify/internal/quorum"
)

// MaxKeys is the largest guardian set the program accepts.
const MaxKeys = 19

// Set is one guardian set version.
type Set struct {
	Index          uint32           // Index is the set version
	Keys           []common.Address // Keys are the guardian fingerprints, by guardian index
	CreationTime   uint32           // CreationTime is a unix timestamp
	ExpirationTime uint32           // ExpirationTime is a unix timestamp, 0 while current
}

// IsActive reports whether the set may still verify at now.
// A set stays valid through the second named by ExpirationTime.
func (s *Set) IsActive(now time.Time) bool {
	return s.ExpirationTime == 0 || int64(s.ExpirationTime) >= now.Unix()
}

// Quorum returns how many signatures the set requires.
func (s *Set) Quorum() int {
	return quorum.Threshold(len(s.Keys))
}

// MarshalBinary encodes the set in Borsh.
// Format: u32 index + u32 len + len*[u8; 20] keys + u32 creation_time + u32 expiration_time
func (s *Set) MarshalBinary() ([]byte, error) {
	if len(s.Keys) > MaxKeys {
		return nil, fmt.Errorf("guardian set %d has %d keys, max %d", s.Index, len(s.Keys), MaxKeys)
	}

	buf := make([]byte, 4+4+len(s.Keys)*common.AddressLength+4+4)
	binary.LittleEndian.PutUint32(buf[0:4], s.Index)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(s.Keys)))

	off := 8
	for _, k := range s.Keys {
		copy(buf[off:], k[:])
		off += common.AddressLength
	}

	binary.LittleEndian.PutUint32(buf[off:], s.CreationTime)
	binary.LittleEndian.PutUint32(buf[off+4:], s.ExpirationTime)

	return buf, nil
}

// UnmarshalBinary decodes a Borsh-encoded set.
func (s *Set) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("guardian set too short: %d < 8", len(data))
	}

	n := binary.LittleEndian.Uint32(data[4:8])
	if n > MaxKeys {
		return fmt.Errorf("guardian set has %d keys, max %d", n, MaxKeys)
	}

	want := 8 + int(n)*common.AddressLength + 8
	if len(data) != want {
		return fmt.Errorf("guardian set length %d, want %d for %d keys", len(data), want, n)
	}

	s.Index = binary.LittleEndian.Uint32(data[0:4])
	s.Keys = make([]common.Address, n)

	off := 8
	for i := range s.Keys {
		copy(s.Keys[i][:], data[off:off+common.AddressLength])
		off += common.AddressLength
	}

	s.CreationTime = binary.LittleEndian.Uint32(data[off:])
	s.ExpirationTime = binary.LittleEndian.Uint32(data[off+4:])

	return nil
}
