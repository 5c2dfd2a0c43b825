package ledger

import (
	"encoding/binary"
	"fmt"
)

// accountKeyPrefix prefixes every account record in storage.
var accountKeyPrefix = []byte("a:")

// Account is a ledger account: an owner program, a lamport balance and data.
// Only the owner program may change data; anyone may credit lamports.
type Account struct {
	Address  Pubkey // Address is the account key
	Owner    Pubkey // Owner is the program allowed to write Data
	Lamports uint64 // Lamports is the balance held by the account
	Data     []byte // Data is the program-defined payload
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	c := *a
	c.Data = append([]byte(nil), a.Data...)

	return &c
}

// accountKey returns the storage key of addr.
func accountKey(addr Pubkey) []byte {
	key := make([]byte, 0, len(accountKeyPrefix)+PubkeySize)
	key = append(key, accountKeyPrefix...)

	return append(key, addr[:]...)
}

// encodeAccount serializes an account value.
// Format: [32B owner] [8B lamports LE] [4B dataLen LE] [data]
func encodeAccount(a *Account) []byte {
	buf := make([]byte, 32+8+4+len(a.Data))
	copy(buf[0:32], a.Owner[:])
	binary.LittleEndian.PutUint64(buf[32:40], a.Lamports)
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(a.Data)))
	copy(buf[44:], a.Data)

	return buf
}

// decodeAccount parses an account value stored under addr.
func decodeAccount(addr Pubkey, buf []byte) (*Account, error) {
	if len(buf) < 44 {
		return nil, fmt.Errorf("account %s: record too short: %d < 44", addr, len(buf))
	}

	dataLen := binary.LittleEndian.Uint32(buf[40:44])
	if uint64(len(buf)-44) != uint64(dataLen) {
		return nil, fmt.Errorf("account %s: data length %d, record holds %d", addr, dataLen, len(buf)-44)
	}

	a := &Account{Address: addr, Lamports: binary.LittleEndian.Uint64(buf[32:40])}
	copy(a.Owner[:], buf[0:32])
	a.Data = append([]byte(nil), buf[44:]...)

	return a, nil
}

// Rent parameters of the ledger.
const (
	// AccountStorageOverhead is charged on top of the data length.
	AccountStorageOverhead = 128

	// LamportsPerByteYear is the yearly storage price.
	LamportsPerByteYear = 3480

	// ExemptionYears is how many years of rent make an account exempt.
	ExemptionYears = 2
)

// RentExemptMinimum returns the balance an account with dataLen bytes must hold.
func RentExemptMinimum(dataLen int) uint64 {
	return uint64(AccountStorageOverhead+dataLen) * LamportsPerByteYear * ExemptionYears
}
