// Package sigbuf defines the signature buffer account: a fixed-capacity,
// append-only list of guardian signature records owned by one writer.
package sigbuf

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"

	errorsmod "cosmossdk.io/errors"

	qverrors "QueryVerify/internal/errors"
	"QueryVerify/internal/ledger"
)

const (
	// DiscriminatorSize is the length of the account type tag.
	DiscriminatorSize = 8

	// HeaderSize covers the tag, both authorities, the capacity and the count.
	// Format: [8B tag] [32B write authority] [32B refund recipient] [4B total LE] [4B count LE]
	HeaderSize = DiscriminatorSize + 2*ledger.PubkeySize + 4 + 4

	// MaxSignatures caps the declared capacity of one buffer.
	MaxSignatures = 255
)

// Discriminator tags signature buffer accounts.
var Discriminator = discriminator("GuardianSignatures")

func discriminator(name string) [DiscriminatorSize]byte {
	sum := sha256.Sum256([]byte("account:" + name))

	var d [DiscriminatorSize]byte
	copy(d[:], sum[:DiscriminatorSize])

	return d
}

// Buffer is a decoded signature buffer.
type Buffer struct {
	WriteAuthority  ledger.Pubkey // WriteAuthority may append records
	RefundRecipient ledger.Pubkey // RefundRecipient receives the rent on close
	TotalSignatures uint32        // TotalSignatures is the preallocated capacity
	Records         []Record      // Records are kept in append order
}

// Space returns the account data length for a buffer of the given capacity.
func Space(total uint32) int {
	return HeaderSize + int(total)*RecordSize
}

// New creates an empty buffer owned by creator with the given capacity.
func New(creator ledger.Pubkey, total uint32) (*Buffer, error) {
	if total == 0 || total > MaxSignatures {
		return nil, errorsmod.Wrapf(qverrors.ErrInvalidInstruction, "total signatures %d not in 1..%d", total, MaxSignatures)
	}

	return &Buffer{WriteAuthority: creator, RefundRecipient: creator, TotalSignatures: total}, nil
}

// Remaining returns how many more records fit.
func (b *Buffer) Remaining() int {
	return int(b.TotalSignatures) - len(b.Records)
}

// Append adds records at the end. Content is not validated; the whole call
// fails if the records do not fit.
func (b *Buffer) Append(records []Record) error {
	if len(records) > b.Remaining() {
		return errorsmod.Wrapf(qverrors.ErrBufferFull, "append %d records, %d of %d slots free",
			len(records), b.Remaining(), b.TotalSignatures)
	}

	b.Records = append(b.Records, records...)

	return nil
}

// Marshal encodes the buffer into its full preallocated account data.
func (b *Buffer) Marshal() []byte {
	data := make([]byte, Space(b.TotalSignatures))

	copy(data[0:8], Discriminator[:])
	copy(data[8:40], b.WriteAuthority[:])
	copy(data[40:72], b.RefundRecipient[:])
	binary.LittleEndian.PutUint32(data[72:76], b.TotalSignatures)
	binary.LittleEndian.PutUint32(data[76:80], uint32(len(b.Records)))

	off := HeaderSize
	for _, r := range b.Records {
		enc := r.Bytes()
		copy(data[off:], enc[:])
		off += RecordSize
	}

	return data
}

// Unmarshal decodes account data written by Marshal.
func Unmarshal(data []byte) (*Buffer, error) {
	if len(data) < HeaderSize || !bytes.Equal(data[:DiscriminatorSize], Discriminator[:]) {
		return nil, errorsmod.Wrap(qverrors.ErrAccountDiscriminatorMismatch, "not a signature buffer")
	}

	b := &Buffer{TotalSignatures: binary.LittleEndian.Uint32(data[72:76])}
	copy(b.WriteAuthority[:], data[8:40])
	copy(b.RefundRecipient[:], data[40:72])

	if len(data) != Space(b.TotalSignatures) {
		return nil, errorsmod.Wrapf(qverrors.ErrAccountDiscriminatorMismatch,
			"data length %d does not match capacity %d", len(data), b.TotalSignatures)
	}

	count := binary.LittleEndian.Uint32(data[76:80])
	if count > b.TotalSignatures {
		return nil, errorsmod.Wrapf(qverrors.ErrAccountDiscriminatorMismatch,
			"record count %d exceeds capacity %d", count, b.TotalSignatures)
	}

	b.Records = make([]Record, count)
	for i := range b.Records {
		off := HeaderSize + i*RecordSize
		r, err := ParseRecord(data[off : off+RecordSize])
		if err != nil {
			return nil, err
		}
		b.Records[i] = r
	}

	return b, nil
}
