// Package snapshot exports and restores the full account set of a ledger.
package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"QueryVerify/internal/ledger"
)

const (
	// snapshotVersion is the current snapshot format version.
	snapshotVersion = 1

	// checksumSize is the size of the trailing blake3 checksum.
	checksumSize = 32

	// headerSize is version (4 bytes) + account count (4 bytes).
	headerSize = 8

	// fixedAccountSize is address + owner + lamports + data length.
	fixedAccountSize = ledger.PubkeySize*2 + 8 + 4
)

// Create serializes every account of l.
func Create(ctx context.Context, l *ledger.Ledger) ([]byte, error) {
	accounts, err := l.Export(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect accounts:\n%w", err)
	}

	return Encode(accounts), nil
}

// Encode builds a snapshot of accounts with checksum.
// Format: u32 version + u32 count + accounts + 32-byte blake3 checksum.
// Each account: 32B address + 32B owner + u64 lamports + u32 len + data.
// Accounts are sorted by address so equal sets encode to equal bytes.
func Encode(accounts []*ledger.Account) []byte {
	sorted := make([]*ledger.Account, len(accounts))
	copy(sorted, accounts)
	sortAccounts(sorted)

	var buf bytes.Buffer

	var hdr [headerSize]byte
	binary.BigEndian.PutUint32(hdr[:4], snapshotVersion)
	binary.BigEndian.PutUint32(hdr[4:], uint32(len(sorted)))
	buf.Write(hdr[:])

	for _, acc := range sorted {
		writeAccount(&buf, acc)
	}

	checksum := blake3.Sum256(buf.Bytes())
	buf.Write(checksum[:])

	return buf.Bytes()
}

// Decode verifies and parses a snapshot.
func Decode(data []byte) ([]*ledger.Account, error) {
	if len(data) < headerSize+checksumSize {
		return nil, fmt.Errorf("snapshot too short: %d bytes", len(data))
	}

	body, stored := data[:len(data)-checksumSize], data[len(data)-checksumSize:]
	if computed := blake3.Sum256(body); !bytes.Equal(computed[:], stored) {
		return nil, fmt.Errorf("checksum mismatch")
	}

	if v := binary.BigEndian.Uint32(body[:4]); v != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", v)
	}

	count := binary.BigEndian.Uint32(body[4:8])
	body = body[headerSize:]

	accounts := make([]*ledger.Account, 0, min(int(count), len(body)/fixedAccountSize))

	for i := uint32(0); i < count; i++ {
		acc, rest, err := readAccount(body)
		if err != nil {
			return nil, fmt.Errorf("account %d:\n%w", i, err)
		}

		if n := len(accounts); n > 0 && bytes.Compare(accounts[n-1].Address[:], acc.Address[:]) >= 0 {
			return nil, fmt.Errorf("account %d: %s out of order", i, acc.Address)
		}

		accounts = append(accounts, acc)
		body = rest
	}

	if len(body) != 0 {
		return nil, fmt.Errorf("%d trailing bytes after %d accounts", len(body), count)
	}

	return accounts, nil
}

// Apply verifies data and replaces the accounts of l with it.
// Returns the number of restored accounts.
func Apply(ctx context.Context, l *ledger.Ledger, data []byte) (int, error) {
	accounts, err := Decode(data)
	if err != nil {
		return 0, fmt.Errorf("decode snapshot:\n%w", err)
	}

	if err := l.Restore(ctx, accounts); err != nil {
		return 0, err
	}

	return len(accounts), nil
}

// Checksum returns the checksum embedded in a snapshot.
func Checksum(data []byte) ([checksumSize]byte, error) {
	var sum [checksumSize]byte
	if len(data) < headerSize+checksumSize {
		return sum, fmt.Errorf("snapshot too short: %d bytes", len(data))
	}

	copy(sum[:], data[len(data)-checksumSize:])

	return sum, nil
}

func writeAccount(buf *bytes.Buffer, acc *ledger.Account) {
	var fixed [fixedAccountSize]byte
	copy(fixed[0:32], acc.Address[:])
	copy(fixed[32:64], acc.Owner[:])
	binary.BigEndian.PutUint64(fixed[64:72], acc.Lamports)
	binary.BigEndian.PutUint32(fixed[72:76], uint32(len(acc.Data)))

	buf.Write(fixed[:])
	buf.Write(acc.Data)
}

func readAccount(b []byte) (*ledger.Account, []byte, error) {
	if len(b) < fixedAccountSize {
		return nil, nil, fmt.Errorf("truncated: %d bytes left", len(b))
	}

	acc := &ledger.Account{Lamports: binary.BigEndian.Uint64(b[64:72])}
	copy(acc.Address[:], b[0:32])
	copy(acc.Owner[:], b[32:64])

	n := binary.BigEndian.Uint32(b[72:76])
	b = b[fixedAccountSize:]
	if uint64(len(b)) < uint64(n) {
		return nil, nil, fmt.Errorf("data length %d, %d bytes left", n, len(b))
	}

	if n > 0 {
		acc.Data = append([]byte(nil), b[:n]...)
	}

	return acc, b[n:], nil
}

// sortAccounts sorts accounts by address for deterministic ordering.
func sortAccounts(accounts []*ledger.Account) {
	sort.Slice(accounts, func(i, j int) bool {
		return bytes.Compare(accounts[i].Address[:], accounts[j].Address[:]) < 0
	})
}

// Compress compresses snapshot data using zstd.
func Compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create encoder:\n%w", err)
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, nil), nil
}

// Decompress decompresses zstd-compressed snapshot data.
func Decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create decoder:\n%w", err)
	}
	defer decoder.Close()

	return decoder.DecodeAll(data, nil)
}
