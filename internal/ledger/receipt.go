package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	errorsmod "cosmossdk.io/errors"

	qverrors "QueryVerify/internal/errors"
	"QueryVerify/internal/storage"
)

// receiptPrefix keys the receipts of executed signed instructions:
// "r:" | be64 expiry (unix seconds) | 32-byte signing hash.
var receiptPrefix = []byte("r:")

// errStopScan ends a prefix scan early.
var errStopScan = errors.New("stop scan")

// Receipt identifies one signed instruction until it expires.
type Receipt struct {
	Hash    [32]byte  // Hash is the digest covered by the instruction's signatures
	Expires time.Time // Expires is when the instruction stops being accepted
}

type receiptCtxKey struct{}

// WithReceipt marks ctx so that the next Update run with it executes at most
// once per receipt. The receipt is recorded in the same batch as the
// transaction's writes, and only when the transaction commits.
func WithReceipt(ctx context.Context, r Receipt) context.Context {
	return context.WithValue(ctx, receiptCtxKey{}, r)
}

func receiptFrom(ctx context.Context) (Receipt, bool) {
	r, ok := ctx.Value(receiptCtxKey{}).(Receipt)
	return r, ok
}

func (r Receipt) key() []byte {
	key := make([]byte, 0, len(receiptPrefix)+8+len(r.Hash))
	key = append(key, receiptPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(r.Expires.Unix()))

	return append(key, r.Hash[:]...)
}

// checkReceipt fails if r was already recorded. Callers hold the write lock.
func (l *Ledger) checkReceipt(r Receipt) error {
	seen, err := l.db.Has(r.key())
	if err != nil {
		return fmt.Errorf("read receipt %x:\n%w", r.Hash, err)
	}
	if seen {
		return errorsmod.Wrapf(qverrors.ErrDuplicateInstruction, "instruction %x", r.Hash)
	}

	return nil
}

// PruneReceipts drops receipts that expired before now and returns how many
// were removed. Expired instructions are rejected before reaching the ledger,
// so their receipts are no longer needed.
func (l *Ledger) PruneReceipts(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := uint64(now.Unix())

	var ops []storage.Op
	err := l.db.IteratePrefix(receiptPrefix, func(key, _ []byte) error {
		if len(key) < len(receiptPrefix)+8 {
			return nil
		}
		if binary.BigEndian.Uint64(key[len(receiptPrefix):]) >= cutoff {
			return errStopScan
		}

		ops = append(ops, storage.Op{Key: append([]byte(nil), key...)})

		return nil
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return 0, fmt.Errorf("scan receipts:\n%w", err)
	}

	if len(ops) == 0 {
		return 0, nil
	}

	if err := l.db.Apply(ops); err != nil {
		return 0, fmt.Errorf("delete %d receipts:\n%w", len(ops), err)
	}

	return len(ops), nil
}
