package ledger

import (
	"context"
	"fmt"

	"QueryVerify/internal/storage"
)

// Export returns every account in address order.
func (l *Ledger) Export(ctx context.Context) ([]*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var accounts []*Account

	err := l.db.IteratePrefix(accountKeyPrefix, func(key, value []byte) error {
		if len(key) != len(accountKeyPrefix)+PubkeySize {
			return fmt.Errorf("malformed account key %x", key)
		}

		var addr Pubkey
		copy(addr[:], key[len(accountKeyPrefix):])

		acc, err := decodeAccount(addr, value)
		if err != nil {
			return err
		}

		accounts = append(accounts, acc)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("export accounts:\n%w", err)
	}

	return accounts, nil
}

// Restore replaces the whole account set with accounts in one batch.
func (l *Ledger) Restore(ctx context.Context, accounts []*Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	keep := make(map[Pubkey]struct{}, len(accounts))
	ops := make([]storage.Op, 0, len(accounts))

	for _, acc := range accounts {
		keep[acc.Address] = struct{}{}
		ops = append(ops, storage.Op{Key: accountKey(acc.Address), Value: encodeAccount(acc)})
	}

	err := l.db.IteratePrefix(accountKeyPrefix, func(key, _ []byte) error {
		var addr Pubkey
		copy(addr[:], key[len(accountKeyPrefix):])

		if _, ok := keep[addr]; !ok {
			ops = append(ops, storage.Op{Key: append([]byte(nil), key...)})
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("scan existing accounts:\n%w", err)
	}

	if err := l.db.Apply(ops); err != nil {
		return fmt.Errorf("restore %d accounts:\n%w", len(accounts), err)
	}

	return nil
}
