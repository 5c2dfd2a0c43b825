package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	errorsmod "cosmossdk.io/errors"

	qverrors "QueryVerify/internal/errors"
	"QueryVerify/internal/storage"
)

// ErrReadOnly is returned when a view transaction tries to write.
var ErrReadOnly = errors.New("ledger transaction is read-only")

// Ledger stores accounts and runs serialized, all-or-nothing transactions.
type Ledger struct {
	db *storage.Storage
	mu sync.RWMutex
}

// New creates a ledger over db.
func New(db *storage.Storage) *Ledger {
	return &Ledger{db: db}
}

// Update runs fn in a write transaction. Writes staged by fn are committed as
// one batch when fn returns nil and discarded otherwise. Updates are serialized.
// If ctx carries a receipt (see WithReceipt), fn runs only when the receipt
// is new, and the receipt is committed with fn's writes.
func (l *Ledger) Update(ctx context.Context, fn func(tx *Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx := newTxn(l.db, true)

	receipt, once := receiptFrom(ctx)
	if once {
		if err := l.checkReceipt(receipt); err != nil {
			return err
		}
	}

	if err := fn(tx); err != nil {
		return err
	}

	if once {
		tx.extra = append(tx.extra, storage.Op{Key: receipt.key(), Value: []byte{1}})
	}

	return tx.commit()
}

// View runs fn in a read-only transaction.
func (l *Ledger) View(ctx context.Context, fn func(tx *Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	return fn(newTxn(l.db, false))
}

// Account returns the account at addr, or nil if it does not exist.
func (l *Ledger) Account(ctx context.Context, addr Pubkey) (*Account, error) {
	var acc *Account

	err := l.View(ctx, func(tx *Txn) error {
		var err error
		acc, err = tx.Get(addr)
		return err
	})

	return acc, err
}

// Balance returns the lamports held at addr, zero if the account is absent.
func (l *Ledger) Balance(ctx context.Context, addr Pubkey) (uint64, error) {
	acc, err := l.Account(ctx, addr)
	if err != nil || acc == nil {
		return 0, err
	}

	return acc.Lamports, nil
}

// Airdrop credits lamports to addr, creating a wallet account if needed.
func (l *Ledger) Airdrop(ctx context.Context, addr Pubkey, lamports uint64) error {
	return l.Update(ctx, func(tx *Txn) error {
		return tx.Credit(addr, lamports)
	})
}

// Txn is a staged view of the ledger.
// Reads see the transaction's own writes first.
type Txn struct {
	db       *storage.Storage
	writable bool
	staged   map[Pubkey]*Account // staged is nil-valued for deletions
	order    []Pubkey            // order keeps commit order deterministic
	extra    []storage.Op        // extra are non-account writes committed with the accounts
}

func newTxn(db *storage.Storage, writable bool) *Txn {
	return &Txn{db: db, writable: writable, staged: make(map[Pubkey]*Account)}
}

// Get returns a copy of the account at addr, or nil if it does not exist.
func (t *Txn) Get(addr Pubkey) (*Account, error) {
	if acc, ok := t.staged[addr]; ok {
		if acc == nil {
			return nil, nil
		}
		return acc.Clone(), nil
	}

	raw, err := t.db.Get(accountKey(addr))
	if err != nil {
		return nil, fmt.Errorf("read account %s:\n%w", addr, err)
	}
	if raw == nil {
		return nil, nil
	}

	return decodeAccount(addr, raw)
}

// Put stages acc for writing.
func (t *Txn) Put(acc *Account) error {
	if !t.writable {
		return ErrReadOnly
	}

	t.stage(acc.Address, acc.Clone())

	return nil
}

// Delete stages removal of the account at addr.
func (t *Txn) Delete(addr Pubkey) error {
	if !t.writable {
		return ErrReadOnly
	}

	t.stage(addr, nil)

	return nil
}

// Credit adds lamports to addr, creating a system-owned account if missing.
func (t *Txn) Credit(addr Pubkey, lamports uint64) error {
	acc, err := t.Get(addr)
	if err != nil {
		return err
	}
	if acc == nil {
		acc = &Account{Address: addr, Owner: SystemProgramID}
	}

	if acc.Lamports > math.MaxUint64-lamports {
		return fmt.Errorf("credit %d to %s overflows balance %d", lamports, addr, acc.Lamports)
	}
	acc.Lamports += lamports

	return t.Put(acc)
}

// Debit removes lamports from addr.
func (t *Txn) Debit(addr Pubkey, lamports uint64) error {
	acc, err := t.Get(addr)
	if err != nil {
		return err
	}

	var have uint64
	if acc != nil {
		have = acc.Lamports
	}
	if have < lamports {
		return errorsmod.Wrapf(qverrors.ErrInsufficientFunds, "%s holds %d, needs %d", addr, have, lamports)
	}
	if acc == nil {
		return nil
	}

	acc.Lamports -= lamports

	return t.Put(acc)
}

// Transfer moves lamports from one account to another.
func (t *Txn) Transfer(from, to Pubkey, lamports uint64) error {
	if err := t.Debit(from, lamports); err != nil {
		return err
	}

	return t.Credit(to, lamports)
}

// Close deletes the account at addr and credits its lamports to recipient.
func (t *Txn) Close(addr, recipient Pubkey) (uint64, error) {
	acc, err := t.Get(addr)
	if err != nil {
		return 0, err
	}
	if acc == nil {
		return 0, errorsmod.Wrapf(qverrors.ErrAccountNotFound, "close %s", addr)
	}

	if err := t.Delete(addr); err != nil {
		return 0, err
	}

	if err := t.Credit(recipient, acc.Lamports); err != nil {
		return 0, err
	}

	return acc.Lamports, nil
}

func (t *Txn) stage(addr Pubkey, acc *Account) {
	if _, ok := t.staged[addr]; !ok {
		t.order = append(t.order, addr)
	}

	t.staged[addr] = acc
}

// commit writes every staged change in one batch.
func (t *Txn) commit() error {
	if len(t.order) == 0 && len(t.extra) == 0 {
		return nil
	}

	ops := make([]storage.Op, 0, len(t.order)+len(t.extra))
	for _, addr := range t.order {
		op := storage.Op{Key: accountKey(addr)}
		if acc := t.staged[addr]; acc != nil {
			op.Value = encodeAccount(acc)
		}
		ops = append(ops, op)
	}
	ops = append(ops, t.extra...)

	if err := t.db.Apply(ops); err != nil {
		return fmt.Errorf("commit %d account writes:\n%w", len(ops), err)
	}

	return nil
}
