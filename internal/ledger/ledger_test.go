package ledger

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	qverrors "QueryVerify/internal/errors"
	"QueryVerify/internal/storage"
)

// newTestLedger creates a ledger over a temporary store.
func newTestLedger(t *testing.T) *Ledger {
	t.Helper()

	db, err := storage.New(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return New(db)
}

func key(b byte) Pubkey {
	var pk Pubkey
	pk[0] = b
	pk[31] = b

	return pk
}

func TestAccountEncodingRoundTrip(t *testing.T) {
	acc := &Account{Address: key(1), Owner: key(2), Lamports: 42, Data: []byte{1, 2, 3}}

	got, err := decodeAccount(acc.Address, encodeAccount(acc))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if got.Owner != acc.Owner || got.Lamports != acc.Lamports || !bytes.Equal(got.Data, acc.Data) {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, acc)
	}
}

func TestDecodeAccountRejectsTruncated(t *testing.T) {
	raw := encodeAccount(&Account{Data: []byte{1, 2, 3}})

	if _, err := decodeAccount(key(1), raw[:len(raw)-1]); err == nil {
		t.Error("expected error for truncated data")
	}
	if _, err := decodeAccount(key(1), raw[:10]); err == nil {
		t.Error("expected error for short record")
	}
}

func TestUpdateCommitsAllOrNothing(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if err := l.Airdrop(ctx, key(1), 1000); err != nil {
		t.Fatalf("Airdrop failed: %v", err)
	}

	boom := errors.New("boom")
	err := l.Update(ctx, func(tx *Txn) error {
		if err := tx.Transfer(key(1), key(2), 400); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update returned %v, want boom", err)
	}

	if bal, _ := l.Balance(ctx, key(1)); bal != 1000 {
		t.Errorf("sender balance = %d after rollback, want 1000", bal)
	}
	if acc, _ := l.Account(ctx, key(2)); acc != nil {
		t.Errorf("recipient should not exist after rollback")
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	l.Airdrop(ctx, key(1), 10)

	err := l.Update(ctx, func(tx *Txn) error {
		return tx.Transfer(key(1), key(2), 11)
	})
	if !errors.Is(err, qverrors.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestTxnReadsOwnWrites(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	err := l.Update(ctx, func(tx *Txn) error {
		if err := tx.Put(&Account{Address: key(3), Owner: key(9), Data: []byte("x")}); err != nil {
			return err
		}

		acc, err := tx.Get(key(3))
		if err != nil {
			return err
		}
		if acc == nil || acc.Owner != key(9) {
			t.Errorf("staged account not visible: %+v", acc)
		}

		if err := tx.Delete(key(3)); err != nil {
			return err
		}

		acc, err = tx.Get(key(3))
		if acc != nil {
			t.Errorf("deleted account still visible")
		}

		return err
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if acc, _ := l.Account(ctx, key(3)); acc != nil {
		t.Errorf("account committed despite delete")
	}
}

func TestCloseRefundsLamports(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	err := l.Update(ctx, func(tx *Txn) error {
		return tx.Put(&Account{Address: key(4), Owner: key(9), Lamports: 500, Data: make([]byte, 10)})
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	var refunded uint64
	err = l.Update(ctx, func(tx *Txn) error {
		var err error
		refunded, err = tx.Close(key(4), key(5))
		return err
	})
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if refunded != 500 {
		t.Errorf("refunded %d, want 500", refunded)
	}
	if bal, _ := l.Balance(ctx, key(5)); bal != 500 {
		t.Errorf("recipient balance %d, want 500", bal)
	}

	err = l.Update(ctx, func(tx *Txn) error {
		_, err := tx.Close(key(4), key(5))
		return err
	})
	if !errors.Is(err, qverrors.ErrAccountNotFound) {
		t.Errorf("second close: expected ErrAccountNotFound, got %v", err)
	}
}

func TestViewIsReadOnly(t *testing.T) {
	l := newTestLedger(t)

	err := l.View(context.Background(), func(tx *Txn) error {
		return tx.Put(&Account{Address: key(1)})
	})
	if !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
}

func TestUpdateHonorsCancelledContext(t *testing.T) {
	l := newTestLedger(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := l.Update(ctx, func(*Txn) error {
		ran = true
		return nil
	})
	if !errors.Is(err, context.Canceled) || ran {
		t.Errorf("Update ran=%v err=%v, want not run and context.Canceled", ran, err)
	}
}

func TestRentExemptMinimum(t *testing.T) {
	if got := RentExemptMinimum(0); got != 128*3480*2 {
		t.Errorf("RentExemptMinimum(0) = %d", got)
	}
	if RentExemptMinimum(100) <= RentExemptMinimum(99) {
		t.Errorf("rent must grow with size")
	}
}
