package guardian

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	errorsmod "cosmossdk.io/errors"

	qverrors "QueryVerify/internal/errors"
	"QueryVerify/internal/ledger"
	"QueryVerify/internal/logger"
)

// Governance publishes and expires guardian sets on behalf of the governance
// program. It is the only writer of guardian set accounts.
type Governance struct {
	id     ledger.Pubkey
	ledger *ledger.Ledger
	log    *slog.Logger
}

// NewGovernance creates a governance writer for program id.
func NewGovernance(id ledger.Pubkey, l *ledger.Ledger) *Governance {
	return &Governance{id: id, ledger: l, log: logger.Component("governance")}
}

// ID returns the governance program id.
func (g *Governance) ID() ledger.Pubkey {
	return g.id
}

// Publish stores set at its derived address. Sets are immutable once
// published; publishing an index twice fails with ErrAccountInUse.
func (g *Governance) Publish(ctx context.Context, set *Set) (ledger.Pubkey, error) {
	addr, err := DeriveAddress(g.id, set.Index)
	if err != nil {
		return ledger.Pubkey{}, err
	}

	data, err := set.MarshalBinary()
	if err != nil {
		return ledger.Pubkey{}, errorsmod.Wrap(qverrors.ErrInvalidInstruction, err.Error())
	}

	err = g.ledger.Update(ctx, func(tx *ledger.Txn) error {
		existing, err := tx.Get(addr)
		if err != nil {
			return err
		}
		if existing != nil {
			return errorsmod.Wrapf(qverrors.ErrAccountInUse, "guardian set %d already published at %s", set.Index, addr)
		}

		return tx.Put(&ledger.Account{
			Address:  addr,
			Owner:    g.id,
			Lamports: ledger.RentExemptMinimum(len(data)),
			Data:     data,
		})
	})
	if err != nil {
		return ledger.Pubkey{}, err
	}

	g.log.Info("guardian set published",
		"index", set.Index,
		"keys", len(set.Keys),
		"address", addr,
	)

	return addr, nil
}

// Expire sets the expiration time of a published set. A zero time clears it.
func (g *Governance) Expire(ctx context.Context, index uint32, at time.Time) error {
	addr, err := DeriveAddress(g.id, index)
	if err != nil {
		return err
	}

	var expiration uint32
	if !at.IsZero() {
		expiration = uint32(at.Unix())
	}

	err = g.ledger.Update(ctx, func(tx *ledger.Txn) error {
		set, err := Resolve(tx, g.id, addr, index)
		if err != nil {
			return err
		}

		set.ExpirationTime = expiration

		data, err := set.MarshalBinary()
		if err != nil {
			return err
		}

		acc, err := tx.Get(addr)
		if err != nil {
			return err
		}
		acc.Data = data

		return tx.Put(acc)
	})
	if err != nil {
		return fmt.Errorf("expire guardian set %d:\n%w", index, err)
	}

	g.log.Info("guardian set expiration updated", "index", index, "expiration", expiration)

	return nil
}

// Get returns the published set with the given index.
func (g *Governance) Get(ctx context.Context, index uint32) (*Set, ledger.Pubkey, error) {
	addr, err := DeriveAddress(g.id, index)
	if err != nil {
		return nil, ledger.Pubkey{}, err
	}

	var set *Set
	err = g.ledger.View(ctx, func(tx *ledger.Txn) error {
		set, err = Resolve(tx, g.id, addr, index)
		return err
	})
	if err != nil {
		return nil, ledger.Pubkey{}, err
	}

	return set, addr, nil
}
