package guardian

import (
	"encoding/binary"
	"fmt"
	"time"

	errorsmod "cosmossdk.io/errors"

	qverrors "QueryVerify/internal/errors"
	"QueryVerify/internal/ledger"
)

// SeedPrefix is the first derivation seed of guardian set accounts.
const SeedPrefix = "GuardianSet"

// Seeds returns the derivation seeds of the set with the given index.
func Seeds(index uint32) [][]byte {
	idx := make([]byte, 4)
	binary.BigEndian.PutUint32(idx, index)

	return [][]byte{[]byte(SeedPrefix), idx}
}

// DeriveAddress returns the canonical account address of set index under the
// governance program.
func DeriveAddress(governance ledger.Pubkey, index uint32) (ledger.Pubkey, error) {
	addr, _, err := ledger.FindProgramAddress(Seeds(index), governance)
	if err != nil {
		return ledger.Pubkey{}, fmt.Errorf("derive guardian set %d address:\n%w", index, err)
	}

	return addr, nil
}

// Resolve loads the guardian set stored at addr and checks that it is the
// genuine set index: the account must exist, be owned by governance and sit
// at the canonical derived address.
func Resolve(tx *ledger.Txn, governance, addr ledger.Pubkey, index uint32) (*Set, error) {
	acc, err := tx.Get(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil || len(acc.Data) == 0 {
		return nil, errorsmod.Wrapf(qverrors.ErrAccountNotFound, "guardian set account %s", addr)
	}

	if acc.Owner != governance {
		return nil, errorsmod.Wrapf(qverrors.ErrWrongIssuer, "guardian set %s owned by %s, want %s", addr, acc.Owner, governance)
	}

	want, err := DeriveAddress(governance, index)
	if err != nil {
		return nil, err
	}
	if addr != want {
		return nil, errorsmod.Wrapf(qverrors.ErrAddressMismatch, "guardian set %d lives at %s, got %s", index, want, addr)
	}

	var set Set
	if err := set.UnmarshalBinary(acc.Data); err != nil {
		return nil, errorsmod.Wrap(qverrors.ErrAccountDiscriminatorMismatch, err.Error())
	}
	if set.Index != index {
		return nil, errorsmod.Wrapf(qverrors.ErrAddressMismatch, "account holds set %d, want %d", set.Index, index)
	}

	return &set, nil
}

// CheckActive fails with ErrGuardianSetExpired unless set may verify at now.
func CheckActive(set *Set, now time.Time) error {
	if !set.IsActive(now) {
		return errorsmod.Wrapf(qverrors.ErrGuardianSetExpired, "guardian set %d expired at %d, now %d",
			set.Index, set.ExpirationTime, now.Unix())
	}

	return nil
}
