// Package quorum checks that a list of guardian signatures reaches a
// supermajority of a guardian set.
package quorum

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"

	qverrors "QueryVerify/internal/errors"
	"QueryVerify/internal/recovery"
	"QueryVerify/internal/sigbuf"
)

// Threshold returns the number of valid signatures needed from a set of n keys:
// the smallest v with 3v >= 2n+1.
func Threshold(n int) int {
	return n*2/3 + 1
}

// Verify scans records once, in order, and returns the number of valid
// signatures. Guardian indices must be strictly ascending and in range, and
// each signature must recover to the key at its index. The first failing
// record aborts the scan.
func Verify(keys []common.Address, records []sigbuf.Record, digest common.Hash, rec recovery.Recoverer) (int, error) {
	last := -1
	valid := 0

	for pos, r := range records {
		idx := int(r.GuardianIndex)

		if idx >= len(keys) {
			return 0, errorsmod.Wrapf(qverrors.ErrIndexOutOfRange,
				"record %d: guardian index %d, set has %d keys", pos, idx, len(keys))
		}
		if idx <= last {
			return 0, errorsmod.Wrapf(qverrors.ErrIndexNonIncreasing,
				"record %d: guardian index %d after %d", pos, idx, last)
		}
		last = idx

		addr, err := rec.Recover(digest, r.Signature)
		if err != nil {
			return 0, errorsmod.Wrapf(err, "record %d (guardian %d)", pos, idx)
		}
		if addr != keys[idx] {
			return 0, errorsmod.Wrapf(qverrors.ErrKeyRecoveryMismatch,
				"record %d: recovered %s, guardian %d is %s", pos, addr, idx, keys[idx])
		}

		valid++
	}

	if need := Threshold(len(keys)); valid < need {
		return valid, errorsmod.Wrapf(qverrors.ErrNoQuorum, "%d valid signatures, need %d of %d", valid, need, len(keys))
	}

	return valid, nil
}
