package program

import (
	"context"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"

	qverrors "QueryVerify/internal/errors"
	"QueryVerify/internal/guardian"
	"QueryVerify/internal/ledger"
	"QueryVerify/internal/logger"
	"QueryVerify/internal/query"
	"QueryVerify/internal/quorum"
)

// VerifyQueryArgs are the arguments of VerifyQuery.
type VerifyQueryArgs struct {
	Buffer           ledger.Pubkey // Buffer holds the guardian signatures
	GuardianSetIndex uint32        // GuardianSetIndex selects the set to verify against
	GuardianSet      ledger.Pubkey // GuardianSet is the set account; zero derives it
	RefundRecipient  ledger.Pubkey // RefundRecipient must match the buffer; zero uses the stored one
	Payload          []byte        // Payload is the serialized query response
}

// VerifyResult describes a successful verification.
type VerifyResult struct {
	Response         *query.QueryResponse // Response is the parsed payload
	Digest           common.Hash          // Digest is the signed hash
	GuardianSetIndex uint32               // GuardianSetIndex is the set that attested
	ValidSignatures  int                  // ValidSignatures is the count of matching signatures
	Refunded         uint64               // Refunded is the rent returned to RefundRecipient
	RefundRecipient  ledger.Pubkey        // RefundRecipient received the refund
}

// VerifyQuery checks that the buffer holds a quorum of guardian signatures
// over payload and closes the buffer on success.
//
// Account checks run first, then the guardian set expiry, then the payload
// parse, and only then signature recovery. Any failure leaves the buffer as
// it was.
func (p *Program) VerifyQuery(ctx context.Context, args VerifyQueryArgs) (*VerifyResult, error) {
	start := time.Now()
	res := &VerifyResult{GuardianSetIndex: args.GuardianSetIndex}

	err := p.ledger.Update(ctx, func(tx *ledger.Txn) error {
		buf, _, err := p.loadBuffer(tx, args.Buffer)
		if err != nil {
			return err
		}

		res.RefundRecipient = buf.RefundRecipient
		if !args.RefundRecipient.IsZero() && args.RefundRecipient != buf.RefundRecipient {
			return errorsmod.Wrapf(qverrors.ErrRefundRecipientMismatch, "buffer %s refunds %s, not %s",
				args.Buffer, buf.RefundRecipient, args.RefundRecipient)
		}

		setAddr := args.GuardianSet
		if setAddr.IsZero() {
			if setAddr, err = guardian.DeriveAddress(p.governance, args.GuardianSetIndex); err != nil {
				return err
			}
		}

		set, err := guardian.Resolve(tx, p.governance, setAddr, args.GuardianSetIndex)
		if err != nil {
			return err
		}
		if err := guardian.CheckActive(set, p.now()); err != nil {
			return err
		}

		if res.Response, err = query.ParseResponse(args.Payload); err != nil {
			return err
		}
		if res.Digest, err = query.Digest(args.Payload); err != nil {
			return err
		}

		if res.ValidSignatures, err = quorum.Verify(set.Keys, buf.Records, res.Digest, p.recoverer); err != nil {
			return err
		}

		res.Refunded, err = tx.Close(args.Buffer, buf.RefundRecipient)
		return err
	})
	observe("verify_query", err)
	verifyDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		p.log.Debug("query verification failed",
			"buffer", args.Buffer,
			"guardian_set", args.GuardianSetIndex,
			"code", qverrors.Code(err),
			"error", err,
		)
		return nil, err
	}

	validSignatures.Observe(float64(res.ValidSignatures))

	p.log.Info("query verified",
		"buffer", args.Buffer,
		"guardian_set", args.GuardianSetIndex,
		"valid", res.ValidSignatures,
		"nonce", res.Response.Request.Nonce,
		"responses", len(res.Response.Responses),
		"digest", res.Digest,
		logger.Timed(start),
	)

	return res, nil
}
