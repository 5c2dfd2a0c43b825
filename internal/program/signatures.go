package program

import (
	"context"
	"time"

	errorsmod "cosmossdk.io/errors"

	qverrors "QueryVerify/internal/errors"
	"QueryVerify/internal/ledger"
	"QueryVerify/internal/logger"
	"QueryVerify/internal/sigbuf"
)

// PostSignaturesArgs are the arguments of PostSignatures.
type PostSignaturesArgs struct {
	Payer           ledger.Pubkey   // Payer funds creation and must be the write authority
	Buffer          ledger.Pubkey   // Buffer is the buffer address, a fresh key on creation
	Records         []sigbuf.Record // Records are appended verbatim
	TotalSignatures uint32          // TotalSignatures sizes a new buffer; ignored afterwards
}

// PostSignatures creates a signature buffer or appends to an existing one.
//
// On creation the buffer key and the payer must both sign, the payer becomes
// write authority and refund recipient, and the rent-exempt minimum for
// TotalSignatures records moves from the payer to the buffer. Later calls
// append on behalf of the write authority only. Records are not validated.
func (p *Program) PostSignatures(ctx context.Context, args PostSignaturesArgs, signers Signers) (*sigbuf.Buffer, error) {
	start := time.Now()

	var (
		buf     *sigbuf.Buffer
		created bool
	)

	err := p.ledger.Update(ctx, func(tx *ledger.Txn) error {
		if err := requireSigner(signers, args.Payer, "payer"); err != nil {
			return err
		}

		acc, err := tx.Get(args.Buffer)
		if err != nil {
			return err
		}

		if acc == nil {
			buf, err = p.createBuffer(tx, args, signers)
			created = true
			return err
		}

		buf, err = p.appendBuffer(tx, acc, args)
		return err
	})
	observe("post_signatures", err)
	if err != nil {
		p.log.Debug("post signatures rejected", "buffer", args.Buffer, "payer", args.Payer, "error", err)
		return nil, err
	}

	p.log.Debug("signatures posted",
		"buffer", args.Buffer,
		"created", created,
		"appended", len(args.Records),
		"count", len(buf.Records),
		"capacity", buf.TotalSignatures,
		logger.Timed(start),
	)

	return buf, nil
}

func (p *Program) createBuffer(tx *ledger.Txn, args PostSignaturesArgs, signers Signers) (*sigbuf.Buffer, error) {
	if err := requireSigner(signers, args.Buffer, "new signature buffer"); err != nil {
		return nil, err
	}

	buf, err := sigbuf.New(args.Payer, args.TotalSignatures)
	if err != nil {
		return nil, err
	}
	if err := buf.Append(args.Records); err != nil {
		return nil, err
	}

	data := buf.Marshal()
	rent := ledger.RentExemptMinimum(len(data))

	if err := tx.Debit(args.Payer, rent); err != nil {
		return nil, err
	}

	err = tx.Put(&ledger.Account{
		Address:  args.Buffer,
		Owner:    p.id,
		Lamports: rent,
		Data:     data,
	})

	return buf, err
}

func (p *Program) appendBuffer(tx *ledger.Txn, acc *ledger.Account, args PostSignaturesArgs) (*sigbuf.Buffer, error) {
	if acc.Owner != p.id {
		return nil, errorsmod.Wrapf(qverrors.ErrAccountInUse, "%s is owned by %s", args.Buffer, acc.Owner)
	}

	buf, err := sigbuf.Unmarshal(acc.Data)
	if err != nil {
		return nil, err
	}

	if buf.WriteAuthority != args.Payer {
		return nil, errorsmod.Wrapf(qverrors.ErrWriteAuthorityMismatch, "buffer %s is written by %s, not %s",
			args.Buffer, buf.WriteAuthority, args.Payer)
	}

	if err := buf.Append(args.Records); err != nil {
		return nil, err
	}

	acc.Data = buf.Marshal()

	return buf, tx.Put(acc)
}

// CloseSignaturesArgs are the arguments of CloseSignatures.
type CloseSignaturesArgs struct {
	Buffer          ledger.Pubkey // Buffer is the buffer to destroy
	RefundRecipient ledger.Pubkey // RefundRecipient must match the buffer and sign
}

// CloseSignatures destroys an unverified buffer and refunds its lamports.
// Returns the refunded amount.
func (p *Program) CloseSignatures(ctx context.Context, args CloseSignaturesArgs, signers Signers) (uint64, error) {
	var refunded uint64

	err := p.ledger.Update(ctx, func(tx *ledger.Txn) error {
		buf, _, err := p.loadBuffer(tx, args.Buffer)
		if err != nil {
			return err
		}

		if args.RefundRecipient != buf.RefundRecipient {
			return errorsmod.Wrapf(qverrors.ErrRefundRecipientMismatch, "buffer %s refunds %s, not %s",
				args.Buffer, buf.RefundRecipient, args.RefundRecipient)
		}
		if err := requireSigner(signers, args.RefundRecipient, "refund recipient"); err != nil {
			return err
		}

		refunded, err = tx.Close(args.Buffer, buf.RefundRecipient)
		return err
	})
	observe("close_signatures", err)
	if err != nil {
		return 0, err
	}

	p.log.Debug("signature buffer closed", "buffer", args.Buffer, "refunded", refunded, "recipient", args.RefundRecipient)

	return refunded, nil
}
