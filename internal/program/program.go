// Package program implements the query verification program: signature
// buffers accumulated over several submissions, verified against a guardian
// set and closed with a rent refund.
package program

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"slices"
	"time"

	errorsmod "cosmossdk.io/errors"

	qverrors "QueryVerify/internal/errors"
	"QueryVerify/internal/ledger"
	"QueryVerify/internal/logger"
	"QueryVerify/internal/recovery"
	"QueryVerify/internal/sigbuf"
)

// Well-known program ids.
var (
	// DefaultProgramID is the address the program is deployed at.
	DefaultProgramID = ledger.MustPubkey("HkDXBFRS9Tv9295d9wEVRL61c1pUXj3WZHiaTNZ9Q7TQ")

	// MainnetCoreBridge owns mainnet guardian sets.
	MainnetCoreBridge = ledger.MustPubkey("worm2ZoG2kUd4vFXhvjh93UUH596ayRfgQ2MgjNMTth")

	// DevnetCoreBridge owns devnet guardian sets.
	DevnetCoreBridge = ledger.MustPubkey("Bridge1p5gheXUvJ6jGWGeCsgPKgnE3YgdGKRVCMY9o")
)

// configSeed derives the program config account.
const configSeed = "config"

// Config configures a Program.
type Config struct {
	ProgramID  ledger.Pubkey      // ProgramID owns signature buffers
	Governance ledger.Pubkey      // Governance owns guardian sets
	Recoverer  recovery.Recoverer // Recoverer defaults to secp256k1
	Now        func() time.Time   // Now defaults to time.Now
}

// Program executes the instructions against a ledger.
type Program struct {
	id         ledger.Pubkey
	governance ledger.Pubkey
	ledger     *ledger.Ledger
	recoverer  recovery.Recoverer
	now        func() time.Time
	log        *slog.Logger
}

// New creates a program over l.
func New(l *ledger.Ledger, cfg Config) *Program {
	p := &Program{
		id:         cfg.ProgramID,
		governance: cfg.Governance,
		ledger:     l,
		recoverer:  cfg.Recoverer,
		now:        cfg.Now,
		log:        logger.Component("program"),
	}

	if p.id.IsZero() {
		p.id = DefaultProgramID
	}
	if p.governance.IsZero() {
		p.governance = MainnetCoreBridge
	}
	if p.recoverer == nil {
		p.recoverer = recovery.Secp256k1{}
	}
	if p.now == nil {
		p.now = time.Now
	}

	return p
}

// ID returns the program id.
func (p *Program) ID() ledger.Pubkey {
	return p.id
}

// Governance returns the id of the program that owns guardian sets.
func (p *Program) Governance() ledger.Pubkey {
	return p.governance
}

// Signers are the identities that authorized an instruction.
type Signers []ledger.Pubkey

// Has reports whether pk signed.
func (s Signers) Has(pk ledger.Pubkey) bool {
	return slices.Contains(s, pk)
}

func requireSigner(signers Signers, pk ledger.Pubkey, role string) error {
	if !signers.Has(pk) {
		return errorsmod.Wrapf(qverrors.ErrMissingSignature, "%s %s did not sign", role, pk)
	}

	return nil
}

// ConfigAddress returns the address of the program config account.
func (p *Program) ConfigAddress() (ledger.Pubkey, error) {
	addr, _, err := ledger.FindProgramAddress([][]byte{[]byte(configSeed)}, p.id)
	return addr, err
}

// Initialize records the program configuration. It is idempotent and has no
// effect on verification.
func (p *Program) Initialize(ctx context.Context, payer ledger.Pubkey, signers Signers) (ledger.Pubkey, error) {
	addr, err := p.ConfigAddress()
	if err != nil {
		return ledger.Pubkey{}, fmt.Errorf("derive config address:\n%w", err)
	}

	created := false

	err = p.ledger.Update(ctx, func(tx *ledger.Txn) error {
		if err := requireSigner(signers, payer, "payer"); err != nil {
			return err
		}

		existing, err := tx.Get(addr)
		if err != nil || existing != nil {
			return err
		}

		data := make([]byte, ledger.PubkeySize+8)
		copy(data, p.governance[:])
		binary.LittleEndian.PutUint64(data[ledger.PubkeySize:], uint64(p.now().Unix()))

		rent := ledger.RentExemptMinimum(len(data))
		if err := tx.Debit(payer, rent); err != nil {
			return err
		}

		created = true

		return tx.Put(&ledger.Account{Address: addr, Owner: p.id, Lamports: rent, Data: data})
	})
	observe("initialize", err)
	if err != nil {
		return ledger.Pubkey{}, err
	}

	if created {
		p.log.Info("program initialized", "program", p.id, "governance", p.governance, "config", addr)
	}

	return addr, nil
}

// FetchSignatures returns the signature buffer at addr.
// A closed or never-created buffer fails with ErrAccountNotFound.
func (p *Program) FetchSignatures(ctx context.Context, addr ledger.Pubkey) (*sigbuf.Buffer, error) {
	var buf *sigbuf.Buffer

	err := p.ledger.View(ctx, func(tx *ledger.Txn) error {
		var err error
		buf, _, err = p.loadBuffer(tx, addr)
		return err
	})

	return buf, err
}

// loadBuffer reads and decodes a signature buffer owned by the program.
func (p *Program) loadBuffer(tx *ledger.Txn, addr ledger.Pubkey) (*sigbuf.Buffer, *ledger.Account, error) {
	acc, err := tx.Get(addr)
	if err != nil {
		return nil, nil, err
	}
	if acc == nil || len(acc.Data) == 0 {
		return nil, nil, errorsmod.Wrapf(qverrors.ErrAccountNotFound, "signature buffer %s", addr)
	}
	if acc.Owner != p.id {
		return nil, nil, errorsmod.Wrapf(qverrors.ErrWrongIssuer, "signature buffer %s owned by %s", addr, acc.Owner)
	}

	buf, err := sigbuf.Unmarshal(acc.Data)
	if err != nil {
		return nil, nil, errorsmod.Wrapf(err, "signature buffer %s", addr)
	}

	return buf, acc, nil
}
