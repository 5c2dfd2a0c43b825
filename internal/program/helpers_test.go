package program

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"QueryVerify/internal/guardian"
	"QueryVerify/internal/ledger"
	"QueryVerify/internal/query"
	"QueryVerify/internal/recovery"
	"QueryVerify/internal/sigbuf"
	"QueryVerify/internal/storage"
)

const wethNameResponseHex = "01000051ced87ef0a0bb371964f793bb665a01435d57c9dc79b9fb6f31323f99f557ee0fa583718753cb3b35fe7c2e9bab2afde3f8cfdbeee0432804cb3c9146027a9401000000370100000001010002010000002a0000000930783132346330643601c02aaa39b223fe8d0a0e5c4f27ead9083c756cc20000000406fdde030100020100000095000000000124c0d60f319af73bad19735c2f795e3bf22c0cb3d6be77b5fbd3bc1cf197efdbfb506c000610e4cf31cfc001000000600000000000000000000000000000000000000000000000000000000000000020000000000000000000000000000000000000000000000000000000000000000d5772617070656420457468657200000000000000000000000000000000000000"

const (
	activeSetIndex  = 0
	expiredSetIndex = 1
	guardianCount   = 13
	startingBalance = 1_000_000_000
)

// testClock is the fixed time seen by the program under test.
var testClock = time.Unix(1_700_000_000, 0)

// testEnv bundles a program with a published guardian set.
type testEnv struct {
	t         *testing.T
	ctx       context.Context
	ledger    *ledger.Ledger
	gov       *guardian.Governance
	program   *Program
	recoverer *countingRecoverer
	guardians []*ecdsa.PrivateKey
	payload   []byte
	payer     ledger.Pubkey
}

// countingRecoverer counts recoveries reaching the secp256k1 backend.
type countingRecoverer struct {
	calls atomic.Int64
}

func (c *countingRecoverer) Recover(d common.Hash, s [crypto.SignatureLength]byte) (common.Address, error) {
	c.calls.Add(1)
	return recovery.Secp256k1{}.Recover(d, s)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := storage.New(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	l := ledger.New(db)
	ctx := context.Background()

	env := &testEnv{
		t:         t,
		ctx:       ctx,
		ledger:    l,
		gov:       guardian.NewGovernance(MainnetCoreBridge, l),
		recoverer: &countingRecoverer{},
		payer:     randomPubkey(t),
	}

	env.program = New(l, Config{
		Governance: MainnetCoreBridge,
		Recoverer:  env.recoverer,
		Now:        func() time.Time { return testClock },
	})

	keys := make([]common.Address, guardianCount)
	for i := range keys {
		k, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("GenerateKey failed: %v", err)
		}
		env.guardians = append(env.guardians, k)
		keys[i] = crypto.PubkeyToAddress(k.PublicKey)
	}

	if _, err := env.gov.Publish(ctx, &guardian.Set{Index: activeSetIndex, Keys: keys}); err != nil {
		t.Fatalf("publish active set: %v", err)
	}

	expired := &guardian.Set{Index: expiredSetIndex, Keys: keys, ExpirationTime: uint32(testClock.Unix() - 1)}
	if _, err := env.gov.Publish(ctx, expired); err != nil {
		t.Fatalf("publish expired set: %v", err)
	}

	env.payload, _ = hex.DecodeString(wethNameResponseHex)

	if err := l.Airdrop(ctx, env.payer, startingBalance); err != nil {
		t.Fatalf("Airdrop failed: %v", err)
	}

	return env
}

func randomPubkey(t *testing.T) ledger.Pubkey {
	t.Helper()

	var pk ledger.Pubkey
	if _, err := rand.Read(pk[:]); err != nil {
		t.Fatalf("rand: %v", err)
	}

	return pk
}

// sign returns guardian records over payload for the given guardian indices, in order.
func (e *testEnv) sign(payload []byte, indices ...int) []sigbuf.Record {
	e.t.Helper()

	digest, err := query.Digest(payload)
	if err != nil {
		e.t.Fatalf("Digest failed: %v", err)
	}

	recs := make([]sigbuf.Record, 0, len(indices))
	for _, i := range indices {
		sig, err := crypto.Sign(digest[:], e.guardians[i])
		if err != nil {
			e.t.Fatalf("Sign failed: %v", err)
		}

		r := sigbuf.Record{GuardianIndex: uint8(i)}
		copy(r.Signature[:], sig)
		recs = append(recs, r)
	}

	return recs
}

func allGuardians() []int {
	idx := make([]int, guardianCount)
	for i := range idx {
		idx[i] = i
	}

	return idx
}

// post creates a buffer holding recs, paid by the env payer.
func (e *testEnv) post(recs []sigbuf.Record, total uint32) ledger.Pubkey {
	e.t.Helper()

	buf := randomPubkey(e.t)

	_, err := e.program.PostSignatures(e.ctx, PostSignaturesArgs{
		Payer:           e.payer,
		Buffer:          buf,
		Records:         recs,
		TotalSignatures: total,
	}, Signers{e.payer, buf})
	if err != nil {
		e.t.Fatalf("PostSignatures failed: %v", err)
	}

	return buf
}

func (e *testEnv) verify(buf ledger.Pubkey, payload []byte, index uint32) (*VerifyResult, error) {
	return e.program.VerifyQuery(e.ctx, VerifyQueryArgs{
		Buffer:           buf,
		GuardianSetIndex: index,
		Payload:          payload,
	})
}

func (e *testEnv) balance(pk ledger.Pubkey) uint64 {
	e.t.Helper()

	bal, err := e.ledger.Balance(e.ctx, pk)
	if err != nil {
		e.t.Fatalf("Balance failed: %v", err)
	}

	return bal
}
