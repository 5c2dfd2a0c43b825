package api

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/zeebo/blake3"

	qverrors "QueryVerify/internal/errors"
	"QueryVerify/internal/ledger"
	"QueryVerify/internal/program"
)

const (
	// signatureSize is the expected size of an Ed25519 signature.
	signatureSize = 64

	// maxEnvelopeSigners bounds the signatures carried by one instruction.
	maxEnvelopeSigners = 8

	// DefaultEnvelopeTTL is how long envelopes built by NewEnvelope stay valid.
	DefaultEnvelopeTTL = 2 * time.Minute

	// MaxEnvelopeTTL is the furthest in the future an envelope may expire.
	MaxEnvelopeTTL = 10 * time.Minute
)

// Instruction names carried in envelopes.
const (
	InstructionPostSignatures  = "post_signatures"
	InstructionVerifyQuery     = "verify_query"
	InstructionCloseSignatures = "close_signatures"
	InstructionInitialize      = "initialize"
)

// Envelope is a signed instruction. Each signature covers
// blake3(instruction || 0x00 || be64 nonce || be64 expires || args) with the
// signer's Ed25519 key. A signed envelope executes at most once.
type Envelope struct {
	Instruction string          `json:"instruction"`          // Instruction names the operation
	Nonce       uint64          `json:"nonce"`                // Nonce makes otherwise equal instructions distinct
	Expires     int64           `json:"expires"`              // Expires is the unix second after which the envelope is rejected
	Args        json.RawMessage `json:"args"`                 // Args are the JSON arguments, signed verbatim
	Signatures  []Signature     `json:"signatures,omitempty"` // Signatures authorize the instruction
}

// Signature is one Ed25519 signature over an envelope.
type Signature struct {
	Pubkey    ledger.Pubkey `json:"pubkey"`    // Pubkey is the signer
	Signature string        `json:"signature"` // Signature is hex-encoded
}

// NewEnvelope marshals args with a random nonce, valid for DefaultEnvelopeTTL,
// and signs them with every key.
func NewEnvelope(instruction string, args any, keys ...ed25519.PrivateKey) (*Envelope, error) {
	return NewEnvelopeExpiring(instruction, args, time.Now().Add(DefaultEnvelopeTTL), keys...)
}

// NewEnvelopeExpiring is NewEnvelope with an explicit expiry.
func NewEnvelopeExpiring(instruction string, args any, expires time.Time, keys ...ed25519.PrivateKey) (*Envelope, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal args:\n%w", err)
	}

	var nonce [8]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce:\n%w", err)
	}

	env := &Envelope{
		Instruction: instruction,
		Nonce:       binary.BigEndian.Uint64(nonce[:]),
		Expires:     expires.Unix(),
		Args:        raw,
	}
	hash := env.signingHash()

	for _, key := range keys {
		pk, err := ledger.PubkeyFromEd25519(key.Public().(ed25519.PublicKey))
		if err != nil {
			return nil, err
		}

		env.Signatures = append(env.Signatures, Signature{
			Pubkey:    pk,
			Signature: hex.EncodeToString(ed25519.Sign(key, hash[:])),
		})
	}

	return env, nil
}

// Verify checks the expiry window and every signature, and returns the signers.
func (e *Envelope) Verify(now time.Time) (program.Signers, error) {
	if len(e.Signatures) > maxEnvelopeSigners {
		return nil, errorsmod.Wrapf(qverrors.ErrInvalidInstruction, "%d signatures, at most %d", len(e.Signatures), maxEnvelopeSigners)
	}

	if e.Expires <= now.Unix() {
		return nil, errorsmod.Wrapf(qverrors.ErrInvalidInstruction, "envelope expired at %d", e.Expires)
	}
	if e.Expires > now.Add(MaxEnvelopeTTL).Unix() {
		return nil, errorsmod.Wrapf(qverrors.ErrInvalidInstruction, "envelope expires at %d, more than %s ahead", e.Expires, MaxEnvelopeTTL)
	}

	hash := e.signingHash()
	signers := make(program.Signers, 0, len(e.Signatures))

	for i, s := range e.Signatures {
		sig, err := hex.DecodeString(s.Signature)
		if err != nil || len(sig) != signatureSize {
			return nil, errorsmod.Wrapf(qverrors.ErrInvalidInstruction, "signature %d: malformed", i)
		}

		if !ed25519.Verify(s.Pubkey[:], hash[:], sig) {
			return nil, errorsmod.Wrapf(qverrors.ErrMissingSignature, "signature %d does not verify for %s", i, s.Pubkey)
		}

		signers = append(signers, s.Pubkey)
	}

	return signers, nil
}

// Receipt identifies the envelope to the ledger's executed-instruction set.
func (e *Envelope) Receipt() ledger.Receipt {
	return ledger.Receipt{Hash: e.signingHash(), Expires: time.Unix(e.Expires, 0)}
}

// signingHash computes the digest signed by envelope signers.
func (e *Envelope) signingHash() [32]byte {
	var window [16]byte
	binary.BigEndian.PutUint64(window[0:8], e.Nonce)
	binary.BigEndian.PutUint64(window[8:16], uint64(e.Expires))

	h := blake3.New()
	h.Write([]byte(e.Instruction))
	h.Write([]byte{0})
	h.Write(window[:])
	h.Write(e.Args)

	var out [32]byte
	h.Sum(out[:0])

	return out
}
