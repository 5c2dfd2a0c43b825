package client

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"QueryVerify/internal/api"
	"QueryVerify/internal/ledger"
)

// DefaultChunkSize is how many guardian signatures SubmitQueryResponse posts per request.
const DefaultChunkSize = 7

// Wallet holds an Ed25519 keypair that signs instructions.
type Wallet struct {
	privKey ed25519.PrivateKey // privKey is the Ed25519 private key
	pubkey  ledger.Pubkey      // pubkey is the ledger address of the key
}

// NewWallet creates a new wallet with a random Ed25519 keypair.
func NewWallet() (*Wallet, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key:\n%w", err)
	}

	return WalletFromKey(priv)
}

// WalletFromKey wraps an existing private key.
func WalletFromKey(priv ed25519.PrivateKey) (*Wallet, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(priv), ed25519.PrivateKeySize)
	}

	pk, err := ledger.PubkeyFromEd25519(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}

	return &Wallet{privKey: priv, pubkey: pk}, nil
}

// Pubkey returns the wallet's ledger address.
func (w *Wallet) Pubkey() ledger.Pubkey {
	return w.pubkey
}

// PostSignatures creates the buffer owned by the buffer wallet, sized for
// total signatures, and stores the first guardian signatures in it.
// The wallet pays the rent and becomes write authority.
func (w *Wallet) PostSignatures(ctx context.Context, c *Client, buffer *Wallet, total uint32, signatures []string) (*api.BufferResponse, error) {
	env, err := api.NewEnvelope(api.InstructionPostSignatures, api.PostSignaturesRequest{
		Payer:              w.pubkey,
		Buffer:             buffer.pubkey,
		TotalSignatures:    total,
		GuardianSignatures: signatures,
	}, w.privKey, buffer.privKey)
	if err != nil {
		return nil, err
	}

	var resp api.BufferResponse
	if err := c.post(ctx, "/v1/signatures", env, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// AppendSignatures appends guardian signatures to a buffer the wallet created.
func (w *Wallet) AppendSignatures(ctx context.Context, c *Client, buffer ledger.Pubkey, signatures []string) (*api.BufferResponse, error) {
	env, err := api.NewEnvelope(api.InstructionPostSignatures, api.PostSignaturesRequest{
		Payer:              w.pubkey,
		Buffer:             buffer,
		GuardianSignatures: signatures,
	}, w.privKey)
	if err != nil {
		return nil, err
	}

	var resp api.BufferResponse
	if err := c.post(ctx, "/v1/signatures", env, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// CloseSignatures destroys an unverified buffer and refunds its rent to the wallet.
func (w *Wallet) CloseSignatures(ctx context.Context, c *Client, buffer ledger.Pubkey) (uint64, error) {
	env, err := api.NewEnvelope(api.InstructionCloseSignatures, api.CloseSignaturesRequest{
		Buffer:          buffer,
		RefundRecipient: w.pubkey,
	}, w.privKey)
	if err != nil {
		return 0, err
	}

	var resp api.CloseSignaturesResponse
	if err := c.post(ctx, "/v1/close", env, &resp); err != nil {
		return 0, err
	}

	return resp.Refunded, nil
}

// Initialize records the program configuration, paid by the wallet.
func (w *Wallet) Initialize(ctx context.Context, c *Client) (ledger.Pubkey, error) {
	env, err := api.NewEnvelope(api.InstructionInitialize, api.InitializeRequest{Payer: w.pubkey}, w.privKey)
	if err != nil {
		return ledger.Pubkey{}, err
	}

	var resp api.InitializeResponse
	if err := c.post(ctx, "/v1/initialize", env, &resp); err != nil {
		return ledger.Pubkey{}, err
	}

	return resp.Config, nil
}

// SubmitQueryResponse runs the full flow for one query response: a fresh
// buffer is created, the oracle signatures are posted in chunks of
// chunkSize, and the response is verified. If verification fails the
// buffer is closed so the rent returns to the wallet, and the
// verification error is returned.
func (w *Wallet) SubmitQueryResponse(ctx context.Context, c *Client, guardianSetIndex uint32, response []byte, signatures []string, chunkSize int) (*api.VerifyQueryResponse, error) {
	if len(signatures) == 0 {
		return nil, fmt.Errorf("no guardian signatures")
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	buffer, err := NewWallet()
	if err != nil {
		return nil, err
	}

	first := min(chunkSize, len(signatures))
	if _, err := w.PostSignatures(ctx, c, buffer, uint32(len(signatures)), signatures[:first]); err != nil {
		return nil, fmt.Errorf("create signature buffer:\n%w", err)
	}

	for start := first; start < len(signatures); start += chunkSize {
		end := min(start+chunkSize, len(signatures))

		if _, err := w.AppendSignatures(ctx, c, buffer.pubkey, signatures[start:end]); err != nil {
			return nil, w.abandon(ctx, c, buffer.pubkey, fmt.Errorf("append signatures %d..%d:\n%w", start, end, err))
		}
	}

	res, err := c.VerifyQuery(ctx, buffer.pubkey, guardianSetIndex, response)
	if err != nil {
		return nil, w.abandon(ctx, c, buffer.pubkey, err)
	}

	return res, nil
}

// abandon closes buffer after cause and returns cause.
func (w *Wallet) abandon(ctx context.Context, c *Client, buffer ledger.Pubkey, cause error) error {
	if _, err := w.CloseSignatures(ctx, c, buffer); err != nil {
		return fmt.Errorf("%w\n(closing buffer %s also failed: %v)", cause, buffer, err)
	}

	return cause
}
