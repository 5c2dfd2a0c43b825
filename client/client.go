// Package client talks to a queryverifyd node over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"QueryVerify/internal/api"
	"QueryVerify/internal/ledger"
	"QueryVerify/internal/snapshot"
)

// Client connects to a node via HTTP.
type Client struct {
	baseURL string       // baseURL is the node URL without trailing slash
	http    *http.Client // http performs the requests
}

// NewClient creates a client for nodeAddr, either "host:port" or a full URL.
func NewClient(nodeAddr string) *Client {
	base := strings.TrimRight(nodeAddr, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}

	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Health checks that the node answers.
func (c *Client) Health(ctx context.Context) error {
	var resp map[string]string
	if err := c.get(ctx, "/health", &resp); err != nil {
		return err
	}

	if resp["status"] != "ok" {
		return fmt.Errorf("node status %q", resp["status"])
	}

	return nil
}

// FetchSignatures returns the signature buffer at addr.
func (c *Client) FetchSignatures(ctx context.Context, addr ledger.Pubkey) (*api.BufferResponse, error) {
	var resp api.BufferResponse
	if err := c.get(ctx, "/v1/signatures/"+addr.String(), &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// GuardianSet returns the published guardian set with the given index.
func (c *Client) GuardianSet(ctx context.Context, index uint32) (*api.GuardianSetResponse, error) {
	var resp api.GuardianSetResponse
	if err := c.get(ctx, "/v1/guardian-sets/"+strconv.FormatUint(uint64(index), 10), &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// Account returns the ledger account at addr.
func (c *Client) Account(ctx context.Context, addr ledger.Pubkey) (*api.AccountResponse, error) {
	var resp api.AccountResponse
	if err := c.get(ctx, "/v1/accounts/"+addr.String(), &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// Balance returns the lamports held at addr.
func (c *Client) Balance(ctx context.Context, addr ledger.Pubkey) (uint64, error) {
	acc, err := c.Account(ctx, addr)
	if err != nil {
		return 0, err
	}

	return acc.Lamports, nil
}

// VerifyQuery verifies response against the signatures in buffer.
// Verification needs no signer; the rent refund goes to the buffer's recipient.
func (c *Client) VerifyQuery(ctx context.Context, buffer ledger.Pubkey, guardianSetIndex uint32, response []byte) (*api.VerifyQueryResponse, error) {
	env, err := api.NewEnvelope(api.InstructionVerifyQuery, api.VerifyQueryRequest{
		Buffer:           buffer,
		GuardianSetIndex: guardianSetIndex,
		Response:         response,
	})
	if err != nil {
		return nil, err
	}

	var resp api.VerifyQueryResponse
	if err := c.post(ctx, "/v1/verify", env, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// Snapshot downloads and verifies the node's current snapshot.
// Returns the uncompressed snapshot bytes.
func (c *Client) Snapshot(ctx context.Context) ([]byte, error) {
	compressed, header, err := c.getRaw(ctx, "/v1/snapshot")
	if err != nil {
		return nil, err
	}

	data, err := snapshot.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot:\n%w", err)
	}

	if _, err := snapshot.Decode(data); err != nil {
		return nil, err
	}

	sum, err := snapshot.Checksum(data)
	if err != nil {
		return nil, err
	}

	if want := header.Get("X-Snapshot-Checksum"); want != "" {
		expected, err := hex.DecodeString(want)
		if err != nil || !bytes.Equal(expected, sum[:]) {
			return nil, fmt.Errorf("snapshot checksum %x, node announced %s", sum, want)
		}
	}

	return data, nil
}
