package api

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"QueryVerify/internal/ledger"
)

// PostSignaturesRequest are the arguments of post_signatures.
type PostSignaturesRequest struct {
	Payer              ledger.Pubkey `json:"payer"`
	Buffer             ledger.Pubkey `json:"buffer"`
	TotalSignatures    uint32        `json:"total_signatures"`
	GuardianSignatures []string      `json:"guardian_signatures"` // hex(r|s|v|index) as served by the query oracle
}

// BufferResponse describes a signature buffer.
type BufferResponse struct {
	Address            ledger.Pubkey `json:"address"`
	WriteAuthority     ledger.Pubkey `json:"write_authority"`
	RefundRecipient    ledger.Pubkey `json:"refund_recipient"`
	TotalSignatures    uint32        `json:"total_signatures"`
	GuardianSignatures []string      `json:"guardian_signatures"`
}

// VerifyQueryRequest are the arguments of verify_query.
type VerifyQueryRequest struct {
	Buffer           ledger.Pubkey  `json:"buffer"`
	GuardianSetIndex uint32         `json:"guardian_set_index"`
	GuardianSet      *ledger.Pubkey `json:"guardian_set,omitempty"`
	RefundRecipient  *ledger.Pubkey `json:"refund_recipient,omitempty"`
	Response         hexutil.Bytes  `json:"response"`
}

// VerifyQueryResponse describes a successful verification.
type VerifyQueryResponse struct {
	Digest           common.Hash   `json:"digest"`
	GuardianSetIndex uint32        `json:"guardian_set_index"`
	ValidSignatures  int           `json:"valid_signatures"`
	Refunded         uint64        `json:"refunded"`
	RefundRecipient  ledger.Pubkey `json:"refund_recipient"`
	Nonce            uint32        `json:"nonce"`
	Responses        int           `json:"responses"`
}

// CloseSignaturesRequest are the arguments of close_signatures.
type CloseSignaturesRequest struct {
	Buffer          ledger.Pubkey `json:"buffer"`
	RefundRecipient ledger.Pubkey `json:"refund_recipient"`
}

// CloseSignaturesResponse reports the refund of close_signatures.
type CloseSignaturesResponse struct {
	Refunded uint64 `json:"refunded"`
}

// InitializeRequest are the arguments of initialize.
type InitializeRequest struct {
	Payer ledger.Pubkey `json:"payer"`
}

// InitializeResponse names the program config account.
type InitializeResponse struct {
	Config ledger.Pubkey `json:"config"`
}

// GuardianSetResponse describes a published guardian set.
type GuardianSetResponse struct {
	Index          uint32           `json:"index"`
	Address        ledger.Pubkey    `json:"address"`
	Keys           []common.Address `json:"keys"`
	CreationTime   uint32           `json:"creation_time"`
	ExpirationTime uint32           `json:"expiration_time"`
	Quorum         int              `json:"quorum"`
}

// AccountResponse describes a ledger account.
type AccountResponse struct {
	Address  ledger.Pubkey `json:"address"`
	Owner    ledger.Pubkey `json:"owner"`
	Lamports uint64        `json:"lamports"`
	Data     hexutil.Bytes `json:"data"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Codespace string `json:"codespace"`
	Code      uint32 `json:"code"`
}
