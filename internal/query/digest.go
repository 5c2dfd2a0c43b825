package query

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	qverrors "QueryVerify/internal/errors"
)

// ResponsePrefix domain-separates query response digests from other
// guardian-signed messages.
const ResponsePrefix = "query_response_0000000000000000000|"

// MessageLen is the length of the prefixed message that guardians hash and sign.
const MessageLen = len(ResponsePrefix) + common.HashLength

// Message returns ResponsePrefix || keccak256(payload).
func Message(payload []byte) ([]byte, error) {
	msg := make([]byte, 0, MessageLen)
	msg = append(msg, ResponsePrefix...)
	msg = append(msg, crypto.Keccak256(payload)...)

	if len(msg) != MessageLen {
		return nil, errorsmod.Wrapf(qverrors.ErrInvalidMessageHash, "message has %d bytes, want %d", len(msg), MessageLen)
	}

	return msg, nil
}

// Digest returns the 32-byte value guardians sign for payload:
// keccak256(ResponsePrefix || keccak256(payload)).
func Digest(payload []byte) (common.Hash, error) {
	msg, err := Message(payload)
	if err != nil {
		return common.Hash{}, err
	}

	return crypto.Keccak256Hash(msg), nil
}
