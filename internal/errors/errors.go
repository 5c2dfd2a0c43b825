// Package errors registers the error kinds returned by the query verification program.
// Codes are stable across releases and are carried over the HTTP API as
// (codespace, code) pairs.
package errors

import (
	stderrors "errors"

	errorsmod "cosmossdk.io/errors"
)

// Codespace is the error codespace of the program.
const Codespace = "queryverify"

// Program errors. Codes below 0x200 follow the on-ledger program numbering.
var (
	ErrWriteAuthorityMismatch = errorsmod.Register(Codespace, 0x100, "write authority mismatch")
	ErrGuardianSetExpired     = errorsmod.Register(Codespace, 0x101, "guardian set expired")
	ErrInvalidMessageHash     = errorsmod.Register(Codespace, 0x102, "invalid message hash")
	ErrNoQuorum               = errorsmod.Register(Codespace, 0x103, "no quorum")
	ErrIndexNonIncreasing     = errorsmod.Register(Codespace, 0x104, "invalid guardian index: non-increasing")
	ErrIndexOutOfRange        = errorsmod.Register(Codespace, 0x105, "invalid guardian index: out of range")
	ErrInvalidSignature       = errorsmod.Register(Codespace, 0x106, "invalid signature")
	ErrKeyRecoveryMismatch    = errorsmod.Register(Codespace, 0x107, "invalid guardian key recovery")
	ErrFailedToParseResponse  = errorsmod.Register(Codespace, 0x110, "failed to parse query response")
)

// Account constraint errors.
var (
	ErrRefundRecipientMismatch      = errorsmod.Register(Codespace, 2001, "refund recipient mismatch")
	ErrMissingSignature             = errorsmod.Register(Codespace, 2002, "missing required signature")
	ErrAddressMismatch              = errorsmod.Register(Codespace, 2006, "account address does not match derived address")
	ErrAccountInUse                 = errorsmod.Register(Codespace, 2008, "account already in use")
	ErrAccountDiscriminatorMismatch = errorsmod.Register(Codespace, 3002, "account discriminator mismatch")
	ErrBufferFull                   = errorsmod.Register(Codespace, 3004, "signature buffer capacity exceeded")
	ErrWrongIssuer                  = errorsmod.Register(Codespace, 3007, "account owned by wrong program")
	ErrAccountNotFound              = errorsmod.Register(Codespace, 3012, "account does not exist or has no data")
	ErrInsufficientFunds            = errorsmod.Register(Codespace, 3100, "insufficient lamports")
	ErrInvalidInstruction           = errorsmod.Register(Codespace, 3101, "invalid instruction arguments")
	ErrDuplicateInstruction         = errorsmod.Register(Codespace, 3102, "instruction already executed")
)

// IsAuthorization reports whether err is raised by account and signer checks
// that run before any cryptography.
func IsAuthorization(err error) bool {
	return errorsmod.IsOf(err,
		ErrWriteAuthorityMismatch,
		ErrRefundRecipientMismatch,
		ErrMissingSignature,
		ErrAddressMismatch,
		ErrWrongIssuer,
	)
}

// IsNotFound reports whether err means the addressed account is absent.
func IsNotFound(err error) bool {
	return errorsmod.IsOf(err, ErrAccountNotFound)
}

// Info returns the codespace and code of the registered error inside err.
// The chain is walked through both Cause and Unwrap, so registered errors
// wrapped with fmt.Errorf are found. Unregistered errors report code 1.
func Info(err error) (codespace string, code uint32) {
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		if c, ok := e.(coded); ok {
			return c.Codespace(), c.ABCICode()
		}
	}

	codespace, code, _ = errorsmod.ABCIInfo(err, false)

	return codespace, code
}

// Code returns the registered code of err, 0 for nil and 1 for unregistered errors.
func Code(err error) uint32 {
	_, code := Info(err)
	return code
}

type coded interface {
	ABCICode() uint32
	Codespace() string
}
