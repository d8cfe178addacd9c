package token

import "ledgerprograms/core/types"

var (
	ErrUninitialized      = types.NewProgramError(Name, 6000, types.KindNotFound, "token record not initialised")
	ErrMintMismatch       = types.NewProgramError(Name, 6001, types.KindValidation, "token account belongs to a different mint")
	ErrOwnerMismatch      = types.NewProgramError(Name, 6002, types.KindAuthorization, "token account owner did not authorise the transfer")
	ErrInsufficientTokens = types.NewProgramError(Name, 6003, types.KindPrecondition, "insufficient token balance")
	ErrOverflow           = types.NewProgramError(Name, 6004, types.KindArithmetic, "token amount overflow")
	ErrNotMintAuthority   = types.NewProgramError(Name, 6005, types.KindAuthorization, "signer is not the mint authority")
	ErrZeroAmount         = types.NewProgramError(Name, 6006, types.KindValidation, "amount must be positive")
	ErrDelegatedChange    = types.NewProgramError(Name, 6007, types.KindAuthorization, "delegated program may only move token balances")
)
