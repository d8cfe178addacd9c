package errors

import "ledgerprograms/core/types"

const runtime = "runtime"

// Rejections raised by the host or shared by every program. Program specific
// errors use codes from 6000 upwards in their own packages.
var (
	ErrInvalidInstructionData = types.NewProgramError(runtime, 1, types.KindValidation, "invalid instruction data")
	ErrNotEnoughAccountKeys   = types.NewProgramError(runtime, 2, types.KindValidation, "not enough account keys")
	ErrMissingRequiredSig     = types.NewProgramError(runtime, 3, types.KindAuthorization, "missing required signature")
	ErrInvalidSignature       = types.NewProgramError(runtime, 4, types.KindAuthorization, "signature verification failed")
	ErrAccountNotWritable     = types.NewProgramError(runtime, 5, types.KindAuthorization, "account modified without being writable")
	ErrExternalAccountChanged = types.NewProgramError(runtime, 6, types.KindAuthorization, "account modified by a program that does not own it")
	ErrUnbalancedInstruction  = types.NewProgramError(runtime, 7, types.KindArithmetic, "lamports not conserved")
	ErrUnbalancedTokens       = types.NewProgramError(runtime, 8, types.KindArithmetic, "token supply not conserved")
	ErrUnknownProgram         = types.NewProgramError(runtime, 9, types.KindNotFound, "program not registered")
	ErrAccountAlreadyInUse    = types.NewProgramError(runtime, 10, types.KindCollision, "account already in use")
	ErrAccountNotFound        = types.NewProgramError(runtime, 11, types.KindNotFound, "account not found")
	ErrInsufficientFunds      = types.NewProgramError(runtime, 12, types.KindPrecondition, "insufficient lamports")
	ErrArithmeticOverflow     = types.NewProgramError(runtime, 13, types.KindArithmetic, "arithmetic overflow")
	ErrIncorrectProgramID     = types.NewProgramError(runtime, 14, types.KindValidation, "incorrect program id")
	ErrInvalidAccountData     = types.NewProgramError(runtime, 15, types.KindValidation, "invalid account data")
	ErrInvalidSeeds           = types.NewProgramError(runtime, 16, types.KindValidation, "account does not match derived address")
	ErrAccountNotRentExempt   = types.NewProgramError(runtime, 17, types.KindPrecondition, "account would fall below rent-exempt minimum")
	ErrDuplicateTransaction   = types.NewProgramError(runtime, 18, types.KindCollision, "transaction already processed")
	ErrProgramPaused          = types.NewProgramError(runtime, 19, types.KindPrecondition, "program paused by operator")
	ErrEmptyTransaction       = types.NewProgramError(runtime, 20, types.KindValidation, "transaction carries no instructions")
	ErrQuotaExceeded          = types.NewProgramError(runtime, 21, types.KindPrecondition, "signer quota exceeded")
)
