package dice

import "ledgerprograms/core/types"

var (
	ErrInvalidRoll         = types.NewProgramError(Name, 6000, types.KindValidation, "roll must be between 1 and 99")
	ErrZeroAmount          = types.NewProgramError(Name, 6001, types.KindValidation, "amount must be positive")
	ErrVaultExists         = types.NewProgramError(Name, 6002, types.KindCollision, "vault already initialised")
	ErrVaultNotFound       = types.NewProgramError(Name, 6003, types.KindNotFound, "vault not found")
	ErrBetExists           = types.NewProgramError(Name, 6004, types.KindCollision, "bet seed already used")
	ErrBetNotFound         = types.NewProgramError(Name, 6005, types.KindNotFound, "bet not found")
	ErrInsufficientVault   = types.NewProgramError(Name, 6006, types.KindPrecondition, "vault cannot cover the bet's payout")
	ErrInvalidSignature    = types.NewProgramError(Name, 6007, types.KindAuthorization, "house signature does not verify against the bet")
	ErrNotBetPlayer        = types.NewProgramError(Name, 6008, types.KindAuthorization, "signer is not the bet's player")
	ErrNotVaultHouse       = types.NewProgramError(Name, 6009, types.KindAuthorization, "signer is not the vault's house")
	ErrRefundTooEarly      = types.NewProgramError(Name, 6010, types.KindPrecondition, "refund timeout has not elapsed")
	ErrPlayerMismatch      = types.NewProgramError(Name, 6011, types.KindValidation, "player account does not match the bet")
	ErrOverflow            = types.NewProgramError(Name, 6012, types.KindArithmetic, "arithmetic overflow")
	ErrWithdrawExceedsFree = types.NewProgramError(Name, 6013, types.KindPrecondition, "withdrawal exceeds unreserved vault balance")
)
