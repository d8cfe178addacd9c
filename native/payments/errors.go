package payments

import "ledgerprograms/core/types"

var (
	ErrInvalidFeeRate         = types.NewProgramError(Name, 6000, types.KindValidation, "fee rate exceeds 10000 basis points")
	ErrInvalidBounds          = types.NewProgramError(Name, 6001, types.KindValidation, "maximum payment is below the minimum")
	ErrPlatformExists         = types.NewProgramError(Name, 6002, types.KindCollision, "platform already initialised")
	ErrPlatformNotFound       = types.NewProgramError(Name, 6003, types.KindNotFound, "platform not initialised")
	ErrPlatformPaused         = types.NewProgramError(Name, 6004, types.KindPrecondition, "platform is paused")
	ErrNotPlatformAuthority   = types.NewProgramError(Name, 6005, types.KindAuthorization, "signer is not the platform authority")
	ErrEmptyIdentifier        = types.NewProgramError(Name, 6006, types.KindValidation, "merchant identifier is empty")
	ErrIdentifierTooLong      = types.NewProgramError(Name, 6007, types.KindValidation, "merchant identifier exceeds 64 bytes")
	ErrMerchantExists         = types.NewProgramError(Name, 6008, types.KindCollision, "merchant already registered")
	ErrIdentifierRetired      = types.NewProgramError(Name, 6009, types.KindCollision, "merchant identifier belongs to a closed merchant")
	ErrMerchantNotFound       = types.NewProgramError(Name, 6010, types.KindNotFound, "merchant not found")
	ErrMerchantInactive       = types.NewProgramError(Name, 6011, types.KindPrecondition, "merchant is not active")
	ErrNotSettlementAuthority = types.NewProgramError(Name, 6012, types.KindAuthorization, "signer is not the merchant's settlement authority")
	ErrZeroAmount             = types.NewProgramError(Name, 6013, types.KindValidation, "amount must be positive")
	ErrAmountBelowMinimum     = types.NewProgramError(Name, 6014, types.KindValidation, "payment below platform minimum")
	ErrAmountAboveMaximum     = types.NewProgramError(Name, 6015, types.KindValidation, "payment above platform maximum")
	ErrInsufficientFunds      = types.NewProgramError(Name, 6016, types.KindPrecondition, "customer token balance below payment amount")
	ErrMintMismatch           = types.NewProgramError(Name, 6017, types.KindValidation, "token account is not denominated in the fee mint")
	ErrTokenOwnerMismatch     = types.NewProgramError(Name, 6018, types.KindValidation, "token account has the wrong owner")
	ErrClaimExceedsTreasury   = types.NewProgramError(Name, 6019, types.KindPrecondition, "claim exceeds treasury balance")
	ErrCustomerMismatch       = types.NewProgramError(Name, 6020, types.KindValidation, "customer ledger belongs to another customer or merchant")
	ErrOverflow               = types.NewProgramError(Name, 6021, types.KindArithmetic, "arithmetic overflow")
)
