package common

import (
	"fmt"

	coreerrors "ledgerprograms/core/errors"
	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
)

func RequireSigner(acct *AccountInfo, role string) error {
	if !acct.IsSigner {
		return fmt.Errorf("%s %s: %w", role, acct.Address, coreerrors.ErrMissingRequiredSig)
	}
	return nil
}

func RequireWritable(acct *AccountInfo, role string) error {
	if !acct.IsWritable {
		return fmt.Errorf("%s %s: %w", role, acct.Address, coreerrors.ErrAccountNotWritable)
	}
	return nil
}

// RequireOwner checks the account is an initialised record of program.
func RequireOwner(acct *AccountInfo, program crypto.Address, role string) error {
	if acct.IsEmpty() {
		return fmt.Errorf("%s %s: %w", role, acct.Address, coreerrors.ErrAccountNotFound)
	}
	if !acct.OwnedBy(program) {
		return fmt.Errorf("%s %s owned by %s: %w", role, acct.Address, acct.Owner, coreerrors.ErrIncorrectProgramID)
	}
	return nil
}

// RequireAddress checks the supplied account is the expected derived address.
func RequireAddress(acct *AccountInfo, want crypto.Address, role string) error {
	if acct.Address != want {
		return fmt.Errorf("%s: got %s want %s: %w", role, acct.Address, want, coreerrors.ErrInvalidSeeds)
	}
	return nil
}

// MoveLamports debits from and credits to by amount.
func MoveLamports(from, to *AccountInfo, amount uint64) error {
	if amount == 0 || from == to {
		return nil
	}
	if from.Lamports < amount {
		return fmt.Errorf("%s holds %d, needs %d: %w", from.Address, from.Lamports, amount, coreerrors.ErrInsufficientFunds)
	}
	if to.Lamports > ^uint64(0)-amount {
		return fmt.Errorf("credit %s: %w", to.Address, coreerrors.ErrArithmeticOverflow)
	}
	from.Lamports -= amount
	to.Lamports += amount
	return nil
}

// CreateAccount funds target with the rent-exempt minimum for data from payer
// and assigns it to owner. target must not hold an account yet.
func CreateAccount(payer, target *AccountInfo, owner crypto.Address, data []byte) error {
	if err := RequireSigner(payer, "payer"); err != nil {
		return err
	}
	if err := RequireWritable(target, "new account"); err != nil {
		return err
	}
	// A bare lamport balance at the address does not block creation; it
	// counts toward the deposit.
	if len(target.Data) > 0 || target.Owner != types.SystemProgramID {
		return fmt.Errorf("%s: %w", target.Address, coreerrors.ErrAccountAlreadyInUse)
	}
	if need := types.RentExemptMinimum(len(data)); target.Lamports < need {
		if err := MoveLamports(payer, target, need-target.Lamports); err != nil {
			return err
		}
	}
	target.Owner = owner
	target.Data = data
	return nil
}

// CloseAccount drains every lamport of acct into recipient and clears it.
func CloseAccount(acct, recipient *AccountInfo) error {
	if err := MoveLamports(acct, recipient, acct.Lamports); err != nil {
		return err
	}
	acct.Data = nil
	acct.Owner = types.SystemProgramID
	return nil
}

// FreeLamports is what acct holds above the rent-exempt minimum and reserved.
func FreeLamports(acct *AccountInfo, reserved uint64) uint64 {
	floor := types.RentExemptMinimum(len(acct.Data))
	if reserved > ^uint64(0)-floor {
		return 0
	}
	floor += reserved
	if acct.Lamports <= floor {
		return 0
	}
	return acct.Lamports - floor
}
