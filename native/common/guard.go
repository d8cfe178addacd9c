package common

import (
	"fmt"

	coreerrors "ledgerprograms/core/errors"
)

// PauseView reports operator-level pauses keyed by program name.
type PauseView interface {
	IsPaused(program string) bool
}

// StaticPauses is a PauseView over a fixed set of program names.
type StaticPauses map[string]bool

func (p StaticPauses) IsPaused(program string) bool { return p[program] }

func Guard(p PauseView, program string) error {
	if p == nil || program == "" {
		return nil
	}
	if p.IsPaused(program) {
		return fmt.Errorf("%s: %w", program, coreerrors.ErrProgramPaused)
	}
	return nil
}
