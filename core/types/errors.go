package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an instruction was rejected.
type ErrorKind uint8

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindAuthorization
	KindPrecondition
	KindCollision
	KindNotFound
	KindArithmetic
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindPrecondition:
		return "precondition"
	case KindCollision:
		return "collision"
	case KindNotFound:
		return "not_found"
	case KindArithmetic:
		return "arithmetic"
	default:
		return "internal"
	}
}

// ProgramError is the rejection returned by a program or by the host. Two
// ProgramErrors match under errors.Is when program and code agree, so callers
// can compare against the exported sentinels after wrapping.
type ProgramError struct {
	Program string    `json:"program"`
	Code    uint32    `json:"code"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// NewProgramError declares a program error sentinel.
func NewProgramError(program string, code uint32, kind ErrorKind, message string) *ProgramError {
	return &ProgramError{Program: program, Code: code, Kind: kind, Message: message}
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("%s: %s (code %d)", e.Program, e.Message, e.Code)
}

// Is implements errors.Is matching on program and code.
func (e *ProgramError) Is(target error) bool {
	t, ok := target.(*ProgramError)
	if !ok {
		return false
	}
	return t.Program == e.Program && t.Code == e.Code
}

// AsProgramError extracts the innermost ProgramError from err.
func AsProgramError(err error) (*ProgramError, bool) {
	var pe *ProgramError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// KindOf classifies err. Errors that do not carry a ProgramError are internal.
func KindOf(err error) ErrorKind {
	if pe, ok := AsProgramError(err); ok {
		return pe.Kind
	}
	return KindInternal
}
