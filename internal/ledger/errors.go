package ledger

import (
	"errors"

	"note-option-ledger-go/internal/store"
)

// error base
type GenericError string

// error classes
type ValidationError GenericError
type ArithmeticError GenericError
type InconsistencyError GenericError

// ledger errors - keep grouped by class
var (
	ErrNotInitialized            = ValidationError("protocol is not initialized")
	ErrAlreadyInitialized        = ValidationError("protocol is already initialized")
	ErrInvalidProtocolSettings   = ValidationError("protocol settings are invalid")
	ErrRequiredDepositor         = ValidationError("depositor is required")
	ErrRequiredClaimToken        = ValidationError("claim token id is required")
	ErrRequiredHolder            = ValidationError("holder is required")
	ErrRequiredRecipient         = ValidationError("recipient is required")
	ErrSelfTransfer              = ValidationError("recipient already holds the option")
	ErrZeroAmount                = ValidationError("amount must be greater than zero")
	ErrZeroTokens                = ValidationError("deposit is worth zero tokens at the current nav")
	ErrInvalidDuration           = ValidationError("option duration is not allowed")
	ErrProtocolLocked            = ValidationError("protocol is locked")
	ErrDepositsLocked            = ValidationError("deposits are locked")
	ErrConversionsLocked         = ValidationError("conversions are locked")
	ErrReceiptPending            = ValidationError("depositor already holds an outstanding receipt")
	ErrReceiptNotFound           = ValidationError("deposit receipt not found")
	ErrReceiptConsumed           = ValidationError("deposit receipt already consumed")
	ErrReceiptExpired            = ValidationError("deposit receipt expired")
	ErrOptionNotFound            = ValidationError("option not found")
	ErrOptionExists              = ValidationError("option already exists for claim token")
	ErrOptionExpired             = ValidationError("option expired")
	ErrOptionSpent               = ValidationError("option is fully converted")
	ErrInsufficientOptionAmount  = ValidationError("requested amount exceeds remaining option amount")
	ErrOptionNotFullyConverted   = ValidationError("option is not fully converted")
	ErrAuthorityNotSet           = ValidationError("protocol authority is not set")
	ErrReceiverAuthorityMismatch = ValidationError("receiver does not match protocol authority")
	ErrUnauthorized              = ValidationError("caller is not the protocol authority")

	ErrOverflow  = ArithmeticError("arithmetic overflow")
	ErrUnderflow = ArithmeticError("arithmetic underflow")

	ErrInsufficientTotalOptionAmount = InconsistencyError("total option amount is below the converted amount")
	ErrCountersMismatch              = InconsistencyError("option counters do not match option records")
)

func (e GenericError) Error() string       { return string(e) }
func (e ValidationError) Error() string    { return string(e) }
func (e ArithmeticError) Error() string    { return string(e) }
func (e InconsistencyError) Error() string { return string(e) }

// Error classes as reported by Classify
const (
	ClassValidation    = "validation"
	ClassArithmetic    = "arithmetic"
	ClassInconsistency = "inconsistency"
	ClassConflict      = "conflict"
	ClassCollaborator  = "collaborator"
)

// determine the class of an error, looking through any wrapping
func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsArithmetic(err error) bool {
	var target ArithmeticError
	return errors.As(err, &target)
}

func IsInconsistency(err error) bool {
	var target InconsistencyError
	return errors.As(err, &target)
}

// Classify maps an operation error to its class. Anything the ledger did not
// raise itself came from a collaborator or the store.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case IsInconsistency(err):
		return ClassInconsistency
	case IsArithmetic(err):
		return ClassArithmetic
	case IsValidation(err):
		return ClassValidation
	case errors.Is(err, store.ErrConcurrentModification):
		return ClassConflict
	default:
		return ClassCollaborator
	}
}
