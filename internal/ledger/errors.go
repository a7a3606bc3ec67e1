package ledger

import (
	"errors"
	"fmt"
)

// Class groups error codes by what the caller did wrong.
type Class string

const (
	ClassValidation    Class = "validation"
	ClassAuthorization Class = "authorization"
	ClassConflict      Class = "state_conflict"
	ClassResource      Class = "resource"
	ClassNotFound      Class = "not_found"
	ClassExternal      Class = "external"
	ClassInternal      Class = "internal"
)

// Error is a typed operation failure with a stable code.
// Two errors match under errors.Is when their codes are equal.
type Error struct {
	Code    string `json:"code"`
	Class   Class  `json:"class"`
	Message string `json:"message"`
	cause   error
}

// Error returns the human-readable message.
func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Is matches errors with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

func newError(code string, class Class, msg string) *Error {
	return &Error{Code: code, Class: class, Message: msg}
}

// withDetail returns a copy of base whose message carries extra detail.
func withDetail(base *Error, format string, args ...any) *Error {
	return &Error{
		Code:    base.Code,
		Class:   base.Class,
		Message: base.Message + ": " + fmt.Sprintf(format, args...),
	}
}

// withCause returns a copy of base wrapping cause.
func withCause(base *Error, cause error) *Error {
	return &Error{Code: base.Code, Class: base.Class, Message: base.Message, cause: cause}
}

// Validation errors.
var (
	ErrAmountZero           = newError("AMOUNT_ZERO", ClassValidation, "amount can't be 0")
	ErrAmountTooLarge       = newError("AMOUNT_TOO_LARGE", ClassValidation, "amount exceeds maximum limit")
	ErrSelfTransfer         = newError("SELF_TRANSFER", ClassValidation, "can't send money to self")
	ErrInvalidGovernance    = newError("INVALID_GOVERNANCE_CONFIG", ClassValidation, "invalid governance config")
	ErrInvalidReferenceSeed = newError("INVALID_REFERENCE_SEED", ClassValidation, "invalid reference seed")
	ErrAddressMismatch      = newError("ADDRESS_MISMATCH", ClassValidation, "address mismatch")
	ErrUnexpectedTokens     = newError("UNEXPECTED_TOKEN_ACCOUNTS", ClassValidation, "token accounts given for a native escrow")
	ErrInvalidDecimals      = newError("INVALID_DECIMALS", ClassValidation, "invalid decimals")
	ErrInvalidAsset         = newError("INVALID_ASSET", ClassValidation, "invalid asset")
)

// Authorization errors.
var (
	ErrUnauthorized = newError("UNAUTHORIZED", ClassAuthorization, "unauthorized")
	ErrNotMember    = newError("NOT_MEMBER", ClassAuthorization, "caller is not a member")
)

// State conflict errors.
var (
	ErrAlreadyExists           = newError("ALREADY_EXISTS", ClassConflict, "already exists")
	ErrAlreadyReleased         = newError("ALREADY_RELEASED", ClassConflict, "already released")
	ErrNotReleased             = newError("NOT_RELEASED", ClassConflict, "not released yet")
	ErrGovernedRelease         = newError("GOVERNED_RELEASE", ClassConflict, "governed escrow requires approvals")
	ErrAlreadyApproved         = newError("ALREADY_APPROVED", ClassConflict, "already approved")
	ErrGroupBusy               = newError("GROUP_BUSY", ClassConflict, "governance group busy")
	ErrPendingMismatch         = newError("PENDING_ESCROW_MISMATCH", ClassConflict, "pending escrow mismatch")
	ErrInsufficientCompletions = newError("INSUFFICIENT_COMPLETIONS", ClassConflict, "insufficient completions")
	ErrCredentialIssued        = newError("CREDENTIAL_ALREADY_ISSUED", ClassConflict, "credential already issued")
)

// Not found.
var ErrNotFound = newError("NOT_FOUND", ClassNotFound, "record not found")

// Resource errors.
var (
	ErrInsufficientBalance = newError("INSUFFICIENT_BALANCE", ClassResource, "insufficient balance")
	ErrBalanceOverflow     = newError("BALANCE_OVERFLOW", ClassResource, "balance overflow")
	ErrMissingTokenAccount = newError("MISSING_TOKEN_ACCOUNTS", ClassResource, "missing token accounts")
	ErrTokenAccount        = newError("TOKEN_ACCOUNT_MISMATCH", ClassResource, "token account mismatch")
	ErrMintMismatch        = newError("TOKEN_MINT_MISMATCH", ClassResource, "token mint mismatch")
	ErrDecimalsMismatch    = newError("TOKEN_DECIMALS_MISMATCH", ClassResource, "token decimals mismatch")
)

// External and internal errors.
var (
	ErrIssuerFailed  = newError("ISSUER_FAILED", ClassExternal, "credential issuer failed")
	ErrCorruptRecord = newError("CORRUPT_RECORD", ClassInternal, "corrupt record")
	ErrStore         = newError("STORE_FAILURE", ClassInternal, "store failure")
)

// Code returns the stable code of err, or "" when err is not a ledger error.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ClassOf returns the class of err. Errors that are not ledger errors are internal.
func ClassOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ClassInternal
}
