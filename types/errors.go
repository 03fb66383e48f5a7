package types

import "fmt"

// Error codes
const (
	ErrCodeMalformedDescriptor = "MALFORMED_DESCRIPTOR"
	ErrCodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	ErrCodeInvalidAccountOwner = "INVALID_ACCOUNT_OWNER"
	ErrCodeMintNotInitialized  = "MINT_NOT_INITIALIZED"
	ErrCodePrecisionMismatch   = "PRECISION_MISMATCH"
	ErrCodeInsufficientFunds   = "INSUFFICIENT_FUNDS"
	ErrCodeAccountFrozen       = "ACCOUNT_FROZEN"
	ErrCodeAmountRequired      = "AMOUNT_REQUIRED"
	ErrCodeReferenceNotFound   = "REFERENCE_NOT_FOUND"
	ErrCodeValidation          = "VALIDATION_FAILED"
	ErrCodeSettlement          = "SETTLEMENT_FAILED"
	ErrCodeNetwork             = "NETWORK_ERROR"
	ErrCodeConfig              = "CONFIG_ERROR"
)

// SolanaPayError is the error type returned by every package in the module.
// Two errors are equal under errors.Is when their codes match.
type SolanaPayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *SolanaPayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *SolanaPayError) Unwrap() error {
	return e.Err
}

func (e *SolanaPayError) Is(target error) bool {
	t, ok := target.(*SolanaPayError)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrMalformedDescriptor = &SolanaPayError{Code: ErrCodeMalformedDescriptor, Message: "malformed descriptor"}
	ErrAccountNotFound     = &SolanaPayError{Code: ErrCodeAccountNotFound, Message: "account not found"}
	ErrInvalidAccountOwner = &SolanaPayError{Code: ErrCodeInvalidAccountOwner, Message: "invalid account owner"}
	ErrMintNotInitialized  = &SolanaPayError{Code: ErrCodeMintNotInitialized, Message: "mint not initialized"}
	ErrPrecisionMismatch   = &SolanaPayError{Code: ErrCodePrecisionMismatch, Message: "amount decimals invalid"}
	ErrInsufficientFunds   = &SolanaPayError{Code: ErrCodeInsufficientFunds, Message: "insufficient funds"}
	ErrAccountFrozen       = &SolanaPayError{Code: ErrCodeAccountFrozen, Message: "account frozen"}
	ErrAmountRequired      = &SolanaPayError{Code: ErrCodeAmountRequired, Message: "amount required"}
	ErrReferenceNotFound   = &SolanaPayError{Code: ErrCodeReferenceNotFound, Message: "reference not found"}
	ErrValidation          = &SolanaPayError{Code: ErrCodeValidation, Message: "validation failed"}
	ErrSettlement          = &SolanaPayError{Code: ErrCodeSettlement, Message: "settlement failed"}
	ErrNetwork             = &SolanaPayError{Code: ErrCodeNetwork, Message: "network error"}
	ErrConfig              = &SolanaPayError{Code: ErrCodeConfig, Message: "config error"}
)

// Errorf builds a SolanaPayError with a formatted message.
func Errorf(code string, format string, args ...interface{}) *SolanaPayError {
	return &SolanaPayError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches cause to a new SolanaPayError.
func WrapError(code string, cause error, format string, args ...interface{}) *SolanaPayError {
	return &SolanaPayError{Code: code, Message: fmt.Sprintf(format, args...), Err: cause}
}
