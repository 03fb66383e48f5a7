package verification

// Invalid reasons reported in VerificationResult.InvalidReason.
const (
	ReasonTransactionNotFound  = "transaction_not_found"
	ReasonTransactionFailed    = "transaction_failed"
	ReasonMissingMeta          = "transaction_meta_missing"
	ReasonRecipientNotFound    = "recipient_not_found"
	ReasonAmountNotTransferred = "amount_not_transferred"
	ReasonAmountPrecision      = "amount_decimals_invalid"
	ReasonReferenceMissing     = "reference_not_on_transfer"
	ReasonMemoMismatch         = "memo_mismatch"
)
