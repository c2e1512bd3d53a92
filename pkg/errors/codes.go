package errors

// Code classifies an error so callers can tell retryable failures
// from caller mistakes.
type Code string

const (
	CodeUnknown          Code = "UNKNOWN"
	CodeValidation       Code = "VALIDATION"
	CodeNormalization    Code = "NORMALIZATION"
	CodeClient           Code = "CLIENT"
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
	CodeSyncInProgress   Code = "SYNC_IN_PROGRESS"
	CodeNotFound         Code = "NOT_FOUND"
)
