package errors

// Error codes surfaced in the API envelope's error.code field.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeDuplicateEvent  = "DUPLICATE_EVENT"
	CodeInternalError   = "INTERNAL_ERROR"
)
