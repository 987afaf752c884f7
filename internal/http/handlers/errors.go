package handlers

// Error codes carried in ErrorResponse.Code.
const (
	ErrCodeNotFound           = "not_found"
	ErrCodeMethodNotAllowed   = "method_not_allowed"
	ErrCodeStorageUnavailable = "storage_unavailable"
	ErrCodeInternal           = "internal_error"
)
