package debt

import "errors"

var (
	// ErrNotFound is returned when the requested user does not exist in the store.
	ErrNotFound = errors.New("debt: not found")

	// ErrUnavailable is returned when the system summary has not been computed yet.
	// Callers should retry after the next batch pass.
	ErrUnavailable = errors.New("debt: summary unavailable")

	// ErrInvalidPage is returned for a page number or page size below one.
	ErrInvalidPage = errors.New("debt: invalid page request")

	// ErrInvalidDebt wraps record invariant violations.
	ErrInvalidDebt = errors.New("debt: invalid record")
)

// ValidationError describes a single invalid field of a debt record.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "debt: field " + e.Field + " " + e.Message
}

// Unwrap lets errors.Is match ErrInvalidDebt.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidDebt
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
