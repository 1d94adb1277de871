package services

// ValidationError represents caller input that violates a precondition.
// The operation is never partially applied.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NotFoundError represents a referenced record that does not exist
type NotFoundError struct {
	Code    string
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// ConflictError represents a transition that lost to a concurrent writer:
// the persisted status no longer matches the expected prior status.
type ConflictError struct {
	Code    string
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}
