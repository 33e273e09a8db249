package broker

// Error is a flow error that maps directly to an HTTP response. Code is
// optional machine-readable detail for clients that branch on failure
// modes rather than parsing messages.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewError creates an error with an HTTP status
func NewError(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// NewCodedError creates an error carrying a machine-readable code
func NewCodedError(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}
