package callback

import "errors"

// PayloadError is a client-caused rejection: a missing or ill-formed field, an
// unrecognized enumerated value, or a bad callback token. The message is the
// exact human-readable reason returned to the caller; these map to HTTP 400.
// Everything else that goes wrong during dispatch maps to HTTP 409.
type PayloadError struct {
	Message string
}

func (e *PayloadError) Error() string {
	return e.Message
}

func payloadErrorf(msg string) *PayloadError {
	return &PayloadError{Message: msg}
}

// ErrUnknownWorkflowType rejects callbacks whose declared type has no
// registered handler.
var ErrUnknownWorkflowType = errors.New("unknown workflow type")
