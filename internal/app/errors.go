package app

import (
	"fmt"
	"net/http"
)

// DomainError is a failure the HTTP layer can translate directly: Status
// becomes the response code and Code/Message/Details fill the error
// envelope. Service methods return it for any condition a client can act
// on; everything else bubbles up as a plain error and maps to a 500.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// validationError is the common 422 shape for rejected input. Details, when
// present, names the offending fields.
func validationError(message string, details any) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, details)
}
