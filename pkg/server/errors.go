package server

import (
	"fmt"
	"net/http"
)

// StatusError is a handler error carrying the HTTP status to reply with
type StatusError struct {
	Code int
	Err  error
}

func (se StatusError) Error() string {
	return se.Err.Error()
}

// Status returns the HTTP status code
func (se StatusError) Status() int {
	return se.Code
}

func makeNotFoundError(what string) StatusError {
	return StatusError{Code: http.StatusNotFound, Err: fmt.Errorf("%v not found", what)}
}

func makeBadRequestError(err error) StatusError {
	return StatusError{Code: http.StatusBadRequest, Err: err}
}
