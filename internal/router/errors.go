package router

import (
	"errors"
	"net/http"
)

// Error categories carried in the JSON error body.
const (
	CategoryClient      = "client_error"
	CategoryUnavailable = "service_unavailable"
	CategoryGateway     = "gateway_error"
	CategoryNotFound    = "not_found"
)

// protocolError is a malformed or unsupported client request (400).
type protocolError struct{ msg string }

func (e protocolError) Error() string    { return e.msg }
func (e protocolError) StatusCode() int  { return http.StatusBadRequest }
func (e protocolError) Category() string { return CategoryClient }

// ProtocolViolation constructs a 400 error.
func ProtocolViolation(msg string) error { return protocolError{msg: msg} }

// IsProtocolViolation reports whether err is a rejected client request.
func IsProtocolViolation(err error) bool {
	var e protocolError
	return errors.As(err, &e)
}

// unavailableError means no slot could take the request (503).
type unavailableError struct{ msg string }

func (e unavailableError) Error() string    { return e.msg }
func (e unavailableError) StatusCode() int  { return http.StatusServiceUnavailable }
func (e unavailableError) Category() string { return CategoryUnavailable }

// ServiceUnavailable constructs a 503 error.
func ServiceUnavailable(msg string) error { return unavailableError{msg: msg} }

// IsServiceUnavailable reports whether err means no worker was available.
func IsServiceUnavailable(err error) bool {
	var e unavailableError
	return errors.As(err, &e)
}

// gatewayError means every attempted worker failed (502).
type gatewayError struct {
	attempts int
	last     error
}

func (e gatewayError) Error() string {
	msg := "all workers failed to process the request"
	if e.last != nil {
		msg += ": " + e.last.Error()
	}
	return msg
}
func (e gatewayError) Unwrap() error    { return e.last }
func (e gatewayError) StatusCode() int  { return http.StatusBadGateway }
func (e gatewayError) Category() string { return CategoryGateway }

// IsGateway reports whether err means all attempts failed.
func IsGateway(err error) bool {
	var e gatewayError
	return errors.As(err, &e)
}

// notFoundError is an unknown route or resource (404).
type notFoundError struct{ msg string }

func (e notFoundError) Error() string    { return e.msg }
func (e notFoundError) StatusCode() int  { return http.StatusNotFound }
func (e notFoundError) Category() string { return CategoryNotFound }

// NotFound constructs a 404 error.
func NotFound(msg string) error { return notFoundError{msg: msg} }
