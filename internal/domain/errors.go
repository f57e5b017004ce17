package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrPersistenceOff is returned by read paths when generation records are not stored.
var ErrPersistenceOff = errors.New("persistence is disabled")

// ConfigurationError reports a missing secret or connection setting. It is raised
// before any outbound call is attempted.
type ConfigurationError struct {
	Setting string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Setting + " is not configured"
}

// UpstreamError reports a failed call to a third-party API: either a non-success
// status (StatusCode > 0, Body holds the response text) or a transport failure
// (StatusCode == 0, Err holds the cause).
type UpstreamError struct {
	Service    string
	StatusCode int
	Body       string
	Timeout    bool
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s API error: %d %s", e.Service, e.StatusCode, strings.TrimSpace(e.Body))
	}
	if e.Timeout {
		return fmt.Sprintf("%s API error: request timed out", e.Service)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s API error: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s API error", e.Service)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// NewTransportError wraps a failure that happened before any status was received.
// Deadline and network timeouts are flagged as such.
func NewTransportError(service string, err error) *UpstreamError {
	timeout := errors.Is(err, context.DeadlineExceeded)
	var netErr net.Error
	if !timeout && errors.As(err, &netErr) {
		timeout = netErr.Timeout()
	}
	return &UpstreamError{Service: service, Timeout: timeout, Err: err}
}

// ContractViolation reports a success response whose body does not match the
// expected shape.
type ContractViolation struct {
	Service string
	Detail  string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("unexpected %s API response structure: %s", e.Service, e.Detail)
}

// PersistenceError wraps any failure while writing or reading generation records.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return "persistence: " + e.Op + " failed"
	}
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
