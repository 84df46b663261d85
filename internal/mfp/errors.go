// internal/mfp/errors.go
package mfp

import "fmt"

// ProtocolError means the device's web UI did not behave as the scraper
// expects: a token input is missing, or a login verification landed back
// on the login page. Usually firmware drift or an intercepting proxy.
// Protocol errors are not transient; retrying without a fresh page fetch
// cannot succeed.
type ProtocolError struct {
	Op     string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Transient reports false: a missing token will not appear on retry.
func (e *ProtocolError) Transient() bool { return false }

// TransportError wraps a network-level failure (timeout, refused
// connection). These are worth retrying.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transient reports true.
func (e *TransportError) Transient() bool { return true }

// StatusError is a non-2xx response from the device. The device sometimes
// answers 5xx while a report is still being generated server-side, so
// status errors are treated as transient.
type StatusError struct {
	Op     string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
}

// Transient reports true.
func (e *StatusError) Transient() bool { return true }
