// Package feederr is the error taxonomy shared by the remote sources, the
// store and the sync engines.
package feederr

import (
	"errors"
	"fmt"
)

// Kind categorizes a sync failure.
type Kind string

const (
	// KindNetwork is a transport failure or timeout. Never retried internally.
	KindNetwork Kind = "NETWORK"

	// KindProtocol is a non-success response or a malformed page.
	KindProtocol Kind = "PROTOCOL"

	// KindStore is a local persistence failure. Fatal for the current operation.
	KindStore Kind = "STORE"
)

// Error is a categorized sync failure.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Op names the failing operation, e.g. "fetch newest" or "upsert page".
	Op string

	// Status is the HTTP status code for protocol errors, 0 otherwise.
	Status int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status=%d): %v", e.Kind, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Network wraps err as a transport failure.
func Network(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

// Protocol wraps err as a protocol failure with the response status.
func Protocol(op string, status int, err error) *Error {
	return &Error{Kind: KindProtocol, Op: op, Status: status, Err: err}
}

// Store wraps err as a persistence failure.
func Store(op string, err error) *Error {
	return &Error{Kind: KindStore, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	return KindOf(err) == KindNetwork
}

// IsProtocol reports whether err is a protocol failure.
func IsProtocol(err error) bool {
	return KindOf(err) == KindProtocol
}

// IsStore reports whether err is a persistence failure.
func IsStore(err error) bool {
	return KindOf(err) == KindStore
}
