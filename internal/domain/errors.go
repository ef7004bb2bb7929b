package domain

import "errors"

// Error taxonomy. Transport errors drive the reconnection policy; everything
// else is reported through events and metrics and left for the caller.
var (
	// ErrTransport covers a connection that cannot be opened or maintained.
	ErrTransport = errors.New("transport failure")

	// ErrProtocol marks a malformed message envelope. The message is
	// dropped; the connection is unaffected.
	ErrProtocol = errors.New("malformed message envelope")

	// ErrClassifier marks an annotator failure or timeout. Delivery
	// degrades to unannotated; never fatal.
	ErrClassifier = errors.New("classifier failure")

	// ErrResourceExhausted is returned synchronously when the process
	// connection cap or a rate limit is reached.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrTerminal marks a handle that exceeded its reconnect budget. A
	// fresh connect is required.
	ErrTerminal = errors.New("max reconnect attempts exceeded")

	// ErrHandleClosed is returned for operations against a handle in a
	// terminal state.
	ErrHandleClosed = errors.New("connection handle is closed")

	// ErrUnknownEndpoint is returned for operations against an endpoint
	// with no handle.
	ErrUnknownEndpoint = errors.New("unknown endpoint")

	// ErrCollaborationDisabled is returned when the resolved tenant config
	// gates the collaboration feature off.
	ErrCollaborationDisabled = errors.New("collaboration disabled for tenant")
)
