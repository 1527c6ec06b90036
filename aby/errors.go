//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package aby

import (
	"errors"
	"fmt"
)

// Configuration and session errors.
var (
	ErrUnknownRole              = errors.New("aby: unknown role")
	ErrUnknownProtocol          = errors.New("aby: unknown protocol")
	ErrUnsupportedAlgorithm     = errors.New("aby: unsupported MT algorithm")
	ErrUnsupportedSecurityLevel = errors.New("aby: unsupported security level")
	ErrInvalidBitLength         = errors.New("aby: invalid bit length")
	ErrInvalidThreads           = errors.New("aby: invalid thread count")
	ErrMissingContext           = errors.New("aby: no HE context")
	ErrMissingSecretKey         = errors.New("aby: client requires secret key")
	ErrSessionNotReady          = errors.New("aby: session not ready")
	ErrBusy                     = errors.New("aby: executor busy")
	ErrInvalidBatch             = errors.New("aby: invalid batch")
)

// ProtocolDesyncError is returned when the peers disagree on the
// protocol state or the peer stalls.
type ProtocolDesyncError struct {
	Reason string
	Err    error
}

func (e *ProtocolDesyncError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("aby: protocol desync: %s: %v", e.Reason, e.Err)
	}
	return "aby: protocol desync: " + e.Reason
}

func (e *ProtocolDesyncError) Unwrap() error {
	return e.Err
}

func desync(format string, a ...interface{}) error {
	return &ProtocolDesyncError{
		Reason: fmt.Sprintf(format, a...),
	}
}
