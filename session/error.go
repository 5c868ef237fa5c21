package session

import "errors"

var (
	ErrAlreadyClosed = errors.New("already closed")
	ErrClosed        = errors.New("session closed")
	ErrNotReady      = errors.New("session not ready")
	ErrNoJID         = errors.New("account JID not specified")
)
