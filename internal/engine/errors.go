package engine

import "errors"

// Sentinel kinds for engine errors.
var (
	ErrIllegalTransition = errors.New("illegal state transition")
	ErrSessionClosed     = errors.New("session closed")
	ErrMailboxFull       = errors.New("session mailbox full")
	ErrHalted            = errors.New("action execution halted")
)
