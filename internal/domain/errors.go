package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidSlot reports a slot string that is not in SlotLayout form or
// falls outside the bookable window.
var ErrInvalidSlot = errors.New("invalid slot")

// ParseError is a malformed intent tag payload. The tag is discarded and the
// call continues.
type ParseError struct {
	Tag     string
	Payload string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed %s payload %q: %v", e.Tag, e.Payload, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SlotConflictError means a booking lost to an existing active entry or the
// slot is otherwise no longer available.
type SlotConflictError struct {
	Slot string
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("slot %s is no longer available", e.Slot)
}

// TranscriptionError wraps a failure of the speech-to-text collaborator.
type TranscriptionError struct {
	Provider string
	Err      error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription (%s): %v", e.Provider, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// CompletionError wraps a failure of the language model collaborator.
type CompletionError struct {
	Provider string
	Err      error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion (%s): %v", e.Provider, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// LedgerIOError is a failed read or write of the durable meeting ledger.
type LedgerIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *LedgerIOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ledger %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *LedgerIOError) Unwrap() error { return e.Err }

// TelephonyError wraps a failure of the telephony provider.
type TelephonyError struct {
	Op  string
	Err error
}

func (e *TelephonyError) Error() string {
	return fmt.Sprintf("telephony %s: %v", e.Op, e.Err)
}

func (e *TelephonyError) Unwrap() error { return e.Err }
