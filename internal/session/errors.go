package session

import (
	"errors"
	"fmt"
)

var (
	ErrShortTransfer = errors.New("stream ended before the content length was reached")
	ErrOverflow      = errors.New("server sent more bytes than the content length")
	ErrRangeIgnored  = errors.New("server ignored the range request")
	ErrBusy          = errors.New("session is already transferring")
	ErrRecordClash   = errors.New("metadata record belongs to a different download")
)

// ResolutionError means the remote descriptor could not be determined.
type ResolutionError struct {
	Link string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving %s: %v", e.Link, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// TransferError covers network, local I/O and pause failures. Op names the
// step that failed: mkdir, name, request, status, metadata, open, pause,
// read, write or verify.
type TransferError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("transfer %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transfer %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// PersistenceError means a metadata record could not be read or trusted.
type PersistenceError struct {
	Record string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("metadata record %s: %v", e.Record, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
