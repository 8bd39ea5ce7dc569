package index

import (
	"errors"
	"fmt"
)

// Index errors.
var (
	// ErrDuplicateKey is returned when inserting a name that is already indexed.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrNotFound is returned when deleting a name that is not indexed.
	ErrNotFound = errors.New("name not indexed")
	// ErrSessionClosed is returned when using a committed or discarded session.
	ErrSessionClosed = errors.New("session closed")
	// ErrStaleSession is returned when the index moved after a session began.
	ErrStaleSession = errors.New("index changed since session began")
	// ErrNoJournal is returned by Revert when no batch has been committed.
	ErrNoJournal = errors.New("no committed batch to revert")
)

// StorageError reports a failure reading or writing the persisted index,
// including a persisted structure that does not decode or whose rebuilt
// root disagrees with the recorded one.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("index storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
