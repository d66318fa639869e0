package model

import (
	"errors"
	"fmt"
)

// ErrSnapshotNotFound is returned when a run snapshot does not exist.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// FetchError reports a failure to retrieve versions from a source.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ClassificationError reports a failed classification for one record.
type ClassificationError struct {
	DiffID int
	Err    error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify diff %d: %v", e.DiffID, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// FeedbackProtocolError reports a malformed reviewer submission.
type FeedbackProtocolError struct {
	Reason string
}

func (e *FeedbackProtocolError) Error() string {
	return "invalid feedback: " + e.Reason
}

// PersistenceError reports a failure to save or load a run snapshot.
type PersistenceError struct {
	Name string
	Op   string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s snapshot %q: %v", e.Op, e.Name, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// StageError wraps a fatal error with the stage and identifier it occurred at.
type StageError struct {
	Stage Stage
	Ident string
	Err   error
}

func (e *StageError) Error() string {
	if e.Ident == "" {
		return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s (%s): %v", e.Stage, e.Ident, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
