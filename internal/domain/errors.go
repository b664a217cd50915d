package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the feed and the bookmark store.
type ErrorKind int

const (
	// FetchFailed covers transport errors, non-2xx answers and undecodable
	// pages from the jobs endpoint.
	FetchFailed ErrorKind = iota + 1
	// StorageReadFailed means the bookmark slot could not be read.
	StorageReadFailed
	// StorageWriteFailed means the bookmark slot could not be written.
	StorageWriteFailed
	// DecodeFailed means the persisted bookmark payload is malformed.
	DecodeFailed
)

func (k ErrorKind) String() string {
	switch k {
	case FetchFailed:
		return "fetch failed"
	case StorageReadFailed:
		return "storage read failed"
	case StorageWriteFailed:
		return "storage write failed"
	case DecodeFailed:
		return "decode failed"
	default:
		return fmt.Sprintf("error kind %d", int(k))
	}
}

// Sentinels for errors.Is checks against any *Error of the matching kind.
var (
	ErrFetchFailed        = &Error{Kind: FetchFailed}
	ErrStorageReadFailed  = &Error{Kind: StorageReadFailed}
	ErrStorageWriteFailed = &Error{Kind: StorageWriteFailed}
	ErrDecodeFailed       = &Error{Kind: DecodeFailed}

	// ErrMissingID is returned when a record without an id is bookmarked.
	ErrMissingID = errors.New("job record has no id")
)

// Error is a classified failure. Msg, when set, is safe to show to a user.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf reports the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// UserMessage returns the displayable message carried by err, if any.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return ""
}
