package email

import (
	"errors"
	"fmt"
)

// ErrorKind tags a SendError with the stage that failed
type ErrorKind string

const (
	// An attachment path doesn't exist
	KindFileNotFound ErrorKind = "file-not-found"
	// An attachment exists but can't be read
	KindFileRead ErrorKind = "file-read"
	// The message couldn't be rendered as MIME
	KindEncode ErrorKind = "encode"
	// The session rejected the message or is unusable
	KindTransport ErrorKind = "transport"
	// The outcome couldn't be appended to the log file
	KindLog ErrorKind = "log"
)

// ErrNoTransport is returned when a send is attempted without a session.
var ErrNoTransport = errors.New("no SMTP session provided")

// SendError is returned (via Result) for any failed send.
type SendError struct {
	Kind ErrorKind
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind of err if it wraps a *SendError, or an empty
// string otherwise.
func KindOf(err error) ErrorKind {
	var se *SendError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

func newSendError(k ErrorKind, err error) *SendError {
	return &SendError{Kind: k, Err: err}
}

// asSendError returns the *SendError wrapped by err, or wraps err with kind
// k if there isn't one.
func asSendError(err error, k ErrorKind) *SendError {
	var se *SendError
	if errors.As(err, &se) {
		return se
	}
	return newSendError(k, err)
}
