package cwrap

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the status codes returned by the wrapped library.
type ErrorKind int

const (
	Unknown ErrorKind = iota
	NullOrNotConnected
	ClientErrorDriverTimeout
	ClientErrorClientTimeout
	ClientErrorConductorServiceTimeout
	ClientErrorBufferFull
	PublicationBackPressured
	PublicationAdminAction
	PublicationClosed
	PublicationMaxPositionExceeded
	PublicationError
	TimedOut
)

// TimedOutCode is the status code carried by ErrTimedOut.
const TimedOutCode int32 = -234324

var kindCodes = map[ErrorKind]int32{
	NullOrNotConnected:                 -1,
	PublicationBackPressured:           -2,
	PublicationAdminAction:             -3,
	PublicationClosed:                  -4,
	PublicationMaxPositionExceeded:     -5,
	PublicationError:                   -6,
	ClientErrorDriverTimeout:           -1000,
	ClientErrorClientTimeout:           -1001,
	ClientErrorConductorServiceTimeout: -1002,
	ClientErrorBufferFull:              -1003,
	TimedOut:                           TimedOutCode,
}

var kindNames = map[ErrorKind]string{
	Unknown:                            "Unknown Error",
	NullOrNotConnected:                 "Null Value or Not Connected",
	ClientErrorDriverTimeout:           "Client Error Driver Timeout",
	ClientErrorClientTimeout:           "Client Error Client Timeout",
	ClientErrorConductorServiceTimeout: "Client Error Conductor Service Timeout",
	ClientErrorBufferFull:              "Client Error Buffer Full",
	PublicationBackPressured:           "Publication Back Pressured",
	PublicationAdminAction:             "Publication Admin Action",
	PublicationClosed:                  "Publication Closed",
	PublicationMaxPositionExceeded:     "Publication Max Position Exceeded",
	PublicationError:                   "Publication Error",
	TimedOut:                           "Timed Out",
}

// KindOf maps a raw status code to its kind.
func KindOf(code int32) ErrorKind {
	for kind, c := range kindCodes {
		if c == code {
			return kind
		}
	}
	return Unknown
}

// Code returns the status code of a kind, 0 for Unknown.
func (k ErrorKind) Code() int32 {
	return kindCodes[k]
}

func (k ErrorKind) String() string {
	return kindNames[k]
}

var (
	// ErrTimedOut is returned by blocking polls whose deadline elapsed.
	ErrTimedOut = &Error{Code: TimedOutCode}
	// ErrNullHandle matches acquisition failures where the initializer
	// succeeded but produced no handle, which two-phase polls read as
	// "not ready yet".
	ErrNullHandle = errors.New("cwrap: initializer produced a null handle")
)

// Error carries a raw status code returned by the C library.
type Error struct {
	Code int32
	null bool
}

// NewError wraps a status code.
func NewError(code int32) *Error {
	return &Error{Code: code}
}

// CheckStatus converts a status-returning call into a (value, error) pair:
// negative codes are errors, anything else is returned as the value.
func CheckStatus(code int32) (int32, error) {
	if code < 0 {
		return code, NewError(code)
	}
	return code, nil
}

// Kind classifies the code.
func (e *Error) Kind() ErrorKind {
	return KindOf(e.Code)
}

func (e *Error) Error() string {
	if e.null {
		return fmt.Sprintf("cwrap: null handle (status %d)", e.Code)
	}
	return fmt.Sprintf("cwrap error %d: %s", e.Code, e.Kind())
}

// Is matches another *Error with the same code, and ErrNullHandle for null
// handle failures.
func (e *Error) Is(target error) bool {
	if target == ErrNullHandle {
		return e.null
	}
	var other *Error
	if errors.As(target, &other) {
		return other.Code == e.Code && other.null == e.null
	}
	return false
}

func (e *Error) IsBackPressured() bool { return e.Kind() == PublicationBackPressured }
func (e *Error) IsAdminAction() bool   { return e.Kind() == PublicationAdminAction }

// IsBackPressuredOrAdminAction reports the two transient offer failures.
func (e *Error) IsBackPressuredOrAdminAction() bool {
	return e.IsBackPressured() || e.IsAdminAction()
}
