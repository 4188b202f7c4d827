package gridstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tuannm99/novagrid/internal/native"
)

// Error kinds. Use errors.Is to classify; native failures are *NativeError.
var (
	ErrArgument     = errors.New("gridstore: invalid argument")
	ErrAllocation   = errors.New("gridstore: allocation limit exceeded")
	ErrTypeMismatch = errors.New("gridstore: type mismatch")
	ErrRange        = errors.New("gridstore: value out of range")
	ErrNotFound     = errors.New("gridstore: not found")
	ErrState        = errors.New("gridstore: invalid state")
)

func kindError(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

func argumentError(format string, args ...any) error {
	return kindError(ErrArgument, format, args...)
}

func typeMismatch(format string, args ...any) error {
	return kindError(ErrTypeMismatch, format, args...)
}

func rangeError(format string, args ...any) error {
	return kindError(ErrRange, format, args...)
}

func stateError(format string, args ...any) error {
	return kindError(ErrState, format, args...)
}

// ErrorFrame is one level of a native error stack.
type ErrorFrame struct {
	Code     int32
	Message  string
	Location string
}

// NativeError reports a failed call into the store client. Code, Message
// and Location describe the outermost frame.
type NativeError struct {
	Code     int32
	Message  string
	Location string
	// Resource names the handle kind the call was made on, e.g. "container".
	Resource string
	Frames   []ErrorFrame

	timeout bool
}

func (e *NativeError) Error() string {
	var b strings.Builder
	b.WriteString("gridstore: ")
	if e.Resource != "" {
		b.WriteString(e.Resource)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "[%d] %s", e.Code, e.Message)
	return b.String()
}

// StackSize is the number of frames in the error stack.
func (e *NativeError) StackSize() int { return len(e.Frames) }

// ErrorCode returns the code of frame i, or 0 when i is out of range.
func (e *NativeError) ErrorCode(i int) int32 {
	if i < 0 || i >= len(e.Frames) {
		return 0
	}
	return e.Frames[i].Code
}

// MessageAt returns the message of frame i, or "" when i is out of range.
func (e *NativeError) MessageAt(i int) string {
	if i < 0 || i >= len(e.Frames) {
		return ""
	}
	return e.Frames[i].Message
}

// LocationAt returns the location of frame i, or "" when i is out of range.
func (e *NativeError) LocationAt(i int) string {
	if i < 0 || i >= len(e.Frames) {
		return ""
	}
	return e.Frames[i].Location
}

func (e *NativeError) IsTimeout() bool { return e.timeout }

// nativeError converts an error returned by a native call. Frames are
// copied so the result owns all of its strings.
func nativeError(resource string, err error) error {
	if err == nil {
		return nil
	}
	var ne *native.Error
	if !errors.As(err, &ne) {
		return &NativeError{
			Code:     native.CodeUnknown,
			Message:  err.Error(),
			Resource: resource,
			Frames:   []ErrorFrame{{Code: native.CodeUnknown, Message: err.Error()}},
		}
	}

	out := &NativeError{Resource: resource, timeout: ne.Timeout}
	out.Frames = make([]ErrorFrame, len(ne.Frames))
	for i, f := range ne.Frames {
		out.Frames[i] = ErrorFrame{
			Code:     f.Code,
			Message:  strings.Clone(f.Message),
			Location: strings.Clone(f.Location),
		}
	}
	if len(out.Frames) > 0 {
		out.Code = out.Frames[0].Code
		out.Message = out.Frames[0].Message
		out.Location = out.Frames[0].Location
	}
	return out
}

// IsTimeout reports whether err is a timeout-classified native error.
func IsTimeout(err error) bool {
	var ne *NativeError
	return errors.As(err, &ne) && ne.IsTimeout()
}
