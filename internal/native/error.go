package native

import (
	"errors"
	"fmt"
)

// Error codes reported by implementations.
const (
	CodeUnknown           int32 = 1000
	CodeEmptyParameter    int32 = 1001
	CodeIllegalParameter  int32 = 1002
	CodeUnsupported       int32 = 1003
	CodeTypeMismatch      int32 = 1004
	CodeNullNotAllowed    int32 = 1005
	CodeOutOfRange        int32 = 1006
	CodeClosed            int32 = 1007
	CodeContainerMissing  int32 = 1008
	CodeRowKeyMissing     int32 = 1009
	CodeSyntax            int32 = 1010
	CodeTransaction       int32 = 1011
	CodeAuth              int32 = 1012
	CodeTimeout           int32 = 1013
	CodeResultNotAssigned int32 = 1014
	CodeIndex             int32 = 1015
	CodeSchemaConflict    int32 = 1016
)

// Frame is one level of an error stack. Frame 0 is the outermost.
type Frame struct {
	Code     int32
	Message  string
	Location string
}

// Error is the error stack attached to a failed native call.
type Error struct {
	Frames  []Frame
	Timeout bool
}

func NewError(code int32, location, format string, args ...any) *Error {
	return &Error{
		Frames: []Frame{{Code: code, Message: fmt.Sprintf(format, args...), Location: location}},
	}
}

func (e *Error) Error() string {
	if len(e.Frames) == 0 {
		return "native: unknown error"
	}
	f := e.Frames[0]
	return fmt.Sprintf("[%d:%s] %s", f.Code, codeName(f.Code), f.Message)
}

// Code returns the code of the outermost frame.
func (e *Error) Code() int32 {
	if len(e.Frames) == 0 {
		return CodeUnknown
	}
	return e.Frames[0].Code
}

// Wrap pushes an outer frame on top of err's stack.
func Wrap(err error, code int32, location, message string) *Error {
	var ne *Error
	if !errors.As(err, &ne) {
		ne = &Error{Frames: []Frame{{Code: CodeUnknown, Message: err.Error()}}}
	}
	frames := make([]Frame, 0, len(ne.Frames)+1)
	frames = append(frames, Frame{Code: code, Message: message, Location: location})
	frames = append(frames, ne.Frames...)
	return &Error{Frames: frames, Timeout: ne.Timeout}
}

// IsTimeout reports whether err carries a timeout-classified native error.
func IsTimeout(err error) bool {
	var ne *Error
	return errors.As(err, &ne) && ne.Timeout
}

func codeName(code int32) string {
	switch code {
	case CodeEmptyParameter:
		return "EMPTY_PARAMETER"
	case CodeIllegalParameter:
		return "ILLEGAL_PARAMETER"
	case CodeUnsupported:
		return "UNSUPPORTED_OPERATION"
	case CodeTypeMismatch:
		return "TYPE_MISMATCH"
	case CodeNullNotAllowed:
		return "NULL_NOT_ALLOWED"
	case CodeOutOfRange:
		return "OUT_OF_RANGE"
	case CodeClosed:
		return "RESOURCE_CLOSED"
	case CodeContainerMissing:
		return "CONTAINER_NOT_FOUND"
	case CodeRowKeyMissing:
		return "ROW_KEY_NOT_FOUND"
	case CodeSyntax:
		return "SYNTAX_ERROR"
	case CodeTransaction:
		return "TRANSACTION_ERROR"
	case CodeAuth:
		return "AUTHENTICATION_FAILED"
	case CodeTimeout:
		return "TIMEOUT"
	case CodeResultNotAssigned:
		return "RESULT_NOT_ASSIGNED"
	case CodeIndex:
		return "INDEX_ERROR"
	case CodeSchemaConflict:
		return "SCHEMA_CONFLICT"
	}
	return "UNKNOWN"
}
