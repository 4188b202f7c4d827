package embedded

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/tuannm99/novagrid/internal/native"
)

// fail builds a native error whose frame location is the caller of fail.
func fail(code int32, format string, args ...any) *native.Error {
	return native.NewError(code, callerLocation(), format, args...)
}

func callerLocation() string {
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}
	st, ok := errors.New("").(stackTracer)
	if !ok {
		return ""
	}
	frames := st.StackTrace()
	// frames[0] is callerLocation, frames[1] fail, frames[2] the caller.
	if len(frames) < 3 {
		return ""
	}
	return fmt.Sprintf("%s:%d", frames[2], frames[2])
}

func errClosed(what string) *native.Error {
	return native.NewError(native.CodeClosed, callerLocation(), "%s already closed", what)
}
