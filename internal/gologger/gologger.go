package gologger

import (
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		function := ""
		fun := runtime.FuncForPC(pc)
		if fun != nil {
			funName := fun.Name()
			slash := strings.LastIndex(funName, "/")
			if slash > 0 {
				funName = funName[slash+1:]
			}
			function = " " + funName + "()"
		}
		return file + ":" + strconv.Itoa(line) + function
	}
}

type Options struct {
	// Level is a zerolog level name; empty means info, or debug when
	// DEBUG=1.
	Level string
	// Pretty selects the console writer. PRETTY=1 forces it on.
	Pretty bool
	// Out defaults to stderr.
	Out io.Writer
}

func NewLogger(opts Options) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "time"

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	logger = logger.Hook(CallerHook{})

	if opts.Pretty || os.Getenv("PRETTY") == "1" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly})
	}

	level := zerolog.InfoLevel
	if opts.Level != "" {
		if l, err := zerolog.ParseLevel(opts.Level); err == nil {
			level = l
		}
	}
	if os.Getenv("DEBUG") == "1" {
		level = zerolog.DebugLevel
	}
	return logger.Level(level)
}

type CallerHook struct{}

func (h CallerHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	e.Caller(3)
}
