package logger

import (
	"fmt"
	"log/slog"
	"strings"
)

// Standard field keys for structured logging. Use these keys consistently
// across all log statements so the daemon's log lines can be filtered and
// aggregated the same way regardless of which component emitted them.
const (
	// Distributed tracing / RPC correlation
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"
	KeyMethod  = "method" // RPC method name: ListClasses, Reload, SetProperty, ...

	// Identity
	KeyUID       = "uid"
	KeyGID       = "gid"
	KeyUsername  = "username"
	KeyGroupname = "groupname"

	// Class file / registry
	KeyClass    = "class"    // class name (lookup key)
	KeyFilepath = "filepath" // absolute class file path
	KeyLineNum  = "linenum"  // line number of a parse diagnostic
	KeyPriority = "priority"
	KeyKey      = "key"   // resource control key
	KeyValue    = "value" // resource control value

	// Enforcement
	KeyArgv       = "argv"        // full argv of a spawned systemctl invocation
	KeyExitCode   = "exit_code"   // process exit code
	KeySignal     = "signal"      // signal name, if the process was killed
	KeyFailures   = "failures"    // count of per-uid enforcement failures
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)

// TraceID returns a slog.Attr for a correlation trace id.
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for a correlation span id.
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Method returns a slog.Attr for an RPC method name.
func Method(name string) slog.Attr {
	return slog.String(KeyMethod, name)
}

// UID returns a slog.Attr for a user id.
func UID(uid uint32) slog.Attr {
	return slog.Uint64(KeyUID, uint64(uid))
}

// GID returns a slog.Attr for a group id.
func GID(gid uint32) slog.Attr {
	return slog.Uint64(KeyGID, uint64(gid))
}

// Username returns a slog.Attr for a resolved user name.
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// Class returns a slog.Attr for a class name.
func Class(name string) slog.Attr {
	return slog.String(KeyClass, name)
}

// Filepath returns a slog.Attr for a class file path.
func Filepath(path string) slog.Attr {
	return slog.String(KeyFilepath, path)
}

// LineNum returns a slog.Attr for a parse diagnostic's line number.
func LineNum(n int) slog.Attr {
	return slog.Int(KeyLineNum, n)
}

// Priority returns a slog.Attr for a class's priority value.
func Priority(p float64) slog.Attr {
	return slog.Float64(KeyPriority, p)
}

// Argv returns a slog.Attr with the command line joined by single spaces (no
// quoting), for logging enforcement failures with the invocation attempted.
func Argv(argv []string) slog.Attr {
	return slog.String(KeyArgv, strings.Join(argv, " "))
}

// ExitCode returns a slog.Attr for a child process exit code.
func ExitCode(code int) slog.Attr {
	return slog.Int(KeyExitCode, code)
}

// Signal returns a slog.Attr for the signal that killed a child process.
func Signal(name string) slog.Attr {
	return slog.String(KeySignal, name)
}

// Err returns a slog.Attr for an error value, or an error attr with an empty
// value if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// Diagnostic formats a class-file parse diagnostic in the daemon's canonical
// on-disk format: "{linenum}:{filepath} {message}".
func Diagnostic(linenum int, filepath, message string) string {
	return fmt.Sprintf("%d:%s %s", linenum, filepath, message)
}
