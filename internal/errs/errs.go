// Package errs defines the error kinds shared between the pipeline core
// and the protocol core, per the error handling design in SPEC_FULL.md.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error so that callers can branch on category
// without parsing message strings.
type Kind int

const (
	// KindUnknown is the zero value; never deliberately returned.
	KindUnknown Kind = iota
	// KindStartup marks a bind/open/load failure, fatal before workers spawn.
	KindStartup
	// KindTransientIO marks a timeout or read error recoverable on the next loop.
	KindTransientIO
	// KindFatalStage marks a stage-level unrecoverable error.
	KindFatalStage
	// KindProtocol marks a framing violation.
	KindProtocol
	// KindDeviceStatus marks a non-zero ret_code from the remote device.
	KindDeviceStatus
	// KindShutdown marks cancellation observed at a suspend point.
	KindShutdown
	// KindGPU marks a wrapped GPU/device runtime failure.
	KindGPU
)

func (k Kind) String() string {
	switch k {
	case KindStartup:
		return "StartupError"
	case KindTransientIO:
		return "TransientIOError"
	case KindFatalStage:
		return "FatalStageError"
	case KindProtocol:
		return "ProtocolError"
	case KindDeviceStatus:
		return "DeviceStatus"
	case KindShutdown:
		return "Shutdown"
	case KindGPU:
		return "GpuError"
	default:
		return "UnknownError"
	}
}

// ProtocolSubkind distinguishes the framing failures the codec can report.
type ProtocolSubkind int

const (
	ProtocolUnknown ProtocolSubkind = iota
	LengthMismatch
	HeaderCrcFail
	FrameCrcFail
	BadCmdType
	BodyDecode
)

func (s ProtocolSubkind) String() string {
	switch s {
	case LengthMismatch:
		return "LengthMismatch"
	case HeaderCrcFail:
		return "HeaderCrcFail"
	case FrameCrcFail:
		return "FrameCrcFail"
	case BadCmdType:
		return "BadCmdType"
	case BodyDecode:
		return "BodyDecode"
	default:
		return "ProtocolUnknown"
	}
}

// Error is the concrete error type carried through the core. It always
// knows its Kind so callers can make control-flow decisions on it.
type Error struct {
	Kind    Kind
	Sub     ProtocolSubkind
	Code    int // DeviceStatus ret_code, or a GPU runtime code
	Name    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindProtocol:
		if e.Message != "" {
			return fmt.Sprintf("%s: %s: %s", e.Kind, e.Sub, e.Message)
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Sub)
	case KindDeviceStatus:
		return fmt.Sprintf("%s(%d)", e.Kind, e.Code)
	case KindGPU:
		name := e.Name
		if name == "" {
			name = "unknown"
		}
		return fmt.Sprintf("%s(%d, %s)", e.Kind, e.Code, name)
	default:
		if e.Message != "" {
			return fmt.Sprintf("%s: %s", e.Kind, e.Message)
		}
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Format implements fmt.Formatter so that "%+v" (the verb checkError's
// log.Printf("%+v\n", err) convention always uses) prints, after the
// message, the Cause with its pkg/errors stack trace captured when this
// error was constructed. Kinds built without a Cause (Protocol,
// DeviceStatus, Shutdown, GPU) print their message only.
func (e *Error) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprint(s, e.Error())
		if e.Cause != nil {
			fmt.Fprintf(s, "\n%+v", e.Cause)
		}
		return
	}
	fmt.Fprint(s, e.Error())
}

// wrapCause attaches a pkg/errors stack trace to cause, or fabricates
// one from msg if there is no underlying cause to wrap.
func wrapCause(cause error, msg string) error {
	if cause == nil {
		return errors.New(msg)
	}
	return errors.WithStack(cause)
}

// Startup builds a fatal startup error.
func Startup(cause error, msg string) error {
	return &Error{Kind: KindStartup, Message: msg, Cause: wrapCause(cause, msg)}
}

// TransientIO builds a recoverable I/O error.
func TransientIO(cause error) error {
	return &Error{Kind: KindTransientIO, Cause: errors.WithStack(cause)}
}

// FatalStage builds a stage-fatal error.
func FatalStage(cause error, msg string) error {
	return &Error{Kind: KindFatalStage, Message: msg, Cause: wrapCause(cause, msg)}
}

// Protocol builds a framing-violation error of the given subkind.
func Protocol(sub ProtocolSubkind, msg string) error {
	return &Error{Kind: KindProtocol, Sub: sub, Message: msg}
}

// DeviceStatus builds an error for a non-zero device ret_code.
func DeviceStatus(code int) error {
	return &Error{Kind: KindDeviceStatus, Code: code}
}

// Shutdown builds the distinguished cancellation error.
func Shutdown() error {
	return &Error{Kind: KindShutdown, Message: "shutdown observed"}
}

// GPU builds a wrapped GPU runtime error.
func GPU(code int, name string) error {
	return &Error{Kind: KindGPU, Code: code, Name: name}
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// IsShutdown reports whether err is (or wraps) the Shutdown sentinel kind.
func IsShutdown(err error) bool { return Is(err, KindShutdown) }
