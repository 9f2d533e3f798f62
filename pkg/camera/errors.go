package camera

import (
	"fmt"
	"strings"

	"github.com/tauraamui/xerror"
)

// Error categories. Every error returned by a Manager, Device or Stream
// matches exactly one of these with errors.Is.
var (
	ErrEnumeration = xerror.New("device enumeration failed")
	ErrQuery       = xerror.New("device query failed")
	ErrOpen        = xerror.New("unable to open stream")
	ErrStart       = xerror.New("unable to start stream")
	ErrStop        = xerror.New("unable to stop stream cleanly")
	ErrCapability  = xerror.New("capability operation failed")
)

// Reasons carried inside a category.
var (
	ErrUnsupportedConfig     = xerror.New("unsupported stream configuration")
	ErrDeviceBusy            = xerror.New("device busy")
	ErrAlreadyRunning        = xerror.New("stream already running")
	ErrStreamStopped         = xerror.New("stream stopped")
	ErrNoHandler             = xerror.New("no frame handler")
	ErrUnsupportedCapability = xerror.New("capability not supported")
	ErrConfigLocked          = xerror.New("configuration lock unavailable")
	ErrInvalidFrame          = xerror.New("invalid frame")
)

// Error keeps the backend's own error value intact, the message is only
// built when asked for.
type Error struct {
	Op     string
	Kind   error
	Device string
	// Err is either one of the reason sentinels or the native backend error.
	Err    error
	Config *StreamConfig
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString(e.Op)
	}
	if len(e.Device) > 0 {
		b.WriteString(" [")
		b.WriteString(e.Device)
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Config != nil {
		b.WriteString(": ")
		b.WriteString(e.Config.String())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func EnumerationError(native error) error {
	return &Error{Op: "enumerate", Kind: ErrEnumeration, Err: native}
}

func QueryError(device string, native error) error {
	return &Error{Op: "query", Kind: ErrQuery, Device: device, Err: native}
}

func UnsupportedConfigError(device string, cfg StreamConfig) error {
	return &Error{Op: "open", Kind: ErrOpen, Device: device, Err: ErrUnsupportedConfig, Config: &cfg}
}

func DeviceBusyError(device string, native error) error {
	e := &Error{Op: "open", Kind: ErrOpen, Device: device, Err: ErrDeviceBusy}
	if native != nil {
		e.Err = fmt.Errorf("%w: %w", ErrDeviceBusy, native)
	}
	return e
}

func OpenError(device string, native error) error {
	return &Error{Op: "open", Kind: ErrOpen, Device: device, Err: native}
}

func StartError(device string, native error) error {
	return &Error{Op: "start", Kind: ErrStart, Device: device, Err: native}
}

func AlreadyRunningError(device string) error {
	return &Error{Op: "start", Kind: ErrStart, Device: device, Err: ErrAlreadyRunning}
}

func StopError(device string, native error) error {
	return &Error{Op: "stop", Kind: ErrStop, Device: device, Err: native}
}

// CapabilityError reports op failing, reason is ErrUnsupportedCapability,
// ErrConfigLocked or a native backend error.
func CapabilityError(device, op string, reason error) error {
	return &Error{Op: op, Kind: ErrCapability, Device: device, Err: reason}
}
