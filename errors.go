package smartcoex

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidArgument is returned for a bad interface, a missing completion
	// channel, out of range or inconsistent scan timing, or an unknown priority.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrBusy is returned when the Bluetooth stack cannot accept the vendor command now.
	ErrBusy = errors.New("bluetooth stack busy")
)

// FatalError reports a vendor command failure other than busy. Code is the
// status carried by the stack's error (see Coder), or -1 when it has none.
type FatalError struct {
	Code int
	Err  error
}

func (e *FatalError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("vendor specific command failed with error [0x%X]", e.Code)
	}
	return fmt.Sprintf("vendor specific command failed with error [0x%X]: %v", e.Code, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Coder is implemented by stack errors that carry a numeric status.
type Coder interface {
	Code() int
}

func newFatalError(err error) *FatalError {
	fe := &FatalError{Code: -1, Err: err}
	var c Coder
	if errors.As(err, &c) {
		fe.Code = c.Code()
	}
	return fe
}

// IsFatal reports whether err is a *FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
