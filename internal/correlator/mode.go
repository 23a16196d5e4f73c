package correlator

import "fmt"

// Mode is the way display times are produced.
type Mode int

// modes.
const (
	// ModeCorrelate returns the display time received for the latched frame.
	ModeCorrelate Mode = iota

	// ModePassthrough returns the native timestamp of the latched frame.
	ModePassthrough
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeCorrelate:
		return "correlate"
	case ModePassthrough:
		return "passthrough"
	}
	return fmt.Sprintf("unknown (%d)", int(m))
}
