package conf

import (
	"encoding/json"
	"fmt"

	"github.com/bluenviron/framesync/internal/correlator"
)

// CorrelationMode is the correlationMode parameter.
type CorrelationMode correlator.Mode

// MarshalJSON implements json.Marshaler.
func (d CorrelationMode) MarshalJSON() ([]byte, error) {
	switch correlator.Mode(d) {
	case correlator.ModeCorrelate, correlator.ModePassthrough:
		return json.Marshal(correlator.Mode(d).String())
	}
	return nil, fmt.Errorf("invalid correlation mode: %v", int(d))
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *CorrelationMode) UnmarshalJSON(b []byte) error {
	var in string
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	switch in {
	case "correlate":
		*d = CorrelationMode(correlator.ModeCorrelate)

	case "passthrough":
		*d = CorrelationMode(correlator.ModePassthrough)

	default:
		return fmt.Errorf("invalid correlation mode: '%s'", in)
	}

	return nil
}

// UnmarshalEnv implements env.Unmarshaler.
func (d *CorrelationMode) UnmarshalEnv(_ string, v string) error {
	return d.UnmarshalJSON([]byte(`"` + v + `"`))
}
