package conf

import (
	"encoding/json"
	"fmt"

	"github.com/bluenviron/framesync/internal/logger"
)

var logLevelNames = map[logger.Level]string{
	logger.Debug: "debug",
	logger.Info:  "info",
	logger.Warn:  "warn",
	logger.Error: "error",
}

// LogLevel is the logLevel parameter.
type LogLevel logger.Level

// MarshalJSON implements json.Marshaler.
func (d LogLevel) MarshalJSON() ([]byte, error) {
	name, ok := logLevelNames[logger.Level(d)]
	if !ok {
		return nil, fmt.Errorf("invalid log level: %v", int(d))
	}
	return json.Marshal(name)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *LogLevel) UnmarshalJSON(b []byte) error {
	var in string
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	for level, name := range logLevelNames {
		if name == in {
			*d = LogLevel(level)
			return nil
		}
	}

	return fmt.Errorf("invalid log level: '%s'", in)
}

// UnmarshalEnv implements env.Unmarshaler.
func (d *LogLevel) UnmarshalEnv(_ string, v string) error {
	return d.UnmarshalJSON([]byte(`"` + v + `"`))
}
