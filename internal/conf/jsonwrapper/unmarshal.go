// Package jsonwrapper contains a JSON unmarshaler.
package jsonwrapper

import (
	"bytes"
	"encoding/json"
)

// Unmarshal decodes JSON.
// Differently from the standard package, unknown fields are rejected.
func Unmarshal(buf []byte, dest any) error {
	d := json.NewDecoder(bytes.NewReader(buf))
	d.DisallowUnknownFields()
	return d.Decode(dest)
}
