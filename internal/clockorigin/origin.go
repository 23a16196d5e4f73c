// Package clockorigin contains a first-sample clock origin.
package clockorigin

import (
	"sync/atomic"
)

// Origin is the first sample observed on a timeline.
// It is set at most once; later attempts are no-ops.
type Origin struct {
	value atomic.Pointer[int64]
}

// Init sets the origin if it has not been set yet, and returns the
// origin in effect after the call.
func (o *Origin) Init(v int64) int64 {
	if o.value.CompareAndSwap(nil, &v) {
		return v
	}
	return *o.value.Load()
}

// Get returns the origin, if set.
func (o *Origin) Get() (int64, bool) {
	v := o.value.Load()
	if v == nil {
		return 0, false
	}
	return *v, true
}

// Normalize returns v relative to the origin.
// It returns false when the origin has not been set.
func (o *Origin) Normalize(v int64) (int64, bool) {
	orig, ok := o.Get()
	if !ok {
		return 0, false
	}
	return v - orig, true
}
