package metrics

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bluenviron/framesync/internal/conf"
	"github.com/bluenviron/framesync/internal/correlation"
	"github.com/bluenviron/framesync/internal/correlator"
	"github.com/bluenviron/framesync/internal/test"
)

type dummyCorrelator struct{}

func (dummyCorrelator) Stats() correlator.Stats {
	return correlator.Stats{
		Mode: correlator.ModeCorrelate,
		Table: correlation.Stats{
			Entries:     3,
			Recorded:    10,
			Overwritten: 1,
			Resolved:    5,
			Missed:      2,
			Evicted:     1,
		},
		Ticks:           100,
		Frames:          7,
		Matched:         5,
		Fallbacks:       2,
		LastDisplayTime: 123456,
	}
}

func TestMetrics(t *testing.T) {
	m := Metrics{
		Address:     "localhost:9998",
		ReadTimeout: conf.Duration(10 * time.Second),
		Correlator:  dummyCorrelator{},
		Parent:      test.NilLogger,
	}
	err := m.Initialize()
	require.NoError(t, err)
	defer m.Close()

	tr := &http.Transport{}
	defer tr.CloseIdleConnections()
	hc := &http.Client{Transport: tr}

	res, err := hc.Get("http://localhost:9998/metrics")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)

	byts, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	require.Equal(t,
		`correlator_ticks{mode="correlate"} 100`+"\n"+
			`correlator_frames{mode="correlate"} 7`+"\n"+
			`correlator_frames_matched{mode="correlate"} 5`+"\n"+
			`correlator_frames_fallback{mode="correlate"} 2`+"\n"+
			`correlator_last_display_time{mode="correlate"} 123456`+"\n"+
			`correlation_entries{mode="correlate"} 3`+"\n"+
			`correlation_recorded{mode="correlate"} 10`+"\n"+
			`correlation_overwritten{mode="correlate"} 1`+"\n"+
			`correlation_resolved{mode="correlate"} 5`+"\n"+
			`correlation_missed{mode="correlate"} 2`+"\n"+
			`correlation_evicted{mode="correlate"} 1`+"\n",
		string(byts))
}

func TestMetricsNotFound(t *testing.T) {
	m := Metrics{
		Address:     "localhost:9998",
		ReadTimeout: conf.Duration(10 * time.Second),
		Correlator:  dummyCorrelator{},
		Parent:      test.NilLogger,
	}
	err := m.Initialize()
	require.NoError(t, err)
	defer m.Close()

	tr := &http.Transport{}
	defer tr.CloseIdleConnections()
	hc := &http.Client{Transport: tr}

	res, err := hc.Get("http://localhost:9998/other")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusNotFound, res.StatusCode)
}
