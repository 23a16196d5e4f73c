package pprof //nolint:revive

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bluenviron/framesync/internal/conf"
	"github.com/bluenviron/framesync/internal/test"
)

func TestHeap(t *testing.T) {
	pp := &PPROF{
		Address:     "127.0.0.1:9999",
		ReadTimeout: conf.Duration(10 * time.Second),
		Parent:      test.NilLogger,
	}
	err := pp.Initialize()
	require.NoError(t, err)
	defer pp.Close()

	tr := &http.Transport{}
	defer tr.CloseIdleConnections()
	hc := &http.Client{Transport: tr}

	res, err := hc.Get("http://127.0.0.1:9999/debug/pprof/heap")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)

	byts, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.NotEmpty(t, byts)
}
