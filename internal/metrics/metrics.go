// Package metrics contains the metrics provider.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bluenviron/framesync/internal/conf"
	"github.com/bluenviron/framesync/internal/correlator"
	"github.com/bluenviron/framesync/internal/httpserv"
	"github.com/bluenviron/framesync/internal/logger"
)

func metric(key string, tags string, value int64) string {
	return key + tags + " " + strconv.FormatInt(value, 10) + "\n"
}

type metricsCorrelator interface {
	Stats() correlator.Stats
}

type metricsParent interface {
	logger.Writer
}

// Metrics is a metrics provider.
type Metrics struct {
	Address     string
	ReadTimeout conf.Duration
	Correlator  metricsCorrelator
	Parent      metricsParent

	httpServer *httpserv.WrappedServer
}

// Initialize initializes metrics.
func (m *Metrics) Initialize() error {
	router := gin.New()
	router.SetTrustedProxies(nil) //nolint:errcheck
	router.GET("/metrics", m.onMetrics)

	m.httpServer = &httpserv.WrappedServer{
		Address:     m.Address,
		ReadTimeout: time.Duration(m.ReadTimeout),
		Handler:     router,
		Parent:      m,
	}
	err := m.httpServer.Initialize()
	if err != nil {
		return err
	}

	m.Log(logger.Info, "listener opened on "+m.Address)

	return nil
}

// Close closes Metrics.
func (m *Metrics) Close() {
	m.Log(logger.Info, "listener is closing")
	m.httpServer.Close()
}

// Log implements logger.Writer.
func (m *Metrics) Log(level logger.Level, format string, args ...interface{}) {
	m.Parent.Log(level, "[metrics] "+format, args...)
}

func (m *Metrics) onMetrics(ctx *gin.Context) {
	s := m.Correlator.Stats()
	tags := "{mode=\"" + s.Mode.String() + "\"}"

	out := ""
	out += metric("correlator_ticks", tags, int64(s.Ticks))
	out += metric("correlator_frames", tags, int64(s.Frames))
	out += metric("correlator_frames_matched", tags, int64(s.Matched))
	out += metric("correlator_frames_fallback", tags, int64(s.Fallbacks))
	out += metric("correlator_last_display_time", tags, s.LastDisplayTime)
	out += metric("correlation_entries", tags, int64(s.Table.Entries))
	out += metric("correlation_recorded", tags, int64(s.Table.Recorded))
	out += metric("correlation_overwritten", tags, int64(s.Table.Overwritten))
	out += metric("correlation_resolved", tags, int64(s.Table.Resolved))
	out += metric("correlation_missed", tags, int64(s.Table.Missed))
	out += metric("correlation_evicted", tags, int64(s.Table.Evicted))

	ctx.Writer.Header().Set("Content-Type", "text/plain; version=0.0.4")
	ctx.Writer.WriteHeader(http.StatusOK)
	ctx.Writer.Write([]byte(out)) //nolint:errcheck
}
