// Package pprof contains a pprof exporter.
package pprof

import (
	"time"

	ginpprof "github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"

	"github.com/bluenviron/framesync/internal/conf"
	"github.com/bluenviron/framesync/internal/httpserv"
	"github.com/bluenviron/framesync/internal/logger"
)

type pprofParent interface {
	logger.Writer
}

// PPROF is a pprof exporter.
type PPROF struct {
	Address     string
	ReadTimeout conf.Duration
	Parent      pprofParent

	httpServer *httpserv.WrappedServer
}

// Initialize initializes PPROF.
func (pp *PPROF) Initialize() error {
	router := gin.New()
	router.SetTrustedProxies(nil) //nolint:errcheck
	ginpprof.Register(router)

	pp.httpServer = &httpserv.WrappedServer{
		Address:     pp.Address,
		ReadTimeout: time.Duration(pp.ReadTimeout),
		Handler:     router,
		Parent:      pp,
	}
	err := pp.httpServer.Initialize()
	if err != nil {
		return err
	}

	pp.Log(logger.Info, "listener opened on "+pp.Address)

	return nil
}

// Close closes PPROF.
func (pp *PPROF) Close() {
	pp.Log(logger.Info, "listener is closing")
	pp.httpServer.Close()
}

// Log implements logger.Writer.
func (pp *PPROF) Log(level logger.Level, format string, args ...interface{}) {
	pp.Parent.Log(level, "[pprof] "+format, args...)
}
