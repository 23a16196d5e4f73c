package httpserv

import (
	"net/http"
	"runtime/debug"

	"github.com/bluenviron/framesync/internal/logger"
)

// a panic inside a handler leaves the process in an unknown state,
// log it with the stack trace and exit.
// https://github.com/golang/go/issues/16542
type handlerExitOnPanic struct {
	http.Handler
	log  logger.Writer
	exit func(code int)
}

func (h *handlerExitOnPanic) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if v := recover(); v != nil {
			h.log.Log(logger.Error, "panic while serving %s %s: %v\n%s", r.Method, r.URL.Path, v, debug.Stack())
			h.exit(1)
		}
	}()
	h.Handler.ServeHTTP(w, r)
}
