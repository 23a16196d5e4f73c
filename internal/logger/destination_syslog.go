package logger

import (
	"bytes"
	"io"
	"time"
)

type destinationSysLog struct {
	structured bool
	syslog     io.WriteCloser
	buf        bytes.Buffer
}

func newDestinationSyslog(structured bool, prefix string) (destination, error) {
	syslog, err := newSysLog(prefix)
	if err != nil {
		return nil, err
	}

	return &destinationSysLog{
		structured: structured,
		syslog:     syslog,
	}, nil
}

func (d *destinationSysLog) log(t time.Time, level Level, format string, args ...any) {
	d.buf.Reset()
	if d.structured {
		writeStructured(&d.buf, t, level, format, args)
	} else {
		writePlain(&d.buf, t, level, false, format, args)
	}
	d.syslog.Write(d.buf.Bytes()) //nolint:errcheck
}

func (d *destinationSysLog) close() {
	d.syslog.Close()
}
