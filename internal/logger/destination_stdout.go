package logger

import (
	"bytes"
	"io"
	"os"
	"time"

	"golang.org/x/term"
)

type destinationStdout struct {
	structured bool
	useColor   bool
	w          io.Writer
	buf        bytes.Buffer
}

func newDestionationStdout(structured bool, w io.Writer) destination {
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = !structured && term.IsTerminal(int(f.Fd()))
	}

	return &destinationStdout{
		structured: structured,
		useColor:   useColor,
		w:          w,
	}
}

func (d *destinationStdout) log(t time.Time, level Level, format string, args ...any) {
	d.buf.Reset()
	if d.structured {
		writeStructured(&d.buf, t, level, format, args)
	} else {
		writePlain(&d.buf, t, level, d.useColor, format, args)
	}
	d.w.Write(d.buf.Bytes()) //nolint:errcheck
}

func (d *destinationStdout) close() {
}
