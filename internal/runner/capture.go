package runner

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// capWriter retains at most max bytes of whatever is written to it and
// discards the rest, so a runaway process cannot grow memory past the cap.
// Write never fails and always reports the full length consumed, which keeps
// the exec pipe copier draining until the process exits.
type capWriter struct {
	buf       bytes.Buffer
	max       int
	total     int64
	truncated bool
}

func newCapWriter(max int) *capWriter {
	return &capWriter{max: max}
}

func (w *capWriter) Write(p []byte) (int, error) {
	w.total += int64(len(p))
	if remain := w.max - w.buf.Len(); remain > 0 {
		if len(p) > remain {
			w.buf.Write(p[:remain])
			w.truncated = true
		} else {
			w.buf.Write(p)
		}
	} else if len(p) > 0 {
		w.truncated = true
	}
	return len(p), nil
}

// Bytes returns the retained prefix.
func (w *capWriter) Bytes() []byte { return w.buf.Bytes() }

// Truncated reports whether anything beyond the cap was discarded.
func (w *capWriter) Truncated() bool { return w.truncated }

// Total is the number of bytes the process actually produced.
func (w *capWriter) Total() int64 { return w.total }

// decodeReplace converts captured process output to a string, replacing
// invalid UTF-8 sequences with the replacement rune.
func decodeReplace(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}
