package comm

import (
	"errors"
	"io"
	"time"
)

// ErrNoDeadline is generated when NewTimeout is given a connection which
// cannot set IO deadlines.
var ErrNoDeadline = errors.New("comm: connection does not support deadlines")

type deadliner interface {
	SetReadDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
}

type timeout struct {
	rw io.ReadWriter
	d  deadliner
	t  time.Duration
}

func (t timeout) Read(p []byte) (int, error) {
	t.d.SetReadDeadline(time.Now().Add(t.t))
	return t.rw.Read(p)
}

func (t timeout) Write(p []byte) (int, error) {
	t.d.SetWriteDeadline(time.Now().Add(t.t))
	return t.rw.Write(p)
}

// NewTimeout wraps a connection so that every Read and Write refreshes the IO
// deadline.  The connection must support deadlines (net.Conn does); otherwise
// ErrNoDeadline is returned.
func NewTimeout(rw io.ReadWriter, t time.Duration) (io.ReadWriter, error) {
	d, ok := rw.(deadliner)
	if !ok {
		return nil, ErrNoDeadline
	}
	return timeout{rw: rw, d: d, t: t}, nil
}

type terminated struct {
	rw     io.ReadWriter
	tx, rx byte
}

func (t terminated) Write(p []byte) (int, error) {
	n, err := t.rw.Write(append(p, t.tx))
	if n > 0 {
		n-- // do not count the terminator against the caller's buffer
	}
	return n, err
}

func (t terminated) Read(p []byte) (int, error) {
	n, err := t.rw.Read(p)
	for n > 0 && p[n-1] == t.rx {
		n--
	}
	return n, err
}

// NewTerminator wraps a connection so that writes are suffixed with tx and
// trailing rx bytes are stripped from reads.
func NewTerminator(rw io.ReadWriter, tx, rx byte) io.ReadWriter {
	return terminated{rw: rw, tx: tx, rx: rx}
}
