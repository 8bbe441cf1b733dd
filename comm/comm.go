/*Package comm provides pooled connections and IO wrappers for talking to
motion hardware over TCP or serial links.

A device client holds a Pool, usually of size 1, and for each transaction:

	conn, err := pool.Get()
	// handle err
	wrap := comm.NewTerminator(comm.NewTimeout(conn, timeout), '\n', '\n')
	// write, read
	pool.ReturnWithError(conn, err)

The pool reopens connections lazily and frees them after an idle period, so a
long-running client does not hold a socket open between tests.
*/
package comm

import (
	"errors"
	"io"
	"sync"
	"time"
)

// ErrPoolClosed is returned by Get after Close has been called.
var ErrPoolClosed = errors.New("comm: pool is closed")

// Maker creates a new connection to a device.  Use a closure to capture the
// address and any dial options.
type Maker func() (io.ReadWriteCloser, error)

// Pool holds up to maxSize connections to one device, lazily created and
// reclaimed after an idle timeout.  It is concurrent safe.  Create with NewPool.
type Pool struct {
	mu      sync.Mutex
	maxSize int
	onLease int
	idle    []io.ReadWriteCloser
	maker   Maker
	timeout time.Duration
	timer   *time.Timer
	closed  bool
}

// NewPool creates a pool of up to maxSize connections which are closed after
// being idle for timeout.
func NewPool(maxSize int, timeout time.Duration, maker Maker) *Pool {
	p := &Pool{
		maxSize: maxSize,
		maker:   maker,
		timeout: timeout,
	}
	p.timer = time.AfterFunc(timeout, p.reclaim)
	p.timer.Stop()
	return p
}

// Get retrieves a connection, creating one if none are idle.  The caller must
// hand the connection back with Put, Destroy, or ReturnWithError.
func (p *Pool) Get() (io.ReadWriteCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	p.timer.Stop()
	if n := len(p.idle); n > 0 {
		conn := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.onLease++
		return conn, nil
	}
	conn, err := p.maker()
	if err == nil {
		p.onLease++
	}
	return conn, err
}

// Put returns a healthy connection to the pool for reuse.  Connections in
// excess of the pool size are closed rather than retained.
func (p *Pool) Put(conn io.ReadWriteCloser) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onLease--
	if p.closed || len(p.idle) >= p.maxSize {
		conn.Close()
		return
	}
	p.idle = append(p.idle, conn)
	if p.onLease == 0 {
		p.timer.Reset(p.timeout)
	}
}

// Destroy closes a connection that has gone bad instead of returning it.
func (p *Pool) Destroy(conn io.ReadWriteCloser) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onLease--
	conn.Close()
}

// ReturnWithError Puts the connection if err is nil and Destroys it otherwise.
// IO errors leave a connection in an unknown framing state, so it is not safe
// to reuse.
func (p *Pool) ReturnWithError(conn io.ReadWriteCloser, err error) {
	if err != nil {
		p.Destroy(conn)
		return
	}
	p.Put(conn)
}

// Size returns the number of connections owned by the pool, idle or leased.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle) + p.onLease
}

// Close destroys all idle connections and marks the pool unusable.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.timer.Stop()
	for _, c := range p.idle {
		c.Close()
	}
	p.idle = nil
}

func (p *Pool) reclaim() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.idle {
		c.Close()
	}
	p.idle = nil
}
