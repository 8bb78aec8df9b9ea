package memtext

import (
	"bufio"
	"net"
	"strconv"
	"time"

	"github.com/go-memtext/memtext/logger"
)

const (
	// connectTimeout bounds a single TCP dial attempt.
	connectTimeout = 250 * time.Millisecond
	// deadCooldown is how long a server stays skipped after a failed dial.
	deadCooldown = 30 * time.Second
)

type endpointStatus int

const (
	notConnected endpointStatus = iota
	connected
	dead
)

func (s endpointStatus) String() string {
	switch s {
	case connected:
		return "connected"
	case dead:
		return "dead"
	default:
		return "not_connected"
	}
}

// dialFunc matches net.DialTimeout's signature so tests can substitute a
// fake dialer without touching the network.
type dialFunc func(network, address string, timeout time.Duration) (net.Conn, error)

// endpoint owns exactly one TCP connection to one cache server and tracks
// its {NotConnected, Connected, Dead} status. It is never shared between a
// single-threaded and a multithreaded client; the client facade is the
// sole owner of the mutual-exclusion discipline that makes concurrent
// access to conn/br safe.
type endpoint struct {
	host   string
	port   int
	weight int

	dial dialFunc

	status  endpointStatus
	conn    net.Conn
	br      *bufio.Reader
	retryAt time.Time
}

func newEndpoint(host string, port, weight int, dial dialFunc) *endpoint {
	return &endpoint{host: host, port: port, weight: weight, dial: dial}
}

func (e *endpoint) addr() string {
	return net.JoinHostPort(e.host, strconv.Itoa(e.port))
}

// ensureOpen returns a live connection, dialing one if necessary. It
// returns ok=false without a side effect if the endpoint is dead and its
// cooldown has not elapsed; it returns ok=false after marking the endpoint
// dead if a fresh dial attempt fails.
func (e *endpoint) ensureOpen() (net.Conn, bool) {
	if e.status == connected && e.conn != nil {
		return e.conn, true
	}
	if e.status == dead && time.Now().Before(e.retryAt) {
		return nil, false
	}

	conn, err := e.dial("tcp", e.addr(), connectTimeout)
	if err != nil {
		e.markDead(err)
		return nil, false
	}

	e.conn = conn
	e.br = bufio.NewReader(conn)
	e.status = connected
	logger.Debugf("%s: connected", e.addr())
	return conn, true
}

// close closes the socket if open and returns the endpoint to
// NotConnected. It does not mark the endpoint dead: the client facade
// calls this after a post-connect I/O error so the very next operation
// retries immediately.
func (e *endpoint) close() {
	if e.conn != nil {
		_ = e.conn.Close()
	}
	e.conn = nil
	e.br = nil
	e.status = notConnected
	e.retryAt = time.Time{}
}

// markDead closes the socket if open and skips this endpoint for
// deadCooldown. Reserved for connect-time failures.
func (e *endpoint) markDead(reason error) {
	if e.conn != nil {
		_ = e.conn.Close()
	}
	e.conn = nil
	e.br = nil
	e.retryAt = time.Now().Add(deadCooldown)
	e.status = dead
	logger.Warnf("%s: marked dead, retry at %s, reason: %v", e.addr(), e.retryAt.Format(time.RFC3339), reason)
}

// isConnected is a pure predicate over current state, deliberately
// separate from ensureOpen's effectful dial-if-needed behavior.
func (e *endpoint) isConnected() bool {
	return e.status == connected && e.conn != nil
}

// ServerInfo is a read-only snapshot of one server endpoint, returned by
// Client.Servers for monitoring and operational tooling.
type ServerInfo struct {
	Host   string
	Port   int
	Weight int
	Status string
}

func (e *endpoint) info() ServerInfo {
	return ServerInfo{Host: e.host, Port: e.port, Weight: e.weight, Status: e.status.String()}
}
