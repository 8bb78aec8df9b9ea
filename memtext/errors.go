package memtext

import "errors"

const libPrefix = "memtext"

var (
	// ErrNoActiveServers means an operation was invoked before any server
	// was configured on the client.
	ErrNoActiveServers = errors.New("memtext: no active servers configured")

	// ErrNoServersAvailable means every candidate server for a key is
	// currently dead; selection exhausted its perturbation budget.
	ErrNoServersAvailable = errors.New("memtext: no servers available for key")

	// ErrNoConnection means the server chosen for a key could not be
	// opened.
	ErrNoConnection = errors.New("memtext: could not open connection to server")

	// ErrReadOnly means a mutating operation was attempted on a
	// read-only client.
	ErrReadOnly = errors.New("memtext: client is read-only")

	// ErrProtocolError means the server's response could not be parsed.
	ErrProtocolError = errors.New("memtext: malformed server response")

	// ErrIOError means the underlying socket failed, including a read
	// that exceeded the request timeout.
	ErrIOError = errors.New("memtext: socket error")

	// ErrUsageError means a caller-supplied argument was invalid: a bad
	// host/port, mixed concurrency modes, or a malformed call.
	ErrUsageError = errors.New("memtext: invalid usage")
)
