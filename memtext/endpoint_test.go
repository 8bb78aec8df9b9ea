package memtext

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func pipeDialer(client net.Conn, dialErr error) dialFunc {
	return func(string, string, time.Duration) (net.Conn, error) {
		if dialErr != nil {
			return nil, dialErr
		}
		return client, nil
	}
}

func TestEnsureOpen_DialsOnceAndReuses(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	calls := 0
	dial := func(string, string, time.Duration) (net.Conn, error) {
		calls++
		return client, nil
	}

	ep := newEndpoint("cache1", 11211, 1, dial)
	conn1, ok := ep.ensureOpen()
	assert.True(t, ok)
	conn2, ok := ep.ensureOpen()
	assert.True(t, ok)
	assert.Same(t, conn1, conn2)
	assert.Equal(t, 1, calls)
	assert.True(t, ep.isConnected())
}

func TestEnsureOpen_DialFailureMarksDead(t *testing.T) {
	ep := newEndpoint("cache1", 11211, 1, pipeDialer(nil, errors.New("connection refused")))

	_, ok := ep.ensureOpen()
	assert.False(t, ok)
	assert.Equal(t, dead, ep.status)
	assert.True(t, ep.retryAt.After(time.Now()))
	assert.False(t, ep.isConnected())
}

func TestEnsureOpen_SkipsDuringCooldown(t *testing.T) {
	ep := newEndpoint("cache1", 11211, 1, pipeDialer(nil, errors.New("refused")))
	_, ok := ep.ensureOpen()
	assert.False(t, ok)

	calls := 0
	ep.dial = func(string, string, time.Duration) (net.Conn, error) {
		calls++
		return nil, errors.New("should not be called during cooldown")
	}
	_, ok = ep.ensureOpen()
	assert.False(t, ok)
	assert.Equal(t, 0, calls)
}

func TestEnsureOpen_RetriesAfterCooldownElapses(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	ep := newEndpoint("cache1", 11211, 1, pipeDialer(client, nil))
	ep.status = dead
	ep.retryAt = time.Now().Add(-time.Second)

	conn, ok := ep.ensureOpen()
	assert.True(t, ok)
	assert.Same(t, client, conn)
	assert.Equal(t, connected, ep.status)
}

func TestClose_ReturnsToNotConnectedWithoutMarkingDead(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	ep := newEndpoint("cache1", 11211, 1, pipeDialer(client, nil))
	_, ok := ep.ensureOpen()
	assert.True(t, ok)

	ep.close()
	assert.Equal(t, notConnected, ep.status)
	assert.True(t, ep.retryAt.IsZero())
	assert.False(t, ep.isConnected())
}

func TestMarkDead_SetsThirtySecondCooldown(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	ep := newEndpoint("cache1", 11211, 1, pipeDialer(client, nil))
	_, ok := ep.ensureOpen()
	assert.True(t, ok)

	before := time.Now()
	ep.markDead(errors.New("boom"))
	assert.Equal(t, dead, ep.status)
	assert.WithinDuration(t, before.Add(deadCooldown), ep.retryAt, 100*time.Millisecond)
}

func TestServerInfo_ReflectsStatus(t *testing.T) {
	ep := newEndpoint("cache1", 11211, 3, pipeDialer(nil, errors.New("refused")))
	info := ep.info()
	assert.Equal(t, "cache1", info.Host)
	assert.Equal(t, 11211, info.Port)
	assert.Equal(t, 3, info.Weight)
	assert.Equal(t, "not_connected", info.Status)

	_, _ = ep.ensureOpen()
	assert.Equal(t, "dead", ep.info().Status)
}

func TestAddr_JoinsHostAndPort(t *testing.T) {
	ep := newEndpoint("cache1", 11222, 1, nil)
	assert.Equal(t, "cache1:11222", ep.addr())
}
