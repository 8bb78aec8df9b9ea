// Package memtext is a client for a distributed in-memory key/value cache
// cluster speaking the classic memcached ASCII protocol. Keys are spread
// across a weighted bucket ring of server endpoints; a server that
// refuses to connect is marked dead for a cooldown window and skipped by
// rehashing to an alternate during that window.
package memtext

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/exp/maps"

	"github.com/go-memtext/memtext/addr"
	"github.com/go-memtext/memtext/fanout"
	"github.com/go-memtext/memtext/hashring"
	"github.com/go-memtext/memtext/logger"
)

const (
	// DefaultRequestTimeout is the read/write timeout used when no
	// WithRequestTimeout option is supplied.
	DefaultRequestTimeout = 500 * time.Millisecond

	// DefaultFanoutConcurrency bounds how many per-server goroutines
	// GetMulti and Stats may have in flight for a single call.
	DefaultFanoutConcurrency = 8
)

// Client is a memtext client. A Client constructed without
// WithMultithread is safe only for exclusive use by its owner; one
// constructed with WithMultithread serializes every public operation
// through a single client-wide mutex and may be shared freely.
type Client struct {
	mu *sync.Mutex

	cfg        config
	ring       *hashring.BucketRing
	endpoints  []*endpoint
	serializer Serializer

	disableMetrics bool
}

// New builds a client from an explicit server list. Each entry is
// "host", "host:port" or "host:port:weight"; a missing port defaults to
// 11211, a missing weight to 1.
func New(servers []string, opts ...Option) (*Client, error) {
	o := &options{
		cfg:        config{RequestTimeout: DefaultRequestTimeout},
		serializer: RawSerializer{},
		dial:       net.DialTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.cfg.Servers = servers
	return newClient(o)
}

// NewFromEnv builds a client from MEMTEXT_SERVERS and friends (see
// SPEC_FULL.md's environment variable table), with any opts layered on
// top of the environment-derived configuration.
func NewFromEnv(opts ...Option) (*Client, error) {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", libPrefix, err)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	o := &options{
		cfg:        cfg,
		serializer: RawSerializer{},
		dial:       net.DialTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return newClient(o)
}

func newClient(o *options) (*Client, error) {
	if o.disableLogger {
		logger.Disable()
	}
	if len(o.cfg.Servers) == 0 {
		return nil, fmt.Errorf("%w: no servers configured", ErrUsageError)
	}

	endpoints := make([]*endpoint, 0, len(o.cfg.Servers))
	entries := make([]hashring.Entry, 0, len(o.cfg.Servers))
	for _, s := range o.cfg.Servers {
		spec, err := addr.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUsageError, err.Error())
		}
		ep := newEndpoint(spec.Host, spec.Port, spec.Weight, o.dial)
		endpoints = append(endpoints, ep)
		entries = append(entries, hashring.Entry{Node: ep, Weight: spec.Weight})
	}

	ring := hashring.NewBucketRing()
	ring.SetServers(entries)

	c := &Client{
		cfg:            o.cfg,
		ring:           ring,
		endpoints:      endpoints,
		serializer:     o.serializer,
		disableMetrics: o.disableMetrics,
	}
	if o.cfg.Multithread {
		c.mu = new(sync.Mutex)
	}

	logger.Infof("memtext: client configured with %d server(s), multithread=%t", len(endpoints), o.cfg.Multithread)
	return c, nil
}

func (c *Client) lock() {
	if c.mu != nil {
		c.mu.Lock()
	}
}

func (c *Client) unlock() {
	if c.mu != nil {
		c.mu.Unlock()
	}
}

func (c *Client) qualify(key string) string {
	if c.cfg.Namespace == "" {
		return key
	}
	return c.cfg.Namespace + ":" + key
}

// observe times fn and, unless metrics are disabled, records its duration
// under operation and refreshes the dead-server gauge.
func (c *Client) observe(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	if !c.disableMetrics {
		observeOperationDurationSeconds(operation, time.Since(start).Seconds(), err == nil)
		c.lock()
		n := c.countDead()
		c.unlock()
		setDeadServers(n)
	}
	return err
}

// countDead copies each endpoint's status into a map, snapshots it via
// maps.Clone and counts the dead entries. observe calls it with the client
// lock held, so no endpoint changes status mid-count.
func (c *Client) countDead() int {
	statuses := make(map[*endpoint]endpointStatus, len(c.endpoints))
	for _, ep := range c.endpoints {
		statuses[ep] = ep.status
	}
	snapshot := maps.Clone(statuses)

	n := 0
	for _, status := range snapshot {
		if status == dead {
			n++
		}
	}
	return n
}

// selectEndpoint picks a live server for qkey per §4.3: a direct pick on
// a single-server roster, otherwise up to maxBucketTries perturbation
// attempts against the bucket ring.
func (c *Client) selectEndpoint(qkey string) (*endpoint, net.Conn, error) {
	if len(c.endpoints) == 0 {
		return nil, nil, ErrNoActiveServers
	}
	if len(c.endpoints) == 1 {
		ep := c.endpoints[0]
		conn, ok := ep.ensureOpen()
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrNoConnection, ep.addr())
		}
		return ep, conn, nil
	}

	key := []byte(qkey)
	h := hashring.Hash(key)
	for try := 0; try < maxBucketTries; try++ {
		if node, ok := c.ring.At(int(h)); ok {
			ep := node.(*endpoint)
			if conn, ok := ep.ensureOpen(); ok {
				return ep, conn, nil
			}
		}
		h = hashring.Perturb(key, h, try)
	}
	return nil, nil, ErrNoServersAvailable
}

// Get retrieves a single value. It returns (nil, nil) on a cache miss.
func (c *Client) Get(key string) (any, error) {
	var out any
	err := c.observe("get", func() error {
		c.lock()
		defer c.unlock()

		qkey := c.qualify(key)
		ep, conn, err := c.selectEndpoint(qkey)
		if err != nil {
			return err
		}

		if err := setDeadline(conn, c.cfg.RequestTimeout); err != nil {
			ep.close()
			return err
		}
		if err := writeLine(conn, verbGet, qkey); err != nil {
			ep.close()
			return err
		}

		line, err := readLine(ep.br)
		if err != nil {
			ep.close()
			return err
		}
		if line == endMarker {
			return nil
		}

		vl, err := parseValueLine(line)
		if err != nil {
			ep.close()
			return err
		}
		data, err := readExactly(ep.br, vl.size)
		if err != nil {
			ep.close()
			return err
		}
		tail, err := readLine(ep.br)
		if err != nil {
			ep.close()
			return err
		}
		if tail != endMarker {
			ep.close()
			return fmt.Errorf("%w: expected END after value block, got %q", ErrProtocolError, tail)
		}

		decoded, err := c.serializer.Decode(data)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrProtocolError, err.Error())
		}
		out = decoded
		return nil
	})
	return out, err
}

// GetMulti retrieves every key it can, grouping qualified keys by the
// server that owns them and issuing one "get" per server. The returned
// map is keyed by the caller's original (unqualified) keys; missing or
// unreachable keys are simply absent.
func (c *Client) GetMulti(keys []string) (map[string]any, error) {
	var out map[string]any
	err := c.observe("get_multi", func() error {
		c.lock()
		defer c.unlock()

		if len(c.endpoints) == 0 {
			return ErrNoActiveServers
		}

		type group struct {
			ep    *endpoint
			qkeys []string
		}
		groups := make(map[*endpoint]*group)
		originalOf := make(map[string]string, len(keys))

		for _, k := range keys {
			qkey := c.qualify(k)
			originalOf[qkey] = k

			ep, _, err := c.selectEndpoint(qkey)
			if err != nil {
				logger.Warnf("get_multi: skipping key %q: %v", k, err)
				continue
			}
			g, ok := groups[ep]
			if !ok {
				g = &group{ep: ep}
				groups[ep] = g
			}
			g.qkeys = append(g.qkeys, qkey)
		}

		results := make(map[string][]byte)
		var resultsMu sync.Mutex

		servedBy := maps.Keys(groups)
		tasks := make([]fanout.Task, 0, len(servedBy))
		for _, ep := range servedBy {
			g := groups[ep]
			tasks = append(tasks, func(int) error {
				data, err := c.fetchGroup(g.ep, g.qkeys)
				if err != nil {
					g.ep.close()
					return fmt.Errorf("%s: %w", g.ep.addr(), err)
				}
				resultsMu.Lock()
				for k, v := range data {
					results[k] = v
				}
				resultsMu.Unlock()
				return nil
			})
		}

		if len(tasks) > 0 {
			limiter := fanout.New(DefaultFanoutConcurrency)
			if err := limiter.Run(context.Background(), tasks); err != nil {
				logger.Warnf("get_multi: %v", err)
			}
		}

		out = make(map[string]any, len(results))
		for qkey, raw := range results {
			decoded, err := c.serializer.Decode(raw)
			if err != nil {
				logger.Warnf("get_multi: dropping %q: %v", qkey, err)
				continue
			}
			out[originalOf[qkey]] = decoded
		}
		return nil
	})
	return out, err
}

func (c *Client) fetchGroup(ep *endpoint, qkeys []string) (map[string][]byte, error) {
	if err := setDeadline(ep.conn, c.cfg.RequestTimeout); err != nil {
		return nil, err
	}
	if err := writeLine(ep.conn, append([]string{verbGet}, qkeys...)...); err != nil {
		return nil, err
	}

	out := make(map[string][]byte)
	for {
		line, err := readLine(ep.br)
		if err != nil {
			return nil, err
		}
		if line == endMarker {
			return out, nil
		}
		vl, err := parseValueLine(line)
		if err != nil {
			return nil, err
		}
		data, err := readExactly(ep.br, vl.size)
		if err != nil {
			return nil, err
		}
		out[vl.key] = data
	}
}

// Set stores value under key, encoded by the client's serializer. An
// expiry of 0 means the value never expires.
func (c *Client) Set(key string, value any, expiry uint32) error {
	return c.observe("set", func() error {
		c.lock()
		defer c.unlock()

		if c.cfg.ReadOnly {
			return ErrReadOnly
		}
		qkey := c.qualify(key)
		data, err := c.serializer.Encode(value)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrUsageError, err.Error())
		}

		ep, conn, err := c.selectEndpoint(qkey)
		if err != nil {
			return err
		}
		if err := setDeadline(conn, c.cfg.RequestTimeout); err != nil {
			ep.close()
			return err
		}
		if err := writeLine(conn, verbSet, qkey, "0", strconv.Itoa(int(expiry)), strconv.Itoa(len(data))); err != nil {
			ep.close()
			return err
		}
		if err := writeBlock(conn, data); err != nil {
			ep.close()
			return err
		}
		if _, err := readLine(ep.br); err != nil {
			ep.close()
			return err
		}
		return nil
	})
}

// Add stores value under key only if the server does not already have
// it. It returns the stored value when the server replies STORED, and
// (nil, nil) otherwise — this is not an error, per §4.4/§8's add law.
func (c *Client) Add(key string, value any, expiry uint32) (any, error) {
	var out any
	err := c.observe("add", func() error {
		c.lock()
		defer c.unlock()

		if c.cfg.ReadOnly {
			return ErrReadOnly
		}
		qkey := c.qualify(key)
		data, err := c.serializer.Encode(value)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrUsageError, err.Error())
		}

		ep, conn, err := c.selectEndpoint(qkey)
		if err != nil {
			return err
		}
		if err := setDeadline(conn, c.cfg.RequestTimeout); err != nil {
			ep.close()
			return err
		}
		if err := writeLine(conn, verbAdd, qkey, "0", strconv.Itoa(int(expiry)), strconv.Itoa(len(data))); err != nil {
			ep.close()
			return err
		}
		if err := writeBlock(conn, data); err != nil {
			ep.close()
			return err
		}
		line, err := readLine(ep.br)
		if err != nil {
			ep.close()
			return err
		}
		if line == storedMarker {
			out = value
		}
		return nil
	})
	return out, err
}

// Delete removes key, optionally deferred by delay seconds.
func (c *Client) Delete(key string, delay uint32) error {
	return c.observe("delete", func() error {
		c.lock()
		defer c.unlock()

		if c.cfg.ReadOnly {
			return ErrReadOnly
		}
		qkey := c.qualify(key)

		ep, conn, err := c.selectEndpoint(qkey)
		if err != nil {
			return err
		}
		if err := setDeadline(conn, c.cfg.RequestTimeout); err != nil {
			ep.close()
			return err
		}
		if err := writeLine(conn, verbDelete, qkey, strconv.Itoa(int(delay))); err != nil {
			ep.close()
			return err
		}
		if _, err := readLine(ep.br); err != nil {
			ep.close()
			return err
		}
		return nil
	})
}

// Stats queries every configured server and returns its stat lines
// keyed by "host:port", then by stat name. Values are returned as the
// wire sent them; the caller parses them as needed.
func (c *Client) Stats() (map[string]map[string]string, error) {
	var out map[string]map[string]string
	err := c.observe("stats", func() error {
		c.lock()
		defer c.unlock()

		if len(c.endpoints) == 0 {
			return ErrNoActiveServers
		}

		results := make(map[string]map[string]string, len(c.endpoints))
		var resultsMu sync.Mutex

		eps := c.endpoints
		tasks := make([]fanout.Task, len(eps))
		for i, ep := range eps {
			ep := ep
			tasks[i] = func(int) error {
				conn, ok := ep.ensureOpen()
				if !ok {
					return fmt.Errorf("%w: %s", ErrNoConnection, ep.addr())
				}
				stats, err := c.fetchStats(ep, conn)
				if err != nil {
					ep.close()
					return fmt.Errorf("%s: %w", ep.addr(), err)
				}
				resultsMu.Lock()
				results[ep.addr()] = stats
				resultsMu.Unlock()
				return nil
			}
		}

		limiter := fanout.New(DefaultFanoutConcurrency)
		if err := limiter.Run(context.Background(), tasks); err != nil {
			logger.Warnf("stats: %v", err)
		}

		out = results
		return nil
	})
	return out, err
}

func (c *Client) fetchStats(ep *endpoint, conn net.Conn) (map[string]string, error) {
	if err := setDeadline(conn, c.cfg.RequestTimeout); err != nil {
		return nil, err
	}
	if err := writeLine(conn, verbStats); err != nil {
		return nil, err
	}

	out := make(map[string]string)
	for {
		line, err := readLine(ep.br)
		if err != nil {
			return nil, err
		}
		if line == endMarker {
			return out, nil
		}
		sl, err := parseStatLine(line)
		if err != nil {
			return nil, err
		}
		out[sl.name] = sl.value
	}
}

// Reset closes every server's socket without marking it dead. The next
// operation on each endpoint attempts reconnection immediately.
func (c *Client) Reset() {
	c.lock()
	defer c.unlock()
	for _, ep := range c.endpoints {
		ep.close()
	}
	logger.Info("memtext: reset, every endpoint connection closed")
}

// Servers returns a snapshot of every configured endpoint's identity and
// current status.
func (c *Client) Servers() []ServerInfo {
	c.lock()
	defer c.unlock()
	out := make([]ServerInfo, len(c.endpoints))
	for i, ep := range c.endpoints {
		out[i] = ep.info()
	}
	return out
}
