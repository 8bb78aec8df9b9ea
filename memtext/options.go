package memtext

import "time"

// config is populated by envconfig.Process for NewFromEnv, and built
// directly from New's servers argument otherwise.
type config struct {
	Servers        []string      `envconfig:"MEMTEXT_SERVERS"`
	Namespace      string        `envconfig:"MEMTEXT_NAMESPACE" default:""`
	ReadOnly       bool          `envconfig:"MEMTEXT_READONLY" default:"false"`
	Multithread    bool          `envconfig:"MEMTEXT_MULTITHREAD" default:"false"`
	RequestTimeout time.Duration `envconfig:"MEMTEXT_REQUEST_TIMEOUT" default:"500ms"`
}

type options struct {
	cfg            config
	serializer     Serializer
	disableLogger  bool
	disableMetrics bool
	dial           dialFunc
}

// Option customizes a Client at construction time.
type Option func(*options)

// WithNamespace sets the key prefix every wire key is qualified with.
// By default, no namespace is applied.
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.cfg.Namespace = ns
	}
}

// WithReadOnly rejects mutating operations (Set, Add, Delete) before any
// socket I/O is attempted.
func WithReadOnly() Option {
	return func(o *options) {
		o.cfg.ReadOnly = true
	}
}

// WithMultithread enables the client-wide mutex that serializes every
// public operation, including per-endpoint socket access, so the client
// may safely be shared across goroutines.
func WithMultithread() Option {
	return func(o *options) {
		o.cfg.Multithread = true
	}
}

// WithRequestTimeout sets the wall-clock bound on awaiting a server
// response. By default, DefaultRequestTimeout is used.
func WithRequestTimeout(t time.Duration) Option {
	return func(o *options) {
		o.cfg.RequestTimeout = t
	}
}

// WithSerializer overrides the default RawSerializer used to encode and
// decode stored values.
func WithSerializer(s Serializer) Option {
	return func(o *options) {
		o.serializer = s
	}
}

// WithDisableLogger turns off the package's internal logging.
func WithDisableLogger() Option {
	return func(o *options) {
		o.disableLogger = true
	}
}

// WithDisableMetrics turns off the library's Prometheus metrics.
//
//	gomemtext_operation_duration_seconds
//	gomemtext_dead_servers
func WithDisableMetrics() Option {
	return func(o *options) {
		o.disableMetrics = true
	}
}

// withDialFunc overrides the dial function used to open endpoint
// connections; unexported, used by the package's tests to inject fake
// dialers.
func withDialFunc(d dialFunc) Option {
	return func(o *options) {
		o.dial = d
	}
}
