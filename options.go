package helio

// proactorOptions holds configuration resolved at NewProactor time.
type proactorOptions struct {
	logger        *Logger
	socketFactory SocketFactory
	maxSpinLimit  uint32
	inboxCapacity int
}

// Option configures a Proactor instance.
type Option interface {
	apply(*proactorOptions)
}

type optionFunc func(*proactorOptions)

func (f optionFunc) apply(opts *proactorOptions) { f(opts) }

// WithLogger attaches a structured logger. The default is nil, which
// disables logging.
func WithLogger(logger *Logger) Option {
	return optionFunc(func(opts *proactorOptions) {
		opts.logger = logger
	})
}

// WithMaxSpinLimit sets how many empty iterations the loop spins before it
// is willing to commit to a blocking wait.
func WithMaxSpinLimit(limit uint32) Option {
	return optionFunc(func(opts *proactorOptions) {
		opts.maxSpinLimit = limit
	})
}

// WithInboxCapacity bounds the cross-thread task inbox. Producers that hit
// the bound park on the availability notifier until the loop drains.
func WithInboxCapacity(capacity int) Option {
	return optionFunc(func(opts *proactorOptions) {
		if capacity > 0 {
			opts.inboxCapacity = capacity
		}
	})
}

// WithSocketFactory registers the constructor CreateSocket delegates to.
// Socket implementations live outside the core; the factory is how they bind
// construction to a proactor.
func WithSocketFactory(factory SocketFactory) Option {
	return optionFunc(func(opts *proactorOptions) {
		opts.socketFactory = factory
	})
}

func resolveOptions(opts []Option) *proactorOptions {
	cfg := &proactorOptions{
		maxSpinLimit:  defaultMaxSpinLimit,
		inboxCapacity: defaultInboxCapacity,
	}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(cfg)
		}
	}
	return cfg
}
