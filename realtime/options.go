package realtime

import (
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/jrsteele09/go-dashboard-core/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	PerformanceChannelName  = "performance-updates"
	NotificationChannelName = "notifications"

	PerformanceEvent  = "performance_update"
	NotificationEvent = "notification"

	PerformanceCapacity  = 20
	NotificationCapacity = 10

	defaultPerformanceInterval  = 15 * time.Second
	defaultNotificationInterval = 30 * time.Second
)

type options struct {
	transport        Transport
	clock            clockwork.Clock
	logger           *zerolog.Logger
	metrics          *metrics.Metrics
	interval         time.Duration
	rand             *rand.Rand
	performanceSeed  []PerformanceUpdate
	notificationSeed []Notification
}

// Option defines a function type to modify a channel.
type Option func(*options)

// WithTransport binds the channel to a realtime transport. Without one the channel only
// carries synthetic and locally broadcast events.
func WithTransport(t Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithLogger replaces the component logger. Every channel logger carries the channel name.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithInterval sets the synthetic generator period
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithRandSeed makes the synthetic generator deterministic
func WithRandSeed(seed int64) Option {
	return func(o *options) {
		o.rand = rand.New(rand.NewSource(seed))
	}
}

// WithPerformanceSeed sets the initial performance window. The seed is kept as given.
func WithPerformanceSeed(updates ...PerformanceUpdate) Option {
	return func(o *options) {
		o.performanceSeed = updates
	}
}

// WithNotificationSeed sets the initial notification list. The seed is kept as given.
func WithNotificationSeed(notifications ...Notification) Option {
	return func(o *options) {
		o.notificationSeed = notifications
	}
}

func buildOptions(name string, interval time.Duration, opts []Option) options {
	o := options{
		clock:    clockwork.NewRealClock(),
		interval: interval,
	}
	for _, opt := range opts {
		opt(&o)
	}
	base := log.With().Str("component", "realtime").Logger()
	if o.logger != nil {
		base = *o.logger
	}
	l := base.With().Str("channel", name).Logger()
	o.logger = &l
	if o.rand == nil {
		o.rand = rand.New(rand.NewSource(o.clock.Now().UnixNano()))
	}
	return o
}
