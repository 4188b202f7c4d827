package gridstore

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/UltimateTournament/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/tuannm99/novagrid/internal/native"
)

const Version = "0.8.0"

// Properties are the connection settings of GetStore. Host may be a
// multicast address, in which case Host and Port select the notification
// group instead of a single node.
type Properties struct {
	Host                 string `mapstructure:"host" validate:"required_without_all=NotificationMember NotificationProvider"`
	Port                 int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	ClusterName          string `mapstructure:"cluster_name" validate:"required"`
	Database             string `mapstructure:"database"`
	Username             string `mapstructure:"username" validate:"required"`
	Password             string `mapstructure:"password"`
	NotificationMember   string `mapstructure:"notification_member"`
	NotificationProvider string `mapstructure:"notification_provider" validate:"omitempty,url"`
	Consistency          string `mapstructure:"consistency" validate:"omitempty,oneof=IMMEDIATE EVENTUAL"`
	TransactionTimeout   int    `mapstructure:"transaction_timeout" validate:"gte=0"`
	FailoverTimeout      int    `mapstructure:"failover_timeout" validate:"gte=0"`
	ContainerCacheSize   int    `mapstructure:"container_cache_size" validate:"gte=0"`
	DataAffinityPattern  string `mapstructure:"data_affinity_pattern"`
}

// isMulticast reports whether host is an IPv4 multicast address
// (224.0.0.0/4).
func isMulticast(host string) bool {
	first, _, ok := strings.Cut(host, ".")
	if !ok {
		return false
	}
	n, err := strconv.Atoi(first)
	if err != nil || n < 0 || n > 255 {
		return false
	}
	return (n>>4)&0x0f == 0x0e
}

func (p Properties) nativeProps() []native.Property {
	var out []native.Property
	add := func(name, value string) {
		if value != "" {
			out = append(out, native.Property{Name: name, Value: value})
		}
	}
	addInt := func(name string, value int) {
		if value > 0 {
			add(name, strconv.Itoa(value))
		}
	}

	if isMulticast(p.Host) {
		add("notificationAddress", p.Host)
		addInt("notificationPort", p.Port)
	} else {
		add("host", p.Host)
		addInt("port", p.Port)
	}
	add("clusterName", p.ClusterName)
	add("database", p.Database)
	add("user", p.Username)
	add("password", p.Password)
	add("notificationMember", p.NotificationMember)
	add("notificationProvider", p.NotificationProvider)
	add("consistency", p.Consistency)
	addInt("transactionTimeout", p.TransactionTimeout)
	addInt("failoverTimeout", p.FailoverTimeout)
	addInt("containerCacheSize", p.ContainerCacheSize)
	add("dataAffinityPattern", p.DataAffinityPattern)
	return out
}

// StoreFactory opens stores through a driver.
type StoreFactory struct {
	driver        native.Driver
	validate      *validator.Validate
	sessionOpts   []SessionOption
	log           zerolog.Logger
	retries       int
	retryInterval time.Duration

	mu     sync.Mutex
	closed bool
}

type FactoryOption func(*StoreFactory)

// WithConnectRetries sets how often GetStore retries a timed out connect.
func WithConnectRetries(n int) FactoryOption {
	return func(f *StoreFactory) {
		if n >= 0 {
			f.retries = n
		}
	}
}

// WithRetryInterval sets the first backoff interval between connects.
func WithRetryInterval(d time.Duration) FactoryOption {
	return func(f *StoreFactory) {
		if d > 0 {
			f.retryInterval = d
		}
	}
}

// WithSessionOptions configures the session of every store opened.
func WithSessionOptions(opts ...SessionOption) FactoryOption {
	return func(f *StoreFactory) { f.sessionOpts = append(f.sessionOpts, opts...) }
}

func WithFactoryLogger(l zerolog.Logger) FactoryOption {
	return func(f *StoreFactory) { f.log = l }
}

func NewStoreFactory(driver native.Driver, opts ...FactoryOption) *StoreFactory {
	f := &StoreFactory{
		driver:        driver,
		validate:      validator.New(),
		log:           zerolog.Nop(),
		retries:       3,
		retryInterval: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// GetStore validates props and connects. Timed out connects are retried
// with exponential backoff; other failures return at once.
func (f *StoreFactory) GetStore(props Properties) (*Store, error) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return nil, stateError("store factory is closed")
	}

	if err := f.validate.Struct(props); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fe.Field() + " (" + fe.Tag() + ")"
			}
			return nil, argumentError("invalid properties: %s", strings.Join(fields, ", "))
		}
		return nil, argumentError("invalid properties: %v", err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = f.retryInterval
	b := backoff.WithMaxRetries(eb, uint64(f.retries))

	var (
		ns      native.Store
		attempt int
	)
	err := backoff.Retry(func() error {
		attempt++
		s, err := f.driver.GetStore(props.nativeProps())
		if err == nil {
			ns = s
			return nil
		}
		if !native.IsTimeout(err) {
			return backoff.Permanent(err)
		}
		f.log.Warn().Err(err).Int("attempt", attempt).Str("cluster", props.ClusterName).Msg("connect timed out")
		return err
	}, b)
	if err != nil {
		return nil, nativeError("store factory", err)
	}

	log := f.log.With().Str("cluster", props.ClusterName).Logger()
	s := NewSession(append([]SessionOption{WithLogger(log)}, f.sessionOpts...)...)
	s.log.Info().Str("database", props.Database).Msg("store opened")
	return s.newStore(ns), nil
}

// Version identifies this client.
func (f *StoreFactory) Version() string {
	return "novagrid Go client " + Version
}

// Close closes the driver. Stores already opened stay usable until closed.
func (f *StoreFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return nativeError("store factory", f.driver.Close())
}
