// Package embedded is an in-process implementation of the native client
// surface. Containers live in memory for the lifetime of the Driver.
package embedded

import (
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/tuannm99/novagrid/internal/native"
)

const (
	DefaultPartitionCount = 128
	DefaultDatabase       = "public"
)

var knownProperties = map[string]bool{
	"host":                 true,
	"port":                 true,
	"notificationAddress":  true,
	"notificationPort":     true,
	"notificationMember":   true,
	"notificationProvider": true,
	"clusterName":          true,
	"database":             true,
	"user":                 true,
	"password":             true,
	"consistency":          true,
	"transactionTimeout":   true,
	"failoverTimeout":      true,
	"containerCacheSize":   true,
	"dataAffinityPattern":  true,
}

type Option func(*Driver)

// WithPartitionCount sets the partition count of clusters created later.
func WithPartitionCount(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.partitionCount = n
		}
	}
}

type Driver struct {
	mu             sync.Mutex
	clusters       map[string]*cluster
	partitionCount int
	closed         bool

	open counters
}

var _ native.Driver = (*Driver)(nil)

func New(opts ...Option) *Driver {
	d := &Driver{
		clusters:       make(map[string]*cluster),
		partitionCount: DefaultPartitionCount,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OpenHandles reports how many handles are currently open.
func (d *Driver) OpenHandles() Handles {
	return d.open.snapshot()
}

type cluster struct {
	name           string
	user, password string
	partitionCount int

	mu  sync.Mutex
	dbs map[string]*database
}

type database struct {
	name string

	mu         sync.RWMutex
	containers map[string]*containerState // keyed by lower-cased name
}

func (c *cluster) database(name string) *database {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := strings.ToLower(name)
	db, ok := c.dbs[key]
	if !ok {
		db = &database{name: name, containers: make(map[string]*containerState)}
		c.dbs[key] = db
	}
	return db
}

func (c *cluster) partitionOf(name string) int32 {
	h := xxhash.Sum64String(strings.ToLower(name))
	return int32(h % uint64(c.partitionCount))
}

func (d *Driver) GetStore(props []native.Property) (native.Store, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, errClosed("driver")
	}

	m := make(map[string]string, len(props))
	for _, p := range props {
		if !knownProperties[p.Name] {
			return nil, fail(native.CodeIllegalParameter, "unknown property %q", p.Name)
		}
		m[p.Name] = p.Value
	}

	if m["host"] == "" && m["notificationAddress"] == "" &&
		m["notificationMember"] == "" && m["notificationProvider"] == "" {
		return nil, fail(native.CodeEmptyParameter, "no host, notificationAddress, notificationMember or notificationProvider given")
	}
	for _, key := range []string{"port", "notificationPort"} {
		if v := m[key]; v != "" {
			port, err := strconv.Atoi(v)
			if err != nil || port <= 0 || port > 65535 {
				return nil, fail(native.CodeIllegalParameter, "invalid %s %q", key, v)
			}
		}
	}
	if m["clusterName"] == "" {
		return nil, fail(native.CodeEmptyParameter, "clusterName is required")
	}
	if m["user"] == "" {
		return nil, fail(native.CodeEmptyParameter, "user is required")
	}

	cl, ok := d.clusters[m["clusterName"]]
	if !ok {
		cl = &cluster{
			name:           m["clusterName"],
			user:           m["user"],
			password:       m["password"],
			partitionCount: d.partitionCount,
			dbs:            make(map[string]*database),
		}
		d.clusters[cl.name] = cl
	}
	if cl.user != m["user"] || cl.password != m["password"] {
		return nil, fail(native.CodeAuth, "authentication failed for user %q", m["user"])
	}

	dbName := m["database"]
	if dbName == "" {
		dbName = DefaultDatabase
	}

	d.open.stores.Add(1)
	return &store{d: d, cl: cl, db: cl.database(dbName)}, nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
