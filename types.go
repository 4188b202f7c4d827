// Package novagrid is the top-level facade: it re-exports the client types
// of gridstore and opens stores on the in-process embedded driver.
package novagrid

import (
	"github.com/tuannm99/novagrid/gridstore"
	"github.com/tuannm99/novagrid/internal/native/embedded"
)

type (
	Store        = gridstore.Store
	StoreFactory = gridstore.StoreFactory
	Properties   = gridstore.Properties
	Container    = gridstore.Container
	ContainerDef = gridstore.ContainerDef
	ColumnInfo   = gridstore.ColumnInfo
	Query        = gridstore.Query
	RowSet       = gridstore.RowSet
)

// Embedded is a store factory over a private in-memory cluster. Stores
// opened from the same Embedded share data.
type Embedded struct {
	*gridstore.StoreFactory
	driver *embedded.Driver
}

// NewEmbedded creates the cluster with partitions partitions (a default
// when <= 0).
func NewEmbedded(partitions int, opts ...gridstore.FactoryOption) *Embedded {
	var dopts []embedded.Option
	if partitions > 0 {
		dopts = append(dopts, embedded.WithPartitionCount(partitions))
	}
	d := embedded.New(dopts...)
	return &Embedded{StoreFactory: gridstore.NewStoreFactory(d, opts...), driver: d}
}

// OpenHandles is the number of native handles still open, stores excluded.
func (e *Embedded) OpenHandles() int64 {
	return e.driver.OpenHandles().Total()
}
