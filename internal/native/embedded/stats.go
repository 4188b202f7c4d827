package embedded

import "sync/atomic"

// Handles counts live handles per kind.
type Handles struct {
	Stores       int64
	Containers   int64
	Rows         int64
	Queries      int64
	RowSets      int64
	Aggregations int64
	Predicates   int64
	Controllers  int64
}

// Total sums every kind except stores.
func (h Handles) Total() int64 {
	return h.Containers + h.Rows + h.Queries + h.RowSets + h.Aggregations + h.Predicates + h.Controllers
}

type counters struct {
	stores       atomic.Int64
	containers   atomic.Int64
	rows         atomic.Int64
	queries      atomic.Int64
	rowSets      atomic.Int64
	aggregations atomic.Int64
	predicates   atomic.Int64
	controllers  atomic.Int64
}

func (c *counters) snapshot() Handles {
	return Handles{
		Stores:       c.stores.Load(),
		Containers:   c.containers.Load(),
		Rows:         c.rows.Load(),
		Queries:      c.queries.Load(),
		RowSets:      c.rowSets.Load(),
		Aggregations: c.aggregations.Load(),
		Predicates:   c.predicates.Load(),
		Controllers:  c.controllers.Load(),
	}
}
