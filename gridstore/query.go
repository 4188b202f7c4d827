package gridstore

import (
	"sync"

	"github.com/tuannm99/novagrid/internal/native"
)

type queryState int

const (
	queryCreated queryState = iota
	queryFetched
	queryClosed
)

// FetchOptions tunes a query before its first fetch. Nil fields keep the
// current setting.
type FetchOptions struct {
	// Limit caps the rows returned; zero or negative means no cap.
	Limit *int
	// Partial allows a remote store to return results in several round
	// trips. The embedded driver always returns the full result at once.
	Partial *bool
}

// Query is a prepared statement bound to its container.
type Query struct {
	s  *Session
	c  *Container
	nq native.Query

	mu      sync.Mutex
	state   queryState
	current RowSet
}

func (q *Query) usable() error {
	if q.state == queryClosed {
		return stateError("query is closed")
	}
	return nil
}

// SetFetchOptions must be called before the first fetch.
func (q *Query) SetFetchOptions(opts FetchOptions) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.usable(); err != nil {
		return err
	}
	if q.state != queryCreated {
		return stateError("fetch options must be set before the first fetch")
	}
	if opts.Limit != nil {
		if err := q.nq.SetFetchLimit(*opts.Limit); err != nil {
			return nativeError("query", err)
		}
	}
	if opts.Partial != nil {
		if err := q.nq.SetFetchPartial(*opts.Partial); err != nil {
			return nativeError("query", err)
		}
	}
	return nil
}

// Fetch runs the query. Any row set from a previous fetch is closed.
func (q *Query) Fetch() (RowSet, error) { return q.fetch(false) }

// FetchForUpdate runs the query locking the selected rows. Auto commit
// must be off.
func (q *Query) FetchForUpdate() (RowSet, error) { return q.fetch(true) }

func (q *Query) fetch(forUpdate bool) (RowSet, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.usable(); err != nil {
		return nil, err
	}
	q.closeCurrent()

	nrs, err := q.nq.Fetch(forUpdate)
	if err != nil {
		return nil, nativeError("query", err)
	}
	return q.adopt(nrs)
}

// RowSet returns the result parked by Store.FetchAll.
func (q *Query) RowSet() (RowSet, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.usable(); err != nil {
		return nil, err
	}
	nrs, err := q.nq.RowSet()
	if err != nil {
		return nil, nativeError("query", err)
	}
	q.closeCurrent()
	return q.adopt(nrs)
}

// adopt must be called with q.mu held.
func (q *Query) adopt(nrs native.RowSet) (RowSet, error) {
	rs, err := q.s.newRowSet(q.c, nrs)
	if err != nil {
		return nil, err
	}
	q.state = queryFetched
	q.current = rs
	return rs, nil
}

// closeCurrent must be called with q.mu held.
func (q *Query) closeCurrent() {
	if q.current != nil {
		_ = q.current.Close()
		q.current = nil
	}
}

// markFetched records a fetch made on the caller's behalf by FetchAll.
func (q *Query) markFetched() {
	q.mu.Lock()
	if q.state == queryCreated {
		q.state = queryFetched
	}
	q.mu.Unlock()
}

// Close closes the query and its current row set.
func (q *Query) Close() error {
	err := q.closeLocal()
	if q.c != nil {
		q.c.untrack(q)
	}
	return err
}

func (q *Query) closeLocal() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state == queryClosed {
		return nil
	}
	q.closeCurrent()
	q.state = queryClosed
	return nativeError("query", q.nq.Close())
}
