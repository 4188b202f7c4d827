package gridstore

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/tuannm99/novagrid/internal/native"
)

// Store is a connection to one database of a cluster. Closing it closes
// every container opened through it.
type Store struct {
	s  *Session
	ns native.Store

	mu         sync.Mutex
	containers map[*Container]struct{}
	closed     atomic.Bool
}

func (st *Store) usable() error {
	if st.closed.Load() {
		return stateError("store is closed")
	}
	return nil
}

func (st *Store) Session() *Session { return st.s }

// PutContainer creates the container, or opens it when an identical one
// exists. With modifiable set, an existing container is altered to info.
func (st *Store) PutContainer(info *ContainerInfo, modifiable bool) (*Container, error) {
	if err := st.usable(); err != nil {
		return nil, err
	}
	if info == nil {
		return nil, argumentError("container info is nil")
	}
	if len(info.columns) == 0 {
		return nil, argumentError("container %q has no columns", info.Name())
	}

	nc, err := st.ns.PutContainer(info.Name(), info.toNative(), modifiable)
	if err != nil {
		return nil, nativeError("store", err)
	}
	return st.open(nc, info.Name())
}

// GetContainer opens an existing container. It returns nil, nil when no
// container has that name.
func (st *Store) GetContainer(name string) (*Container, error) {
	if err := st.usable(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, argumentError("container name is empty")
	}
	nc, found, err := st.ns.GetContainer(name)
	if err != nil {
		return nil, nativeError("store", err)
	}
	if !found {
		return nil, nil
	}
	return st.open(nc, name)
}

func (st *Store) open(nc native.Container, name string) (*Container, error) {
	info, err := st.GetContainerInfo(name)
	if err == nil && info == nil {
		err = kindError(ErrNotFound, "container %q disappeared while opening", name)
	}
	if err != nil {
		_ = nc.Close(true)
		return nil, err
	}
	c, err := st.s.newContainer(st, nc, info)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	if st.containers == nil {
		st.containers = make(map[*Container]struct{})
	}
	st.containers[c] = struct{}{}
	st.mu.Unlock()
	return c, nil
}

func (st *Store) forget(c *Container) {
	st.mu.Lock()
	delete(st.containers, c)
	st.mu.Unlock()
}

// GetContainerInfo returns the stored schema, or nil, nil when no container
// has that name.
func (st *Store) GetContainerInfo(name string) (*ContainerInfo, error) {
	if err := st.usable(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, argumentError("container name is empty")
	}
	ni, found, err := st.ns.GetContainerInfo(name)
	if err != nil {
		return nil, nativeError("store", err)
	}
	if !found {
		return nil, nil
	}
	return containerInfoFromNative(ni), nil
}

func (st *Store) DropContainer(name string) error {
	if err := st.usable(); err != nil {
		return err
	}
	if name == "" {
		return argumentError("container name is empty")
	}
	if err := st.ns.DropContainer(name); err != nil {
		return nativeError("store", err)
	}
	st.s.log.Info().Str("container", name).Msg("container dropped")
	return nil
}

// MultiPut writes rows into several containers at once, keyed by
// container name. Nothing is written unless every row encodes.
func (st *Store) MultiPut(rows map[string][][]any) error {
	if err := st.usable(); err != nil {
		return err
	}
	total := 0
	for _, list := range rows {
		total += len(list)
	}
	if total == 0 {
		return nil
	}
	if err := st.s.checkBatch(total); err != nil {
		return err
	}

	var (
		opened  []native.Container
		entries []native.ContainerRows
	)
	defer func() {
		for _, e := range entries {
			for _, r := range e.Rows {
				_ = r.Close()
			}
		}
		for _, nc := range opened {
			_ = nc.Close(false)
		}
	}()

	for _, name := range slices.Sorted(maps.Keys(rows)) {
		list := rows[name]
		if len(list) == 0 {
			continue
		}
		info, err := st.GetContainerInfo(name)
		if err != nil {
			return err
		}
		if info == nil {
			return kindError(ErrNotFound, "container %q not found", name)
		}
		nc, found, err := st.ns.GetContainer(name)
		if err != nil {
			return nativeError("store", err)
		}
		if !found {
			return kindError(ErrNotFound, "container %q not found", name)
		}
		opened = append(opened, nc)

		types := info.columnTypes()
		entry := native.ContainerRows{Name: name, Rows: make([]native.Row, 0, len(list))}
		for i, fields := range list {
			if len(fields) != len(types) {
				entries = append(entries, entry)
				return argumentError("row %d of %q has %d fields, expected %d", i, name, len(fields), len(types))
			}
			r, err := nc.CreateRow()
			if err != nil {
				entries = append(entries, entry)
				return nativeError("container", err)
			}
			entry.Rows = append(entry.Rows, r)
			if err := EncodeRow(fields, r, types); err != nil {
				entries = append(entries, entry)
				st.s.log.Debug().Err(err).Str("container", name).Int("row", i).Msg("multi put rejected")
				return err
			}
		}
		entries = append(entries, entry)
	}

	return nativeError("store", st.ns.PutMultipleContainerRows(entries))
}

// MultiGet reads the rows matching each predicate, keyed by container
// name. Containers with no matches map to an empty slice.
func (st *Store) MultiGet(predicates map[string]*RowKeyPredicate) (map[string][][]any, error) {
	if err := st.usable(); err != nil {
		return nil, err
	}
	out := make(map[string][][]any, len(predicates))
	if len(predicates) == 0 {
		return out, nil
	}

	names := slices.Sorted(maps.Keys(predicates))
	entries := make([]native.PredicateEntry, 0, len(names))
	types := make(map[string][]Type, len(names))
	for _, name := range names {
		p := predicates[name]
		if p == nil {
			return nil, argumentError("predicate for %q is nil", name)
		}
		if err := p.usable(); err != nil {
			return nil, err
		}
		info, err := st.GetContainerInfo(name)
		if err != nil {
			return nil, err
		}
		if info == nil {
			return nil, kindError(ErrNotFound, "container %q not found", name)
		}
		types[name] = info.columnTypes()
		entries = append(entries, native.PredicateEntry{Name: name, Predicate: p.np})
	}

	results, err := st.ns.GetMultipleContainerRows(entries)
	if err != nil {
		return nil, nativeError("store", err)
	}
	defer func() {
		for _, cr := range results {
			for _, r := range cr.Rows {
				_ = r.Close()
			}
		}
	}()

	for _, name := range names {
		out[name] = [][]any{}
	}
	for _, cr := range results {
		rows := make([][]any, 0, len(cr.Rows))
		for _, r := range cr.Rows {
			vals, err := DecodeRow(r, types[cr.Name])
			if err != nil {
				return nil, err
			}
			rows = append(rows, vals)
		}
		out[cr.Name] = rows
	}
	return out, nil
}

// FetchAll runs every query in one call. Results are read with
// Query.RowSet.
func (st *Store) FetchAll(queries []*Query) error {
	if err := st.usable(); err != nil {
		return err
	}
	if len(queries) == 0 {
		return nil
	}
	nqs := make([]native.Query, len(queries))
	for i, q := range queries {
		if q == nil {
			return argumentError("query %d is nil", i)
		}
		q.mu.Lock()
		err := q.usable()
		q.mu.Unlock()
		if err != nil {
			return err
		}
		nqs[i] = q.nq
	}
	if err := st.ns.FetchAll(nqs); err != nil {
		return nativeError("store", err)
	}
	for _, q := range queries {
		q.markFetched()
	}
	return nil
}

func (st *Store) CreateRowKeyPredicate(keyType Type) (*RowKeyPredicate, error) {
	if err := st.usable(); err != nil {
		return nil, err
	}
	if !keyType.KeyType() {
		return nil, typeMismatch("invalid key type %s", keyType)
	}
	np, err := st.ns.CreateRowKeyPredicate(keyType)
	if err != nil {
		return nil, nativeError("store", err)
	}
	return st.s.newPredicate(np, keyType), nil
}

func (st *Store) PartitionController() (*PartitionController, error) {
	if err := st.usable(); err != nil {
		return nil, err
	}
	npc, err := st.ns.PartitionController()
	if err != nil {
		return nil, nativeError("store", err)
	}
	return st.s.newPartitionController(npc), nil
}

// Close closes every open container, then the store. Closing twice is a
// no-op.
func (st *Store) Close() error {
	if st.closed.Swap(true) {
		return nil
	}
	st.mu.Lock()
	open := slices.Collect(maps.Keys(st.containers))
	st.containers = nil
	st.mu.Unlock()

	for _, c := range open {
		if err := c.Close(); err != nil {
			st.s.log.Warn().Err(err).Str("container", c.Name()).Msg("close container")
		}
	}
	if err := st.ns.Close(); err != nil {
		return nativeError("store", err)
	}
	st.s.log.Info().Msg("store closed")
	return nil
}
