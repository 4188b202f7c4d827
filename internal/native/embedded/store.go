package embedded

import (
	"strings"
	"sync/atomic"

	"github.com/tuannm99/novagrid/internal/native"
	"github.com/tuannm99/novagrid/internal/record"
)

type store struct {
	d      *Driver
	cl     *cluster
	db     *database
	closed atomic.Bool
}

var _ native.Store = (*store)(nil)

func (s *store) usable() error {
	if s.closed.Load() {
		return errClosed("store")
	}
	return nil
}

func (s *store) lookup(name string) (*containerState, bool) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	cs, ok := s.db.containers[strings.ToLower(name)]
	return cs, ok
}

func (s *store) PutContainer(name string, info *native.ContainerInfo, modifiable bool) (native.Container, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fail(native.CodeEmptyParameter, "container info is nil")
	}

	def := cloneInfo(info)
	switch {
	case def.Name == "":
		def.Name = name
	case name != "" && !strings.EqualFold(name, def.Name):
		return nil, fail(native.CodeIllegalParameter, "name %q does not match container info %q", name, def.Name)
	}
	if err := validateInfo(&def); err != nil {
		return nil, err
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	key := strings.ToLower(def.Name)
	if cs, ok := s.db.containers[key]; ok {
		cs.mu.Lock()
		defer cs.mu.Unlock()
		if err := reconcile(cs, &def, modifiable); err != nil {
			return nil, err
		}
		return newContainer(s, cs), nil
	}

	cs := newContainerState(&def, s.cl.partitionOf(def.Name))
	s.db.containers[key] = cs
	return newContainer(s, cs), nil
}

// reconcile checks a redefinition of an existing container. cs.mu must be
// held.
func reconcile(cs *containerState, def *native.ContainerInfo, modifiable bool) error {
	cur := cs.info
	if def.Type == cur.Type && def.RowKeyAssigned == cur.RowKeyAssigned &&
		len(def.Columns) == len(cur.Columns) && sameColumns(def.Columns, cur.Columns, len(cur.Columns)) {
		return nil
	}
	if !modifiable {
		return fail(native.CodeSchemaConflict, "container %q already exists with a different schema", cur.Name)
	}
	return cs.alter(def)
}

func (s *store) GetContainer(name string) (native.Container, bool, error) {
	if err := s.usable(); err != nil {
		return nil, false, err
	}
	if name == "" {
		return nil, false, fail(native.CodeEmptyParameter, "container name is empty")
	}
	cs, ok := s.lookup(name)
	if !ok {
		return nil, false, nil
	}
	return newContainer(s, cs), true, nil
}

func (s *store) GetContainerInfo(name string) (*native.ContainerInfo, bool, error) {
	if err := s.usable(); err != nil {
		return nil, false, err
	}
	if name == "" {
		return nil, false, fail(native.CodeEmptyParameter, "container name is empty")
	}
	cs, ok := s.lookup(name)
	if !ok {
		return nil, false, nil
	}
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	info := cloneInfo(&cs.info)
	return &info, true, nil
}

// DropContainer is a no-op for unknown names.
func (s *store) DropContainer(name string) error {
	if err := s.usable(); err != nil {
		return err
	}
	if name == "" {
		return fail(native.CodeEmptyParameter, "container name is empty")
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	key := strings.ToLower(name)
	cs, ok := s.db.containers[key]
	if !ok {
		return nil
	}
	delete(s.db.containers, key)
	cs.mu.Lock()
	cs.dropped = true
	cs.mu.Unlock()
	return nil
}

// PutMultipleContainerRows validates every row before writing any.
func (s *store) PutMultipleContainerRows(entries []native.ContainerRows) error {
	if err := s.usable(); err != nil {
		return err
	}

	type batch struct {
		cs      *containerState
		entries []*entry
	}
	batches := make([]batch, 0, len(entries))
	for _, cr := range entries {
		cs, ok := s.lookup(cr.Name)
		if !ok {
			return fail(native.CodeContainerMissing, "container %q not found", cr.Name)
		}
		b := batch{cs: cs}
		cs.mu.RLock()
		tmp := &container{cs: cs}
		for _, r := range cr.Rows {
			e, err := tmp.toEntry(r)
			if err != nil {
				cs.mu.RUnlock()
				return err
			}
			b.entries = append(b.entries, e)
		}
		cs.mu.RUnlock()
		batches = append(batches, b)
	}

	for _, b := range batches {
		b.cs.mu.Lock()
		tmp := &container{cs: b.cs, autoCommit: true}
		for _, e := range b.entries {
			tmp.insert(b.cs.rows, e)
		}
		b.cs.mu.Unlock()
	}
	return nil
}

func (s *store) GetMultipleContainerRows(entries []native.PredicateEntry) ([]native.ContainerRows, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}

	out := make([]native.ContainerRows, 0, len(entries))
	release := func() {
		for _, cr := range out {
			for _, r := range cr.Rows {
				_ = r.Close()
			}
		}
	}

	for _, pe := range entries {
		p, ok := pe.Predicate.(*predicate)
		if !ok {
			release()
			return nil, fail(native.CodeIllegalParameter, "predicate %T was not created by this driver", pe.Predicate)
		}
		cs, ok := s.lookup(pe.Name)
		if !ok {
			release()
			return nil, fail(native.CodeContainerMissing, "container %q not found", pe.Name)
		}
		rows, err := s.matchPredicate(cs, p)
		if err != nil {
			release()
			return nil, err
		}
		out = append(out, native.ContainerRows{Name: pe.Name, Rows: rows})
	}
	return out, nil
}

func (s *store) matchPredicate(cs *containerState, p *predicate) ([]native.Row, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	if p.closed {
		return nil, errClosed("predicate")
	}
	if !cs.info.RowKeyAssigned {
		return nil, fail(native.CodeUnsupported, "container %q has no row key", cs.info.Name)
	}
	if cs.info.Columns[0].Type != p.keyType {
		return nil, fail(native.CodeTypeMismatch, "predicate key type %s does not match %q key type %s",
			p.keyType, cs.info.Name, cs.info.Columns[0].Type)
	}

	var (
		hits    []*entry
		emitErr error
	)
	if p.distinct != nil {
		keys, err := p.DistinctKeys()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if e, ok := cs.rows.Get(&entry{key: k}); ok {
				hits = append(hits, e)
			}
		}
	} else {
		cs.rows.Ascend(func(e *entry) bool {
			if p.start != nil {
				if c, _ := compareKey(e.key, p.start); c < 0 {
					return true
				}
			}
			if p.finish != nil {
				if c, _ := compareKey(e.key, p.finish); c > 0 {
					return false
				}
			}
			hits = append(hits, e)
			return true
		})
	}

	rows := make([]native.Row, 0, len(hits))
	for _, e := range hits {
		vals, err := record.DecodeRow(cs.schema, e.data)
		if err != nil {
			emitErr = fail(native.CodeUnknown, "decode row of %q: %v", cs.info.Name, err)
			break
		}
		r := newRow(s.d, &cs.info)
		r.load(vals)
		rows = append(rows, r)
	}
	if emitErr != nil {
		for _, r := range rows {
			_ = r.Close()
		}
		return nil, emitErr
	}
	return rows, nil
}

// FetchAll runs every query and parks the results for Query.RowSet.
func (s *store) FetchAll(queries []native.Query) error {
	if err := s.usable(); err != nil {
		return err
	}
	for _, nq := range queries {
		q, ok := nq.(*query)
		if !ok {
			return fail(native.CodeIllegalParameter, "query %T was not created by this driver", nq)
		}
		rs, err := q.fetch(false)
		if err != nil {
			return err
		}
		if q.pending != nil {
			_ = q.pending.Close()
		}
		q.pending = rs
	}
	return nil
}

func (s *store) CreateRowKeyPredicate(keyType native.Type) (native.RowKeyPredicate, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	if !keyType.KeyType() {
		return nil, fail(native.CodeIllegalParameter, "type %s cannot be a row key", keyType)
	}
	s.d.open.predicates.Add(1)
	return &predicate{d: s.d, keyType: keyType}, nil
}

func (s *store) PartitionController() (native.PartitionController, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	s.d.open.controllers.Add(1)
	return &partitionController{st: s}, nil
}

func (s *store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.d.open.stores.Add(-1)
	return nil
}
