package gridstore

import (
	"sync"

	"github.com/tuannm99/novagrid/internal/native"
)

type predicateMode int

const (
	predicateEmpty predicateMode = iota
	predicateRange
	predicateDistinct
)

// RowKeyPredicate selects rows by key for Store.MultiGet. It holds either
// a range or a set of distinct keys; switching modes is ErrState.
type RowKeyPredicate struct {
	s       *Session
	np      native.RowKeyPredicate
	keyType Type

	mu     sync.Mutex
	mode   predicateMode
	closed bool
}

func (p *RowKeyPredicate) usable() error {
	if p.closed {
		return stateError("predicate is closed")
	}
	return nil
}

func (p *RowKeyPredicate) KeyType() Type { return p.keyType }

// SetRange sets both bounds. A nil bound leaves that side open.
func (p *RowKeyPredicate) SetRange(start, finish any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usable(); err != nil {
		return err
	}
	if p.mode == predicateDistinct {
		return stateError("predicate already holds distinct keys")
	}

	var bounds [2]any
	for i, v := range []any{start, finish} {
		if v == nil {
			continue
		}
		k, err := toNativeKey(v, p.keyType)
		if err != nil {
			return err
		}
		bounds[i] = k
	}
	if err := p.np.SetStartKey(bounds[0]); err != nil {
		return nativeError("predicate", err)
	}
	if err := p.np.SetFinishKey(bounds[1]); err != nil {
		return nativeError("predicate", err)
	}
	if bounds[0] != nil || bounds[1] != nil {
		p.mode = predicateRange
	} else {
		p.mode = predicateEmpty
	}
	return nil
}

// Range returns the current bounds; an unset side is nil.
func (p *RowKeyPredicate) Range() (start, finish any, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usable(); err != nil {
		return nil, nil, err
	}
	s, err := p.np.StartKey()
	if err != nil {
		return nil, nil, nativeError("predicate", err)
	}
	f, err := p.np.FinishKey()
	if err != nil {
		return nil, nil, nativeError("predicate", err)
	}
	if s != nil {
		start = fromNativeKey(s)
	}
	if f != nil {
		finish = fromNativeKey(f)
	}
	return start, finish, nil
}

// SetDistinctKeys adds keys to the distinct key set.
func (p *RowKeyPredicate) SetDistinctKeys(keys []any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usable(); err != nil {
		return err
	}
	if p.mode == predicateRange {
		return stateError("predicate already holds a range")
	}

	converted := make([]any, len(keys))
	for i, v := range keys {
		k, err := toNativeKey(v, p.keyType)
		if err != nil {
			return err
		}
		converted[i] = k
	}
	for _, k := range converted {
		if err := p.np.AddDistinctKey(k); err != nil {
			return nativeError("predicate", err)
		}
	}
	if len(converted) > 0 {
		p.mode = predicateDistinct
	}
	return nil
}

// DistinctKeys returns the keys in ascending order without duplicates.
func (p *RowKeyPredicate) DistinctKeys() ([]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usable(); err != nil {
		return nil, err
	}
	keys, err := p.np.DistinctKeys()
	if err != nil {
		return nil, nativeError("predicate", err)
	}
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = fromNativeKey(k)
	}
	return out, nil
}

func (p *RowKeyPredicate) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return nativeError("predicate", p.np.Close())
}
