package embedded

import (
	"sort"
	"strings"

	"github.com/tuannm99/novagrid/internal/native"
	"github.com/tuannm99/novagrid/internal/tql"
)

// predicate is either a range (start/finish, either may be unset) or a
// set of distinct keys, never both.
type predicate struct {
	d             *Driver
	keyType       native.Type
	start, finish any
	distinct      []any
	closed        bool
}

var _ native.RowKeyPredicate = (*predicate)(nil)

func compareKey(a, b any) (int, bool) {
	return tql.Compare(a, b)
}

func (p *predicate) usable() error {
	if p.closed {
		return errClosed("predicate")
	}
	return nil
}

func (p *predicate) KeyType() (native.Type, error) {
	if err := p.usable(); err != nil {
		return 0, err
	}
	return p.keyType, nil
}

func (p *predicate) setBound(dst *any, v any) error {
	if err := p.usable(); err != nil {
		return err
	}
	if p.distinct != nil {
		return fail(native.CodeIllegalParameter, "predicate already holds distinct keys")
	}
	if v == nil {
		*dst = nil
		return nil
	}
	if err := checkKeyType(p.keyType, v); err != nil {
		return err
	}
	*dst = normalizeKey(v)
	return nil
}

func (p *predicate) SetStartKey(v any) error  { return p.setBound(&p.start, v) }
func (p *predicate) SetFinishKey(v any) error { return p.setBound(&p.finish, v) }

func (p *predicate) StartKey() (any, error) {
	if err := p.usable(); err != nil {
		return nil, err
	}
	return p.start, nil
}

func (p *predicate) FinishKey() (any, error) {
	if err := p.usable(); err != nil {
		return nil, err
	}
	return p.finish, nil
}

func (p *predicate) AddDistinctKey(v any) error {
	if err := p.usable(); err != nil {
		return err
	}
	if p.start != nil || p.finish != nil {
		return fail(native.CodeIllegalParameter, "predicate already holds a range")
	}
	if err := checkKeyType(p.keyType, v); err != nil {
		return err
	}
	p.distinct = append(p.distinct, normalizeKey(v))
	return nil
}

// DistinctKeys returns the keys in ascending order without duplicates.
func (p *predicate) DistinctKeys() ([]any, error) {
	if err := p.usable(); err != nil {
		return nil, err
	}
	out := make([]any, 0, len(p.distinct))
	for _, k := range p.distinct {
		dup := false
		for _, seen := range out {
			if c, _ := compareKey(k, seen); c == 0 {
				dup = true
				break
			}
		}
		if !dup {
			if s, ok := k.(string); ok {
				k = strings.Clone(s)
			}
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		c, _ := compareKey(out[i], out[j])
		return c < 0
	})
	return out, nil
}

func (p *predicate) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.d.open.predicates.Add(-1)
	return nil
}
