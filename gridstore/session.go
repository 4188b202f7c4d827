package gridstore

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tuannm99/novagrid/internal/native"
)

// DefaultMaxBatchRows caps the rows of one MultiPut call.
const DefaultMaxBatchRows = 100_000

// Session owns the settings shared by every handle opened through it and
// is the only place wrappers are built. There is no global factory state.
type Session struct {
	id           string
	log          zerolog.Logger
	exec         Executor
	maxBatchRows int
}

type SessionOption func(*Session)

func WithLogger(l zerolog.Logger) SessionOption {
	return func(s *Session) { s.log = l }
}

func WithExecutor(e Executor) SessionOption {
	return func(s *Session) { s.exec = e }
}

// WithMaxBatchRows sets the batch cap; n <= 0 removes it.
func WithMaxBatchRows(n int) SessionOption {
	return func(s *Session) { s.maxBatchRows = n }
}

func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		id:           uuid.NewString(),
		log:          zerolog.Nop(),
		exec:         SyncExecutor{},
		maxBatchRows: DefaultMaxBatchRows,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("session", s.id).Logger()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Logger() zerolog.Logger { return s.log }

func (s *Session) Executor() Executor { return s.exec }

func (s *Session) checkBatch(n int) error {
	if s.maxBatchRows > 0 && n > s.maxBatchRows {
		return kindError(ErrAllocation, "batch of %d rows exceeds limit %d", n, s.maxBatchRows)
	}
	return nil
}

func (s *Session) newStore(ns native.Store) *Store {
	return &Store{s: s, ns: ns}
}

// newContainer wraps nc with a fresh row buffer. info is owned by the
// result.
func (s *Session) newContainer(st *Store, nc native.Container, info *ContainerInfo) (*Container, error) {
	row, err := nc.CreateRow()
	if err != nil {
		_ = nc.Close(true)
		return nil, nativeError("container", err)
	}
	c := &Container{
		s:     s,
		st:    st,
		nc:    nc,
		info:  info,
		types: info.columnTypes(),
		buf:   newRowBuffer(row),
	}
	s.log.Debug().Str("container", info.Name()).Msg("container opened")
	return c, nil
}

func (s *Session) newQuery(c *Container, nq native.Query) *Query {
	return &Query{s: s, c: c, nq: nq}
}

// newRowSet picks the cursor shape from the native row set type.
func (s *Session) newRowSet(c *Container, nrs native.RowSet) (RowSet, error) {
	switch nrs.Type() {
	case RowSetContainerRows:
		return &RowCursor{cursor: cursor{s: s, nrs: nrs}, c: c}, nil
	case RowSetAggregationResult:
		return &AggregationCursor{cursor: cursor{s: s, nrs: nrs}}, nil
	case RowSetQueryAnalysis:
		return &AnalysisCursor{cursor: cursor{s: s, nrs: nrs}}, nil
	}
	_ = nrs.Close()
	return nil, argumentError("unknown row set type %d", nrs.Type())
}

func (s *Session) newPredicate(np native.RowKeyPredicate, keyType Type) *RowKeyPredicate {
	return &RowKeyPredicate{s: s, np: np, keyType: keyType}
}

func (s *Session) newPartitionController(npc native.PartitionController) *PartitionController {
	return &PartitionController{s: s, npc: npc}
}
