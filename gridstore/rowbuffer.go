package gridstore

import (
	"sync/atomic"

	"github.com/tuannm99/novagrid/internal/native"
)

const (
	bufIdle int32 = iota
	bufBorrowed
	bufClosed
)

// rowBuffer is a container's reusable native row. One operation at a time
// may borrow it; a concurrent borrow fails with ErrState instead of
// corrupting the row.
type rowBuffer struct {
	row   native.Row
	state atomic.Int32
}

func newRowBuffer(row native.Row) *rowBuffer {
	return &rowBuffer{row: row}
}

// borrow hands out the row. The caller must call release when done.
func (b *rowBuffer) borrow() (native.Row, error) {
	if b.state.CompareAndSwap(bufIdle, bufBorrowed) {
		return b.row, nil
	}
	if b.state.Load() == bufClosed {
		return nil, stateError("row buffer is closed")
	}
	return nil, stateError("row buffer is in use by another operation")
}

func (b *rowBuffer) release() {
	b.state.CompareAndSwap(bufBorrowed, bufIdle)
}

func (b *rowBuffer) close() error {
	if b.state.Swap(bufClosed) == bufClosed {
		return nil
	}
	return nativeError("row", b.row.Close())
}
