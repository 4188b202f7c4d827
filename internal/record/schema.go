package record

type ColumnType uint8

const (
	ColText ColumnType = iota // UTF-8
	ColBool
	ColInt8
	ColInt16
	ColInt32
	ColInt64
	ColFloat32
	ColFloat64
	ColTimestamp // epoch milliseconds
	ColGeometry  // WKT text
	ColBytes     // opaque bytes
)

type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

type Schema struct {
	Cols []Column
}

func (s Schema) NumCols() int { return len(s.Cols) }
