package embedded

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novagrid/internal/native"
)

func props(kv ...string) []native.Property {
	out := make([]native.Property, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, native.Property{Name: kv[i], Value: kv[i+1]})
	}
	return out
}

func defaultProps() []native.Property {
	return props(
		"host", "127.0.0.1",
		"port", "10001",
		"clusterName", "test",
		"user", "admin",
		"password", "secret",
	)
}

func openStore(t *testing.T, d *Driver) native.Store {
	t.Helper()
	st, err := d.GetStore(defaultProps())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func requireCode(t *testing.T, err error, code int32) {
	t.Helper()
	require.Error(t, err)
	var ne *native.Error
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, code, ne.Code(), "error: %v", err)
}

func peopleInfo() *native.ContainerInfo {
	return &native.ContainerInfo{
		Name:           "people",
		Type:           native.ContainerCollection,
		RowKeyAssigned: true,
		Columns: []native.ColumnInfo{
			{Name: "name", Type: native.TypeString},
			{Name: "age", Type: native.TypeInteger},
			{Name: "score", Type: native.TypeDouble},
			{Name: "photo", Type: native.TypeBlob, Options: native.OptionNullable},
		},
	}
}

func putPerson(t *testing.T, c native.Container, name string, age int32, score float64) {
	t.Helper()
	r, err := c.CreateRow()
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.SetString(0, name))
	require.NoError(t, r.SetInteger(1, age))
	require.NoError(t, r.SetDouble(2, score))
	_, err = c.PutRow(r)
	require.NoError(t, err)
}

func TestGetStore_Properties(t *testing.T) {
	tests := []struct {
		name  string
		props []native.Property
		code  int32
	}{
		{"unknown property", append(defaultProps(), native.Property{Name: "bogus", Value: "1"}), native.CodeIllegalParameter},
		{"no address", props("clusterName", "test", "user", "admin"), native.CodeEmptyParameter},
		{"bad port", props("host", "h", "port", "0", "clusterName", "test", "user", "admin"), native.CodeIllegalParameter},
		{"non numeric port", props("host", "h", "port", "x", "clusterName", "test", "user", "admin"), native.CodeIllegalParameter},
		{"no cluster", props("host", "h", "user", "admin"), native.CodeEmptyParameter},
		{"no user", props("host", "h", "clusterName", "test"), native.CodeEmptyParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New()
			_, err := d.GetStore(tt.props)
			requireCode(t, err, tt.code)
		})
	}

	t.Run("notification address is enough", func(t *testing.T) {
		d := New()
		st, err := d.GetStore(props("notificationAddress", "239.0.0.1", "notificationPort", "31999",
			"clusterName", "test", "user", "admin"))
		require.NoError(t, err)
		require.NoError(t, st.Close())
	})

	t.Run("credentials are checked per cluster", func(t *testing.T) {
		d := New()
		openStore(t, d)
		_, err := d.GetStore(props("host", "h", "clusterName", "test", "user", "admin", "password", "wrong"))
		requireCode(t, err, native.CodeAuth)
	})

	t.Run("closed driver", func(t *testing.T) {
		d := New()
		require.NoError(t, d.Close())
		_, err := d.GetStore(defaultProps())
		requireCode(t, err, native.CodeClosed)
	})
}

func TestStore_Databases(t *testing.T) {
	d := New()
	a := openStore(t, d)
	b, err := d.GetStore(append(defaultProps(), native.Property{Name: "database", Value: "other"}))
	require.NoError(t, err)
	defer b.Close()

	c, err := a.PutContainer("people", peopleInfo(), false)
	require.NoError(t, err)
	defer c.Close(true)

	_, found, err := b.GetContainer("people")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = a.GetContainer("PEOPLE")
	require.NoError(t, err)
	assert.True(t, found, "names are case insensitive")
}

func TestStore_PutContainer(t *testing.T) {
	d := New()
	st := openStore(t, d)

	c, err := st.PutContainer("", peopleInfo(), false)
	require.NoError(t, err)
	require.NoError(t, c.Close(true))

	t.Run("same schema reopens", func(t *testing.T) {
		c, err := st.PutContainer("people", peopleInfo(), false)
		require.NoError(t, err)
		require.NoError(t, c.Close(true))
	})

	t.Run("different schema conflicts", func(t *testing.T) {
		info := peopleInfo()
		info.Columns = append(info.Columns, native.ColumnInfo{Name: "email", Type: native.TypeString})
		_, err := st.PutContainer("people", info, false)
		requireCode(t, err, native.CodeSchemaConflict)
	})

	t.Run("modifiable appends columns", func(t *testing.T) {
		c, err := st.PutContainer("people", peopleInfo(), false)
		require.NoError(t, err)
		putPerson(t, c, "ann", 31, 4.5)
		require.NoError(t, c.Close(true))

		info := peopleInfo()
		info.Columns = append(info.Columns, native.ColumnInfo{Name: "email", Type: native.TypeString})
		c, err = st.PutContainer("people", info, true)
		require.NoError(t, err)
		defer c.Close(true)

		got, found, err := st.GetContainerInfo("people")
		require.NoError(t, err)
		require.True(t, found)
		require.Len(t, got.Columns, 5)

		r, err := c.CreateRow()
		require.NoError(t, err)
		defer r.Close()
		found, err = c.GetRow("ann", r, false)
		require.NoError(t, err)
		require.True(t, found)
		null, err := r.IsNull(4)
		require.NoError(t, err)
		assert.True(t, null)
		age, err := r.GetInteger(1)
		require.NoError(t, err)
		assert.EqualValues(t, 31, age)
	})

	t.Run("name mismatch", func(t *testing.T) {
		_, err := st.PutContainer("other", peopleInfo(), false)
		requireCode(t, err, native.CodeIllegalParameter)
	})

	t.Run("invalid definitions", func(t *testing.T) {
		tests := []struct {
			name string
			info native.ContainerInfo
		}{
			{"no columns", native.ContainerInfo{Name: "x"}},
			{"duplicate column", native.ContainerInfo{Name: "x", Columns: []native.ColumnInfo{
				{Name: "a", Type: native.TypeLong}, {Name: "A", Type: native.TypeLong},
			}}},
			{"blob key", native.ContainerInfo{Name: "x", RowKeyAssigned: true, Columns: []native.ColumnInfo{
				{Name: "a", Type: native.TypeBlob},
			}}},
			{"time series without timestamp key", native.ContainerInfo{Name: "x", Type: native.ContainerTimeSeries,
				RowKeyAssigned: true, Columns: []native.ColumnInfo{{Name: "a", Type: native.TypeLong}}}},
			{"expiration on collection", native.ContainerInfo{Name: "x", Columns: []native.ColumnInfo{
				{Name: "a", Type: native.TypeLong},
			}, TimeSeriesProperties: &native.TimeSeriesProperties{RowExpirationTime: 1}}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := st.PutContainer("", &tt.info, false)
				require.Error(t, err)
			})
		}
	})
}

func TestContainer_CRUD(t *testing.T) {
	d := New()
	st := openStore(t, d)
	c, err := st.PutContainer("people", peopleInfo(), false)
	require.NoError(t, err)
	defer c.Close(true)

	putPerson(t, c, "bob", 40, 1.5)

	r, err := c.CreateRow()
	require.NoError(t, err)
	defer r.Close()

	found, err := c.GetRow("bob", r, false)
	require.NoError(t, err)
	require.True(t, found)
	name, err := r.GetString(0)
	require.NoError(t, err)
	assert.Equal(t, "bob", name)
	null, err := r.IsNull(3)
	require.NoError(t, err)
	assert.True(t, null)

	found, err = c.GetRow("nobody", r, false)
	require.NoError(t, err)
	assert.False(t, found)

	t.Run("key type must match", func(t *testing.T) {
		_, err := c.GetRow(int64(1), r, false)
		requireCode(t, err, native.CodeTypeMismatch)
	})

	t.Run("setter type must match", func(t *testing.T) {
		requireCode(t, r.SetLong(1, 2), native.CodeTypeMismatch)
		requireCode(t, r.SetString(9, "x"), native.CodeOutOfRange)
		requireCode(t, r.SetNull(0), native.CodeNullNotAllowed)
	})

	t.Run("replace keeps one row", func(t *testing.T) {
		putPerson(t, c, "bob", 41, 2.5)
		found, err := c.GetRow("bob", r, false)
		require.NoError(t, err)
		require.True(t, found)
		age, err := r.GetInteger(1)
		require.NoError(t, err)
		assert.EqualValues(t, 41, age)
	})

	t.Run("delete", func(t *testing.T) {
		found, err := c.DeleteRow("bob")
		require.NoError(t, err)
		assert.True(t, found)
		found, err = c.DeleteRow("bob")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("dropped container", func(t *testing.T) {
		require.NoError(t, st.DropContainer("people"))
		_, err := c.DeleteRow("bob")
		requireCode(t, err, native.CodeContainerMissing)
		require.NoError(t, st.DropContainer("people"), "dropping an unknown name is a no-op")
	})
}

func TestContainer_Transactions(t *testing.T) {
	d := New()
	st := openStore(t, d)
	writer, err := st.PutContainer("people", peopleInfo(), false)
	require.NoError(t, err)
	defer writer.Close(true)
	reader, _, err := st.GetContainer("people")
	require.NoError(t, err)
	defer reader.Close(true)

	requireCode(t, writer.Commit(), native.CodeTransaction)
	requireCode(t, writer.Abort(), native.CodeTransaction)

	require.NoError(t, writer.SetAutoCommit(false))
	putPerson(t, writer, "carol", 22, 3)

	r, err := reader.CreateRow()
	require.NoError(t, err)
	defer r.Close()

	found, err := reader.GetRow("carol", r, false)
	require.NoError(t, err)
	assert.False(t, found, "uncommitted rows are private")

	found, err = writer.GetRow("carol", r, true)
	require.NoError(t, err)
	assert.True(t, found, "the writer sees its own rows")

	require.NoError(t, writer.Commit())
	found, err = reader.GetRow("carol", r, false)
	require.NoError(t, err)
	assert.True(t, found)

	putPerson(t, writer, "dave", 50, 1)
	require.NoError(t, writer.Abort())
	found, err = reader.GetRow("dave", r, false)
	require.NoError(t, err)
	assert.False(t, found)

	t.Run("enabling auto commit commits", func(t *testing.T) {
		putPerson(t, writer, "erin", 33, 2)
		require.NoError(t, writer.SetAutoCommit(true))
		found, err := reader.GetRow("erin", r, false)
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("get for update needs a transaction", func(t *testing.T) {
		_, err := reader.GetRow("erin", r, true)
		requireCode(t, err, native.CodeTransaction)
	})
}

func seedPeople(t *testing.T, c native.Container) {
	t.Helper()
	putPerson(t, c, "ann", 31, 4.5)
	putPerson(t, c, "bob", 40, 1.5)
	putPerson(t, c, "carol", 22, 3.0)
	putPerson(t, c, "dave", 57, 2.0)
}

func fetchNames(t *testing.T, c native.Container, tql string) []string {
	t.Helper()
	q, err := c.Query(tql)
	require.NoError(t, err)
	defer q.Close()
	rs, err := q.Fetch(false)
	require.NoError(t, err)
	defer rs.Close()
	require.Equal(t, native.RowSetContainerRows, rs.Type())

	r, err := c.CreateRow()
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for rs.HasNext() {
		require.NoError(t, rs.NextRow(r))
		name, err := r.GetString(0)
		require.NoError(t, err)
		names = append(names, name)
	}
	return names
}

func TestQuery_Rows(t *testing.T) {
	d := New()
	st := openStore(t, d)
	c, err := st.PutContainer("people", peopleInfo(), false)
	require.NoError(t, err)
	defer c.Close(true)
	seedPeople(t, c)

	assert.Equal(t, []string{"ann", "bob", "carol", "dave"}, fetchNames(t, c, "SELECT *"))
	assert.Equal(t, []string{"ann", "bob"}, fetchNames(t, c, "SELECT * FROM people WHERE age > 30 AND score >= 1.5 AND age < 50"))
	assert.Equal(t, []string{"dave", "bob", "ann", "carol"}, fetchNames(t, c, "SELECT * ORDER BY age DESC"))
	assert.Equal(t, []string{"bob", "carol"}, fetchNames(t, c, "SELECT * ORDER BY name LIMIT 2 OFFSET 1"))
	assert.Empty(t, fetchNames(t, c, "SELECT * WHERE name = 'zed'"))

	t.Run("fetch limit", func(t *testing.T) {
		q, err := c.Query("SELECT *")
		require.NoError(t, err)
		defer q.Close()
		require.NoError(t, q.SetFetchLimit(3))
		rs, err := q.Fetch(false)
		require.NoError(t, err)
		defer rs.Close()
		assert.Equal(t, 3, rs.Size())
	})

	t.Run("partial fetch returns every row", func(t *testing.T) {
		q, err := c.Query("SELECT *")
		require.NoError(t, err)
		require.NoError(t, q.SetFetchPartial(true))
		rs, err := q.Fetch(false)
		require.NoError(t, err)
		assert.Equal(t, 4, rs.Size())
		require.NoError(t, rs.Close())
		require.NoError(t, q.Close())
		requireCode(t, q.SetFetchPartial(false), native.CodeClosed)
	})

	t.Run("bad statements", func(t *testing.T) {
		_, err := c.Query("DELETE FROM people")
		requireCode(t, err, native.CodeSyntax)
		_, err = c.Query("SELECT * FROM others")
		requireCode(t, err, native.CodeSyntax)

		q, err := c.Query("SELECT * WHERE missing = 1")
		require.NoError(t, err)
		defer q.Close()
		_, err = q.Fetch(false)
		requireCode(t, err, native.CodeSyntax)
	})

	t.Run("refetch closes previous row set", func(t *testing.T) {
		q, err := c.Query("SELECT *")
		require.NoError(t, err)
		defer q.Close()
		first, err := q.Fetch(false)
		require.NoError(t, err)
		second, err := q.Fetch(false)
		require.NoError(t, err)
		defer second.Close()
		assert.False(t, first.HasNext())
		assert.True(t, second.HasNext())
	})
}

func fetchAggregation(t *testing.T, c native.Container, tql string) native.AggregationResult {
	t.Helper()
	q, err := c.Query(tql)
	require.NoError(t, err)
	defer q.Close()
	rs, err := q.Fetch(false)
	require.NoError(t, err)
	defer rs.Close()
	require.Equal(t, native.RowSetAggregationResult, rs.Type())
	require.True(t, rs.HasNext())
	agg, err := rs.NextAggregation()
	require.NoError(t, err)
	t.Cleanup(func() { _ = agg.Close() })
	return agg
}

func TestQuery_Aggregation(t *testing.T) {
	d := New()
	st := openStore(t, d)
	c, err := st.PutContainer("people", peopleInfo(), false)
	require.NoError(t, err)
	defer c.Close(true)
	seedPeople(t, c)

	n, ok := fetchAggregation(t, c, "SELECT COUNT(*)").Long()
	require.True(t, ok)
	assert.EqualValues(t, 4, n)

	sum, ok := fetchAggregation(t, c, "SELECT SUM(age)").Long()
	require.True(t, ok)
	assert.EqualValues(t, 150, sum)

	avg, ok := fetchAggregation(t, c, "SELECT AVG(score)").Double()
	require.True(t, ok)
	assert.InDelta(t, 2.75, avg, 1e-9)

	maxAge, ok := fetchAggregation(t, c, "SELECT MAX(age)").Long()
	require.True(t, ok)
	assert.EqualValues(t, 57, maxAge)

	_, ok = fetchAggregation(t, c, "SELECT AVG(score) WHERE age > 100").Double()
	assert.False(t, ok, "AVG over no rows is unassigned")

	_, ok = fetchAggregation(t, c, "SELECT MAX(age)").Timestamp()
	assert.False(t, ok)

	q, err := c.Query("SELECT SUM(name)")
	require.NoError(t, err)
	defer q.Close()
	_, err = q.Fetch(false)
	requireCode(t, err, native.CodeSyntax)
}

func TestQuery_Explain(t *testing.T) {
	d := New()
	st := openStore(t, d)
	c, err := st.PutContainer("people", peopleInfo(), false)
	require.NoError(t, err)
	defer c.Close(true)
	seedPeople(t, c)

	q, err := c.Query("EXPLAIN ANALYZE SELECT * WHERE name = 'ann' LIMIT 5")
	require.NoError(t, err)
	defer q.Close()
	rs, err := q.Fetch(false)
	require.NoError(t, err)
	defer rs.Close()
	require.Equal(t, native.RowSetQueryAnalysis, rs.Type())

	var types []string
	for rs.HasNext() {
		e, err := rs.NextQueryAnalysis()
		require.NoError(t, err)
		types = append(types, e.Type)
		if e.Type == "RESULT_ROWS" {
			assert.Equal(t, "1", e.Value)
		}
	}
	assert.Equal(t, []string{"QUERY_EXECUTE", "SCAN_INDEX", "FILTER", "LIMIT", "RESULT_ROWS", "EXECUTION_TIME"}, types)

	_, err = rs.NextQueryAnalysis()
	requireCode(t, err, native.CodeIllegalParameter)
}

func TestTimeSeries(t *testing.T) {
	d := New()
	st := openStore(t, d)
	info := &native.ContainerInfo{
		Name:           "temps",
		Type:           native.ContainerTimeSeries,
		RowKeyAssigned: true,
		Columns: []native.ColumnInfo{
			{Name: "ts", Type: native.TypeTimestamp},
			{Name: "value", Type: native.TypeFloat},
		},
		TimeSeriesProperties: &native.TimeSeriesProperties{
			RowExpirationTime:       30,
			RowExpirationTimeUnit:   native.TimeUnitDay,
			ExpirationDivisionCount: 8,
		},
	}
	c, err := st.PutContainer("temps", info, false)
	require.NoError(t, err)
	defer c.Close(true)

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]native.Row, 0, 5)
	for i := range 5 {
		r, err := c.CreateRow()
		require.NoError(t, err)
		require.NoError(t, r.SetTimestamp(0, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, r.SetFloat(1, float32(i)))
		rows = append(rows, r)
	}
	require.NoError(t, c.PutMultipleRows(rows))
	for _, r := range rows {
		require.NoError(t, r.Close())
	}

	q, err := c.QueryByTimeSeriesRange(base.Add(time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)
	defer q.Close()
	rs, err := q.Fetch(false)
	require.NoError(t, err)
	defer rs.Close()
	assert.Equal(t, 3, rs.Size())

	got, found, err := st.GetContainerInfo("temps")
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, got.TimeSeriesProperties)
	assert.EqualValues(t, 30, got.TimeSeriesProperties.RowExpirationTime)

	t.Run("timestamp range", func(t *testing.T) {
		r, err := c.CreateRow()
		require.NoError(t, err)
		defer r.Close()
		requireCode(t, r.SetTimestamp(0, time.UnixMilli(-1)), native.CodeOutOfRange)
	})

	t.Run("collections have no range query", func(t *testing.T) {
		pc, err := st.PutContainer("people", peopleInfo(), false)
		require.NoError(t, err)
		defer pc.Close(true)
		_, err = pc.QueryByTimeSeriesRange(base, base)
		requireCode(t, err, native.CodeUnsupported)
	})
}

func TestIndexes(t *testing.T) {
	d := New()
	st := openStore(t, d)
	c, err := st.PutContainer("people", peopleInfo(), false)
	require.NoError(t, err)
	defer c.Close(true)

	require.NoError(t, c.CreateIndex("age", native.IndexDefault))
	require.NoError(t, c.CreateIndexDetail(native.IndexInfo{Name: "by_score", ColumnName: "score", Type: native.IndexHash, Column: -1}))
	requireCode(t, c.CreateIndex("photo", native.IndexTree), native.CodeIndex)
	requireCode(t, c.CreateIndex("age", native.IndexSpatial), native.CodeIndex)
	requireCode(t, c.CreateIndexDetail(native.IndexInfo{Name: "by_score", ColumnName: "age", Type: native.IndexTree, Column: -1}), native.CodeIndex)

	info, _, err := st.GetContainerInfo("people")
	require.NoError(t, err)
	assert.Equal(t, native.IndexTree, info.Columns[1].IndexTypeFlags)
	assert.Equal(t, native.IndexHash, info.Columns[2].IndexTypeFlags)

	require.NoError(t, c.DropIndexDetail(native.IndexInfo{Name: "by_score", Column: -1}))
	require.NoError(t, c.DropIndex("age", native.IndexDefault))
	info, _, err = st.GetContainerInfo("people")
	require.NoError(t, err)
	for _, col := range info.Columns {
		assert.Zero(t, col.IndexTypeFlags, col.Name)
	}
}

func TestMultiContainer(t *testing.T) {
	d := New()
	st := openStore(t, d)
	c, err := st.PutContainer("people", peopleInfo(), false)
	require.NoError(t, err)
	defer c.Close(true)
	seedPeople(t, c)

	t.Run("get by distinct keys", func(t *testing.T) {
		p, err := st.CreateRowKeyPredicate(native.TypeString)
		require.NoError(t, err)
		defer p.Close()
		require.NoError(t, p.AddDistinctKey("dave"))
		require.NoError(t, p.AddDistinctKey("ann"))
		require.NoError(t, p.AddDistinctKey("ann"))
		require.NoError(t, p.AddDistinctKey("zed"))

		res, err := st.GetMultipleContainerRows([]native.PredicateEntry{{Name: "people", Predicate: p}})
		require.NoError(t, err)
		require.Len(t, res, 1)
		require.Len(t, res[0].Rows, 2)
		first, err := res[0].Rows[0].GetString(0)
		require.NoError(t, err)
		assert.Equal(t, "ann", first)
		for _, r := range res[0].Rows {
			require.NoError(t, r.Close())
		}
	})

	t.Run("get by range", func(t *testing.T) {
		p, err := st.CreateRowKeyPredicate(native.TypeString)
		require.NoError(t, err)
		defer p.Close()
		require.NoError(t, p.SetStartKey("b"))
		require.NoError(t, p.SetFinishKey("carol"))
		requireCode(t, p.AddDistinctKey("x"), native.CodeIllegalParameter)

		res, err := st.GetMultipleContainerRows([]native.PredicateEntry{{Name: "people", Predicate: p}})
		require.NoError(t, err)
		require.Len(t, res[0].Rows, 2)
		for _, r := range res[0].Rows {
			require.NoError(t, r.Close())
		}
	})

	t.Run("predicate key type must match", func(t *testing.T) {
		p, err := st.CreateRowKeyPredicate(native.TypeLong)
		require.NoError(t, err)
		defer p.Close()
		_, err = st.GetMultipleContainerRows([]native.PredicateEntry{{Name: "people", Predicate: p}})
		requireCode(t, err, native.CodeTypeMismatch)
		requireCode(t, p.SetStartKey("x"), native.CodeTypeMismatch)
	})

	t.Run("put into several containers is all or nothing", func(t *testing.T) {
		good, err := c.CreateRow()
		require.NoError(t, err)
		defer good.Close()
		require.NoError(t, good.SetString(0, "frank"))

		err = st.PutMultipleContainerRows([]native.ContainerRows{
			{Name: "people", Rows: []native.Row{good}},
			{Name: "missing", Rows: nil},
		})
		requireCode(t, err, native.CodeContainerMissing)

		r, err := c.CreateRow()
		require.NoError(t, err)
		defer r.Close()
		found, err := c.GetRow("frank", r, false)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("fetch all parks results", func(t *testing.T) {
		q1, err := c.Query("SELECT COUNT(*)")
		require.NoError(t, err)
		defer q1.Close()
		q2, err := c.Query("SELECT * WHERE age < 30")
		require.NoError(t, err)
		defer q2.Close()

		require.NoError(t, st.FetchAll([]native.Query{q1, q2}))
		rs, err := q2.RowSet()
		require.NoError(t, err)
		defer rs.Close()
		assert.Equal(t, 1, rs.Size())

		_, err = q2.RowSet()
		requireCode(t, err, native.CodeIllegalParameter)
	})
}

func TestPartitionController(t *testing.T) {
	d := New(WithPartitionCount(4))
	st := openStore(t, d)
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		info := peopleInfo()
		info.Name = name
		c, err := st.PutContainer(name, info, false)
		require.NoError(t, err)
		require.NoError(t, c.Close(true))
	}

	pc, err := st.PartitionController()
	require.NoError(t, err)
	defer pc.Close()

	n, err := pc.PartitionCount()
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	var total int64
	for p := range int32(4) {
		count, err := pc.ContainerCount(p)
		require.NoError(t, err)
		names, err := pc.ContainerNames(p, 0, -1)
		require.NoError(t, err)
		assert.Len(t, names, int(count))
		for _, name := range names {
			idx, err := pc.PartitionIndexOfContainer(name)
			require.NoError(t, err)
			assert.Equal(t, p, idx)
		}
		total += count
	}
	assert.EqualValues(t, 6, total)

	p, err := pc.PartitionIndexOfContainer("a")
	require.NoError(t, err)
	names, err := pc.ContainerNames(p, 0, 1)
	require.NoError(t, err)
	assert.Len(t, names, 1)
	names, err = pc.ContainerNames(p, 100, 1)
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = pc.ContainerCount(4)
	requireCode(t, err, native.CodeIllegalParameter)
	_, err = pc.ContainerNames(0, -1, 1)
	requireCode(t, err, native.CodeIllegalParameter)
}

func TestOpenHandles(t *testing.T) {
	d := New()
	st, err := d.GetStore(defaultProps())
	require.NoError(t, err)

	c, err := st.PutContainer("people", peopleInfo(), false)
	require.NoError(t, err)
	seedPeople(t, c)
	r, err := c.CreateRow()
	require.NoError(t, err)
	q, err := c.Query("SELECT MAX(age)")
	require.NoError(t, err)
	rs, err := q.Fetch(false)
	require.NoError(t, err)
	agg, err := rs.NextAggregation()
	require.NoError(t, err)
	p, err := st.CreateRowKeyPredicate(native.TypeString)
	require.NoError(t, err)
	pc, err := st.PartitionController()
	require.NoError(t, err)

	h := d.OpenHandles()
	assert.EqualValues(t, 1, h.Stores)
	assert.EqualValues(t, 1, h.Containers)
	assert.EqualValues(t, 1, h.Rows)
	assert.EqualValues(t, 1, h.Queries)
	assert.EqualValues(t, 1, h.RowSets)
	assert.EqualValues(t, 1, h.Aggregations)
	assert.EqualValues(t, 1, h.Predicates)
	assert.EqualValues(t, 1, h.Controllers)

	require.NoError(t, agg.Close())
	require.NoError(t, r.Close())
	require.NoError(t, p.Close())
	require.NoError(t, pc.Close())
	require.NoError(t, c.Close(true))
	require.NoError(t, st.Close())
	require.NoError(t, st.Close())

	h = d.OpenHandles()
	assert.Zero(t, h.Total())
	assert.Zero(t, h.Stores)
}
