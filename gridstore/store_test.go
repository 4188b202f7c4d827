package gridstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Containers(t *testing.T) {
	st, _ := openTestStore(t)

	info, err := st.GetContainerInfo("people")
	require.NoError(t, err)
	assert.Nil(t, info)
	c, err := st.GetContainer("people")
	require.NoError(t, err)
	assert.Nil(t, c)

	openPeople(t, st)

	info, err = st.GetContainerInfo("people")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, peopleInfo(t).Columns(), info.Columns())

	t.Run("schema conflict", func(t *testing.T) {
		changed := peopleInfo(t)
		require.NoError(t, changed.SetColumns(append(changed.Columns(), ColumnInfo{Name: "email", Type: TypeString})))

		_, err := st.PutContainer(changed, false)
		var ne *NativeError
		require.ErrorAs(t, err, &ne)

		c, err := st.PutContainer(changed, true)
		require.NoError(t, err)
		defer c.Close()
		assert.Len(t, c.Info().Columns(), 5)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := st.PutContainer(nil, false)
		require.ErrorIs(t, err, ErrArgument)
		_, err = st.PutContainer(&ContainerInfo{name: "empty"}, false)
		require.ErrorIs(t, err, ErrArgument)
		_, err = st.GetContainer("")
		require.ErrorIs(t, err, ErrArgument)
		require.ErrorIs(t, st.DropContainer(""), ErrArgument)
	})

	require.NoError(t, st.DropContainer("people"))
	require.NoError(t, st.DropContainer("people"))
}

func TestStore_MultiPutMultiGet(t *testing.T) {
	st, _ := openTestStore(t)
	people := openPeople(t, st)

	tagsInfo, err := NewContainerInfo(ContainerDef{
		Name: "tags", RowKey: true,
		Columns: []ColumnInfo{{Name: "id", Type: TypeLong}, {Name: "tag", Type: TypeString}},
	})
	require.NoError(t, err)
	tags, err := st.PutContainer(tagsInfo, false)
	require.NoError(t, err)
	defer tags.Close()

	require.NoError(t, st.MultiPut(map[string][][]any{
		"people": {{"ann", 31, 4.5, nil}, {"bob", 40, 1.5, nil}},
		"tags":   {{1, "red"}, {2, "green"}, {3, "blue"}},
		"unused": {},
	}))
	require.NoError(t, st.MultiPut(nil))

	byName, err := st.CreateRowKeyPredicate(TypeString)
	require.NoError(t, err)
	defer byName.Close()
	require.NoError(t, byName.SetDistinctKeys([]any{"bob", "zed", "ann", "bob"}))

	byID, err := st.CreateRowKeyPredicate(TypeLong)
	require.NoError(t, err)
	defer byID.Close()
	require.NoError(t, byID.SetRange(2, nil))

	got, err := st.MultiGet(map[string]*RowKeyPredicate{"people": byName, "tags": byID})
	require.NoError(t, err)
	assert.Equal(t, [][]any{
		{"ann", int32(31), 4.5, nil},
		{"bob", int32(40), 1.5, nil},
	}, got["people"])
	assert.Equal(t, [][]any{
		{int64(2), "green"},
		{int64(3), "blue"},
	}, got["tags"])

	t.Run("nothing is written when a row fails", func(t *testing.T) {
		err := st.MultiPut(map[string][][]any{
			"people": {{"carol", 22, 3.0, nil}},
			"tags":   {{4, 5}},
		})
		require.ErrorIs(t, err, ErrTypeMismatch)
		_, found, err := people.Get("carol")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("unknown container", func(t *testing.T) {
		err := st.MultiPut(map[string][][]any{"ghost": {{1}}})
		require.ErrorIs(t, err, ErrNotFound)

		_, err = st.MultiGet(map[string]*RowKeyPredicate{"ghost": byName})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("batch limit spans containers", func(t *testing.T) {
		limited, _ := openTestStore(t, WithSessionOptions(WithMaxBatchRows(2)))
		err := limited.MultiPut(map[string][][]any{
			"a": {{1}, {2}},
			"b": {{3}},
		})
		require.ErrorIs(t, err, ErrAllocation)
	})

	t.Run("key type mismatch", func(t *testing.T) {
		_, err := st.MultiGet(map[string]*RowKeyPredicate{"people": byID})
		var ne *NativeError
		require.ErrorAs(t, err, &ne)
	})

	t.Run("empty request", func(t *testing.T) {
		got, err := st.MultiGet(nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestStore_FetchAll(t *testing.T) {
	st, _ := openTestStore(t)
	c := openPeople(t, st)
	seedPeople(t, c)

	rows, err := c.Query("SELECT * WHERE age < 35 ORDER BY name")
	require.NoError(t, err)
	defer rows.Close()
	count, err := c.Query("SELECT COUNT(*)")
	require.NoError(t, err)
	defer count.Close()

	require.NoError(t, st.FetchAll([]*Query{rows, count}))
	require.ErrorIs(t, rows.SetFetchOptions(FetchOptions{}), ErrState)

	rs, err := rows.RowSet()
	require.NoError(t, err)
	got := collectRows(t, rs)
	require.Len(t, got, 2)
	assert.Equal(t, "ann", got[0][0])

	rs, err = count.RowSet()
	require.NoError(t, err)
	v, err := Next(rs)
	require.NoError(t, err)
	n, err := v.(*AggregationResult).Get(TypeLong)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	_, err = count.RowSet()
	var ne *NativeError
	require.ErrorAs(t, err, &ne)

	require.ErrorIs(t, st.FetchAll([]*Query{nil}), ErrArgument)
	require.NoError(t, st.FetchAll(nil))
}

func TestStore_Predicate(t *testing.T) {
	st, _ := openTestStore(t)

	_, err := st.CreateRowKeyPredicate(TypeDouble)
	require.ErrorIs(t, err, ErrTypeMismatch)

	p, err := st.CreateRowKeyPredicate(TypeTimestamp)
	require.NoError(t, err)
	assert.Equal(t, TypeTimestamp, p.KeyType())

	start, finish, err := p.Range()
	require.NoError(t, err)
	assert.Nil(t, start)
	assert.Nil(t, finish)

	require.NoError(t, p.SetRange("2024-01-01T00:00:00Z", int64(1735689600000)))
	start, finish, err = p.Range()
	require.NoError(t, err)
	assert.Equal(t, FromTimestamp(1704067200000), start)
	assert.Equal(t, FromTimestamp(1735689600000), finish)

	require.ErrorIs(t, p.SetDistinctKeys([]any{0}), ErrState)
	require.ErrorIs(t, p.SetRange(-1, nil), ErrRange)

	require.NoError(t, p.SetRange(nil, nil))
	require.NoError(t, p.SetDistinctKeys([]any{2000, 1000, 2000}))
	keys, err := p.DistinctKeys()
	require.NoError(t, err)
	assert.Equal(t, []any{FromTimestamp(1000), FromTimestamp(2000)}, keys)
	require.ErrorIs(t, p.SetRange(0, 1), ErrState)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	_, err = p.DistinctKeys()
	require.ErrorIs(t, err, ErrState)
}

func TestStore_PartitionController(t *testing.T) {
	st, _ := openTestStore(t)
	names := []string{"a1", "b2", "c3", "d4", "e5", "f6", "g7", "h8", "i9"}
	for _, name := range names {
		info, err := NewContainerInfo(ContainerDef{Name: name, Columns: []ColumnInfo{{Name: "v", Type: TypeLong}}})
		require.NoError(t, err)
		c, err := st.PutContainer(info, false)
		require.NoError(t, err)
		require.NoError(t, c.Close())
	}

	pc, err := st.PartitionController()
	require.NoError(t, err)
	defer pc.Close()

	n, err := pc.PartitionCount()
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	seen := map[string]bool{}
	for p := range n {
		count, err := pc.ContainerCount(p)
		require.NoError(t, err)
		list, err := pc.ContainerNames(p, 0, -1)
		require.NoError(t, err)
		assert.Len(t, list, int(count))
		for _, name := range list {
			idx, err := pc.PartitionIndexOfContainer(name)
			require.NoError(t, err)
			assert.Equal(t, p, idx)
			seen[name] = true
		}
	}
	assert.Len(t, seen, len(names))

	require.ErrorIs(t, pc.Set("partitionCount", 3), ErrArgument)
	_, err = pc.ContainerNames(0, -1, 1)
	require.ErrorIs(t, err, ErrRange)
	_, err = pc.ContainerCount(-1)
	require.ErrorIs(t, err, ErrRange)
	_, err = pc.ContainerCount(n)
	var ne *NativeError
	require.ErrorAs(t, err, &ne)
	_, err = pc.PartitionIndexOfContainer("")
	require.ErrorIs(t, err, ErrArgument)

	require.NoError(t, pc.Close())
	_, err = pc.PartitionCount()
	require.ErrorIs(t, err, ErrState)
}

func TestStore_Close(t *testing.T) {
	st, d := openTestStore(t)
	c := openPeople(t, st)
	seedPeople(t, c)
	q, err := c.Query("SELECT *")
	require.NoError(t, err)
	_, err = q.Fetch()
	require.NoError(t, err)

	require.NoError(t, st.Close())
	assert.Zero(t, d.OpenHandles().Total())

	_, _, err = c.Get("ann")
	require.ErrorIs(t, err, ErrState)
	_, err = st.GetContainer("people")
	require.ErrorIs(t, err, ErrState)
}

func TestStore_IntegerPredicate(t *testing.T) {
	st, _ := openTestStore(t)

	p, err := st.CreateRowKeyPredicate(TypeInteger)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.SetRange(5, 10))
	start, finish, err := p.Range()
	require.NoError(t, err)
	assert.Equal(t, int32(5), start)
	assert.Equal(t, int32(10), finish)

	d, err := st.CreateRowKeyPredicate(TypeInteger)
	require.NoError(t, err)
	defer d.Close()
	require.NoError(t, d.SetDistinctKeys([]any{5, 1, 3}))
	keys, err := d.DistinctKeys()
	require.NoError(t, err)
	assert.Equal(t, []any{int32(1), int32(3), int32(5)}, keys)

	require.ErrorIs(t, d.SetDistinctKeys([]any{"x"}), ErrTypeMismatch)
	require.ErrorIs(t, d.SetDistinctKeys([]any{int64(1) << 40}), ErrRange)
}
