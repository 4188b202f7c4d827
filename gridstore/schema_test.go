package gridstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContainerInfo(t *testing.T) {
	info := peopleInfo(t)
	assert.Equal(t, "people", info.Name())
	assert.Equal(t, Collection, info.Type())
	assert.True(t, info.RowKey())
	assert.Nil(t, info.Expiration())
	require.Len(t, info.Columns(), 4)

	t.Run("accessors copy", func(t *testing.T) {
		cols := info.Columns()
		cols[0].Name = "changed"
		assert.Equal(t, "name", info.Columns()[0].Name)

		src := []ColumnInfo{{Name: "a", Type: TypeLong}}
		require.NoError(t, info.Clone().SetColumns(src))
		src[0].Name = "b"
		assert.Equal(t, "name", info.Columns()[0].Name)
	})

	t.Run("expiration is owned", func(t *testing.T) {
		ts, err := NewContainerInfo(ContainerDef{
			Name:    "temps",
			Type:    TimeSeries,
			RowKey:  true,
			Columns: []ColumnInfo{{Name: "ts", Type: TypeTimestamp}},
		})
		require.NoError(t, err)

		exp, err := NewExpirationInfo(30, TimeUnitDay, 8)
		require.NoError(t, err)
		require.NoError(t, ts.SetExpiration(exp))
		exp.Time = 1
		assert.EqualValues(t, 30, ts.Expiration().Time)

		got := ts.Expiration()
		got.Time = 2
		assert.EqualValues(t, 30, ts.Expiration().Time)

		require.NoError(t, ts.SetExpiration(nil))
		assert.Nil(t, ts.Expiration())
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := NewContainerInfo(ContainerDef{Columns: []ColumnInfo{{Name: "a", Type: TypeLong}}})
		require.ErrorIs(t, err, ErrArgument)

		_, err = NewContainerInfo(ContainerDef{Name: "x", Type: 7})
		require.ErrorIs(t, err, ErrArgument)

		_, err = NewContainerInfo(ContainerDef{Name: "x"})
		require.ErrorIs(t, err, ErrArgument)

		cols, err := NewContainerInfo(ContainerDef{Name: "x", Columns: []ColumnInfo{{Name: "a", Type: TypeLong}}})
		require.NoError(t, err)
		require.ErrorIs(t, cols.SetColumns(nil), ErrArgument)
		assert.Len(t, cols.Columns(), 1)

		_, err = NewContainerInfo(ContainerDef{Name: "x", Columns: []ColumnInfo{{Name: "", Type: TypeLong}}})
		require.ErrorIs(t, err, ErrArgument)

		_, err = NewContainerInfo(ContainerDef{Name: "x", Columns: []ColumnInfo{{Name: "a", Type: 42}}})
		require.ErrorIs(t, err, ErrArgument)

		_, err = NewExpirationInfo(1, 9, 0)
		require.ErrorIs(t, err, ErrArgument)

		_, err = NewExpirationInfo(-1, TimeUnitDay, 0)
		require.ErrorIs(t, err, ErrRange)
	})
}

func TestParseContainerInfo(t *testing.T) {
	const doc = `{
		"name": "sensors",
		"type": 1,
		"rowKey": true,
		"columnInfoList": [["ts", "TIMESTAMP"], ["value", 7, 2], ["label", "string"]],
		"expiration": {"time": 30, "unit": 2, "divisionCount": 8}
	}`
	var desc map[string]any
	require.NoError(t, json.Unmarshal([]byte(doc), &desc))

	info, err := ParseContainerInfo(desc)
	require.NoError(t, err)
	assert.Equal(t, "sensors", info.Name())
	assert.Equal(t, TimeSeries, info.Type())
	assert.True(t, info.RowKey())
	assert.Equal(t, []ColumnInfo{
		{Name: "ts", Type: TypeTimestamp},
		{Name: "value", Type: TypeDouble, Options: OptionNullable},
		{Name: "label", Type: TypeString},
	}, info.Columns())
	assert.Equal(t, &ExpirationInfo{Time: 30, Unit: TimeUnitDay, DivisionCount: 8}, info.Expiration())

	t.Run("typed entries", func(t *testing.T) {
		info, err := ParseContainerInfo(map[string]any{
			"name":           "x",
			"columnInfoList": []any{ColumnInfo{Name: "a", Type: TypeLong}, []any{"b", TypeBool, OptionNotNull}},
		})
		require.NoError(t, err)
		assert.Equal(t, Collection, info.Type())
		assert.True(t, info.RowKey(), "row key defaults to assigned")
		assert.Equal(t, OptionNotNull, info.Columns()[1].Options)
	})

	cols := []any{[]any{"a", 1}}
	tests := []struct {
		name string
		desc map[string]any
		err  error
	}{
		{"missing list", map[string]any{"name": "x"}, ErrArgument},
		{"missing name", map[string]any{"columnInfoList": []any{}}, ErrArgument},
		{"empty list", map[string]any{"name": "x", "columnInfoList": []any{}}, ErrArgument},
		{"name not string", map[string]any{"name": 1}, ErrArgument},
		{"empty name", map[string]any{"name": ""}, ErrArgument},
		{"list not list", map[string]any{"name": "x", "columnInfoList": "a"}, ErrArgument},
		{"entry not list", map[string]any{"name": "x", "columnInfoList": []any{"a"}}, ErrArgument},
		{"entry too short", map[string]any{"name": "x", "columnInfoList": []any{[]any{"a"}}}, ErrArgument},
		{"entry too long", map[string]any{"name": "x", "columnInfoList": []any{[]any{"a", 1, 0, 0}}}, ErrArgument},
		{"column name not string", map[string]any{"name": "x", "columnInfoList": []any{[]any{1, 1}}}, ErrArgument},
		{"unknown type name", map[string]any{"name": "x", "columnInfoList": []any{[]any{"a", "DECIMAL"}}}, ErrArgument},
		{"type out of range", map[string]any{"name": "x", "columnInfoList": []any{[]any{"a", 42}}}, ErrArgument},
		{"fractional type", map[string]any{"name": "x", "columnInfoList": []any{[]any{"a", 1.5}}}, ErrArgument},
		{"bad options", map[string]any{"name": "x", "columnInfoList": []any{[]any{"a", 1, "x"}}}, ErrArgument},
		{"bad container type", map[string]any{"name": "x", "columnInfoList": cols, "type": 5}, ErrArgument},
		{"row key not bool", map[string]any{"name": "x", "columnInfoList": cols, "rowKey": 1}, ErrTypeMismatch},
		{"expiration not map", map[string]any{"name": "x", "columnInfoList": cols, "expiration": 3}, ErrTypeMismatch},
		{"expiration bad unit", map[string]any{"name": "x", "columnInfoList": cols, "expiration": map[string]any{"unit": 12}}, ErrArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseContainerInfo(tt.desc)
			require.ErrorIs(t, err, tt.err)
		})
	}
}
