package gridstore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novagrid/internal/native"
	"github.com/tuannm99/novagrid/internal/native/embedded"
)

func testProps() Properties {
	return Properties{
		Host:        "127.0.0.1",
		Port:        10001,
		ClusterName: "test",
		Username:    "admin",
		Password:    "secret",
	}
}

// openTestStore opens a store on a fresh embedded driver and checks on
// cleanup that no handle leaked.
func openTestStore(t *testing.T, opts ...FactoryOption) (*Store, *embedded.Driver) {
	t.Helper()
	d := embedded.New(embedded.WithPartitionCount(8))
	f := NewStoreFactory(d, opts...)
	st, err := f.GetStore(testProps())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, st.Close())
		require.Zero(t, d.OpenHandles().Total(), "leaked handles: %+v", d.OpenHandles())
		require.NoError(t, f.Close())
	})
	return st, d
}

func peopleInfo(t *testing.T) *ContainerInfo {
	t.Helper()
	info, err := NewContainerInfo(ContainerDef{
		Name:   "people",
		Type:   Collection,
		RowKey: true,
		Columns: []ColumnInfo{
			{Name: "name", Type: TypeString},
			{Name: "age", Type: TypeInteger},
			{Name: "score", Type: TypeDouble},
			{Name: "photo", Type: TypeBlob, Options: OptionNullable},
		},
	})
	require.NoError(t, err)
	return info
}

func openPeople(t *testing.T, st *Store) *Container {
	t.Helper()
	c, err := st.PutContainer(peopleInfo(t), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func seedPeople(t *testing.T, c *Container) {
	t.Helper()
	require.NoError(t, c.MultiPut([][]any{
		{"ann", 31, 4.5, nil},
		{"bob", 40, 1.5, []byte("b")},
		{"carol", 22, 3.0, nil},
		{"dave", 57, 2.0, nil},
	}))
}

func timeoutError() *native.Error {
	e := native.NewError(native.CodeTimeout, "test", "connect timed out")
	e.Timeout = true
	return e
}

// scriptedDriver fails the first failures connects with err and then
// delegates to an embedded driver. It records every property list.
type scriptedDriver struct {
	*embedded.Driver

	mu       sync.Mutex
	failures int
	err      error
	calls    int
	props    [][]native.Property
}

func (d *scriptedDriver) GetStore(props []native.Property) (native.Store, error) {
	d.mu.Lock()
	d.calls++
	d.props = append(d.props, props)
	fail := d.calls <= d.failures
	d.mu.Unlock()
	if fail {
		return nil, d.err
	}
	return d.Driver.GetStore(props)
}

func propMap(props []native.Property) map[string]string {
	m := make(map[string]string, len(props))
	for _, p := range props {
		m[p.Name] = p.Value
	}
	return m
}

// nullProbeFailure is a row whose null probe fails.
type nullProbeFailure struct {
	native.Row
}

func (nullProbeFailure) IsNull(int) (bool, error) {
	return false, native.NewError(native.CodeClosed, "test", "row already closed")
}
