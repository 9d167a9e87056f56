package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rows.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return "file://" + path
}

func TestOpenCSVWithHeadersSplitsHeaderFromRows(t *testing.T) {
	url := writeCSV(t, "name,age\nAlice,30\nBob,10\n")
	r, err := OpenCSV(url, true)
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, []string{"name", "age"}, r.Headers())

	batch, ok := r.Next(context.Background())
	require.True(t, ok)
	require.NoError(t, batch.Err)
	require.Equal(t, [][]string{{"Alice", "30"}, {"Bob", "10"}}, batch.Rows)

	_, ok = r.Next(context.Background())
	require.False(t, ok)
}

func TestOpenCSVWithoutHeadersKeepsEveryRow(t *testing.T) {
	url := writeCSV(t, "1,2\n3,4\n")
	r, err := OpenCSV(url, false)
	require.NoError(t, err)
	defer r.Close()

	require.Nil(t, r.Headers())
	batch, ok := r.Next(context.Background())
	require.True(t, ok)
	require.Equal(t, [][]string{{"1", "2"}, {"3", "4"}}, batch.Rows)
}

func TestOpenCSVBatchesAcrossBatchSize(t *testing.T) {
	var contents string
	for i := 0; i < batchSize+10; i++ {
		contents += "x\n"
	}
	url := writeCSV(t, contents)
	r, err := OpenCSV(url, false)
	require.NoError(t, err)
	defer r.Close()

	first, ok := r.Next(context.Background())
	require.True(t, ok)
	require.Len(t, first.Rows, batchSize)

	second, ok := r.Next(context.Background())
	require.True(t, ok)
	require.Len(t, second.Rows, 10)

	_, ok = r.Next(context.Background())
	require.False(t, ok)
}

func TestOpenCSVMissingFileReturnsError(t *testing.T) {
	_, err := OpenCSV("file:///no/such/path.csv", false)
	require.Error(t, err)
}

func TestPathStripsFileScheme(t *testing.T) {
	require.Equal(t, "/tmp/x.csv", Path("file:///tmp/x.csv"))
	require.Equal(t, "/tmp/x.csv", Path("/tmp/x.csv"))
}

func TestCloseStopsReaderWithoutPanic(t *testing.T) {
	url := writeCSV(t, "a\nb\nc\n")
	r, err := OpenCSV(url, false)
	require.NoError(t, err)
	r.Close()
}
