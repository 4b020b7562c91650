package table

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseCSV(t *testing.T) {
	data := []byte("\xef\xbb\xbfdate,total_users,note\n01/02/2023,\"1,200\",ok\n\n02/02/2023,1300\n")

	tbl, err := ParseCSV(data, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "total_users", "note"}, tbl.Columns)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "1,200", tbl.Rows[0]["total_users"])
	assert.Equal(t, "02/02/2023", tbl.Rows[1]["date"])
	assert.Nil(t, tbl.Rows[1]["note"], "short rows are padded with missing cells")
}

func TestParseCSVLatin1Fallback(t *testing.T) {
	// "café" encoded as ISO-8859-1
	data := []byte("name,status\ncaf\xe9,active\n")

	tbl, err := ParseCSV(data, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "café", tbl.Rows[0]["name"])

	_, err = ParseCSV(data, Options{Latin1Fallback: false})
	require.Error(t, err)
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, KindEncoding, le.Kind)
}

func TestParseCSVMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
		line int
	}{
		{"too many fields", "a,b\n1,2\n1,2,3\n", 3},
		{"bare quote", "a,b\n1,\"2\n", 2},
		{"empty file", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV([]byte(tt.data), DefaultOptions())
			require.Error(t, err)
			var le *LoadError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, KindMalformed, le.Kind)
			if tt.line > 0 {
				assert.Equal(t, tt.line, le.Line)
			}
			assert.True(t, IsLoadError(err))
		})
	}
}

func TestUniqueHeaders(t *testing.T) {
	got := uniqueHeaders([]string{" id ", "", "id", "id"})
	assert.Equal(t, []string{"id", "unnamed_1", "id.1", "id.2"}, got)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))

	_, err := Load(path, DefaultOptions())
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, KindUnsupported, le.Kind)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"), DefaultOptions())
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, KindIO, le.Kind)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.csv")
	require.NoError(t, os.WriteFile(path, []byte("user_id,status\n1,active\n2,lost\n"), 0644))

	tbl, err := Load(path, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "users.csv", tbl.Source)
	assert.Equal(t, 2, tbl.Len())
	assert.True(t, tbl.HasColumn("status"))
	assert.Equal(t, []interface{}{"active", "lost"}, tbl.Column("status"))
}

func TestLoadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "growth.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"date", "total_users"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"2023-01-01", "100"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"2023-01-02", "120"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	tbl, err := Load(path, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "total_users"}, tbl.Columns)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "120", tbl.Rows[1]["total_users"])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []string{"a", "b"}, [][]string{{"1", "x,y"}})
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,\"x,y\"\n", buf.String())
}

func TestAppendPadsMissingValues(t *testing.T) {
	tbl := New("a", "b")
	tbl.Append(1)
	assert.Equal(t, Row{"a": 1, "b": nil}, tbl.Rows[0])
}
