// Copyright (C) 2025 Lakeshed Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package jsonl

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readAllRecords(t *testing.T, r *Reader) []Record {
	t.Helper()
	var out []Record
	for {
		rec, err := r.Next(context.Background())
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func TestReaderOrderAndBlankLines(t *testing.T) {
	path := writeFile(t, `{"id": 1}

{"id": 2}

{"id": 3}
`)
	r, err := Open(path, 0)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	recs := readAllRecords(t, r)
	require.Len(t, recs, 3)
	for i, rec := range recs {
		require.Equal(t, float64(i+1), rec["id"])
	}
	require.Equal(t, int64(5), r.LinesScanned())
	require.Equal(t, int64(3), r.RecordsRead())
	require.Equal(t, int64(0), r.MalformedLines())
}

func TestReaderSkipsMalformedLines(t *testing.T) {
	path := writeFile(t, `{"id": 1}
not json at all
{"id": 2}
{"broken":
{"id": 3}
`)
	r, err := Open(path, 0)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	recs := readAllRecords(t, r)
	require.Len(t, recs, 3)
	require.Equal(t, float64(1), recs[0]["id"])
	require.Equal(t, float64(2), recs[1]["id"])
	require.Equal(t, float64(3), recs[2]["id"])
	require.Equal(t, int64(2), r.MalformedLines())
}

func TestReaderLimitStopsScanning(t *testing.T) {
	path := writeFile(t, `{"id": 1}
{"id": 2}
{"id": 3}
{"id": 4}
`)
	r, err := Open(path, 2)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	recs := readAllRecords(t, r)
	require.Len(t, recs, 2)
	// Lines past the limit are never consumed.
	require.Equal(t, int64(2), r.LinesScanned())
}

func TestReaderEmptyFile(t *testing.T) {
	path := writeFile(t, "")
	r, err := Open(path, 0)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	recs := readAllRecords(t, r)
	require.Empty(t, recs)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.jsonl"), 0)
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadAll(t *testing.T) {
	path := writeFile(t, `{"a": "x"}
garbage
{"a": "y"}
`)
	recs, err := ReadAll(context.Background(), path, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "x", recs[0]["a"])
	require.Equal(t, "y", recs[1]["a"])
}
