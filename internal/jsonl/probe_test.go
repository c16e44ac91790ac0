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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProbe(t *testing.T) {
	path := writeFile(t, `{"title": "a", "price": 1.5}

{"title": "b"}
{"title": "c"}
`)
	info, err := Probe(path)
	require.NoError(t, err)
	require.True(t, info.Exists)
	require.Equal(t, int64(3), info.LineCount)
	require.Equal(t, []string{"price", "title"}, info.SampleKeys)
	require.GreaterOrEqual(t, info.SizeMB, 0.0)
}

func TestProbeMissingFile(t *testing.T) {
	info, err := Probe(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.NoError(t, err)
	require.False(t, info.Exists)
	require.Zero(t, info.LineCount)
}

func TestProbeMalformedFirstLine(t *testing.T) {
	path := writeFile(t, `not json
{"title": "b"}
`)
	info, err := Probe(path)
	require.NoError(t, err)
	require.Equal(t, int64(2), info.LineCount)
	require.Empty(t, info.SampleKeys)
}

func TestProbeEmptyFile(t *testing.T) {
	path := writeFile(t, "")
	info, err := Probe(path)
	require.NoError(t, err)
	require.True(t, info.Exists)
	require.Zero(t, info.LineCount)
	require.Equal(t, 0.0, info.SizeMB)
}
