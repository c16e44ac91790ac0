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

package cloudstorage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileClientLifecycle(t *testing.T) {
	base := t.TempDir()
	client := NewFileClient(base)

	// Create source file
	src := filepath.Join(base, "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	// Upload to bucket/key
	require.NoError(t, client.UploadObject(context.Background(), "bucket", "path/file.txt", src))

	// Download and verify
	tmp := t.TempDir()
	dst, size, notFound, err := client.DownloadObject(context.Background(), tmp, "bucket", "path/file.txt")
	require.NoError(t, err)
	require.False(t, notFound)
	require.Equal(t, int64(5), size)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
	require.True(t, strings.HasSuffix(dst, "file.txt"))

	// Delete
	require.NoError(t, client.DeleteObject(context.Background(), "bucket", "path/file.txt"))
	_, _, notFound, err = client.DownloadObject(context.Background(), tmp, "bucket", "path/file.txt")
	require.NoError(t, err)
	require.True(t, notFound)

	// Deleting a missing object is not an error
	require.NoError(t, client.DeleteObject(context.Background(), "bucket", "path/file.txt"))
}

func TestFileClientListObjects(t *testing.T) {
	base := t.TempDir()
	client := NewFileClient(base)

	src := filepath.Join(base, "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	ctx := context.Background()
	require.NoError(t, client.UploadObject(ctx, "bucket", "raw/data/a_batch001.parquet", src))
	require.NoError(t, client.UploadObject(ctx, "bucket", "raw/data/a_batch002.parquet", src))
	require.NoError(t, client.UploadObject(ctx, "bucket", "other/b.parquet", src))

	keys, err := client.ListObjects(ctx, "bucket", "raw/data/")
	require.NoError(t, err)
	require.Equal(t, []string{
		"raw/data/a_batch001.parquet",
		"raw/data/a_batch002.parquet",
	}, keys)

	// Unknown bucket lists as empty, not an error
	keys, err = client.ListObjects(ctx, "nope", "")
	require.NoError(t, err)
	require.Empty(t, keys)
}
