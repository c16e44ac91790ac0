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

package uploader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lakeshed/lakeshed/internal/cloudstorage"
	"github.com/lakeshed/lakeshed/internal/tabular"
)

var fixedNow = time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)

const fixedTS = "20240102_150405"

// writeJSONL writes n records {"id": 1..n} and returns the path.
func writeJSONL(t *testing.T, name string, n int) string {
	t.Helper()
	var sb strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, "{\"id\": %d, \"title\": \"item %d\"}\n", i, i)
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

// hookedClient lets tests observe or fail individual uploads.
type hookedClient struct {
	cloudstorage.Client
	onUpload func(key string) error
}

func (c *hookedClient) UploadObject(ctx context.Context, bucket, key, src string) error {
	if c.onUpload != nil {
		if err := c.onUpload(key); err != nil {
			return err
		}
	}
	return c.Client.UploadObject(ctx, bucket, key, src)
}

type env struct {
	base   string
	client *hookedClient
	waits  []time.Duration
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return &env{
		base:   t.TempDir(),
		client: &hookedClient{Client: cloudstorage.NewFileClient(t.TempDir())},
	}
}

func (e *env) config(t *testing.T, batchSize int) Config {
	t.Helper()
	return Config{
		Bucket:    "test-bucket",
		BatchSize: batchSize,
		Delay:     20 * time.Second,
		TmpDir:    e.base,
		Now:       func() time.Time { return fixedNow },
		Wait: func(ctx context.Context, d time.Duration) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			e.waits = append(e.waits, d)
			return nil
		},
	}
}

func (e *env) storedKeys(t *testing.T) []string {
	t.Helper()
	keys, err := e.client.ListObjects(context.Background(), "test-bucket", "")
	require.NoError(t, err)
	return keys
}

func (e *env) readIDs(t *testing.T, keys []string) []float64 {
	t.Helper()
	var ids []float64
	for _, key := range keys {
		tmp := t.TempDir()
		local, _, notFound, err := e.client.DownloadObject(context.Background(), tmp, "test-bucket", key)
		require.NoError(t, err)
		require.False(t, notFound)
		rows, err := tabular.ReadParquetFile(local)
		require.NoError(t, err)
		for _, row := range rows {
			ids = append(ids, row["id"].(float64))
		}
	}
	return ids
}

func TestRunPartitionsIntoBatches(t *testing.T) {
	e := newEnv(t)
	path := writeJSONL(t, "products.jsonl", 2500)

	up, err := New(e.client, e.config(t, 1000))
	require.NoError(t, err)

	sum, err := up.Run(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, int64(3), sum.Batches)
	require.Equal(t, int64(3), sum.ProjectedBatches)
	require.Equal(t, int64(2500), sum.RecordsUploaded)
	require.False(t, sum.Interrupted)
	require.False(t, sum.Aborted)

	keys := e.storedKeys(t)
	require.Equal(t, []string{
		"raw/data/products_batch001_" + fixedTS + ".parquet",
		"raw/data/products_batch002_" + fixedTS + ".parquet",
		"raw/data/products_batch003_" + fixedTS + ".parquet",
	}, keys)

	// Batch sizes 1000, 1000, 500 and the concatenation reproduces the
	// source order exactly.
	ids := e.readIDs(t, keys)
	require.Len(t, ids, 2500)
	for i, id := range ids {
		require.Equal(t, float64(i+1), id)
	}

	// A delay between each pair of batches, never after the last.
	require.Len(t, e.waits, 2)
	for _, d := range e.waits {
		require.Equal(t, 20*time.Second, d)
	}
}

func TestRunEvenlyDivisible(t *testing.T) {
	e := newEnv(t)
	path := writeJSONL(t, "even.jsonl", 2000)

	up, err := New(e.client, e.config(t, 1000))
	require.NoError(t, err)

	sum, err := up.Run(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, int64(2), sum.Batches)
	require.Len(t, e.waits, 1)
}

func TestRunBatchCountProperty(t *testing.T) {
	cases := []struct {
		records, batchSize int
		want               int64
	}{
		{0, 10, 0},
		{1, 10, 1},
		{9, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{7, 1, 7},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d_by_%d", tc.records, tc.batchSize), func(t *testing.T) {
			e := newEnv(t)
			path := writeJSONL(t, "data.jsonl", tc.records)

			up, err := New(e.client, e.config(t, tc.batchSize))
			require.NoError(t, err)

			sum, err := up.Run(context.Background(), path)
			require.NoError(t, err)
			require.Equal(t, tc.want, sum.Batches)
			require.Equal(t, int64(tc.records), sum.RecordsUploaded)
			require.Len(t, e.storedKeys(t), int(tc.want))
			if tc.want > 1 {
				require.Len(t, e.waits, int(tc.want-1))
			} else {
				require.Empty(t, e.waits)
			}
		})
	}
}

func TestRunEmptyFile(t *testing.T) {
	e := newEnv(t)
	path := writeJSONL(t, "empty.jsonl", 0)

	up, err := New(e.client, e.config(t, 1000))
	require.NoError(t, err)

	sum, err := up.Run(context.Background(), path)
	require.NoError(t, err)
	require.Zero(t, sum.Batches)
	require.Zero(t, sum.RecordsUploaded)
	require.Empty(t, e.storedKeys(t))
}

func TestRunMissingFile(t *testing.T) {
	e := newEnv(t)
	up, err := New(e.client, e.config(t, 1000))
	require.NoError(t, err)

	_, err = up.Run(context.Background(), filepath.Join(t.TempDir(), "absent.jsonl"))
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Empty(t, e.storedKeys(t))
}

func TestRunMalformedLinesNeverUploadOrAbort(t *testing.T) {
	e := newEnv(t)
	content := `{"id": 1}
garbage line
{"id": 2}
{"id": 3}
also not json
{"id": 4}
{"id": 5}
`
	path := filepath.Join(t.TempDir(), "dirty.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	up, err := New(e.client, e.config(t, 2))
	require.NoError(t, err)

	sum, err := up.Run(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, int64(3), sum.Batches)
	require.Equal(t, int64(5), sum.RecordsUploaded)
	require.Equal(t, int64(2), sum.MalformedLines)
	// The probe counted the malformed lines, so the projection diverges
	// from the streamed result. That divergence is surfaced, not fixed.
	require.Equal(t, int64(4), sum.ProjectedBatches)

	ids := e.readIDs(t, e.storedKeys(t))
	require.Equal(t, []float64{1, 2, 3, 4, 5}, ids)
}

func TestRunEmptyObjectRecordsFailSerialization(t *testing.T) {
	e := newEnv(t)
	content := `{}
{}
{"x": null}
`
	path := filepath.Join(t.TempDir(), "hollow.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	up, err := New(e.client, e.config(t, 2))
	require.NoError(t, err)

	// Empty objects are valid records but yield no columns, so the
	// first sealed batch fails to serialize and the run aborts.
	sum, err := up.Run(context.Background(), path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "serialize batch 1")
	require.Zero(t, sum.Batches)
	require.Empty(t, e.storedKeys(t))
}

func TestRunConfirmDeclined(t *testing.T) {
	e := newEnv(t)
	path := writeJSONL(t, "data.jsonl", 50)

	cfg := e.config(t, 10)
	cfg.Confirm = func(plan Plan) bool {
		require.Equal(t, int64(50), plan.TotalLines)
		require.Equal(t, int64(5), plan.ProjectedBatches)
		return false
	}
	up, err := New(e.client, cfg)
	require.NoError(t, err)

	sum, err := up.Run(context.Background(), path)
	require.NoError(t, err)
	require.True(t, sum.Aborted)
	require.Zero(t, sum.Batches)
	require.Empty(t, e.storedKeys(t))
}

func TestRunInterruptedMidRun(t *testing.T) {
	e := newEnv(t)
	path := writeJSONL(t, "data.jsonl", 5000)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var uploads int
	e.client.onUpload = func(key string) error {
		uploads++
		if uploads == 2 {
			cancel()
		}
		return nil
	}

	up, err := New(e.client, e.config(t, 1000))
	require.NoError(t, err)

	sum, err := up.Run(ctx, path)
	require.NoError(t, err)
	require.True(t, sum.Interrupted)
	require.Equal(t, int64(2), sum.Batches)
	require.Equal(t, int64(2000), sum.RecordsUploaded)
	// No object-store calls after the interrupt.
	require.Equal(t, 2, uploads)
	require.Len(t, e.storedKeys(t), 2)
}

func TestRunUploadErrorAborts(t *testing.T) {
	e := newEnv(t)
	path := writeJSONL(t, "data.jsonl", 30)

	boom := errors.New("bucket on fire")
	e.client.onUpload = func(key string) error {
		if strings.Contains(key, "batch002") {
			return boom
		}
		return nil
	}

	up, err := New(e.client, e.config(t, 10))
	require.NoError(t, err)

	sum, err := up.Run(context.Background(), path)
	require.Error(t, err)
	require.ErrorIs(t, err, boom)
	require.Equal(t, int64(1), sum.Batches)
	require.Equal(t, int64(10), sum.RecordsUploaded)
	require.False(t, sum.Interrupted)
}

func TestRunTimestampVariesPartitioningDoesNot(t *testing.T) {
	e := newEnv(t)
	path := writeJSONL(t, "data.jsonl", 25)

	cfg := e.config(t, 10)
	up, err := New(e.client, cfg)
	require.NoError(t, err)
	_, err = up.Run(context.Background(), path)
	require.NoError(t, err)

	later := fixedNow.Add(90 * time.Minute)
	cfg2 := e.config(t, 10)
	cfg2.Now = func() time.Time { return later }
	up2, err := New(e.client, cfg2)
	require.NoError(t, err)
	_, err = up2.Run(context.Background(), path)
	require.NoError(t, err)

	// Sorted keys interleave the two runs: batch001 of each run sorts
	// adjacent, then batch002, and so on.
	keys := e.storedKeys(t)
	require.Len(t, keys, 6)

	trim := func(key string) string {
		i := strings.LastIndex(key, "_")
		return key[:i]
	}
	for n := 0; n < 3; n++ {
		require.Equal(t, trim(keys[2*n]), trim(keys[2*n+1]))
	}
	require.Contains(t, keys[0], fixedTS)
	require.Contains(t, keys[1], later.Format(RunTimestampLayout))
}

func TestBatchKey(t *testing.T) {
	key := BatchKey("raw/data/", "meta_Amazon_Fashion", 7, fixedTS)
	require.Equal(t, "raw/data/meta_Amazon_Fashion_batch007_"+fixedTS+".parquet", key)
}

func TestNewValidation(t *testing.T) {
	client := cloudstorage.NewFileClient(t.TempDir())

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	_, err = New(client, Config{})
	require.Error(t, err)

	up, err := New(client, Config{Bucket: "b"})
	require.NoError(t, err)
	require.Equal(t, DefaultBatchSize, up.cfg.BatchSize)
	require.Equal(t, DefaultPrefix, up.cfg.Prefix)
}
