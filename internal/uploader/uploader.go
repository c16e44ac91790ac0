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

// Package uploader drives the streaming batch upload: scan a JSON-Lines
// file, group records into fixed-size batches, serialize each batch to
// parquet, upload it under a deterministic key, and pace uploads with a
// delay between batches.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lakeshed/lakeshed/internal/cloudstorage"
	"github.com/lakeshed/lakeshed/internal/jsonl"
	"github.com/lakeshed/lakeshed/internal/logctx"
	"github.com/lakeshed/lakeshed/internal/tabular"
)

const (
	DefaultBatchSize = 1000
	DefaultDelay     = 20 * time.Second
	DefaultPrefix    = "raw/data/"

	// RunTimestampLayout formats the single timestamp shared by every
	// batch key of one run.
	RunTimestampLayout = "20060102_150405"
)

// Plan describes a run before any upload happens. It is handed to the
// Confirm callback so the caller can decide whether to proceed.
type Plan struct {
	File             string
	SizeMB           float64
	TotalLines       int64 // non-blank lines per the probe; advisory
	BatchSize        int
	Delay            time.Duration
	ProjectedBatches int64
	EstimatedWait    time.Duration // pacing time only, excludes upload time
}

// Summary is the outcome of a run, complete or not.
type Summary struct {
	Batches          int64
	RecordsUploaded  int64
	LinesScanned     int64
	MalformedLines   int64
	ProjectedBatches int64 // from the probe; may differ from Batches
	Elapsed          time.Duration
	Bucket           string
	Prefix           string
	Aborted          bool // confirmation declined, nothing uploaded
	Interrupted      bool // cancelled mid-run, partial upload
}

// AvgBatchSeconds returns the mean wall-clock seconds per uploaded
// batch, or 0 when nothing was uploaded.
func (s *Summary) AvgBatchSeconds() float64 {
	if s.Batches == 0 {
		return 0
	}
	return s.Elapsed.Seconds() / float64(s.Batches)
}

// Config carries everything a run needs. Defaults are applied by New;
// collaborators never consult the environment.
type Config struct {
	Bucket    string
	Prefix    string
	BatchSize int
	Delay     time.Duration
	TmpDir    string

	// Confirm is called with the plan before the first upload. Nil
	// means proceed. Returning false aborts the run cleanly with no
	// uploads and no error.
	Confirm func(Plan) bool

	// Now and Wait exist so tests can run without wall-clock time.
	// Wait must honor ctx cancellation. Nil selects the real clock and
	// a 1-second-resolution countdown.
	Now  func() time.Time
	Wait func(ctx context.Context, d time.Duration) error
}

// Uploader executes batch-upload runs against one object store client.
type Uploader struct {
	cfg    Config
	client cloudstorage.Client
}

// New validates cfg, applies defaults, and returns an Uploader.
func New(client cloudstorage.Client, cfg Config) (*Uploader, error) {
	if client == nil {
		return nil, errors.New("nil storage client")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.BatchSize < 0 || cfg.Delay < 0 {
		return nil, fmt.Errorf("invalid batch size %d or delay %s", cfg.BatchSize, cfg.Delay)
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.TmpDir == "" {
		cfg.TmpDir = os.TempDir()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Wait == nil {
		cfg.Wait = countdownWait
	}
	return &Uploader{cfg: cfg, client: client}, nil
}

// BatchKey builds the remote object key for one batch. Keys within a
// run share the timestamp and are strictly increasing by batch number.
func BatchKey(prefix, name string, batchNum int64, runTS string) string {
	return fmt.Sprintf("%s%s_batch%03d_%s.parquet", prefix, name, batchNum, runTS)
}

// Run uploads the file at path in batches. The returned Summary is
// valid on every path, including cancellation and failure; the error is
// nil for completed, aborted, and cancelled runs.
func (u *Uploader) Run(ctx context.Context, path string) (*Summary, error) {
	ll := logctx.FromContext(ctx).With(slog.String("file", filepath.Base(path)))

	sum := &Summary{Bucket: u.cfg.Bucket, Prefix: u.cfg.Prefix}

	info, err := jsonl.Probe(path)
	if err != nil {
		return sum, err
	}
	if !info.Exists {
		return sum, fmt.Errorf("source file not found: %s: %w", path, os.ErrNotExist)
	}

	projected := int64(math.Ceil(float64(info.LineCount) / float64(u.cfg.BatchSize)))
	sum.ProjectedBatches = projected

	plan := Plan{
		File:             path,
		SizeMB:           info.SizeMB,
		TotalLines:       info.LineCount,
		BatchSize:        u.cfg.BatchSize,
		Delay:            u.cfg.Delay,
		ProjectedBatches: projected,
	}
	if projected > 1 {
		plan.EstimatedWait = time.Duration(projected-1) * u.cfg.Delay
	}

	ll.Info("Upload plan",
		slog.Float64("sizeMB", info.SizeMB),
		slog.Int64("totalLines", info.LineCount),
		slog.Int("batchSize", u.cfg.BatchSize),
		slog.Duration("delay", u.cfg.Delay),
		slog.Int64("projectedBatches", projected),
		slog.Duration("estimatedWait", plan.EstimatedWait))

	if u.cfg.Confirm != nil && !u.cfg.Confirm(plan) {
		ll.Info("Upload cancelled before start")
		sum.Aborted = true
		return sum, nil
	}

	reader, err := jsonl.Open(path, 0)
	if err != nil {
		return sum, err
	}
	defer func() { _ = reader.Close() }()

	runTS := u.cfg.Now().Format(RunTimestampLayout)
	baseName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	start := u.cfg.Now()

	finish := func() {
		sum.Elapsed = u.cfg.Now().Sub(start)
		sum.LinesScanned = reader.LinesScanned()
		sum.MalformedLines = reader.MalformedLines()
	}

	interrupt := func() (*Summary, error) {
		finish()
		sum.Interrupted = true
		ll.Warn("Upload interrupted",
			slog.Int64("batchesUploaded", sum.Batches),
			slog.Int64("recordsUploaded", sum.RecordsUploaded))
		ll.Warn("Remaining data was not uploaded")
		return sum, nil
	}

	buf := make([]jsonl.Record, 0, u.cfg.BatchSize)

	for {
		select {
		case <-ctx.Done():
			return interrupt()
		default:
		}

		rec, err := reader.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			finish()
			return sum, err
		}
		buf = append(buf, rec)

		if len(buf) < u.cfg.BatchSize {
			continue
		}
		if err := u.flush(ctx, ll, sum, buf, baseName, runTS, info.LineCount, start); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return interrupt()
			}
			finish()
			ll.Error("Upload failed",
				slog.Int64("batchesUploaded", sum.Batches),
				slog.Any("error", err))
			return sum, err
		}
		buf = buf[:0]

		// The probe's line count is advisory: when malformed lines made
		// it overcount, one trailing delay can occur. Mirrors the
		// original pacing rule rather than re-counting.
		if reader.RecordsRead() < info.LineCount {
			ll.Info("Waiting before next batch", slog.Duration("delay", u.cfg.Delay))
			if err := u.cfg.Wait(ctx, u.cfg.Delay); err != nil {
				return interrupt()
			}
		}
	}

	if len(buf) > 0 {
		if err := u.flush(ctx, ll, sum, buf, baseName, runTS, info.LineCount, start); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return interrupt()
			}
			finish()
			ll.Error("Upload failed",
				slog.Int64("batchesUploaded", sum.Batches),
				slog.Any("error", err))
			return sum, err
		}
	}

	finish()
	attrs := []any{
		slog.Int64("batches", sum.Batches),
		slog.Int64("records", sum.RecordsUploaded),
		slog.Duration("elapsed", sum.Elapsed),
		slog.Float64("avgBatchSeconds", sum.AvgBatchSeconds()),
		slog.String("destination", fmt.Sprintf("s3://%s/%s", sum.Bucket, sum.Prefix)),
	}
	if sum.Batches != sum.ProjectedBatches {
		attrs = append(attrs, slog.Int64("projectedBatches", sum.ProjectedBatches))
	}
	ll.Info("Upload complete", attrs...)
	return sum, nil
}

// flush seals the buffered records as one batch: serialize to a temp
// parquet file, upload under the batch key, account progress.
func (u *Uploader) flush(ctx context.Context, ll *slog.Logger, sum *Summary,
	buf []jsonl.Record, baseName, runTS string, totalLines int64, start time.Time) error {

	batchNum := sum.Batches + 1
	key := BatchKey(u.cfg.Prefix, baseName, batchNum, runTS)

	tmpfile := filepath.Join(u.cfg.TmpDir, fmt.Sprintf("%s_batch%03d_%s.parquet", baseName, batchNum, runTS))
	defer func() { _ = os.Remove(tmpfile) }()

	rows := tabular.NormalizeRows(buf)
	size, err := tabular.WriteParquetFile(tmpfile, rows)
	if err != nil {
		return fmt.Errorf("serialize batch %d: %w", batchNum, err)
	}

	if err := u.client.UploadObject(ctx, u.cfg.Bucket, key, tmpfile); err != nil {
		return fmt.Errorf("upload batch %d: %w", batchNum, err)
	}

	sum.Batches = batchNum
	sum.RecordsUploaded += int64(len(buf))

	pct := 0.0
	if totalLines > 0 {
		pct = float64(min(sum.RecordsUploaded, totalLines)) / float64(totalLines) * 100
	}
	ll.Info("Uploaded batch",
		slog.Int64("batch", batchNum),
		slog.Int64("projectedBatches", sum.ProjectedBatches),
		slog.Int("records", len(buf)),
		slog.Int64("bytes", size),
		slog.String("key", key),
		slog.Float64("percentScanned", math.Round(pct*10)/10),
		slog.Float64("elapsedMinutes", math.Round(u.cfg.Now().Sub(start).Minutes()*10)/10))
	return nil
}

// countdownWait sleeps for d in one-second steps, logging the remaining
// time, and returns early with ctx.Err() on cancellation.
func countdownWait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	remaining := int(math.Ceil(d.Seconds()))
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	ll := logctx.FromContext(ctx)
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			remaining--
			if remaining > 0 && remaining%5 == 0 {
				ll.Debug("Next batch countdown", slog.Int("seconds", remaining))
			}
		}
	}
	return nil
}
