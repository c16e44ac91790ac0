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

// Package jsonl reads JSON-Lines files one record at a time and probes
// file-level metadata without materializing the file in memory.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/lakeshed/lakeshed/internal/logctx"
)

// MaxLineSizeBytes bounds a single JSON line. Lines beyond this are a
// hard read error, not a skip.
const MaxLineSizeBytes = 16 * 1024 * 1024

// Record is one decoded JSON-Lines document.
type Record = map[string]any

// Reader streams decoded records from a JSON-Lines source in file order.
// Blank lines are skipped silently. Malformed lines are logged at warn
// level with their 1-based line number and skipped; they never abort the
// read.
type Reader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	closed  bool

	limit int // max valid records to return, 0 = unbounded

	lines     int64 // raw lines consumed, blank lines included
	records   int64 // valid records returned
	malformed int64 // non-blank lines that failed to decode
}

// NewReader wraps an io.ReadCloser. The reader takes ownership of the
// closer. A limit of 0 reads the whole stream.
func NewReader(rc io.ReadCloser, limit int) *Reader {
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSizeBytes)
	return &Reader{
		scanner: scanner,
		closer:  rc,
		limit:   limit,
	}
}

// Next returns the next valid record, or io.EOF when the stream is
// exhausted or the limit has been reached. Lines past the limit are
// never scanned.
func (r *Reader) Next(ctx context.Context) (Record, error) {
	if r.closed {
		return nil, io.EOF
	}
	if r.limit > 0 && r.records >= int64(r.limit) {
		return nil, io.EOF
	}

	for r.scanner.Scan() {
		r.lines++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			r.malformed++
			logctx.FromContext(ctx).Warn("Skipping invalid JSON line",
				"line", r.lines, "error", err.Error())
			continue
		}
		r.records++
		return rec, nil
	}

	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read line %d: %w", r.lines+1, err)
	}
	return nil, io.EOF
}

// Close closes the underlying source. Safe to call more than once.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.closer != nil {
		err := r.closer.Close()
		r.closer = nil
		return err
	}
	return nil
}

// LinesScanned returns the number of raw lines consumed so far,
// blank and malformed lines included.
func (r *Reader) LinesScanned() int64 { return r.lines }

// RecordsRead returns the number of valid records returned so far.
func (r *Reader) RecordsRead() int64 { return r.records }

// MalformedLines returns the number of non-blank lines that failed to
// decode.
func (r *Reader) MalformedLines() int64 { return r.malformed }
