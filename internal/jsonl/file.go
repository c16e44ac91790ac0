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
	"errors"
	"fmt"
	"io"
	"os"
)

// Open returns a Reader over the file at path. A limit of 0 reads the
// whole file. A missing file is reported before any scanning happens.
func Open(path string, limit int) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return NewReader(f, limit), nil
}

// ReadAll reads up to limit valid records from the file at path.
// Intended for the relational loader and previews, not for the
// streaming upload path.
func ReadAll(ctx context.Context, path string, limit int) ([]Record, error) {
	r, err := Open(path, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	var out []Record
	for {
		rec, err := r.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		out = append(out, rec)
	}
}
