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

package tabular

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

// ParquetNodeFromType returns an optional, dictionary-encoded
// parquet.Node for a normalized value. Normalized rows only carry
// strings, float64s, and bools; anything else is a bug upstream.
func ParquetNodeFromType(name string, v any) (parquet.Node, error) {
	switch v.(type) {
	case string:
		return parquet.Optional(parquet.Encoded(parquet.String(), &parquet.RLEDictionary)), nil
	case float64:
		return parquet.Optional(parquet.Encoded(parquet.Leaf(parquet.DoubleType), &parquet.RLEDictionary)), nil
	case bool:
		return parquet.Optional(parquet.Encoded(parquet.Leaf(parquet.BooleanType), &parquet.RLEDictionary)), nil
	default:
		return nil, fmt.Errorf("unsupported type %T for column %q", v, name)
	}
}

// NodesFromRow merges the columns of one normalized row into nodes.
// A column seen with two different types is an error.
func NodesFromRow(nodes map[string]parquet.Node, row map[string]any) error {
	for k, v := range row {
		if v == nil {
			continue
		}
		node, err := ParquetNodeFromType(k, v)
		if err != nil {
			return err
		}
		if existing, ok := nodes[k]; ok {
			if !parquet.EqualNodes(existing, node) {
				return fmt.Errorf("type mismatch for column %q: existing=%s, new=%s",
					k, existing.String(), node.String())
			}
			continue
		}
		nodes[k] = node
	}
	return nil
}

// NodesFromRows builds the consolidated column set of a batch.
func NodesFromRows(rows []map[string]any) (map[string]parquet.Node, error) {
	nodes := make(map[string]parquet.Node)
	for i, row := range rows {
		if err := NodesFromRow(nodes, row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nodes, nil
}

// SchemaFromNodes wraps a node map into a named parquet schema.
func SchemaFromNodes(name string, nodes map[string]parquet.Node) *parquet.Schema {
	return parquet.NewSchema(name, parquet.Group(nodes))
}

func writerOptions(schema *parquet.Schema) []parquet.WriterOption {
	return []parquet.WriterOption{
		schema,
		parquet.Compression(&parquet.Zstd),
		parquet.PageBufferSize(32 * 1024),
	}
}

// WriteParquetFile serializes normalized rows to a parquet file at
// path, one record per row. Returns the number of bytes written.
// Rows must be non-empty: an empty batch has no schema.
func WriteParquetFile(path string, rows []map[string]any) (int64, error) {
	if len(rows) == 0 {
		return 0, fmt.Errorf("refusing to write empty parquet file %s", path)
	}

	nodes, err := NodesFromRows(rows)
	if err != nil {
		return 0, fmt.Errorf("build schema: %w", err)
	}
	if len(nodes) == 0 {
		return 0, fmt.Errorf("no non-null columns in batch")
	}
	schema := SchemaFromNodes("lakeshed", nodes)

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}

	wc, err := parquet.NewWriterConfig(writerOptions(schema)...)
	if err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("writer config: %w", err)
	}
	pw := parquet.NewGenericWriter[map[string]any](f, wc)

	if _, err := pw.Write(rows); err != nil {
		_ = pw.Close()
		_ = f.Close()
		return 0, fmt.Errorf("write rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("close writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", path, err)
	}

	st, err := os.Stat(path)
	if err != nil {
		return 0, nil
	}
	return st.Size(), nil
}

// ReadParquetFile reads every row of a parquet file back as generic
// maps, in row order. The schema comes from the file itself; a generic
// reader over a map type cannot derive one from the Go type.
func ReadParquetFile(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}

	pr := parquet.NewGenericReader[map[string]any](pf, pf.Schema())
	defer func() { _ = pr.Close() }()

	out := make([]map[string]any, 0, pf.NumRows())
	for {
		rows := make([]map[string]any, 64)
		for i := range rows {
			rows[i] = make(map[string]any)
		}
		n, err := pr.Read(rows)
		out = append(out, rows[:n]...)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read rows %s: %w", path, err)
		}
	}
}
