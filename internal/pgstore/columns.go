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

package pgstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Column pairs a record key with its inferred SQL type.
type Column struct {
	Name string
	Type string
}

const (
	typeText    = "TEXT"
	typeDouble  = "DOUBLE PRECISION"
	typeBoolean = "BOOLEAN"
	typeJSONB   = "JSONB"
)

// InferColumns derives the column set from the union of keys across
// rows. The first non-null value of a key decides its type; scalar
// conflicts widen to TEXT. Column order is alphabetical so generated
// DDL is deterministic.
func InferColumns(rows []map[string]any) []Column {
	types := make(map[string]string)
	for _, row := range rows {
		for k, v := range row {
			t := sqlTypeOf(v)
			if t == "" {
				continue
			}
			prev, seen := types[k]
			if !seen {
				types[k] = t
				continue
			}
			if prev != t {
				if prev == typeJSONB || t == typeJSONB {
					types[k] = typeJSONB
				} else {
					types[k] = typeText
				}
			}
		}
	}

	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)

	cols := make([]Column, 0, len(names))
	for _, name := range names {
		cols = append(cols, Column{Name: name, Type: types[name]})
	}
	return cols
}

func sqlTypeOf(v any) string {
	switch v.(type) {
	case nil:
		return ""
	case string:
		return typeText
	case float64:
		return typeDouble
	case bool:
		return typeBoolean
	case []any, map[string]any:
		return typeJSONB
	default:
		return typeText
	}
}

func createTableSQL(table string, cols []Column) string {
	defs := make([]string, 0, len(cols))
	for _, c := range cols {
		defs = append(defs, fmt.Sprintf("%s %s", pgx.Identifier{c.Name}.Sanitize(), c.Type))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		pgx.Identifier{table}.Sanitize(), strings.Join(defs, ", "))
}

func insertSQL(table string, cols []Column) string {
	names := make([]string, 0, len(cols))
	params := make([]string, 0, len(cols))
	for i, c := range cols {
		names = append(names, pgx.Identifier{c.Name}.Sanitize())
		params = append(params, fmt.Sprintf("$%d", i+1))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{table}.Sanitize(),
		strings.Join(names, ", "),
		strings.Join(params, ", "))
}

// rowArgs orders a record's values to match cols. Nested values go to
// JSONB as their JSON encoding; scalar values bound for a TEXT column
// are stringified.
func rowArgs(cols []Column, row map[string]any) ([]any, error) {
	args := make([]any, len(cols))
	for i, c := range cols {
		v, ok := row[c.Name]
		if !ok || v == nil {
			args[i] = nil
			continue
		}
		switch c.Type {
		case typeJSONB:
			b, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encode %s for jsonb: %w", c.Name, err)
			}
			args[i] = string(b)
		case typeText:
			if s, ok := v.(string); ok {
				args[i] = s
			} else {
				args[i] = fmt.Sprintf("%v", v)
			}
		default:
			args[i] = v
		}
	}
	return args, nil
}
