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

// Package tabular turns schema-less JSON records into columnar parquet
// files. The column set of a file is the union of keys across its rows;
// keys absent from a row become nulls.
package tabular

import (
	"encoding/json"
	"fmt"
)

// NormalizeRow maps a decoded JSON record onto the value set the
// parquet schema supports. Scalars pass through, nils are dropped so
// they surface as column nulls, and nested arrays/objects are
// re-encoded as compact JSON strings.
func NormalizeRow(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		switch val := v.(type) {
		case nil:
			continue
		case string, bool, float64:
			out[k] = val
		case []any, map[string]any:
			b, err := json.Marshal(val)
			if err != nil {
				out[k] = fmt.Sprintf("%v", val)
				continue
			}
			out[k] = string(b)
		default:
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	return out
}

// NormalizeRows normalizes a batch of records in order.
func NormalizeRows(recs []map[string]any) []map[string]any {
	out := make([]map[string]any, len(recs))
	for i, rec := range recs {
		out[i] = NormalizeRow(rec)
	}
	return out
}
