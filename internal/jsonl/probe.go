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
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
)

// FileInfo is the result of probing a JSON-Lines file. Size comes from
// filesystem metadata; the line count is streamed without holding more
// than one line in memory.
type FileInfo struct {
	Path       string
	Exists     bool
	SizeMB     float64 // mebibytes, rounded to 2 decimals
	LineCount  int64   // non-blank lines
	SampleKeys []string
}

// Probe reports existence, size, and non-blank line count for the file
// at path, plus the sorted key set of the first non-blank record. A
// malformed first record leaves SampleKeys empty; it is not an error.
func Probe(path string) (FileInfo, error) {
	info := FileInfo{Path: path}

	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return info, nil
		}
		return info, fmt.Errorf("stat %s: %w", path, err)
	}
	info.Exists = true
	info.SizeMB = math.Round(float64(st.Size())/(1024*1024)*100) / 100

	f, err := os.Open(path)
	if err != nil {
		return info, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSizeBytes)

	sampled := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		info.LineCount++
		if !sampled {
			sampled = true
			var rec Record
			if err := json.Unmarshal([]byte(line), &rec); err == nil {
				for k := range rec {
					info.SampleKeys = append(info.SampleKeys, k)
				}
				sort.Strings(info.SampleKeys)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return info, fmt.Errorf("scan %s: %w", path, err)
	}
	return info, nil
}
