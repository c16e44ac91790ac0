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

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lakeshed/lakeshed/config"
	"github.com/lakeshed/lakeshed/internal/jsonl"
)

func init() {
	cmd := &cobra.Command{
		Use:   "fileinfo [file]",
		Short: "Probe a JSONL file: size, line count, sample keys",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runFileInfo,
	}
	rootCmd.AddCommand(cmd)
}

func runFileInfo(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	path := cfg.Upload.SourceFile
	if len(args) > 0 {
		path = args[0]
	}

	info, err := jsonl.Probe(path)
	if err != nil {
		return err
	}
	if !info.Exists {
		return fmt.Errorf("file not found: %s", path)
	}

	fmt.Printf("File:       %s\n", info.Path)
	fmt.Printf("Size:       %.2f MB\n", info.SizeMB)
	fmt.Printf("Lines:      %d\n", info.LineCount)
	if len(info.SampleKeys) > 0 {
		fmt.Printf("Keys:       %s\n", strings.Join(info.SampleKeys, ", "))
	}
	return nil
}
