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
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lakeshed/lakeshed/config"
	"github.com/lakeshed/lakeshed/internal/jsonl"
	"github.com/lakeshed/lakeshed/internal/logctx"
	"github.com/lakeshed/lakeshed/internal/pgstore"
)

// insertChunkSize bounds one pgx batch send.
const insertChunkSize = 500

func init() {
	cmd := &cobra.Command{
		Use:   "load [file]",
		Short: "Load a JSONL file into a Postgres table",
		Long: `Read a JSON-Lines file, infer a column set from the union of its
record keys, create the target table, and insert the records.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runLoad,
	}
	cmd.Flags().String("table", "", "target table (overrides config)")
	cmd.Flags().Int("limit", 0, "load at most N records (0 = all)")
	cmd.Flags().String("if-exists", "", "append, replace, or fail (overrides config)")
	rootCmd.AddCommand(cmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg, "lakeshed-load")

	doneCtx, doneCancel := handleSignals(context.Background())
	defer doneCancel()
	ctx := logctx.WithLogger(doneCtx, slog.Default())

	path := cfg.Upload.SourceFile
	if len(args) > 0 {
		path = args[0]
	}
	table := cfg.Load.Table
	if t, _ := cmd.Flags().GetString("table"); t != "" {
		table = t
	}
	limit := cfg.Load.Limit
	if l, _ := cmd.Flags().GetInt("limit"); l > 0 {
		limit = l
	}
	policyStr := cfg.Load.IfExists
	if p, _ := cmd.Flags().GetString("if-exists"); p != "" {
		policyStr = p
	}
	policy, err := pgstore.ParsePolicy(policyStr)
	if err != nil {
		return err
	}

	records, err := jsonl.ReadAll(ctx, path, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		slog.Info("No valid records found, nothing to load", slog.String("file", path))
		return nil
	}

	cols := pgstore.InferColumns(records)
	slog.Info("Inferred table schema",
		slog.String("table", table),
		slog.Int("columns", len(cols)),
		slog.Int("records", len(records)))

	store, err := pgstore.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.CreateTable(ctx, table, cols, policy); err != nil {
		return err
	}

	var inserted int64
	for start := 0; start < len(records); start += insertChunkSize {
		end := min(start+insertChunkSize, len(records))
		n, err := store.InsertRows(ctx, table, cols, records[start:end])
		inserted += n
		if err != nil {
			slog.Error("Insert failed",
				slog.Int64("insertedSoFar", inserted),
				slog.Any("error", err))
			return err
		}
	}

	slog.Info("Load complete",
		slog.String("table", table),
		slog.Int64("rows", inserted))
	return nil
}
