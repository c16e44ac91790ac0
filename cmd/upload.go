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
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lakeshed/lakeshed/config"
	"github.com/lakeshed/lakeshed/internal/awsclient"
	"github.com/lakeshed/lakeshed/internal/cloudstorage"
	"github.com/lakeshed/lakeshed/internal/logctx"
	"github.com/lakeshed/lakeshed/internal/uploader"
)

func init() {
	cmd := &cobra.Command{
		Use:   "upload [file] [batch_size] [delay_seconds]",
		Short: "Stream a JSONL file to S3 in paced parquet batches",
		Long: `Scan a JSON-Lines file, group records into fixed-size batches,
serialize each batch to parquet, and upload it to S3, pausing between
batches to throttle the upload rate.`,
		Args: cobra.MaximumNArgs(3),
		RunE: runUpload,
	}
	cmd.Flags().String("bucket", "", "S3 bucket (overrides config)")
	cmd.Flags().String("prefix", "", "remote key prefix (overrides config)")
	cmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(cmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg, "lakeshed-upload")

	doneCtx, doneCancel := handleSignals(context.Background())
	defer doneCancel()

	path := cfg.Upload.SourceFile
	batchSize := cfg.Upload.BatchSize
	delaySeconds := cfg.Upload.DelaySeconds
	if len(args) > 0 {
		path = args[0]
	}
	if len(args) > 1 {
		batchSize, err = strconv.Atoi(args[1])
		if err != nil || batchSize < 1 {
			return fmt.Errorf("invalid batch_size %q", args[1])
		}
	}
	if len(args) > 2 {
		delaySeconds, err = strconv.Atoi(args[2])
		if err != nil || delaySeconds < 0 {
			return fmt.Errorf("invalid delay_seconds %q", args[2])
		}
	}

	bucket := cfg.S3.Bucket
	if b, _ := cmd.Flags().GetString("bucket"); b != "" {
		bucket = b
	}
	prefix := cfg.Upload.Prefix
	if p, _ := cmd.Flags().GetString("prefix"); p != "" {
		prefix = p
	}
	if bucket == "" {
		return fmt.Errorf("no S3 bucket configured (set LAKESHED_S3_BUCKET or --bucket)")
	}

	manager, err := awsclient.NewManager(doneCtx)
	if err != nil {
		return err
	}
	client := cloudstorage.NewS3Client(manager.GetS3(s3Options(cfg.S3)...))

	var confirm func(uploader.Plan) bool
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		confirm = func(uploader.Plan) bool { return true }
	} else {
		confirm = promptConfirm
	}

	up, err := uploader.New(client, uploader.Config{
		Bucket:    bucket,
		Prefix:    prefix,
		BatchSize: batchSize,
		Delay:     time.Duration(delaySeconds) * time.Second,
		Confirm:   confirm,
	})
	if err != nil {
		return err
	}

	ctx := logctx.WithLogger(doneCtx, slog.Default())
	_, err = up.Run(ctx, path)
	return err
}

func s3Options(s3cfg config.S3Config) []awsclient.S3Option {
	var opts []awsclient.S3Option
	if s3cfg.Region != "" {
		opts = append(opts, awsclient.WithRegion(s3cfg.Region))
	}
	if s3cfg.Endpoint != "" {
		opts = append(opts, awsclient.WithEndpoint(s3cfg.Endpoint))
	}
	if s3cfg.PathStyle {
		opts = append(opts, awsclient.WithPathStyle())
	}
	if s3cfg.InsecureTLS {
		opts = append(opts, awsclient.WithInsecureTLS())
	}
	return opts
}

// promptConfirm asks on stdin before the first upload. Anything other
// than y/yes declines.
func promptConfirm(plan uploader.Plan) bool {
	fmt.Printf("Proceed with streaming upload of %s (%d lines, %d projected batches, ~%.1f minutes of pacing)? (y/n): ",
		plan.File, plan.TotalLines, plan.ProjectedBatches, plan.EstimatedWait.Minutes())
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
