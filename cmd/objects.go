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

	"github.com/spf13/cobra"

	"github.com/lakeshed/lakeshed/config"
	"github.com/lakeshed/lakeshed/internal/awsclient"
	"github.com/lakeshed/lakeshed/internal/cloudstorage"
)

func init() {
	objectsCmd := &cobra.Command{
		Use:   "objects",
		Short: "Inspect and manage uploaded objects",
	}

	listCmd := &cobra.Command{
		Use:   "list [prefix]",
		Short: "List remote objects under a prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runObjectsList,
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <key>...",
		Short: "Delete remote objects by key",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runObjectsDelete,
	}

	objectsCmd.AddCommand(listCmd, deleteCmd)
	rootCmd.AddCommand(objectsCmd)
}

func objectsClient(ctx context.Context, cfg *config.Config) (cloudstorage.Client, string, error) {
	if cfg.S3.Bucket == "" {
		return nil, "", fmt.Errorf("no S3 bucket configured (set LAKESHED_S3_BUCKET)")
	}
	manager, err := awsclient.NewManager(ctx)
	if err != nil {
		return nil, "", err
	}
	return cloudstorage.NewS3Client(manager.GetS3(s3Options(cfg.S3)...)), cfg.S3.Bucket, nil
}

func runObjectsList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg, "lakeshed-objects")

	doneCtx, doneCancel := handleSignals(context.Background())
	defer doneCancel()

	prefix := cfg.Upload.Prefix
	if len(args) > 0 {
		prefix = args[0]
	}

	client, bucket, err := objectsClient(doneCtx, cfg)
	if err != nil {
		return err
	}

	keys, err := client.ListObjects(doneCtx, bucket, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		fmt.Println(key)
	}
	fmt.Printf("%d objects under s3://%s/%s\n", len(keys), bucket, prefix)
	return nil
}

func runObjectsDelete(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg, "lakeshed-objects")

	doneCtx, doneCancel := handleSignals(context.Background())
	defer doneCancel()

	client, bucket, err := objectsClient(doneCtx, cfg)
	if err != nil {
		return err
	}

	for _, key := range args {
		if err := client.DeleteObject(doneCtx, bucket, key); err != nil {
			return err
		}
		fmt.Printf("deleted s3://%s/%s\n", bucket, key)
	}
	return nil
}
