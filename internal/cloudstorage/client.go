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

// Package cloudstorage wraps object storage behind a small interface so
// the upload pipeline can run against S3 in production and a local
// directory in tests.
package cloudstorage

import (
	"context"

	"github.com/lakeshed/lakeshed/internal/awsclient"
)

// Client is the object-store surface the pipeline consumes.
type Client interface {
	// UploadObject uploads a local file to bucket/key.
	UploadObject(ctx context.Context, bucket, key, sourceFilename string) error

	// DownloadObject downloads an object to a temp file under tmpdir.
	// Returns the temp filename, size, whether the object was not
	// found, and error.
	DownloadObject(ctx context.Context, tmpdir, bucket, key string) (filename string, size int64, notFound bool, err error)

	// ListObjects returns the keys under prefix in bucket, in the
	// store's listing order.
	ListObjects(ctx context.Context, bucket, prefix string) ([]string, error)

	// DeleteObject deletes an object. Deleting a missing object is not
	// an error.
	DeleteObject(ctx context.Context, bucket, key string) error
}

// NewS3Client returns a Client backed by the given S3 client.
func NewS3Client(awsS3Client *awsclient.S3Client) Client {
	return &s3Client{awsS3Client: awsS3Client}
}
