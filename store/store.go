/*
Copyright © 2024 the cfsarchive authors.
This file is part of cfsarchive.

cfsarchive is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

cfsarchive is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with cfsarchive.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package store implements the chunked multidimensional array store that
// backs the archive: groups with string attributes, and float32 arrays
// with a fixed dtype, shape, per-dimension-0 chunking, and a NaN fill
// value, over either a local directory or an S3-compatible bucket.
package store

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/s3blob"
)

// UnavailableError reports that the requested root URI names a storage
// backend this build does not support.
type UnavailableError struct {
	Scheme string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("store: no support for backend %q", e.Scheme)
}

// Store is a chunked array archive rooted at a single bucket/directory.
type Store struct {
	bucket *blob.Bucket
	prefix string
}

// Open opens the store rooted at root. A root beginning with "s3://"
// selects an S3-compatible bucket (credentials and endpoint from the
// standard AWS environment variables); any other string is a local
// filesystem path.
func Open(ctx context.Context, root string) (*Store, error) {
	if strings.HasPrefix(root, "s3://") {
		return openS3(ctx, root)
	}
	return openLocal(root)
}

func openLocal(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("store: creating local root %s: %v", root, err)
	}
	b, err := fileblob.OpenBucket(root, nil)
	if err != nil {
		return nil, fmt.Errorf("store: opening local root %s: %v", root, err)
	}
	return &Store{bucket: b}, nil
}

func openS3(ctx context.Context, root string) (*Store, error) {
	u, err := url.Parse(root)
	if err != nil {
		return nil, fmt.Errorf("store: parsing %s: %v", root, err)
	}
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}
	cfg := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	}
	if endpoint := os.Getenv("AWS_ENDPOINT_URL_S3"); endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("store: creating AWS session: %v", err)
	}
	b, err := s3blob.OpenBucket(ctx, sess, u.Host, nil)
	if err != nil {
		return nil, fmt.Errorf("store: opening s3 bucket %s: %v", u.Host, err)
	}
	prefix := strings.TrimPrefix(u.Path, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{bucket: b, prefix: prefix}, nil
}

func (s *Store) key(path string) string {
	return s.prefix + strings.TrimPrefix(path, "/")
}

func (s *Store) readBlob(ctx context.Context, path string) ([]byte, error) {
	r, err := s.bucket.NewReader(ctx, s.key(path), nil)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	buf := make([]byte, r.Size())
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *Store) writeBlob(ctx context.Context, path string, data []byte) error {
	w, err := s.bucket.NewWriter(ctx, s.key(path), nil)
	if err != nil {
		return fmt.Errorf("store: creating writer for %s: %v", path, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("store: writing %s: %v", path, err)
	}
	return w.Close()
}

func (s *Store) exists(ctx context.Context, path string) (bool, error) {
	return s.bucket.Exists(ctx, s.key(path))
}
