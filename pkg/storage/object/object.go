package object

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/citymotion/tripfacts/pkg/config"
	pkgerrors "github.com/citymotion/tripfacts/pkg/errors"
)

// Store reads and writes objects in an S3-compatible bucket. Keys are the
// store names, optionally under a fixed prefix.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

func New(ctx context.Context, cfg config.StorageConfig, prefix string) (*Store, error) {
	if cfg.S3Endpoint == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "s3 endpoint is required")
	}
	if cfg.S3Bucket == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "s3 bucket is required")
	}

	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating s3 client")
	}

	store := &Store{client: client, bucket: cfg.S3Bucket, prefix: strings.Trim(prefix, "/")}

	exists, err := client.BucketExists(ctx, cfg.S3Bucket)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "checking s3 bucket")
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.S3Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating s3 bucket")
		}
	}

	return store, nil
}

func (s *Store) key(name string) string {
	name = strings.Trim(name, "/")
	if name == "." {
		name = ""
	}
	if s.prefix == "" || name == "" {
		return s.prefix + name
	}
	return s.prefix + "/" + name
}

func (s *Store) List(ctx context.Context, dir string) ([]string, error) {
	prefix := s.key(dir)
	if prefix != "" {
		prefix += "/"
	}

	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeIO, obj.Err, fmt.Sprintf("listing %s", dir))
		}
		// Non-recursive listings surface nested keys as prefix entries.
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		names = append(names, path.Base(obj.Key))
	}
	return names, nil
}

func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeIO, err, fmt.Sprintf("reading %s", name))
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, fmt.Sprintf("reading %s", name))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeIO, err, fmt.Sprintf("reading %s", name))
	}
	return data, nil
}

func (s *Store) Write(ctx context.Context, name string, data []byte) error {
	reader := bytes.NewReader(data)
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), reader, int64(reader.Len()),
		minio.PutObjectOptions{ContentType: contentTypeFor(name)})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeIO, err, fmt.Sprintf("writing %s", name))
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "pinging s3")
	}
	return nil
}

func contentTypeFor(name string) string {
	switch path.Ext(name) {
	case ".csv":
		return "text/csv"
	case ".json", ".jsonl":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
