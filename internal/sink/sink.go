// Package sink delivers exported files (calendars, previews) somewhere a user
// can pick them up.
package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	appLog "wstcal/internal/log"
)

const (
	ContentTypeICS = "text/calendar; charset=utf-8"
	ContentTypePNG = "image/png"
)

// Sink stores one named payload and returns where it ended up.
type Sink interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// FileSink writes into a local directory.
type FileSink struct {
	Dir string
}

func NewFileSink(dir string) *FileSink {
	if dir == "" {
		dir = "./var/exports"
	}
	return &FileSink{Dir: dir}
}

// Put writes atomically (temp file + rename) and returns the file path.
func (f *FileSink) Put(ctx context.Context, name string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return "", fmt.Errorf("sink: mkdir %s: %w", f.Dir, err)
	}

	tmp, err := os.CreateTemp(f.Dir, ".wstcal-export-*.tmp")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", err
	}

	dst := filepath.Join(f.Dir, name)
	if err := os.Rename(tmpName, dst); err != nil {
		return "", err
	}
	appLog.Info("export written", "path", dst, "bytes", len(data))
	return dst, nil
}

// ObjectConfig addresses an S3-compatible bucket.
type ObjectConfig struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// ObjectSink uploads to S3-compatible object storage.
type ObjectSink struct {
	client objectPutter
	bucket string
	prefix string
}

// NewObjectSink connects a minio client with static credentials.
func NewObjectSink(cfg ObjectConfig) (*ObjectSink, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("sink: object endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("sink: minio client: %w", err)
	}
	return newObjectSink(client, cfg.Bucket, cfg.Prefix), nil
}

func newObjectSink(client objectPutter, bucket, prefix string) *ObjectSink {
	return &ObjectSink{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Put uploads data and returns "bucket/key".
func (o *ObjectSink) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	key := name
	if o.prefix != "" {
		key = o.prefix + "/" + name
	}
	_, err = o.client.PutObject(ctx, o.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("sink: put %s/%s: %w", o.bucket, key, err)
	}
	appLog.Info("export uploaded", "bucket", o.bucket, "key", key, "bytes", len(data))
	return o.bucket + "/" + key, nil
}

// cleanName rejects names that would escape the target directory.
func cleanName(name string) (string, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == "/" || base == "" || base != strings.TrimSpace(name) {
		return "", fmt.Errorf("sink: invalid name %q", name)
	}
	return base, nil
}
