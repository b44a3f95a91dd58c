package sink

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSinkPut(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s := NewFileSink(dir)

	path, err := s.Put(context.Background(), "[WST] Fall.ics", []byte("BEGIN:VCALENDAR"), ContentTypeICS)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "[WST] Fall.ics"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "BEGIN:VCALENDAR", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileSinkRejectsPaths(t *testing.T) {
	s := NewFileSink(t.TempDir())
	for _, name := range []string{"", "../escape.ics", "a/b.ics", "."} {
		_, err := s.Put(context.Background(), name, nil, ContentTypeICS)
		assert.Error(t, err, name)
	}
}

type fakePutter struct {
	bucket, key, contentType string
	body                     []byte
	err                      error
}

func (f *fakePutter) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	f.bucket, f.key, f.contentType = bucket, key, opts.ContentType
	f.body, _ = io.ReadAll(r)
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func TestObjectSinkPut(t *testing.T) {
	fp := &fakePutter{}
	s := newObjectSink(fp, "calendars", "/exports/")

	loc, err := s.Put(context.Background(), "[WST] Schedule.ics", []byte("ics"), ContentTypeICS)
	require.NoError(t, err)
	assert.Equal(t, "calendars/exports/[WST] Schedule.ics", loc)
	assert.Equal(t, "exports/[WST] Schedule.ics", fp.key)
	assert.Equal(t, ContentTypeICS, fp.contentType)
	assert.Equal(t, []byte("ics"), fp.body)

	fp.err = errors.New("denied")
	_, err = s.Put(context.Background(), "x.ics", nil, ContentTypeICS)
	assert.ErrorContains(t, err, "denied")
}

func TestNewObjectSinkRequiresBucket(t *testing.T) {
	_, err := NewObjectSink(ObjectConfig{Endpoint: "localhost:9000"})
	assert.Error(t, err)

	s, err := NewObjectSink(ObjectConfig{Endpoint: "localhost:9000", Bucket: "b", AccessKey: "k", SecretKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "b", s.bucket)
}
