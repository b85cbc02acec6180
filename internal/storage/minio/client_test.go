package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	minioLib "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBucket is an in-memory objectAPI.
type fakeBucket struct {
	exists     bool
	existsErr  error
	makeErr    error
	putErr     error
	getErr     error
	statErr    error
	objects    map[string][]byte
	types      map[string]string
	madeBucket bool
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{
		exists:  true,
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (f *fakeBucket) BucketExists(context.Context, string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeBucket) MakeBucket(context.Context, string, minioLib.MakeBucketOptions) error {
	if f.makeErr != nil {
		return f.makeErr
	}
	f.madeBucket = true
	return nil
}

func (f *fakeBucket) PutObject(_ context.Context, _, key string, r io.Reader, _ int64, opts minioLib.PutObjectOptions) (minioLib.UploadInfo, error) {
	if f.putErr != nil {
		return minioLib.UploadInfo{}, f.putErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return minioLib.UploadInfo{}, err
	}
	f.objects[key] = b
	f.types[key] = opts.ContentType
	return minioLib.UploadInfo{Key: key, Size: int64(len(b))}, nil
}

func (f *fakeBucket) GetObject(_ context.Context, _, key string, _ minioLib.GetObjectOptions) (io.ReadCloser, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return io.NopCloser(bytes.NewReader(f.objects[key])), nil
}

func (f *fakeBucket) StatObject(_ context.Context, _, key string, _ minioLib.StatObjectOptions) (minioLib.ObjectInfo, error) {
	if f.statErr != nil {
		return minioLib.ObjectInfo{}, f.statErr
	}
	if _, ok := f.objects[key]; !ok {
		return minioLib.ObjectInfo{}, minioLib.ErrorResponse{Code: "NoSuchKey"}
	}
	return minioLib.ObjectInfo{Key: key}, nil
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		bucket     *fakeBucket
		wantErr    bool
		wantCreate bool
	}{
		{name: "bucket exists", bucket: &fakeBucket{exists: true}},
		{name: "bucket created", bucket: &fakeBucket{exists: false}, wantCreate: true},
		{name: "exists check fails", bucket: &fakeBucket{existsErr: errors.New("boom")}, wantErr: true},
		{name: "create fails", bucket: &fakeBucket{makeErr: errors.New("fail")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := newStore(ctx, tt.bucket, "diag")
			if tt.wantErr {
				assert.Nil(t, s)
				require.Error(t, err)
				assert.Contains(t, err.Error(), "failed to ensure bucket exists")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "diag", s.bucket)
			assert.Equal(t, tt.wantCreate, tt.bucket.madeBucket)
		})
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	bucket := newFakeBucket()
	s, err := newStore(ctx, bucket, "diag")
	require.NoError(t, err)

	ok, err := s.Exists(ctx, "provisioning/1/latest.json")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Upload(ctx, "provisioning/1/latest.json", bytes.NewReader([]byte(`{"id":"r"}`))))
	assert.Equal(t, jsonContentType, bucket.types["provisioning/1/latest.json"])

	ok, err = s.Exists(ctx, "provisioning/1/latest.json")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.Download(ctx, "provisioning/1/latest.json")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"r"}`, string(body))
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("upload", func(t *testing.T) {
		s := &Store{api: &fakeBucket{putErr: errors.New("put-fail")}, bucket: "b"}
		err := s.Upload(ctx, "k", bytes.NewReader(nil))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to upload object")
	})

	t.Run("download", func(t *testing.T) {
		s := &Store{api: &fakeBucket{getErr: errors.New("get-fail")}, bucket: "b"}
		rc, err := s.Download(ctx, "k")
		assert.Nil(t, rc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get object")
	})

	t.Run("stat", func(t *testing.T) {
		s := &Store{api: &fakeBucket{statErr: errors.New("stat-fail")}, bucket: "b"}
		ok, err := s.Exists(ctx, "k")
		assert.False(t, ok)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to stat object")
	})
}

func TestStore_Ping(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		bucket  *fakeBucket
		wantErr string
	}{
		{name: "reachable", bucket: &fakeBucket{exists: true}},
		{name: "bucket gone", bucket: &fakeBucket{exists: false}, wantErr: "does not exist"},
		{name: "endpoint down", bucket: &fakeBucket{existsErr: errors.New("dial tcp")}, wantErr: "failed to check bucket existence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Store{api: tt.bucket, bucket: "diag"}
			err := s.Ping(ctx)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
