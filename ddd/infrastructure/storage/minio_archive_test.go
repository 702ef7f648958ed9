package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"
)

type fakePutter struct {
	bucket string
	key    string
	body   []byte
	opts   minio.PutObjectOptions
	err    error
}

func (f *fakePutter) PutObject(_ context.Context, bucket, key string, r io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.bucket, f.key, f.body, f.opts = bucket, key, body, opts
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: int64(len(body))}, nil
}

func TestArchiveOutput(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "abc_2.mp4")
	if err := os.WriteFile(local, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}

	putter := &fakePutter{}
	archive := &MinioArchive{client: putter, bucket: "sizefit-outputs", prefix: "/outputs/"}
	key, err := archive.ArchiveOutput(context.Background(), "abc", local)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if key != "outputs/abc.mp4" || putter.key != key || putter.bucket != "sizefit-outputs" {
		t.Fatalf("unexpected object %s/%s (returned %s)", putter.bucket, putter.key, key)
	}
	if string(putter.body) != "video" || putter.opts.ContentType != "video/mp4" {
		t.Fatalf("unexpected upload body=%q type=%s", putter.body, putter.opts.ContentType)
	}
}

func TestArchiveOutputErrors(t *testing.T) {
	archive := &MinioArchive{client: &fakePutter{}, bucket: "b"}
	if _, err := archive.ArchiveOutput(context.Background(), "abc", filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Fatalf("expected error for a missing file")
	}

	local := filepath.Join(t.TempDir(), "abc_2.mp4")
	if err := os.WriteFile(local, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	denied := errors.New("AccessDenied")
	archive.client = &fakePutter{err: denied}
	if _, err := archive.ArchiveOutput(context.Background(), "abc", local); !errors.Is(err, denied) {
		t.Fatalf("expected wrapped put error, got %v", err)
	}
}

func TestObjectKeyWithoutPrefix(t *testing.T) {
	archive := &MinioArchive{}
	if got := archive.ObjectKey("abc", "/work/abc_2.MP4"); got != "abc.mp4" {
		t.Fatalf("unexpected key %s", got)
	}
}
