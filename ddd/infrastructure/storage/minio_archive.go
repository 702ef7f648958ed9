package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"

	"sizefit-service/ddd/domain/gateway"
	"sizefit-service/internal/resource"
	"sizefit-service/pkg/logger"
)

// objectPutter is the part of the minio client the archive uses.
type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioArchive copies finished outputs into an object store bucket.
type MinioArchive struct {
	client objectPutter
	bucket string
	prefix string
}

var _ gateway.OutputArchive = (*MinioArchive)(nil)

// NewMinioArchive 创建MinIO归档实例
func NewMinioArchive(res *resource.MinioResource, prefix string) *MinioArchive {
	return &MinioArchive{client: res.Client(), bucket: res.Bucket(), prefix: prefix}
}

// ObjectKey is <prefix>/<jobID><ext>.
func (s *MinioArchive) ObjectKey(jobID, localPath string) string {
	name := jobID + strings.ToLower(filepath.Ext(localPath))
	if s.prefix == "" {
		return name
	}
	return path.Join(strings.Trim(s.prefix, "/"), name)
}

// ArchiveOutput uploads the file at localPath and returns the object key.
func (s *MinioArchive) ArchiveOutput(ctx context.Context, jobID, localPath string) (string, error) {
	key := s.ObjectKey(jobID, localPath)

	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", localPath, err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, file, info.Size(), minio.PutObjectOptions{
		ContentType: contentTypeFromExtension(localPath),
		UserMetadata: map[string]string{
			"job-id": jobID,
		},
	})
	if err != nil {
		logger.Error("Failed to archive output to MinIO", map[string]interface{}{
			"job_id":     jobID,
			"bucket":     s.bucket,
			"object_key": key,
			"error":      err.Error(),
		})
		return "", fmt.Errorf("put %s/%s: %w", s.bucket, key, err)
	}

	logger.Info("Output archived", map[string]interface{}{
		"job_id":     jobID,
		"object_key": key,
		"size":       info.Size(),
	})
	return key, nil
}

func contentTypeFromExtension(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp4":
		return "video/mp4"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
