package gateway

import "context"

// OutputArchive 成品归档网关，在本地文件被下载删除前保留一份副本
type OutputArchive interface {
	// ArchiveOutput stores the finished file of jobID and returns its object key.
	ArchiveOutput(ctx context.Context, jobID, localPath string) (string, error)
}
