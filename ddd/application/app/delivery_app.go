package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sizefit-service/ddd/domain/gateway"
	"sizefit-service/ddd/domain/repo"
	"sizefit-service/ddd/domain/vo"
	"sizefit-service/pkg/errno"
	"sizefit-service/pkg/fsutil"
	"sizefit-service/pkg/logger"
)

// Artifact is a resolved, existing file ready to be streamed.
type Artifact struct {
	// Name is what the client asked for and what the download is called.
	Name    string
	Path    string
	JobID   string
	Final   bool
	Size    int64
	ModTime time.Time
}

type DeliveryApp interface {
	// Open 解析下载名称；越界路径返回 AccessDenied，未就绪或不存在返回 NotFound
	Open(name string) (*Artifact, error)
	// Complete is called after a full transfer; final outputs are deleted
	// together with the thumbnail and the job record.
	Complete(ctx context.Context, a *Artifact)
}

type deliveryAppImpl struct {
	workDir   string
	registry  repo.JobRegistry
	publisher gateway.JobEventPublisher
}

func NewDeliveryApp(workDir string, registry repo.JobRegistry, publisher gateway.JobEventPublisher) DeliveryApp {
	if publisher == nil {
		publisher = gateway.NoopPublisher{}
	}
	dir, err := filepath.Abs(workDir)
	if err != nil {
		dir = workDir
	}
	return &deliveryAppImpl{workDir: filepath.Clean(dir), registry: registry, publisher: publisher}
}

func (d *deliveryAppImpl) Open(name string) (*Artifact, error) {
	if name == "" {
		return nil, errno.ErrNotFound
	}
	ext := filepath.Ext(name)
	jobID := strings.TrimSuffix(filepath.Base(name), ext)

	fileName := name
	final := ext == vo.FinalExt
	if final {
		fileName = vo.FinalOutputName(strings.TrimSuffix(name, ext))
	}

	path, err := d.contain(fileName)
	if err != nil {
		return nil, err
	}

	if final {
		snap, err := d.registry.Get(jobID)
		if err != nil || snap.Status != vo.JobStatusDone {
			return nil, errno.ErrNotFound
		}
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, errno.ErrNotFound
	}
	return &Artifact{
		Name:    name,
		Path:    path,
		JobID:   jobID,
		Final:   final,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// contain resolves name below the work directory or fails with AccessDenied.
func (d *deliveryAppImpl) contain(name string) (string, error) {
	abs, err := filepath.Abs(filepath.Join(d.workDir, name))
	if err != nil {
		return "", errno.ErrAccessDenied
	}
	rel, err := filepath.Rel(d.workDir, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errno.ErrAccessDenied
	}
	return abs, nil
}

func (d *deliveryAppImpl) Complete(ctx context.Context, a *Artifact) {
	if a == nil || !a.Final {
		return
	}
	snap, snapErr := d.registry.Get(a.JobID)

	artifacts := vo.NewArtifactSet(d.workDir, a.JobID, "")
	fsutil.RemoveQuietly(a.Path, artifacts.Thumbnail())
	if !d.registry.Delete(a.JobID) {
		// a concurrent download already completed this job
		return
	}
	logger.WithJob(a.JobID).Infof("Delivered %s", a.Name)

	if snapErr != nil {
		return
	}
	ev := gateway.JobEvent{
		Type:             gateway.JobEventDelivered,
		JobID:            a.JobID,
		Status:           snap.Status.String(),
		Progress:         snap.Progress,
		TargetSizeMB:     snap.TargetSizeMB,
		VideoBitrateKbps: snap.VideoBitrateKbps,
		AudioBitrateKbps: snap.AudioBitrateKbps,
		OccurredAt:       time.Now(),
	}
	if err := d.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		logger.WithJob(a.JobID).Warnf("publish %s event failed error=%v", ev.Type, err)
	}
}
