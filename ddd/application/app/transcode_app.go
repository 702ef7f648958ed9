package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"sizefit-service/ddd/application/cqe"
	"sizefit-service/ddd/application/dto"
	"sizefit-service/ddd/domain/gateway"
	"sizefit-service/ddd/domain/repo"
	"sizefit-service/ddd/domain/service"
	"sizefit-service/ddd/domain/vo"
	"sizefit-service/pkg/errno"
	"sizefit-service/pkg/fsutil"
	"sizefit-service/pkg/logger"
)

// UploadedFile describes an upload already saved in the work directory.
type UploadedFile struct {
	JobID     string
	Ext       string
	SizeBytes int64
}

type TranscodeApp interface {
	// Accept 校验上传、探测、规划码率并登记任务，编码在后台进行
	Accept(ctx context.Context, req *cqe.TranscodeCqe, upload UploadedFile) (*dto.JobDTO, error)
	// Status 查询任务状态，未知 id 返回 Invalid UUID
	Status(id string) (*dto.JobDTO, error)
	// Wait blocks until every pipeline started by Accept has returned.
	Wait()
}

type transcodeAppImpl struct {
	baseCtx   context.Context
	workDir   string
	registry  repo.JobRegistry
	prober    gateway.MediaProber
	planner   *service.BitratePlanner
	pipeline  *service.EncodePipeline
	publisher gateway.JobEventPublisher
	wg        sync.WaitGroup
}

// NewTranscodeApp wires the upload use case. baseCtx bounds every background
// pipeline; cancelling it kills running encoders.
func NewTranscodeApp(
	baseCtx context.Context,
	workDir string,
	registry repo.JobRegistry,
	prober gateway.MediaProber,
	planner *service.BitratePlanner,
	pipeline *service.EncodePipeline,
	publisher gateway.JobEventPublisher,
) TranscodeApp {
	if publisher == nil {
		publisher = gateway.NoopPublisher{}
	}
	return &transcodeAppImpl{
		baseCtx:   baseCtx,
		workDir:   workDir,
		registry:  registry,
		prober:    prober,
		planner:   planner,
		pipeline:  pipeline,
		publisher: publisher,
	}
}

func (t *transcodeAppImpl) Accept(ctx context.Context, req *cqe.TranscodeCqe, upload UploadedFile) (*dto.JobDTO, error) {
	artifacts := vo.NewArtifactSet(t.workDir, upload.JobID, upload.Ext)
	plan, err := t.plan(ctx, req, upload, artifacts)
	if err != nil {
		fsutil.RemoveQuietly(artifacts.Upload())
		return nil, err
	}

	snap, err := t.registry.Create(upload.JobID, plan)
	if err != nil {
		fsutil.RemoveQuietly(artifacts.Upload())
		return nil, err
	}
	logger.WithJob(upload.JobID).Infof("Target size %dMB Calculated video bitrate %d kbps Audio bitrate %d kbps",
		plan.TargetSizeMB, plan.VideoBitrateKbps, plan.AudioBitrateKbps)

	t.publish(gateway.JobEvent{
		Type:             gateway.JobEventCreated,
		JobID:            snap.ID,
		Status:           snap.Status.String(),
		TargetSizeMB:     plan.TargetSizeMB,
		VideoBitrateKbps: plan.VideoBitrateKbps,
		AudioBitrateKbps: plan.AudioBitrateKbps,
	})

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		_ = t.pipeline.Run(t.baseCtx, service.PipelineJob{
			JobID:     upload.JobID,
			Artifacts: artifacts,
			Plan:      plan,
		})
	}()
	return dto.NewJobDTO(snap), nil
}

// plan runs the request checks in the order clients expect: form fields,
// size against target, then probe and bitrate planning.
func (t *transcodeAppImpl) plan(ctx context.Context, req *cqe.TranscodeCqe, upload UploadedFile, artifacts vo.ArtifactSet) (*vo.BitratePlan, error) {
	if req == nil {
		return nil, errno.ErrTargetSizeMissing
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	targetMB, _ := req.TargetSizeMB()
	if err := t.planner.ValidateCodec(req.Codec()); err != nil {
		return nil, err
	}
	if err := t.planner.CheckTargetSmaller(upload.SizeBytes, targetMB); err != nil {
		return nil, err
	}

	desc, err := t.prober.Probe(ctx, artifacts.Upload())
	if err != nil {
		logger.WithJob(upload.JobID).Errorf("ffprobe failed error=%v", err)
		return nil, err
	}
	plan, err := t.planner.Plan(vo.PlanInput{
		CurrentSizeBytes: upload.SizeBytes,
		TargetSizeMB:     targetMB,
		Descriptor:       desc,
		StripAudio:       req.StripAudio(),
		VideoCodec:       req.Codec(),
	})
	if err != nil {
		logger.WithJob(upload.JobID).Warnf("plan rejected error=%v", err)
		return nil, err
	}
	return plan, nil
}

func (t *transcodeAppImpl) Status(id string) (*dto.JobDTO, error) {
	if id == "" {
		return nil, errno.ErrInvalidUUID
	}
	snap, err := t.registry.Get(id)
	if err != nil {
		if errors.Is(err, errno.ErrNotFound) {
			return nil, errno.ErrInvalidUUID
		}
		return nil, err
	}
	return dto.NewJobDTO(snap), nil
}

func (t *transcodeAppImpl) Wait() {
	t.wg.Wait()
}

func (t *transcodeAppImpl) publish(ev gateway.JobEvent) {
	ev.OccurredAt = time.Now()
	if err := t.publisher.Publish(context.WithoutCancel(t.baseCtx), ev); err != nil {
		logger.WithJob(ev.JobID).Warnf("publish %s event failed error=%v", ev.Type, err)
	}
}
