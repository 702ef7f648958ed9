package gateway

import (
	"context"
	"time"
)

// Job lifecycle event types.
const (
	JobEventCreated   = "job.created"
	JobEventDone      = "job.done"
	JobEventFailed    = "job.failed"
	JobEventDelivered = "job.delivered"
)

// JobEvent is published on job lifecycle transitions.
type JobEvent struct {
	Type             string    `json:"type"`
	JobID            string    `json:"job_id"`
	Status           string    `json:"status"`
	Progress         int       `json:"progress"`
	TargetSizeMB     int       `json:"target_size_mb,omitempty"`
	VideoBitrateKbps int       `json:"video_bitrate_kbps,omitempty"`
	AudioBitrateKbps int       `json:"audio_bitrate_kbps,omitempty"`
	Error            string    `json:"error,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// JobEventPublisher 任务事件发布
type JobEventPublisher interface {
	Publish(ctx context.Context, event JobEvent) error
}

// NoopPublisher discards events.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, JobEvent) error { return nil }
