package dto

import (
	"math"

	"sizefit-service/ddd/domain/entity"
)

// JobDTO is the job record as the web client reads it.
type JobDTO struct {
	UUID             string  `json:"uuid"`
	Status           string  `json:"status"`
	Progress         int     `json:"progress"`
	Left             int     `json:"left"`
	OutTime          float64 `json:"outTime"`
	TargetSize       int     `json:"targetSize"`
	VideoBitrateKbps int     `json:"videoBitrateKbps"`
	AudioBitrateKbps int     `json:"audioBitrateKbps"`
	Stage            string  `json:"stage"`
	Error            string  `json:"error,omitempty"`
}

// NewJobDTO 从任务快照创建DTO
func NewJobDTO(s entity.JobSnapshot) *JobDTO {
	return &JobDTO{
		UUID:             s.ID,
		Status:           s.Status.String(),
		Progress:         s.Progress,
		Left:             s.LeftSec,
		OutTime:          math.Round(s.OutTimeSec*1000) / 1000,
		TargetSize:       s.TargetSizeMB,
		VideoBitrateKbps: s.VideoBitrateKbps,
		AudioBitrateKbps: s.AudioBitrateKbps,
		Stage:            string(s.Stage),
		Error:            s.ErrorMessage,
	}
}
