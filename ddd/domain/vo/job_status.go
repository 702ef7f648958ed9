package vo

// JobStatus 任务对外状态
type JobStatus string

const (
	// JobStatusTranscoding 转码中
	JobStatusTranscoding JobStatus = "Transcoding"
	// JobStatusDone 已完成，等待下载
	JobStatusDone JobStatus = "Done"
	// JobStatusError 失败
	JobStatusError JobStatus = "Error"
)

// String 返回状态字符串
func (s JobStatus) String() string {
	return string(s)
}

// IsFinalStatus 检查是否为最终状态
func (s JobStatus) IsFinalStatus() bool {
	return s == JobStatusDone || s == JobStatusError
}

// CanTransitionTo 检查是否可以转换到目标状态
func (s JobStatus) CanTransitionTo(target JobStatus) bool {
	switch s {
	case JobStatusTranscoding:
		return target == JobStatusDone || target == JobStatusError
	default:
		return false // 最终状态不能转换
	}
}

// PipelineStage tracks where the two-pass pipeline is for one job.
type PipelineStage string

const (
	StageNotStarted   PipelineStage = "NotStarted"
	StagePass1Running PipelineStage = "Pass1Running"
	StagePass2Running PipelineStage = "Pass2Running"
	StageDone         PipelineStage = "Done"
	StageError        PipelineStage = "Error"
)

// CanTransitionTo enforces NotStarted -> Pass1 -> Pass2 -> Done, with Error
// reachable from either running stage.
func (s PipelineStage) CanTransitionTo(target PipelineStage) bool {
	switch s {
	case StageNotStarted:
		return target == StagePass1Running || target == StageError
	case StagePass1Running:
		return target == StagePass2Running || target == StageError
	case StagePass2Running:
		return target == StageDone || target == StageError
	default:
		return false
	}
}
