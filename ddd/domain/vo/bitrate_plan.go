package vo

// PlanInput 码率规划输入
type PlanInput struct {
	CurrentSizeBytes int64
	TargetSizeMB     int
	Descriptor       *MediaDescriptor
	StripAudio       bool
	VideoCodec       string
}

// BitratePlan 码率规划结果
type BitratePlan struct {
	VideoCodec       string
	VideoBitrateKbps int
	AudioBitrateKbps int
	StripAudio       bool
	Width            int
	Height           int
	DurationSec      float64
	TargetSizeMB     int
}

// HasAudio reports whether the encode should carry an audio track.
func (p *BitratePlan) HasAudio() bool {
	return !p.StripAudio && p.AudioBitrateKbps > 0
}
