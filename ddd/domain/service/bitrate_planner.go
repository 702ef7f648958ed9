package service

import (
	"math"

	"sizefit-service/ddd/domain/vo"
	"sizefit-service/pkg/errno"
)

// kilobitsPerMB converts megabytes (10^6 bytes) to kilobits.
const kilobitsPerMB = 8000.0

// PlannerOptions toggles the checks that differ between deployments.
type PlannerOptions struct {
	AllowedCodecs           []string
	DefaultAudioBitrateKbps int
	// MinVideoBitrateKbps rejects plans below this floor; 0 disables the check.
	MinVideoBitrateKbps int
	// RotationAware swaps encode dimensions according to rotation metadata.
	RotationAware bool
}

// BitratePlanner 根据目标大小计算码率，无副作用
type BitratePlanner struct {
	opts PlannerOptions
}

// NewBitratePlanner 创建码率规划器
func NewBitratePlanner(opts PlannerOptions) *BitratePlanner {
	if len(opts.AllowedCodecs) == 0 {
		opts.AllowedCodecs = []string{"libx264", "libx265"}
	}
	if opts.DefaultAudioBitrateKbps <= 0 {
		opts.DefaultAudioBitrateKbps = 128
	}
	return &BitratePlanner{opts: opts}
}

// ValidateCodec checks the declared codec against the allow list.
func (p *BitratePlanner) ValidateCodec(codec string) error {
	if codec == "" {
		return errno.ErrCodecMissing
	}
	for _, c := range p.opts.AllowedCodecs {
		if c == codec {
			return nil
		}
	}
	return errno.ErrCodecInvalid
}

// CheckTargetSmaller rejects targets that are not below the current size,
// comparing whole megabytes.
func (p *BitratePlanner) CheckTargetSmaller(currentSizeBytes int64, targetSizeMB int) error {
	currentMB := int(math.Round(float64(currentSizeBytes) / (1000.0 * 1000.0)))
	if currentMB <= targetSizeMB {
		return errno.ErrTargetNotSmaller.WithMessage("File size is lower than target size: %dMB", currentMB)
	}
	return nil
}

// Plan derives the encode parameters.
func (p *BitratePlanner) Plan(in vo.PlanInput) (*vo.BitratePlan, error) {
	if in.TargetSizeMB <= 0 {
		return nil, errno.ErrTargetSizeInvalid
	}
	if err := p.ValidateCodec(in.VideoCodec); err != nil {
		return nil, err
	}
	if err := p.CheckTargetSmaller(in.CurrentSizeBytes, in.TargetSizeMB); err != nil {
		return nil, err
	}

	video, ok := in.Descriptor.FirstVideo()
	if !ok {
		return nil, errno.ErrNoVideoStream
	}
	duration := in.Descriptor.DurationSec
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return nil, errno.ErrProbeFailed.WithMessage("ffprobe failed: invalid duration %v", duration)
	}

	audioKbps := 0
	if audio, ok := in.Descriptor.FirstAudio(); ok {
		if audio.HasBitRate && audio.BitRate > 0 {
			audioKbps = int(math.Round(audio.BitRate / 1000.0))
		} else {
			audioKbps = p.opts.DefaultAudioBitrateKbps
		}
	}
	if in.StripAudio {
		audioKbps = 0
	}

	videoKbps := VideoBitrateKbps(in.TargetSizeMB, duration, audioKbps, in.StripAudio)
	if videoKbps <= 0 {
		return nil, errno.ErrUnrealisticBitrate.WithMessage("Target size too small: calculated video bitrate %d kbps", videoKbps)
	}
	if p.opts.MinVideoBitrateKbps > 0 && videoKbps < p.opts.MinVideoBitrateKbps {
		return nil, errno.ErrUnrealisticBitrate.WithMessage(
			"Target size too small: calculated video bitrate %d kbps is below %d kbps", videoKbps, p.opts.MinVideoBitrateKbps)
	}

	rotation := 0
	if p.opts.RotationAware {
		rotation = video.Rotation
	}
	width, height := EncodeDimensions(video.Width, video.Height, rotation)

	return &vo.BitratePlan{
		VideoCodec:       in.VideoCodec,
		VideoBitrateKbps: videoKbps,
		AudioBitrateKbps: audioKbps,
		StripAudio:       in.StripAudio,
		Width:            width,
		Height:           height,
		DurationSec:      duration,
		TargetSizeMB:     in.TargetSizeMB,
	}, nil
}

// VideoBitrateKbps is round(target*8000/duration - audio), audio ignored when stripped.
func VideoBitrateKbps(targetSizeMB int, durationSec float64, audioKbps int, stripAudio bool) int {
	total := float64(targetSizeMB) * kilobitsPerMB
	audio := float64(audioKbps)
	if stripAudio {
		audio = 0
	}
	return int(math.Round(total/durationSec - audio))
}

// EncodeDimensions rounds each side down to an even number and, for a
// non-zero rotation, returns the bounding box of the rotated frame.
func EncodeDimensions(width, height, rotationDeg int) (int, int) {
	w := float64(evenFloor(width))
	h := float64(evenFloor(height))
	if rotationDeg%360 == 0 {
		return int(w), int(h)
	}
	rad := float64(rotationDeg) * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	rw := math.Abs(w*cos) + math.Abs(h*sin)
	rh := math.Abs(w*sin) + math.Abs(h*cos)
	return int(math.Round(rw)), int(math.Round(rh))
}

func evenFloor(v int) int {
	if v < 0 {
		return 0
	}
	return v - v%2
}
