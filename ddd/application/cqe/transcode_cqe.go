package cqe

import (
	"math"
	"strconv"
	"strings"

	"sizefit-service/pkg/errno"
)

// TranscodeCqe 上传转码请求的表单字段
type TranscodeCqe struct {
	TargetSize  string `form:"targetSize"`
	VideoCodec  string `form:"videoCodec"`
	RemoveAudio string `form:"removeAudio"`
}

// Validate checks presence of the required fields; the codec allow list is
// owned by the planner.
func (req *TranscodeCqe) Validate() error {
	if strings.TrimSpace(req.TargetSize) == "" {
		return errno.ErrTargetSizeMissing
	}
	if _, err := req.TargetSizeMB(); err != nil {
		return err
	}
	if strings.TrimSpace(req.VideoCodec) == "" {
		return errno.ErrCodecMissing
	}
	return nil
}

// TargetSizeMB parses the target size as whole megabytes. Fractions are
// truncated, so "10.7" means 10.
func (req *TranscodeCqe) TargetSizeMB() (int, error) {
	raw := strings.TrimSpace(req.TargetSize)
	if n, err := strconv.Atoi(raw); err == nil {
		if n <= 0 {
			return 0, errno.ErrTargetSizeInvalid
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 1 || f > math.MaxInt32 {
		return 0, errno.ErrTargetSizeInvalid
	}
	return int(f), nil
}

// StripAudio is true only for the literal form value "true".
func (req *TranscodeCqe) StripAudio() bool {
	return req.RemoveAudio == "true"
}

func (req *TranscodeCqe) Codec() string {
	return strings.TrimSpace(req.VideoCodec)
}
