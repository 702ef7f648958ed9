package gateway

import (
	"context"

	"sizefit-service/ddd/domain/vo"
)

// MediaProber 媒体探测
type MediaProber interface {
	// Probe fails with errno.ErrProbeFailed when the tool exits non-zero or
	// its output cannot be parsed.
	Probe(ctx context.Context, path string) (*vo.MediaDescriptor, error)
}

// Thumbnailer extracts a single frame for the job. Failures are logged by the
// implementation; callers do not act on the result.
type Thumbnailer interface {
	Generate(ctx context.Context, jobID, inputPath string) error
}
