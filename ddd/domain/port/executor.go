package port

import (
	"context"

	"sizefit-service/ddd/domain/vo"
)

// PassSpec describes one invocation of the encoder.
type PassSpec struct {
	JobID string
	Pass  int
	Args  []string
}

// PassRunner executes one encode pass and reports parsed progress lines on
// events while the process runs. RunPass must not send on events after it
// returns and must not close it. It returns when the process has exited; a
// context deadline kills the process.
type PassRunner interface {
	RunPass(ctx context.Context, spec PassSpec, events chan<- vo.ProgressEvent) error
}
