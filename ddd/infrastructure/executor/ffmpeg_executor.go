package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"sizefit-service/ddd/domain/port"
	"sizefit-service/ddd/domain/vo"
	"sizefit-service/pkg/errno"
	"sizefit-service/pkg/logger"
)

// waitDelay bounds how long Wait keeps the stderr copy open after a kill.
const waitDelay = 2 * time.Second

// FFmpegPassRunner implements port.PassRunner with a local ffmpeg binary.
// Progress is read from stdout ("-progress -"); stderr is kept for diagnostics.
type FFmpegPassRunner struct {
	binary    string
	tailLines int
}

var _ port.PassRunner = (*FFmpegPassRunner)(nil)

func NewFFmpegPassRunner(binary string, tailLines int) *FFmpegPassRunner {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &FFmpegPassRunner{binary: binary, tailLines: tailLines}
}

// RunPass starts ffmpeg, forwards parsed progress lines and waits for exit.
// When ctx expires the process is killed and errno.ErrEncodeTimeout returned.
func (r *FFmpegPassRunner) RunPass(ctx context.Context, spec port.PassSpec, events chan<- vo.ProgressEvent) error {
	cmd := exec.CommandContext(ctx, r.binary, spec.Args...)
	cmd.WaitDelay = waitDelay
	tail := newStderrTail(r.tailLines)
	cmd.Stderr = tail

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create ffmpeg stdout pipe: %v: %w", err, errno.ErrEncodeProcessFailed)
	}
	logger.Debugf("ffmpeg command job_id=%s pass=%d command=%s %s", spec.JobID, spec.Pass, r.binary, strings.Join(spec.Args, " "))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %v: %w", err, errno.ErrEncodeProcessFailed)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 1024), 1024*1024)
	for scanner.Scan() {
		ev, ok := ParseProgressLine(scanner.Text())
		if !ok {
			continue
		}
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}
	// a line over the buffer limit stops the scan; nobody drains the pipe after that
	if scanErr := scanner.Err(); scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		logger.Errorf("ffmpeg progress unreadable job_id=%s pass=%d error=%v", spec.JobID, spec.Pass, scanErr)
		return fmt.Errorf("read ffmpeg %s pass %d progress: %v: %w", spec.JobID, spec.Pass, scanErr, errno.ErrEncodeProcessFailed)
	}

	waitErr := cmd.Wait()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("ffmpeg %s pass %d killed: %w", spec.JobID, spec.Pass, errno.ErrEncodeTimeout)
	}
	if waitErr != nil {
		diag := tail.String()
		if diag != "" {
			logger.Errorf("ffmpeg failed job_id=%s pass=%d tail_stderr=%s", spec.JobID, spec.Pass, diag)
		}
		return fmt.Errorf("ffmpeg %s: %v stderr: %s: %w", spec.JobID, waitErr, diag, errno.ErrEncodeProcessFailed)
	}
	return nil
}

// FFmpegThumbnailer grabs the first frame of the upload as a webp image.
type FFmpegThumbnailer struct {
	binary  string
	workDir string
	timeout time.Duration
}

func NewFFmpegThumbnailer(binary, workDir string, timeout time.Duration) *FFmpegThumbnailer {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &FFmpegThumbnailer{binary: binary, workDir: workDir, timeout: timeout}
}

// Generate writes <workDir>/<jobID>.webp. Errors are logged here.
func (t *FFmpegThumbnailer) Generate(ctx context.Context, jobID, inputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	output := vo.NewArtifactSet(t.workDir, jobID, "").Thumbnail()
	cmd := exec.CommandContext(ctx, t.binary,
		"-i", inputPath,
		"-y",
		"-update", "true",
		"-vframes", "1",
		"-ss", "00:00:00",
		output,
	)
	cmd.WaitDelay = waitDelay
	tail := newStderrTail(20)
	cmd.Stderr = tail

	if err := cmd.Run(); err != nil {
		wrapped := fmt.Errorf("ffmpeg %s: %v stderr: %s: %w", output, err, tail.String(), errno.ErrThumbnailFailed)
		logger.WithJob(jobID).Errorf("Error while generating thumbnail %v", wrapped)
		return wrapped
	}
	return nil
}
