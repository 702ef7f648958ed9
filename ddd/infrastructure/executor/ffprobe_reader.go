package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"sizefit-service/ddd/domain/gateway"
	"sizefit-service/ddd/domain/vo"
	"sizefit-service/pkg/errno"
)

// FFprobeReader implements gateway.MediaProber.
type FFprobeReader struct {
	binary  string
	timeout time.Duration
}

var _ gateway.MediaProber = (*FFprobeReader)(nil)

func NewFFprobeReader(binary string, timeout time.Duration) *FFprobeReader {
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	return &FFprobeReader{binary: binary, timeout: timeout}
}

// Probe runs ffprobe once and parses its JSON output.
func (r *FFprobeReader) Probe(ctx context.Context, path string) (*vo.MediaDescriptor, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, r.binary,
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-print_format", "json",
		path,
	)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe %s: %v stderr: %s: %w", path, err, strings.TrimSpace(stderr.String()), errno.ErrProbeFailed)
	}
	desc, err := ParseProbeOutput(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %v: %w", path, err, errno.ErrProbeFailed)
	}
	return desc, nil
}

// flexNumber accepts both JSON numbers and numeric strings, as ffprobe mixes them.
type flexNumber struct {
	value float64
	set   bool
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" || s == "N/A" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	n.value, n.set = v, true
	return nil
}

type probeOutput struct {
	Streams []struct {
		Index        int               `json:"index"`
		CodecName    string            `json:"codec_name"`
		CodecType    string            `json:"codec_type"`
		Width        int               `json:"width"`
		Height       int               `json:"height"`
		BitRate      flexNumber        `json:"bit_rate"`
		Tags         map[string]string `json:"tags"`
		SideDataList []struct {
			Rotation flexNumber `json:"rotation"`
		} `json:"side_data_list"`
	} `json:"streams"`
	Format *struct {
		FormatName string     `json:"format_name"`
		Duration   flexNumber `json:"duration"`
		Size       flexNumber `json:"size"`
	} `json:"format"`
}

// ParseProbeOutput converts ffprobe's JSON into a MediaDescriptor.
func ParseProbeOutput(data []byte) (*vo.MediaDescriptor, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("JSON parse error %v", err)
	}
	if out.Format == nil {
		return nil, fmt.Errorf("missing format section")
	}
	if !out.Format.Duration.set || out.Format.Duration.value <= 0 {
		return nil, fmt.Errorf("missing or invalid duration")
	}

	desc := &vo.MediaDescriptor{
		DurationSec: out.Format.Duration.value,
		FormatName:  out.Format.FormatName,
		SizeBytes:   int64(out.Format.Size.value),
		Streams:     make([]vo.StreamInfo, 0, len(out.Streams)),
	}
	for _, s := range out.Streams {
		info := vo.StreamInfo{
			Index:      s.Index,
			Type:       s.CodecType,
			Codec:      s.CodecName,
			BitRate:    s.BitRate.value,
			HasBitRate: s.BitRate.set,
			Width:      s.Width,
			Height:     s.Height,
		}
		for _, sd := range s.SideDataList {
			if sd.Rotation.set {
				info.Rotation = int(math.Round(sd.Rotation.value))
				break
			}
		}
		if info.Rotation == 0 {
			if r, err := strconv.ParseFloat(s.Tags["rotate"], 64); err == nil {
				info.Rotation = int(math.Round(r))
			}
		}
		desc.Streams = append(desc.Streams, info)
	}
	return desc, nil
}
