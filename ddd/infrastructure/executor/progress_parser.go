package executor

import (
	"regexp"
	"strconv"
	"strings"

	"sizefit-service/ddd/domain/vo"
)

var speedValue = regexp.MustCompile(`(\d+(\.\d+)?)`)

// ParseProgressLine understands the key=value lines ffmpeg writes with
// "-progress". out_time_ms and out_time_us both carry microseconds.
func ParseProgressLine(line string) (vo.ProgressEvent, bool) {
	var ev vo.ProgressEvent
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return ev, false
	}
	value = strings.TrimSpace(value)

	switch key {
	case "out_time_ms", "out_time_us":
		us, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return ev, false
		}
		ev.OutTimeSec = us / 1e6
		ev.HasOutTime = true
		return ev, true
	case "speed":
		m := speedValue.FindString(value)
		if m == "" {
			return ev, false
		}
		speed, err := strconv.ParseFloat(m, 64)
		if err != nil || speed <= 0 {
			return ev, false
		}
		ev.Speed = speed
		ev.HasSpeed = true
		return ev, true
	}
	return ev, false
}
