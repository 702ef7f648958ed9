package vo

// Stream types reported by ffprobe.
const (
	StreamTypeVideo = "video"
	StreamTypeAudio = "audio"
)

// StreamInfo is one probed stream.
type StreamInfo struct {
	Index      int
	Type       string
	Codec      string
	BitRate    float64 // bits per second, 0 when undeclared
	HasBitRate bool
	Width      int
	Height     int
	Rotation   int // degrees, 0 when absent
}

// MediaDescriptor 媒体探测结果，创建后只读
type MediaDescriptor struct {
	DurationSec float64
	FormatName  string
	SizeBytes   int64
	Streams     []StreamInfo
}

// FirstVideo returns the first video stream.
func (m *MediaDescriptor) FirstVideo() (StreamInfo, bool) {
	return m.first(StreamTypeVideo)
}

// FirstAudio returns the first audio stream.
func (m *MediaDescriptor) FirstAudio() (StreamInfo, bool) {
	return m.first(StreamTypeAudio)
}

func (m *MediaDescriptor) first(kind string) (StreamInfo, bool) {
	if m == nil {
		return StreamInfo{}, false
	}
	for _, s := range m.Streams {
		if s.Type == kind {
			return s, true
		}
	}
	return StreamInfo{}, false
}
