package vo

// ProgressEvent is one parsed line of the encoder's progress stream.
type ProgressEvent struct {
	OutTimeSec float64
	HasOutTime bool
	Speed      float64
	HasSpeed   bool
}

// ProgressUpdate is what the pipeline writes to the registry.
type ProgressUpdate struct {
	Progress   int
	OutTimeSec float64
	HasOutTime bool
	LeftSec    int
	HasLeft    bool
}
