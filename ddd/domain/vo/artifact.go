package vo

import (
	"path/filepath"
)

// Final outputs are requested by clients as "<id>.mp4".
const (
	FinalExt     = ".mp4"
	ThumbnailExt = ".webp"
)

// ArtifactSet names every file a job owns inside the work directory.
type ArtifactSet struct {
	Dir       string
	JobID     string
	UploadExt string
}

// NewArtifactSet 创建产物命名集合
func NewArtifactSet(dir, jobID, uploadExt string) ArtifactSet {
	return ArtifactSet{Dir: dir, JobID: jobID, UploadExt: uploadExt}
}

func (a ArtifactSet) Upload() string      { return filepath.Join(a.Dir, a.JobID+a.UploadExt) }
func (a ArtifactSet) Pass1Output() string { return filepath.Join(a.Dir, a.JobID+"_1"+FinalExt) }
func (a ArtifactSet) FinalOutput() string { return filepath.Join(a.Dir, a.JobID+"_2"+FinalExt) }
func (a ArtifactSet) Thumbnail() string   { return filepath.Join(a.Dir, a.JobID+ThumbnailExt) }

// PassLog is the -passlogfile prefix; ffmpeg appends its own suffixes.
func (a ArtifactSet) PassLog() string { return filepath.Join(a.Dir, a.JobID+".log") }

// PassLogGlob matches every file ffmpeg derives from PassLog.
func (a ArtifactSet) PassLogGlob() string { return a.PassLog() + "*" }

// FinalOutputName maps a delivery name "<id>.mp4" onto the on-disk file name.
func FinalOutputName(jobID string) string {
	return jobID + "_2" + FinalExt
}
