package http

import (
	"errors"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sizefit-service/ddd/application/app"
	"sizefit-service/ddd/application/cqe"
	"sizefit-service/pkg/errno"
	"sizefit-service/pkg/logger"
	"sizefit-service/pkg/restapi"
)

// formOverhead leaves room for the text fields next to the file part.
const formOverhead = 1 << 20

var uploadExtPattern = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// TranscodeController 上传与状态查询
type TranscodeController struct {
	transcodeApp app.TranscodeApp
	workDir      string
	maxFileSize  int64
	fieldName    string
}

func NewTranscodeController(transcodeApp app.TranscodeApp, workDir string, maxFileSize int64, fieldName string) *TranscodeController {
	if fieldName == "" {
		fieldName = "video"
	}
	return &TranscodeController{
		transcodeApp: transcodeApp,
		workDir:      workDir,
		maxFileSize:  maxFileSize,
		fieldName:    fieldName,
	}
}

// Transcode POST /api/transcode
func (t *TranscodeController) Transcode(ctx *gin.Context) {
	if t.maxFileSize > 0 {
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, t.maxFileSize+formOverhead)
	}
	fh, err := ctx.FormFile(t.fieldName)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			restapi.Failed(ctx, errno.ErrFileTooLarge)
			return
		}
		restapi.Failed(ctx, errno.ErrInputMissing)
		return
	}
	if t.maxFileSize > 0 && fh.Size > t.maxFileSize {
		restapi.Failed(ctx, errno.ErrFileTooLarge)
		return
	}

	req := cqe.TranscodeCqe{
		TargetSize:  ctx.PostForm("targetSize"),
		VideoCodec:  ctx.PostForm("videoCodec"),
		RemoveAudio: ctx.PostForm("removeAudio"),
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !uploadExtPattern.MatchString(ext) {
		ext = ""
	}
	upload := app.UploadedFile{JobID: uuid.NewString(), Ext: ext, SizeBytes: fh.Size}
	dst := filepath.Join(t.workDir, upload.JobID+ext)
	if err := ctx.SaveUploadedFile(fh, dst); err != nil {
		logger.WithJob(upload.JobID).Errorf("save upload failed path=%s error=%v", dst, err)
		restapi.Failed(ctx, errno.ErrInternalServer)
		return
	}

	job, err := t.transcodeApp.Accept(ctx.Request.Context(), &req, upload)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, job)
}

// Status GET /api/status/:id
func (t *TranscodeController) Status(ctx *gin.Context) {
	job, err := t.transcodeApp.Status(ctx.Param("id"))
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, job)
}

// Ping GET /api/ping
func (t *TranscodeController) Ping(ctx *gin.Context) {
	restapi.Success(ctx, gin.H{"status": "OK"})
}
