package errno

import (
	"errors"
	"fmt"
	"net/http"
)

// code=0 请求成功
// code=4xx 客户端请求错误
// code=5xx 服务器端错误
// code=2xxxx 业务处理错误码

type Errno struct {
	Code       int
	HTTPStatus int
	Message    string
}

// Error 实现error接口
func (e *Errno) Error() string {
	return e.Message
}

// WithMessage returns a copy carrying a more specific message. The copy still
// matches the original with errors.Is.
func (e *Errno) WithMessage(format string, args ...interface{}) *Errno {
	return &Errno{Code: e.Code, HTTPStatus: e.HTTPStatus, Message: fmt.Sprintf(format, args...)}
}

// Is matches on Code so that WithMessage copies compare equal to the base value.
func (e *Errno) Is(target error) bool {
	t, ok := target.(*Errno)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	OK = &Errno{Code: 0, HTTPStatus: http.StatusOK, Message: "OK"}

	ErrInternalServer       = &Errno{Code: 500, HTTPStatus: http.StatusInternalServerError, Message: "Internal server error"}
	ErrRateLimitUnavailable = &Errno{Code: 503, HTTPStatus: http.StatusServiceUnavailable, Message: "rate limit failure"}

	// 上传与参数校验
	ErrInputMissing      = &Errno{Code: 20001, HTTPStatus: http.StatusBadRequest, Message: "No file given"}
	ErrTargetSizeMissing = &Errno{Code: 20002, HTTPStatus: http.StatusBadRequest, Message: "No target size given"}
	ErrTargetSizeInvalid = &Errno{Code: 20003, HTTPStatus: http.StatusBadRequest, Message: "Invalid target size"}
	ErrCodecMissing      = &Errno{Code: 20004, HTTPStatus: http.StatusBadRequest, Message: "No video codec given"}
	ErrCodecInvalid      = &Errno{Code: 20005, HTTPStatus: http.StatusBadRequest, Message: "Invalid video codec"}
	ErrTargetNotSmaller  = &Errno{Code: 20006, HTTPStatus: http.StatusBadRequest, Message: "File size is lower than target size"}
	ErrFileTooLarge      = &Errno{Code: 20007, HTTPStatus: http.StatusRequestEntityTooLarge, Message: "File too large"}
	ErrTooManyRequests   = &Errno{Code: 20008, HTTPStatus: http.StatusTooManyRequests, Message: "Too many requests from this IP, please try again later."}

	// 探测与码率规划
	ErrProbeFailed        = &Errno{Code: 20101, HTTPStatus: http.StatusInternalServerError, Message: "ffprobe failed"}
	ErrNoVideoStream      = &Errno{Code: 20102, HTTPStatus: http.StatusBadRequest, Message: "No video streams found"}
	ErrUnrealisticBitrate = &Errno{Code: 20103, HTTPStatus: http.StatusInternalServerError, Message: "Target size too small for this video"}

	// 转码执行
	ErrThumbnailFailed     = &Errno{Code: 20201, HTTPStatus: http.StatusInternalServerError, Message: "Thumbnail generation failed"}
	ErrEncodeTimeout       = &Errno{Code: 20202, HTTPStatus: http.StatusInternalServerError, Message: "Encode timed out"}
	ErrEncodeProcessFailed = &Errno{Code: 20203, HTTPStatus: http.StatusInternalServerError, Message: "Encode process failed"}

	// 任务与下载
	ErrNotFound     = &Errno{Code: 20301, HTTPStatus: http.StatusNotFound, Message: "Not found"}
	ErrInvalidUUID  = &Errno{Code: 20302, HTTPStatus: http.StatusBadRequest, Message: "Invalid UUID"}
	ErrAccessDenied = &Errno{Code: 20303, HTTPStatus: http.StatusForbidden, Message: "Access denied"}
	ErrJobExists    = &Errno{Code: 20304, HTTPStatus: http.StatusConflict, Message: "Job already exists"}
	ErrJobTerminal  = &Errno{Code: 20305, HTTPStatus: http.StatusConflict, Message: "Job already finished"}
)

// From extracts the Errno in err's chain, falling back to ErrInternalServer.
func From(err error) *Errno {
	if err == nil {
		return OK
	}
	var e *Errno
	if errors.As(err, &e) {
		return e
	}
	return ErrInternalServer
}
