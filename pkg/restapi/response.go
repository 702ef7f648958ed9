package restapi

import (
	"github.com/gin-gonic/gin"

	"sizefit-service/pkg/errno"
)

// ErrorBody is the JSON shape of every failed response.
type ErrorBody struct {
	Error string `json:"error"`
}

// Success writes data as a 200 JSON body.
func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(errno.OK.HTTPStatus, data)
}

// Failed maps err onto its errno status and writes {"error": message}.
func Failed(ctx *gin.Context, err error) {
	e := errno.From(err)
	ctx.AbortWithStatusJSON(e.HTTPStatus, ErrorBody{Error: e.Message})
}
