package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"sizefit-service/ddd/application/app"
	"sizefit-service/pkg/errno"
	"sizefit-service/pkg/logger"
	"sizefit-service/pkg/restapi"
)

// Not-ready policies for delivery requests.
const (
	NotReadyRedirect = "redirect"
	NotReadyNotFound = "not_found"
)

// DeliveryController 静态资源与转码产物下载
type DeliveryController struct {
	deliveryApp    app.DeliveryApp
	staticDir      string
	notReadyPolicy string
}

func NewDeliveryController(deliveryApp app.DeliveryApp, staticDir, notReadyPolicy string) *DeliveryController {
	if notReadyPolicy != NotReadyNotFound {
		notReadyPolicy = NotReadyRedirect
	}
	return &DeliveryController{deliveryApp: deliveryApp, staticDir: staticDir, notReadyPolicy: notReadyPolicy}
}

// Index GET /
func (d *DeliveryController) Index(ctx *gin.Context) {
	if path, ok := d.staticFile("index.html"); ok {
		ctx.File(path)
		return
	}
	restapi.Failed(ctx, errno.ErrNotFound)
}

// Serve GET /:file. Static assets win over job artifacts.
func (d *DeliveryController) Serve(ctx *gin.Context) {
	name := ctx.Param("file")
	if path, ok := d.staticFile(name); ok {
		ctx.File(path)
		return
	}

	artifact, err := d.deliveryApp.Open(name)
	if err != nil {
		if errors.Is(err, errno.ErrNotFound) && d.notReadyPolicy == NotReadyRedirect {
			ctx.Redirect(http.StatusFound, "/")
			return
		}
		restapi.Failed(ctx, err)
		return
	}

	if err := d.stream(ctx, artifact); err != nil {
		logger.WithJob(artifact.JobID).Warnf("download interrupted file=%s error=%v", artifact.Name, err)
		return
	}
	d.deliveryApp.Complete(ctx.Request.Context(), artifact)
}

// stream copies the whole artifact as an attachment; a nil error means every
// byte was handed to the connection.
func (d *DeliveryController) stream(ctx *gin.Context, a *app.Artifact) error {
	f, err := os.Open(a.Path)
	if err != nil {
		if !ctx.Writer.Written() {
			if d.notReadyPolicy == NotReadyRedirect {
				ctx.Redirect(http.StatusFound, "/")
			} else {
				restapi.Failed(ctx, errno.ErrNotFound)
			}
		}
		return err
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(a.Name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := ctx.Writer.Header()
	header.Set("Content-Type", contentType)
	header.Set("Content-Length", strconv.FormatInt(a.Size, 10))
	header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Name}))
	header.Set("Last-Modified", a.ModTime.UTC().Format(http.TimeFormat))
	ctx.Status(http.StatusOK)

	n, err := io.Copy(ctx.Writer, f)
	if err != nil {
		return err
	}
	if n != a.Size {
		return fmt.Errorf("short copy: %d of %d bytes", n, a.Size)
	}
	return nil
}

// staticFile returns the path of a regular file inside the static directory.
func (d *DeliveryController) staticFile(name string) (string, bool) {
	if d.staticDir == "" || name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", false
	}
	path := filepath.Join(d.staticDir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return path, true
}
