package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"sizefit-service/pkg/middleware"
)

// RouterOptions 路由所需的中间件配置
type RouterOptions struct {
	// Accounts enables HTTP basic auth on every route when non-empty.
	Accounts       gin.Accounts
	RateLimitStore middleware.WindowStore
	RateLimit      int
	RateWindow     time.Duration
	RateKeyPrefix  string
}

// Router 路由配置
type Router struct {
	transcode *TranscodeController
	delivery  *DeliveryController
	opts      RouterOptions
}

// NewRouter 创建路由配置
func NewRouter(transcode *TranscodeController, delivery *DeliveryController, opts RouterOptions) *Router {
	return &Router{transcode: transcode, delivery: delivery, opts: opts}
}

// NewEngine 创建已挂载中间件与路由的 gin 引擎。
// Routes match on the raw path so an encoded "/" stays inside the :file
// parameter and reaches the containment check.
func (r *Router) NewEngine() *gin.Engine {
	engine := gin.New()
	engine.UseRawPath = true
	r.SetupMiddleware(engine)
	r.SetupRoutes(engine)
	return engine
}

// SetupMiddleware 设置中间件
func (r *Router) SetupMiddleware(engine *gin.Engine) {
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestContextMiddleware())
	engine.Use(middleware.AccessLog())
	if len(r.opts.Accounts) > 0 {
		engine.Use(gin.BasicAuth(r.opts.Accounts))
	}
}

// SetupRoutes 设置路由
func (r *Router) SetupRoutes(engine *gin.Engine) {
	api := engine.Group("/api")
	{
		api.GET("/ping", r.transcode.Ping)
		api.GET("/status/:id", r.transcode.Status)
		api.POST("/transcode",
			middleware.RateLimit(r.opts.RateLimitStore, r.opts.RateLimit, r.opts.RateWindow, r.opts.RateKeyPrefix),
			r.transcode.Transcode,
		)
	}

	engine.GET("/", r.delivery.Index)
	engine.GET("/:file", r.delivery.Serve)
}
