// Package handler exposes the matching, blocking, meeting, report and
// messaging services over HTTP and WebSocket.
package handler

import (
	"net/http"

	"roomies/backend/internal/blocking"
	"roomies/backend/internal/chathub"
	"roomies/backend/internal/config"
	"roomies/backend/internal/errorx"
	"roomies/backend/internal/localization"
	"roomies/backend/internal/logger"
	"roomies/backend/internal/matching"
	"roomies/backend/internal/meeting"
	"roomies/backend/internal/report"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

// Services are the domain services the handler serves.
type Services struct {
	Hub      *chathub.ManagerService
	Matching *matching.Service
	Blocks   *blocking.Registry
	Meetings *meeting.Scheduler
	Reports  *report.Service
	// Messages is optional; without it errors are reported untranslated.
	Messages *localization.Localizer
}

type Handler struct {
	Services
	Auth *Authenticator

	allowedOrigins []string
}

func NewHandler(svc Services, auth *Authenticator, cfg config.ServerConfig) *Handler {
	return &Handler{Services: svc, Auth: auth, allowedOrigins: cfg.AllowedOrigins}
}

// NewRouter builds the gin engine with the middleware stack and all routes.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	engine := gin.New()
	engine.Use(logger.GinLogger(), logger.GinRecovery(true))

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 || contains(cfg.AllowedOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	engine.Use(cors.New(corsConfig))
	engine.Use(secureHeaders(cfg))
	if h.Messages != nil {
		engine.Use(localize(h.Messages))
	}

	h.RegisterRoutes(engine)
	return engine
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/ws", h.RequireIdentity(), h.ServeWebSocket)

	api := r.Group("/api", h.RequireIdentity())

	api.GET("/profile", h.GetProfile)
	api.PUT("/profile", h.PutProfile)
	api.POST("/profile/deactivate", h.DeactivateProfile)

	api.GET("/candidates", h.Candidates)
	api.GET("/compatibility/:target", h.Compatibility)

	api.POST("/pairs/:target/interest", h.ExpressInterest)
	api.POST("/pairs/:target/confirm", h.ConfirmMatch)
	api.POST("/pairs/:target/decline", h.DeclineMatch)
	api.POST("/pairs/:target/cancel", h.CancelMatch)
	api.GET("/matches", h.ListMatches)
	api.GET("/matches/:id", h.GetMatch)
	api.POST("/matches/:id/meetings", h.ScheduleMeeting)
	api.GET("/matches/:id/meetings", h.ListMeetings)
	api.POST("/meetings/:id/complete", h.CompleteMeeting)
	api.POST("/meetings/:id/cancel", h.CancelMeeting)

	api.GET("/blocks", h.ListBlocks)
	api.POST("/blocks/:target", h.Block)
	api.DELETE("/blocks/:target", h.Unblock)

	api.GET("/threads", h.ListThreads)
	api.GET("/threads/:id/messages", h.ListMessages)
	api.POST("/threads/:id/messages", h.PostThreadMessage)
	api.POST("/threads/:id/read", h.MarkThreadRead)
	api.POST("/messages", h.PostMessage)

	api.POST("/reports", h.FileReport)
}

// secureHeaders applies security headers and, when configured, redirects
// plain HTTP to HTTPS.
func secureHeaders(cfg config.ServerConfig) gin.HandlerFunc {
	sm := secure.New(secure.Options{
		SSLRedirect:          cfg.SSLRedirect,
		SSLHost:              cfg.SSLHost,
		FrameDeny:            true,
		ContentTypeNosniff:   true,
		BrowserXssFilter:     true,
		IsDevelopment:        cfg.Mode == gin.DebugMode || cfg.Mode == gin.TestMode,
		SSLProxyHeaders:      map[string]string{"X-Forwarded-Proto": "https"},
		ReferrerPolicy:       "same-origin",
		STSSeconds:           31536000,
		STSIncludeSubdomains: true,
	})
	return func(c *gin.Context) {
		// Process has already written the redirect or rejection when it fails.
		if err := sm.Process(c.Writer, c.Request); err != nil {
			zap.L().Debug("secure middleware stopped request", zap.Error(err))
			c.Abort()
			return
		}
		c.Next()
	}
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind errorx.Kind) int {
	switch kind {
	case errorx.KindValidation:
		return http.StatusBadRequest
	case errorx.KindNotFound:
		return http.StatusNotFound
	case errorx.KindConflict:
		return http.StatusConflict
	case errorx.KindAuthorization:
		return http.StatusForbidden
	case errorx.KindState:
		return http.StatusUnprocessableEntity
	case errorx.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

const (
	localizerKey = "localizer"
	languageKey  = "language"
)

// localize records the caller's preferred language for error responses.
func localize(l *localization.Localizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(localizerKey, l)
		c.Set(languageKey, l.Language(c.GetHeader("Accept-Language")))
		c.Next()
	}
}

// translated returns the message for code in the request's language, or
// fallback when there is no translation.
func translated(c *gin.Context, code, fallback string) string {
	v, ok := c.Get(localizerKey)
	if !ok {
		return fallback
	}
	if msg, ok := v.(*localization.Localizer).Lookup(c.GetString(languageKey), code); ok {
		return msg
	}
	return fallback
}

func respondError(c *gin.Context, err error) {
	kind := errorx.KindOf(err)
	code := errorx.CodeOf(err)
	msg := err.Error()
	if kind == errorx.KindInternal {
		zap.L().Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		msg = "internal error"
	}
	c.AbortWithStatusJSON(statusFor(kind), gin.H{"code": code, "error": translated(c, code, msg)})
}

func badRequest(c *gin.Context, err error) {
	respondError(c, errorx.Wrap(err, errorx.KindValidation, "invalid_request", "invalid request body"))
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
