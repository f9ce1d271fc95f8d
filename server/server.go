package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/swoga/mt5-worker/config"
	"github.com/swoga/mt5-worker/gateway"
	"github.com/swoga/mt5-worker/model"
	"go.uber.org/zap"
)

const APIKeyHeader = "x-api-key"

type Server struct {
	router  *gin.Engine
	sc      *config.SafeConfig
	gateway *gateway.Gateway
	log     *zap.Logger
	reload  func() error
}

// New builds the router. Paths are taken from the config at this point and
// are not affected by later reloads.
func New(log *zap.Logger, sc *config.SafeConfig, gw *gateway.Gateway, metrics http.Handler, reload func() error) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:  gin.New(),
		sc:      sc,
		gateway: gw,
		log:     log,
		reload:  reload,
	}

	c := sc.Get()
	s.router.Use(s.requestLogger(), gin.CustomRecovery(s.recover))
	s.router.POST(c.LoginPath, s.apiKeyAuth(), s.handleLogin)
	s.router.GET(c.MetricsPath, gin.WrapH(metrics))
	s.router.POST("/-/reload", s.apiKeyAuth(), s.handleReload)
	s.router.GET("/-/healthy", s.handleHealthy)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("handled request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", c.ClientIP()),
		)
	}
}

func (s *Server) recover(c *gin.Context, err any) {
	s.log.Error("panic while handling request", zap.Any("err", err), zap.String("path", c.Request.URL.Path))
	c.AbortWithStatusJSON(http.StatusInternalServerError, model.ErrorResponse{Detail: "internal server error"})
}

func (s *Server) apiKeyAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.sc.APIKey())) != 1 {
			s.log.Warn("rejected request with invalid api key", zap.String("remote", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{Detail: "invalid api key"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleLogin(c *gin.Context) {
	var body model.LoginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.gateway.RejectInvalid()
		c.JSON(http.StatusUnprocessableEntity, model.ErrorResponse{Detail: fmt.Sprintf("invalid request body: %s", err)})
		return
	}

	result, err := s.gateway.Login(c.Request.Context(), body.Request())
	if errors.Is(err, gateway.ErrInvalidLogin) {
		c.JSON(http.StatusUnprocessableEntity, model.ErrorResponse{Detail: err.Error()})
		return
	}
	if err != nil {
		s.log.Error("error handling login", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Detail: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleReload(c *gin.Context) {
	if err := s.reload(); err != nil {
		c.String(http.StatusInternalServerError, "failed to reload config: %s", err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) handleHealthy(c *gin.Context) {
	status := gin.H{"status": "ok", "terminal": "available"}
	if err := s.gateway.Available(); err != nil {
		status["terminal"] = fmt.Sprintf("unavailable: %s", err)
	}
	c.JSON(http.StatusOK, status)
}
