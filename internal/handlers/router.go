package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"meet-signal/internal/config"
	ws "meet-signal/internal/websocket"
	"meet-signal/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter wires every HTTP route of the signaling server.
func NewRouter(cfg *config.Config, hub *ws.Hub, uploads *UploadHandlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.LoggerWithWriter(logger.GlobalLogger.Writer()), gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.Server)))

	wsHandlers := NewWebSocketHandlers(hub, cfg.Server)
	roomHandlers := NewRoomHandlers(hub)

	r.GET("/ws", wsHandlers.HandleWebSocket)

	api := r.Group("/api")
	api.GET("/meetings/:id", roomHandlers.GetMeeting)
	api.GET("/meetings/:id/participants", roomHandlers.GetParticipants)
	api.POST("/upload", traced("uploads.create"), uploads.Upload)

	r.GET("/uploads/:meetingId/:file", traced("uploads.get"), uploads.Download)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func corsConfig(cfg config.ServerConfig) cors.Config {
	c := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if cfg.AllowsAnyOrigin() {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.AllowedOrigins
		c.AllowCredentials = true
	}
	return c
}

type ginContextKey struct{}

// traced runs the rest of the chain inside an otelhttp server span. The
// chain writes through otelhttp's writer so the span sees the status code
// and body size.
func traced(operation string) gin.HandlerFunc {
	h := otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := r.Context().Value(ginContextKey{}).(*gin.Context)
		orig := c.Writer
		c.Writer = &spanWriter{ResponseWriter: orig, w: w}
		c.Request = r
		c.Next()
		c.Writer = orig
	}), operation)

	return func(c *gin.Context) {
		ctx := context.WithValue(c.Request.Context(), ginContextKey{}, c)
		h.ServeHTTP(c.Writer, c.Request.WithContext(ctx))
	}
}

// spanWriter sends body and status writes to w, which forwards them to the
// wrapped gin writer.
type spanWriter struct {
	gin.ResponseWriter
	w http.ResponseWriter
}

func (s *spanWriter) WriteHeader(code int) { s.w.WriteHeader(code) }

func (s *spanWriter) Write(b []byte) (int, error) { return s.w.Write(b) }

func (s *spanWriter) WriteString(str string) (int, error) { return io.WriteString(s.w, str) }
