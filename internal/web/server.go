// Package web exposes the HTTP surface of the service. Handlers acquire a
// database handle per request so that the connection policy decided at
// startup (backend, fallback) applies uniformly to every call.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/linguaflow/linguaflow/internal/core/db"
	"github.com/linguaflow/linguaflow/internal/store"
)

// Server wires the router, the connection factory and the query store.
type Server struct {
	factory *db.Factory
	store   *store.Store
	log     *slog.Logger
	timeout time.Duration

	engine *gin.Engine
	http   *http.Server
}

// Options configures a Server.
type Options struct {
	Addr           string
	RequestTimeout time.Duration
	Factory        *db.Factory
	Store          *store.Store
	Logger         *slog.Logger
}

// New builds a Server with all routes registered.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	s := &Server{
		factory: opts.Factory,
		store:   opts.Store,
		log:     opts.Logger,
		timeout: opts.RequestTimeout,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(s.requestLogger())

	engine.GET("/api/health", s.handleHealth)

	api := engine.Group("/api")
	{
		api.POST("/register", s.handleRegister)
		api.POST("/login", s.handleLogin)
		api.POST("/password-reset", s.handleCreatePasswordReset)
		api.POST("/password-reset/confirm", s.handleConfirmPasswordReset)

		api.GET("/users/:id/study-list", s.handleListStudyWords)
		api.POST("/users/:id/study-list", s.handleAddStudyWord)
		api.DELETE("/users/:id/study-list/:word", s.handleRemoveStudyWord)

		api.GET("/users/:id/progress", s.handleGetProgress)
		api.PUT("/users/:id/progress", s.handlePutProgress)

		api.GET("/quiz/questions", s.handleListQuizQuestions)
		api.POST("/users/:id/quiz-results", s.handleRecordQuizResult)

		api.GET("/users/:id/notifications", s.handleListNotifications)
		api.POST("/users/:id/notifications/read", s.handleMarkNotificationsRead)

		api.POST("/users/:id/chat/sessions", s.handleCreateChatSession)
		api.POST("/chat/sessions/:sid/messages", s.handleAddChatMessage)
		api.GET("/chat/sessions/:sid/messages", s.handleListChatMessages)
	}

	s.engine = engine
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Engine returns the underlying router, used by tests to drive requests
// without a listening socket.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run serves requests until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.log.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
