package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"matrix-planner/internal/store"
)

// Server exposes the task store over REST.
type Server struct {
	store  *store.Store
	log    *zap.SugaredLogger
	engine *gin.Engine
}

func NewServer(st *store.Store, log *zap.SugaredLogger, environment string) *Server {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{store: st, log: log, engine: engine}
	engine.Use(s.requestLogger())
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler to serve.
func (s *Server) Handler() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.health)

	api := s.engine.Group("/api")
	{
		api.POST("/session", s.openSession)
		api.DELETE("/session", s.closeSession)

		api.GET("/tasks", s.listTasks)
		api.POST("/tasks", s.addTask)
		api.DELETE("/tasks", s.clearAll)
		api.PATCH("/tasks/:id", s.updateTask)
		api.DELETE("/tasks/:id", s.deleteTask)
		api.POST("/tasks/:id/undo", s.undoDelete)
		api.POST("/tasks/:id/move", s.moveTask)
		api.POST("/tasks/:id/subtasks", s.addSubTask)

		api.PATCH("/subtasks/:id", s.toggleSubTask)
		api.DELETE("/subtasks/:id", s.deleteSubTask)

		api.GET("/quadrants/:quadrant", s.quadrantTasks)
		api.POST("/quadrants/:quadrant/reorder", s.reorderQuadrant)

		api.GET("/focus", s.dailyFocus)
		api.GET("/stats", s.stats)
		api.GET("/export", s.exportTasks)
		api.POST("/import", s.importTasks)
		api.GET("/tags/presets", s.presetTags)
	}
}

// requestLogger reports each request with latency and status.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Infow("http",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
