package web

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"mission-board/internal/model"
	"mission-board/internal/service"
)

// Authenticator resolves the bearer token of a request to its user.
// A nil user with a nil error means the token is unknown.
type Authenticator interface {
	FindByAPIToken(ctx context.Context, token string) (*model.User, error)
}

// Server is the board's JSON API.
type Server struct {
	board    *service.BoardService
	subtasks *service.SubtaskService
	resets   *service.ResetService
	auth     Authenticator
	router   *gin.Engine
}

// NewServer creates a new web server
func NewServer(board *service.BoardService, subtasks *service.SubtaskService, resets *service.ResetService, auth Authenticator) *Server {
	router := gin.Default()

	s := &Server{
		board:    board,
		subtasks: subtasks,
		resets:   resets,
		auth:     auth,
		router:   router,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	api := router.Group("/api", s.requireUser)
	{
		api.GET("/tasks", s.handleListTasks)
		api.POST("/tasks", s.handleCreateTask)
		api.PATCH("/tasks/:id", s.handleUpdateTask)
		api.DELETE("/tasks/:id", s.handleDeleteTask)
		api.POST("/tasks/:id/move", s.handleMoveTask)
		api.POST("/tasks/:id/copy", s.handleCopyTask)
		api.POST("/tasks/:id/reorder", s.handleReorderAdjacent)
		api.POST("/tasks/:id/reorder-to", s.handleReorderTo)
		api.POST("/tasks/:id/complete", s.handleComplete)
		api.POST("/tasks/:id/restore", s.handleRestore)
		api.POST("/tasks/:id/subtasks/suggest", s.handleSuggestSubtasks)
		api.POST("/tasks/:id/subtasks", s.handleAcceptSubtasks)
		api.POST("/weekly-reset", s.handleWeeklyReset)
	}

	return s
}

// Handler exposes the router for an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}
