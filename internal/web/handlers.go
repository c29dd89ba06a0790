package web

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"mission-board/internal/model"
	"mission-board/internal/service"
)

const userKey = "user"

type createTaskRequest struct {
	Title         string  `json:"title" binding:"required"`
	Description   *string `json:"description"`
	Column        string  `json:"column"`
	ParentID      *uint   `json:"parent_id"`
	WeekStartDate *string `json:"week_start_date"`
}

type updateTaskRequest struct {
	Title       *string            `json:"title"`
	Description model.Opt[*string] `json:"description"`
}

type moveTaskRequest struct {
	Column        string  `json:"column" binding:"required"`
	Position      int     `json:"position"`
	WeekStartDate *string `json:"week_start_date"`
}

type reorderRequest struct {
	Direction string `json:"direction" binding:"required"`
}

type reorderToRequest struct {
	OverTaskID uint `json:"over_task_id" binding:"required"`
}

type completeRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

type suggestRequest struct {
	Previous []service.Suggestion `json:"previous"`
	Feedback string               `json:"feedback"`
}

type acceptRequest struct {
	Subtasks []service.Suggestion `json:"subtasks" binding:"required"`
}

func (s *Server) requireUser(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "bearer token required",
		})
		return
	}

	user, err := s.auth.FindByAPIToken(c.Request.Context(), strings.TrimSpace(token))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	if user == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "unknown token",
		})
		return
	}

	c.Set(userKey, user)
	c.Next()
}

func currentUserID(c *gin.Context) uint {
	return c.MustGet(userKey).(*model.User).ID
}

func (s *Server) handleListTasks(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)

	// Page loads double as the weekly reset trigger.
	if _, err := s.resets.RunWeeklyResetIfDue(ctx, userID); err != nil {
		log.Printf("weekly reset for user %d: %v", userID, err)
	}

	tasks, err := s.board.ListTasks(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    tasks,
		"count":   len(tasks),
	})
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	input := service.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		ParentID:    req.ParentID,
		Week:        req.WeekStartDate,
	}
	if req.Column != "" {
		column, err := model.ParseColumn(req.Column)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		input.Column = column
	}

	task, err := s.board.CreateTask(c.Request.Context(), currentUserID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    task,
	})
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	var edit service.TaskEdit
	if req.Title != nil {
		edit.Title = model.Some(*req.Title)
	}
	edit.Description = req.Description

	task, err := s.board.UpdateTask(c.Request.Context(), currentUserID(c), id, edit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    task,
	})
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	if err := s.board.DeleteTask(c.Request.Context(), currentUserID(c), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Task deleted",
	})
}

func (s *Server) handleMoveTask(c *gin.Context) {
	req, ok := bindMove(c)
	if !ok {
		return
	}

	result, err := s.board.MoveTask(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"copy_id": result.CopyID,
		"merged":  result.Merged,
	})
}

func (s *Server) handleCopyTask(c *gin.Context) {
	req, ok := bindMove(c)
	if !ok {
		return
	}

	copyID, err := s.board.CopyTask(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      copyID,
	})
}

func (s *Server) handleReorderAdjacent(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	dir, err := service.ParseDirection(req.Direction)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := s.board.ReorderAdjacent(c.Request.Context(), currentUserID(c), id, dir); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleReorderTo(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var req reorderToRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := s.board.ReorderToPosition(c.Request.Context(), currentUserID(c), id, req.OverTaskID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleComplete(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	task, err := s.board.SetCompleted(c.Request.Context(), currentUserID(c), id, *req.Completed)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    task,
	})
}

func (s *Server) handleRestore(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	task, err := s.board.RestoreTask(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    task,
	})
}

func (s *Server) handleSuggestSubtasks(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var req suggestRequest
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, err.Error())
			return
		}
	}

	suggestions, err := s.subtasks.Suggest(c.Request.Context(), currentUserID(c), id, req.Previous, req.Feedback)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    suggestions,
	})
}

func (s *Server) handleAcceptSubtasks(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var req acceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	created, err := s.subtasks.Accept(c.Request.Context(), currentUserID(c), id, req.Subtasks)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    created,
		"count":   len(created),
	})
}

func (s *Server) handleWeeklyReset(c *gin.Context) {
	ran, err := s.resets.RunWeeklyResetIfDue(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"ran":     ran,
	})
}

func bindMove(c *gin.Context) (service.MoveRequest, bool) {
	id, ok := taskID(c)
	if !ok {
		return service.MoveRequest{}, false
	}
	var req moveTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return service.MoveRequest{}, false
	}
	column, err := model.ParseColumn(req.Column)
	if err != nil {
		badRequest(c, err.Error())
		return service.MoveRequest{}, false
	}
	return service.MoveRequest{
		TaskID:   id,
		Column:   column,
		Position: req.Position,
		Week:     req.WeekStartDate,
	}, true
}

func taskID(c *gin.Context) (uint, bool) {
	raw := c.Param("id")
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		badRequest(c, "invalid task id")
		return 0, false
	}
	return uint(value), true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   msg,
	})
}

// respondError maps service errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var invalid *service.InvalidOperationError
	var genErr *service.GenerationError
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "task not found",
		})
	case errors.As(err, &invalid):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   invalid.Reason,
		})
	case errors.As(err, &genErr):
		body := gin.H{
			"success": false,
			"error":   genErr.Err.Error(),
		}
		if genErr.Hint != "" {
			body["hint"] = genErr.Hint
		}
		c.JSON(http.StatusBadGateway, body)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
	}
}
