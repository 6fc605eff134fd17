package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"matrix-planner/internal/model"
	"matrix-planner/internal/store"
)

const dateLayout = "2006-01-02"

type sessionRequest struct {
	OwnerID string `json:"ownerId" binding:"required"`
}

type addTaskRequest struct {
	Title             string   `json:"title" binding:"required"`
	Description       string   `json:"description"`
	Urgent            bool     `json:"urgent"`
	Important         bool     `json:"important"`
	DueDate           string   `json:"dueDate"`
	EstimatedDuration int      `json:"estimatedDuration"`
	Tags              []string `json:"tags"`
}

type updateTaskRequest struct {
	Title             *string       `json:"title"`
	Description       *string       `json:"description"`
	Urgent            *bool         `json:"urgent"`
	Important         *bool         `json:"important"`
	DueDate           *string       `json:"dueDate"`
	EstimatedDuration *int          `json:"estimatedDuration"`
	Status            *model.Status `json:"status"`
	Tags              *[]string     `json:"tags"`
}

type moveRequest struct {
	Quadrant model.Quadrant `json:"quadrant" binding:"required"`
}

type reorderRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

type subTaskRequest struct {
	Title string `json:"title" binding:"required"`
}

type toggleRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

func (s *Server) openSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.SetOwner(c.Request.Context(), req.OwnerID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ownerId": req.OwnerID})
}

func (s *Server) closeSession(c *gin.Context) {
	if err := s.store.SetOwner(c.Request.Context(), ""); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listTasks(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Tasks())
}

func (s *Server) addTask(c *gin.Context) {
	var req addTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input := store.AddTaskInput{
		Title:             req.Title,
		Description:       req.Description,
		Urgent:            req.Urgent,
		Important:         req.Important,
		EstimatedDuration: req.EstimatedDuration,
		Tags:              req.Tags,
	}
	if req.DueDate != "" {
		due, err := time.Parse(dateLayout, req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "dueDate must be YYYY-MM-DD"})
			return
		}
		input.DueDate = &due
	}
	task, err := s.store.AddTask(c.Request.Context(), input)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (s *Server) updateTask(c *gin.Context) {
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	patch := model.TaskPatch{
		Title:             req.Title,
		Description:       req.Description,
		Urgent:            req.Urgent,
		Important:         req.Important,
		EstimatedDuration: req.EstimatedDuration,
		Status:            req.Status,
		Tags:              req.Tags,
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			patch.ClearDueDate = true
		} else {
			due, err := time.Parse(dateLayout, *req.DueDate)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "dueDate must be YYYY-MM-DD"})
				return
			}
			patch.DueDate = &due
		}
	}
	task, err := s.store.UpdateTask(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) deleteTask(c *gin.Context) {
	if err := s.store.DeleteTask(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) undoDelete(c *gin.Context) {
	task, err := s.store.UndoDelete(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) moveTask(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Quadrant.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown quadrant"})
		return
	}
	task, err := s.store.MoveToQuadrant(c.Request.Context(), c.Param("id"), req.Quadrant)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) addSubTask(c *gin.Context) {
	var req subTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sub, err := s.store.AddSubTask(c.Request.Context(), c.Param("id"), req.Title)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (s *Server) toggleSubTask(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.ToggleSubTask(c.Request.Context(), c.Param("id"), *req.Completed); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteSubTask(c *gin.Context) {
	if err := s.store.DeleteSubTask(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) quadrantTasks(c *gin.Context) {
	quadrant := model.Quadrant(c.Param("quadrant"))
	if !quadrant.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown quadrant"})
		return
	}
	c.JSON(http.StatusOK, s.store.QuadrantTasks(quadrant))
}

func (s *Server) reorderQuadrant(c *gin.Context) {
	quadrant := model.Quadrant(c.Param("quadrant"))
	if !quadrant.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown quadrant"})
		return
	}
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.store.ReorderInQuadrant(c.Request.Context(), quadrant, req.IDs)
	c.Status(http.StatusNoContent)
}

func (s *Server) dailyFocus(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.DailyFocus())
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Stats())
}

func (s *Server) exportTasks(c *gin.Context) {
	data, err := s.store.Export()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="matrix-tasks.json"`)
	c.Data(http.StatusOK, "application/json", data)
}

func (s *Server) importTasks(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	count, err := s.store.Import(c.Request.Context(), data)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": count})
}

func (s *Server) clearAll(c *gin.Context) {
	if err := s.store.ClearAll(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) presetTags(c *gin.Context) {
	c.JSON(http.StatusOK, model.PresetTags)
}

// fail maps store errors onto HTTP statuses. Anything unrecognized is a
// persistence failure already rolled back by the store.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNoOwner):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no active session"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
	case errors.Is(err, store.ErrInvalidSnapshot):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrUndoExpired):
		c.JSON(http.StatusGone, gin.H{"error": "undo window expired"})
	default:
		s.log.Errorw("request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "persistence failure"})
	}
}
