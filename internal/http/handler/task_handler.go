package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	autherr "github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain/auth"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/http/middleware"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/service"
)

// TaskHandler exposes the task CRUD routes.
type TaskHandler struct {
	tasks *service.TaskService
}

func NewTaskHandler(tasks *service.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Create handles POST /tasks.
func (h *TaskHandler) Create(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", autherr.ErrValidation, "malformed request body"))
		return
	}
	task, err := h.tasks.Create(c.Request.Context(), actor, req.Title, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// List handles GET /tasks with completion filter, search and pagination.
func (h *TaskHandler) List(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	var completed *bool
	if raw := c.Query("completed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, fmt.Errorf("%w: completed must be true or false", autherr.ErrValidation))
			return
		}
		completed = &v
	}

	pageResult, err := h.tasks.List(c.Request.Context(), actor, completed, c.Query("search"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pageResult)
}

// ListAll handles GET /tasks/admin/all.
func (h *TaskHandler) ListAll(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	pageResult, err := h.tasks.ListAll(c.Request.Context(), actor, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pageResult)
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

// Update handles PUT /tasks/:id.
func (h *TaskHandler) Update(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	id, err := parseID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", autherr.ErrValidation, "malformed request body"))
		return
	}
	task, err := h.tasks.Update(c.Request.Context(), actor, id, service.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Delete handles DELETE /tasks/:id.
func (h *TaskHandler) Delete(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	id, err := parseID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.tasks.Delete(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task deleted"})
}
