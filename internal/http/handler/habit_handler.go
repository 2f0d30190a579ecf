package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	autherr "github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain/auth"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/http/middleware"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/service"
)

// HabitHandler exposes the habit and habit-log routes.
type HabitHandler struct {
	habits *service.HabitService
}

func NewHabitHandler(habits *service.HabitService) *HabitHandler {
	return &HabitHandler{habits: habits}
}

type createHabitRequest struct {
	Name string `json:"name"`
}

// Create handles POST /habits.
func (h *HabitHandler) Create(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	var req createHabitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", autherr.ErrValidation, "malformed request body"))
		return
	}
	habit, err := h.habits.Create(c.Request.Context(), actor, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, habit)
}

// List handles GET /habits.
func (h *HabitHandler) List(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	habits, err := h.habits.List(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"habits": habits})
}

// Delete handles DELETE /habits/:id.
func (h *HabitHandler) Delete(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	id, err := parseID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.habits.Delete(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "habit deleted"})
}

type toggleHabitRequest struct {
	Date       string `json:"date"`
	SleepHours *int   `json:"sleep_hours"`
}

// Toggle handles POST /habits/:id/toggle. The date defaults to today.
func (h *HabitHandler) Toggle(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	id, err := parseID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	var req toggleHabitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", autherr.ErrValidation, "malformed request body"))
		return
	}
	day := time.Now().UTC()
	if req.Date != "" {
		day, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			respondError(c, fmt.Errorf("%w: date must be YYYY-MM-DD", autherr.ErrValidation))
			return
		}
	}
	log, err := h.habits.Toggle(c.Request.Context(), actor, id, day, req.SleepHours)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, log)
}

// Logs handles GET /habits/logs?year=&month=, defaulting to the current
// month.
func (h *HabitHandler) Logs(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	now := time.Now().UTC()

	year := now.Year()
	if raw := c.Query("year"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, fmt.Errorf("%w: year must be a number", autherr.ErrValidation))
			return
		}
		year = v
	}
	month := int(now.Month())
	if raw := c.Query("month"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 12 {
			respondError(c, fmt.Errorf("%w: month must be between 1 and 12", autherr.ErrValidation))
			return
		}
		month = v
	}

	logs, err := h.habits.MonthLogs(c.Request.Context(), actor, year, time.Month(month))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
