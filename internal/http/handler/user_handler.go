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

// UserHandler exposes account lookups and administration.
type UserHandler struct {
	users *service.UserService
}

func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// Me handles GET /users/me.
func (h *UserHandler) Me(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, autherr.ErrInvalidToken)
		return
	}
	user, err := h.users.Get(c.Request.Context(), actor, actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Get handles GET /users/:id.
func (h *UserHandler) Get(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	id, err := parseID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	user, err := h.users.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// List handles GET /users with optional search and pagination.
func (h *UserHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	users, err := h.users.List(c.Request.Context(), c.Query("search"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "page": page, "limit": limit})
}

// ListAll handles GET /users/admin/all-users.
func (h *UserHandler) ListAll(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	users, err := h.users.ListAll(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

type updateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// Update handles PUT /users/:id.
func (h *UserHandler) Update(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	id, err := parseID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", autherr.ErrValidation, "malformed request body"))
		return
	}
	user, err := h.users.Update(c.Request.Context(), actor, id, service.UpdateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Delete handles DELETE /users/:id.
func (h *UserHandler) Delete(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	id, err := parseID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.users.Delete(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}

type bulkCreateRequest struct {
	Users []struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	} `json:"users"`
}

// BulkCreate handles POST /users/bulk.
func (h *UserHandler) BulkCreate(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	var req bulkCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", autherr.ErrValidation, "malformed request body"))
		return
	}
	inputs := make([]service.BulkCreateInput, 0, len(req.Users))
	for _, u := range req.Users {
		inputs = append(inputs, service.BulkCreateInput{Name: u.Name, Email: u.Email, Password: u.Password})
	}
	created, skipped, err := h.users.BulkCreate(c.Request.Context(), actor, inputs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"created": created, "skipped": skipped})
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid id", autherr.ErrValidation)
	}
	return id, nil
}
