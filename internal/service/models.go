package service

import (
	"strconv"
	"time"

	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain"
)

// TokenPair is the response body for every flow that establishes a session.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

const tokenTypeBearer = "bearer"

// UserView is the public representation of an account. Password hashes and
// provider subject identifiers never leave the service layer.
type UserView struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	Phone         string    `json:"phone,omitempty"`
	PhoneVerified bool      `json:"phone_verified"`
	AuthProvider  string    `json:"auth_provider"`
	Role          string    `json:"role"`
	CreatedAt     time.Time `json:"created_at"`
}

func toUserView(u domain.User) UserView {
	return UserView{
		ID:            strconv.FormatInt(u.ID, 10),
		Name:          u.Name,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Phone:         u.Phone,
		PhoneVerified: u.PhoneVerified,
		AuthProvider:  u.AuthProvider,
		Role:          u.Role,
		CreatedAt:     u.CreatedAt,
	}
}

// TaskView mirrors the stored task.
type TaskView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toTaskView(t domain.Task) TaskView {
	return TaskView{
		ID:          strconv.FormatInt(t.ID, 10),
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		UserID:      strconv.FormatInt(t.UserID, 10),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// TaskPage is a filtered listing with its total count.
type TaskPage struct {
	Total int64      `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
	Tasks []TaskView `json:"tasks"`
}

// HabitView mirrors the stored habit.
type HabitView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	UserID string `json:"user_id"`
}

func toHabitView(h domain.Habit) HabitView {
	return HabitView{
		ID:     strconv.FormatInt(h.ID, 10),
		Name:   h.Name,
		UserID: strconv.FormatInt(h.UserID, 10),
	}
}

// HabitLogView is one day's completion record for a habit.
type HabitLogView struct {
	ID         string `json:"id"`
	HabitID    string `json:"habit_id"`
	Date       string `json:"date"`
	Completed  bool   `json:"completed"`
	SleepHours *int   `json:"sleep_hours,omitempty"`
}

func toHabitLogView(l domain.HabitLog) HabitLogView {
	return HabitLogView{
		ID:         strconv.FormatInt(l.ID, 10),
		HabitID:    strconv.FormatInt(l.HabitID, 10),
		Date:       l.Date.Format("2006-01-02"),
		Completed:  l.Completed,
		SleepHours: l.SleepHours,
	}
}
