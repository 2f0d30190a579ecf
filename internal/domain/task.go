package domain

import "time"

// Task is a to-do item owned by a single user.
type Task struct {
	ID          int64
	Title       string
	Description string
	Completed   bool
	UserID      int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
