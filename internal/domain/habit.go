package domain

import "time"

// Habit is a recurring activity tracked per day.
type Habit struct {
	ID     int64
	Name   string
	UserID int64
}

// HabitLog records one habit/day entry. (HabitID, Date) is unique.
type HabitLog struct {
	ID         int64
	HabitID    int64
	UserID     int64
	Date       time.Time
	Completed  bool
	SleepHours *int
}
