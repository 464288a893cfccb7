package adoption

import "time"

// Link records that a supervisor oversees a user. A user has at most one.
type Link struct {
	ID           int64     `json:"id"`
	SupervisorID int64     `json:"supervisor_id"`
	UserID       int64     `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
}
