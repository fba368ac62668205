package notification

import "time"

// Kinds
const (
	KindAccess      = "access"
	KindApplication = "application"
	KindSystem      = "system"
)

// Notification is a single user-facing message. Counts are always derived
// from the store (pull-based); there is no shared in-memory unread state.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// UnreadCount is the payload returned by the unread-count query.
type UnreadCount struct {
	Count int `json:"count"`
}
