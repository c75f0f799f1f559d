package models

import "time"

// NotificationType groups notifications by their source
type NotificationType string

const (
	NotificationTransaction NotificationType = "transaction"
	NotificationCard        NotificationType = "card"
	NotificationGoal        NotificationType = "goal"
	NotificationSystem      NotificationType = "system"
)

// Notification is a user-facing message. Only IsRead ever changes after creation.
type Notification struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}
