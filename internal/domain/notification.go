package domain

import "time"

type NotificationCategory string

const (
	CategoryMoney   NotificationCategory = "money"
	CategoryFuel    NotificationCategory = "fuel"
	CategoryService NotificationCategory = "service"
	CategoryGeneral NotificationCategory = "general"
)

// Notification is an in-app inbox entry for one user.
type Notification struct {
	ID          int64                `json:"id"`
	UserID      int32                `json:"user_id"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Category    NotificationCategory `json:"category"`
	IsRead      bool                 `json:"is_read"`
	Attributes  map[string]string    `json:"attributes"`
	CreatedAt   time.Time            `json:"created_at"`
}

type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "PENDING"
	OutboxProcessing OutboxStatus = "PROCESSING"
	OutboxSent       OutboxStatus = "SENT"
	OutboxFailed     OutboxStatus = "FAILED"
	OutboxDead       OutboxStatus = "DEAD"
)

// OutboxMessage is a notification request written in the same unit of work as
// the ledger change that caused it.
type OutboxMessage struct {
	ID          int64                `json:"id"`
	RecipientID int32                `json:"recipient_id"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Category    NotificationCategory `json:"category"`
	Attributes  map[string]string    `json:"attributes,omitempty"`

	Status        OutboxStatus `json:"status"`
	Attempts      int          `json:"attempts"`
	LastError     string       `json:"last_error,omitempty"`
	NextAttemptAt *time.Time   `json:"next_attempt_at,omitempty"`
	LockedAt      *time.Time   `json:"locked_at,omitempty"`
	LockedBy      string       `json:"locked_by,omitempty"`
	SentAt        *time.Time   `json:"sent_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}
