package models

import (
	"time"

	"github.com/google/uuid"
)

// StatusCompleted is the only status a persisted transaction can carry:
// failed transfers roll back before a record is ever written.
const StatusCompleted = "completed"

// DefaultNote is used when the sender leaves the note empty.
const DefaultNote = "Chuyển tiền"

// MaxNoteLength caps free-text notes.
const MaxNoteLength = 500

// Transaction is an immutable record of one completed transfer. Sender and
// receiver identity is denormalized at transfer time, so later renames never
// rewrite history.
type Transaction struct {
	ID           uuid.UUID `json:"id"`
	FromUserID   int64     `json:"fromUserId"`
	FromUsername string    `json:"fromUsername"`
	FromName     string    `json:"fromName"`
	ToUserID     int64     `json:"toUserId"`
	ToUsername   string    `json:"toUsername"`
	ToName       string    `json:"toName"`
	Amount       int64     `json:"amount"`
	Note         string    `json:"note"`
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
}
