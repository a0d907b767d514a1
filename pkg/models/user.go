package models

import "time"

// User represents a learner interacting with the bot.
type User struct {
	ID                  int64     `json:"id" db:"id"`
	TelegramID          int64     `json:"telegram_id" db:"telegram_id"`
	FirstName           string    `json:"first_name" db:"first_name"`
	Username            string    `json:"username" db:"username"`
	ActiveVocabSet      string    `json:"active_vocab_set" db:"active_vocab_set"` // empty until the learner picks one
	NotificationEnabled bool      `json:"notification_enabled" db:"notification_enabled"`
	NotificationHour    int       `json:"notification_hour" db:"notification_hour"` // hour of day (0-23)
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}
