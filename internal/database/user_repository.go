package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/vocabbot/pkg/models"
)

// UserRepository handles database operations for learners
type UserRepository struct{}

// NewUserRepository creates a new repository instance
func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

// GetByTelegramID returns a user by their Telegram id, or ErrNotFound.
func (r *UserRepository) GetByTelegramID(telegramID int64) (*models.User, error) {
	var user models.User
	err := DB.Get(&user, "SELECT * FROM users WHERE telegram_id = $1", telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, telegramID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// Create inserts a new user record.
func (r *UserRepository) Create(user *models.User) error {
	_, err := DB.Exec(`
		INSERT INTO users (telegram_id, first_name, username, notification_enabled, notification_hour)
		VALUES ($1, $2, $3, $4, $5)`,
		user.TelegramID,
		user.FirstName,
		user.Username,
		user.NotificationEnabled,
		user.NotificationHour,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	stored, err := r.GetByTelegramID(user.TelegramID)
	if err != nil {
		return err
	}
	*user = *stored
	return nil
}

// Update modifies the mutable user fields.
func (r *UserRepository) Update(user *models.User) error {
	_, err := DB.Exec(`
		UPDATE users SET
			first_name = $1,
			username = $2,
			active_vocab_set = $3,
			notification_enabled = $4,
			notification_hour = $5,
			updated_at = CURRENT_TIMESTAMP
		WHERE telegram_id = $6`,
		user.FirstName,
		user.Username,
		user.ActiveVocabSet,
		user.NotificationEnabled,
		user.NotificationHour,
		user.TelegramID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// UsersForNotification returns users who want reminders at the given hour.
func (r *UserRepository) UsersForNotification(hour int) ([]models.User, error) {
	var users []models.User
	err := DB.Select(&users,
		"SELECT * FROM users WHERE notification_enabled = $1 AND notification_hour = $2",
		true, hour)
	if err != nil {
		return nil, fmt.Errorf("failed to get users for notification: %w", err)
	}
	return users, nil
}
