// Package scheduler runs the reminder job that nudges learners with due
// reviews. It lives outside the review core: due-ness inside a session
// is still computed lazily, this only sends Telegram pings.
package scheduler

import (
	"log"
	"time"

	"github.com/example/vocabbot/internal/database"
	"github.com/go-co-op/gocron"
)

// Notifier sends a due-review reminder to a learner.
type Notifier interface {
	SendReminder(telegramID int64, dueCount int) error
}

// Scheduler manages the periodic reminder check.
type Scheduler struct {
	scheduler *gocron.Scheduler
	notifier  Notifier
	userRepo  *database.UserRepository
	progress  *database.ProgressRepository
	startHour int
	endHour   int
}

// New creates a scheduler sending reminders only between startHour and
// endHour (inclusive, local hours of the UTC clock).
func New(notifier Notifier, startHour, endHour int) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		notifier:  notifier,
		userRepo:  database.NewUserRepository(),
		progress:  database.NewProgressRepository(),
		startHour: startHour,
		endHour:   endHour,
	}
}

// Start begins the hourly reminder check without blocking.
func (s *Scheduler) Start() {
	s.scheduler.Every(1).Hour().Do(s.checkAndSendReminders)
	s.scheduler.StartAsync()
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) checkAndSendReminders() {
	now := time.Now().UTC()
	hour := now.Hour()
	if hour < s.startHour || hour > s.endHour {
		return
	}

	users, err := s.userRepo.UsersForNotification(hour)
	if err != nil {
		log.Printf("Error getting users for notification: %v", err)
		return
	}

	for _, user := range users {
		due, err := s.progress.DueItems(user.TelegramID, now)
		if err != nil {
			log.Printf("Error getting due items for user %d: %v", user.TelegramID, err)
			continue
		}
		if len(due) == 0 {
			continue
		}
		if err := s.notifier.SendReminder(user.TelegramID, len(due)); err != nil {
			log.Printf("Error sending reminder to user %d: %v", user.TelegramID, err)
		}
	}
}

// RunManualCheck forces a reminder check for one learner.
func (s *Scheduler) RunManualCheck(telegramID int64) error {
	due, err := s.progress.DueItems(telegramID, time.Now().UTC())
	if err != nil {
		return err
	}
	if len(due) > 0 {
		return s.notifier.SendReminder(telegramID, len(due))
	}
	return nil
}
