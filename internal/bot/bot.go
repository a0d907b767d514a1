package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/example/vocabbot/internal/config"
	"github.com/example/vocabbot/internal/database"
	"github.com/example/vocabbot/internal/scheduling"
	"github.com/example/vocabbot/internal/session"
	"github.com/example/vocabbot/internal/vocab"
	"github.com/example/vocabbot/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot is the Telegram transport in front of the review core. It renders
// prompts, forwards answers to the session manager, and owns nothing of
// the scheduling logic itself.
type Bot struct {
	api      *tgbotapi.BotAPI
	cfg      *config.Config
	vocabs   *vocab.Store
	sessions *session.Manager
	users    *database.UserRepository
	progress *database.ProgressRepository
}

// New creates a bot connected to the Telegram API.
func New(cfg *config.Config, vocabs *vocab.Store, sessions *session.Manager) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram client: %w", err)
	}
	return &Bot{
		api:      api,
		cfg:      cfg,
		vocabs:   vocabs,
		sessions: sessions,
		users:    database.NewUserRepository(),
		progress: database.NewProgressRepository(),
	}, nil
}

// Start runs the update loop until the context is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	log.Printf("Authorized as @%s", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update := <-updates:
			b.handleUpdate(update)
		}
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(update.CallbackQuery); err != nil {
			log.Printf("Error handling callback: %v", err)
		}
	case update.Message != nil && update.Message.IsCommand():
		if err := b.handleCommand(update.Message); err != nil {
			log.Printf("Error handling command /%s: %v", update.Message.Command(), err)
		}
	case update.Message != nil && update.Message.Text != "":
		if err := b.handleAnswer(update.Message); err != nil {
			log.Printf("Error handling answer: %v", err)
		}
	}
}

func (b *Bot) handleCommand(message *tgbotapi.Message) error {
	switch message.Command() {
	case "start":
		return b.handleStart(message)
	case "help":
		return b.send(message.Chat.ID, helpText)
	case "vocabs":
		return b.handleVocabs(message)
	case "learn":
		return b.handleLearn(message)
	case "stop":
		return b.handleStop(message)
	case "stats":
		return b.handleStats(message)
	default:
		return b.send(message.Chat.ID, "Unknown command. Try /help.")
	}
}

const helpText = `I help you memorize vocabulary with spaced repetition.

/vocabs - pick a vocab set
/learn - review the words that are due
/stop - end the current session
/stats - your progress in the active set
/help - this message

During a session, reply with the translation of the word I show you.`

func (b *Bot) handleStart(message *tgbotapi.Message) error {
	if message.From == nil {
		return fmt.Errorf("invalid message: sender is missing")
	}

	user, err := b.users.GetByTelegramID(message.From.ID)
	if errors.Is(err, database.ErrNotFound) {
		log.Printf("Registering user %d (%s)", message.From.ID, message.From.FirstName)
		user = &models.User{
			TelegramID:          message.From.ID,
			FirstName:           message.From.FirstName,
			Username:            message.From.UserName,
			NotificationEnabled: true,
			NotificationHour:    9,
		}
		if err := b.users.Create(user); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if user.ActiveVocabSet == "" {
		if err := b.send(message.Chat.ID, fmt.Sprintf("Hi %s! Pick a vocab set to start.", user.FirstName)); err != nil {
			return err
		}
		return b.sendVocabKeyboard(message.Chat.ID, user.TelegramID)
	}
	return b.send(message.Chat.ID,
		fmt.Sprintf("Welcome back, %s! Active set: %s. Use /learn to review.", user.FirstName, user.ActiveVocabSet))
}

func (b *Bot) handleVocabs(message *tgbotapi.Message) error {
	return b.sendVocabKeyboard(message.Chat.ID, message.From.ID)
}

func (b *Bot) sendVocabKeyboard(chatID, learnerID int64) error {
	setIDs := b.vocabs.SetIDs(learnerID)
	if len(setIDs) == 0 {
		return b.send(chatID, "No vocab sets are available to you.")
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, setID := range setIDs {
		label := setID
		if stats, err := b.progress.Statistics(learnerID, setID); err == nil && stats.Total > 0 {
			label = fmt.Sprintf("%s (%s)", setID, formatSummary(stats))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "vocab:"+setID),
		))
	}
	msg := tgbotapi.NewMessage(chatID, "Choose a vocab set:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) handleCallback(query *tgbotapi.CallbackQuery) error {
	// Acknowledge the button press so the client stops the spinner.
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		log.Printf("Error acknowledging callback: %v", err)
	}

	if !strings.HasPrefix(query.Data, "vocab:") {
		log.Printf("Unrecognized callback: %s", query.Data)
		return nil
	}
	setID := strings.TrimPrefix(query.Data, "vocab:")
	if _, err := b.vocabs.Get(setID); err != nil {
		return b.send(query.Message.Chat.ID, "That vocab set no longer exists.")
	}

	user, err := b.users.GetByTelegramID(query.From.ID)
	if err != nil {
		return err
	}
	user.ActiveVocabSet = setID
	if err := b.users.Update(user); err != nil {
		return err
	}
	return b.send(query.Message.Chat.ID,
		fmt.Sprintf("Active set is now %s. Use /learn to review.", setID))
}

func (b *Bot) handleLearn(message *tgbotapi.Message) error {
	user, err := b.users.GetByTelegramID(message.From.ID)
	if errors.Is(err, database.ErrNotFound) {
		return b.send(message.Chat.ID, "Use /start first.")
	}
	if err != nil {
		return err
	}
	if user.ActiveVocabSet == "" {
		return b.send(message.Chat.ID, "Pick a vocab set first with /vocabs.")
	}

	_, prompt, err := b.sessions.Start(user.TelegramID, user.ActiveVocabSet)
	if errors.Is(err, session.ErrSessionActive) {
		return b.send(message.Chat.ID, "A session is already running. Answer the current word or /stop.")
	}
	if err != nil {
		return err
	}
	if prompt == nil {
		return b.sendNothingDue(message.Chat.ID, user)
	}
	return b.sendPrompt(message.Chat.ID, prompt)
}

func (b *Bot) sendNothingDue(chatID int64, user *models.User) error {
	records, err := b.progress.ForSet(user.TelegramID, user.ActiveVocabSet)
	if err != nil {
		return err
	}
	next, ok := scheduling.NextDue(records)
	if !ok {
		return b.send(chatID, "Nothing to review yet. Use /learn after picking a set.")
	}
	wait := time.Until(next)
	if wait < 0 {
		wait = 0
	}
	return b.send(chatID,
		fmt.Sprintf("Nothing is due right now. Come back in %s.", formatWait(wait)))
}

func (b *Bot) handleAnswer(message *tgbotapi.Message) error {
	prompt, summary, err := b.sessions.Answer(message.From.ID, message.Text)
	if errors.Is(err, session.ErrNotAwaitingAnswer) {
		return b.send(message.Chat.ID, "No session is running. Use /learn to start one.")
	}
	if err != nil {
		return err
	}

	if summary != nil {
		return b.send(message.Chat.ID, formatSessionSummary(summary))
	}
	return b.sendPrompt(message.Chat.ID, prompt)
}

func (b *Bot) handleStop(message *tgbotapi.Message) error {
	summary, ok := b.sessions.Cancel(message.From.ID)
	if !ok {
		return b.send(message.Chat.ID, "No session to stop.")
	}
	return b.send(message.Chat.ID, formatSessionSummary(summary))
}

func (b *Bot) handleStats(message *tgbotapi.Message) error {
	user, err := b.users.GetByTelegramID(message.From.ID)
	if errors.Is(err, database.ErrNotFound) {
		return b.send(message.Chat.ID, "Use /start first.")
	}
	if err != nil {
		return err
	}
	if user.ActiveVocabSet == "" {
		return b.send(message.Chat.ID, "Pick a vocab set first with /vocabs.")
	}
	stats, err := b.progress.Statistics(user.TelegramID, user.ActiveVocabSet)
	if err != nil {
		return err
	}
	if stats.Total == 0 {
		return b.send(message.Chat.ID, fmt.Sprintf("You haven't started %s yet. Use /learn.", user.ActiveVocabSet))
	}
	return b.send(message.Chat.ID, fmt.Sprintf("%s: %s", user.ActiveVocabSet, formatSummary(stats)))
}

func (b *Bot) sendPrompt(chatID int64, prompt *models.Prompt) error {
	var sb strings.Builder
	if prompt.PrevItem != nil && prompt.PrevCorrect != nil {
		if *prompt.PrevCorrect {
			fmt.Fprintf(&sb, "✅ %s → %s\n\n", prompt.PrevItem.ForeignWord, prompt.PrevItem.Translation)
		} else {
			fmt.Fprintf(&sb, "❌ %s → %s\n\n", prompt.PrevItem.ForeignWord, prompt.PrevItem.Translation)
		}
	}
	fmt.Fprintf(&sb, "Translate: %s  (%d left)", prompt.Item.ForeignWord, prompt.RemainingCount)
	if prompt.Item.Annotation != "" {
		sb.WriteString("\n" + prompt.Item.Annotation)
	}
	return b.send(chatID, sb.String())
}

// SendReminder implements scheduler.Notifier.
func (b *Bot) SendReminder(telegramID int64, dueCount int) error {
	return b.send(telegramID,
		fmt.Sprintf("You have %d words ready for review. Use /learn when you have a minute.", dueCount))
}

func (b *Bot) send(chatID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func formatSessionSummary(summary *models.SessionSummary) string {
	if summary.TotalReviewed == 0 {
		return "Session ended before any answers."
	}
	text := fmt.Sprintf("Session done: %d/%d correct.", summary.TotalCorrect, summary.TotalReviewed)
	if summary.Cancelled {
		text = "Session stopped. " + text
	}
	return text
}

func formatSummary(stats *database.SetStatistics) string {
	learned := stats.Correct
	percent := 0
	if stats.Total > 0 {
		percent = 100 * learned / stats.Total
	}
	return fmt.Sprintf("%d new / %d learning / %d learned - %d%%",
		stats.New, stats.Incorrect, learned, percent)
}

// formatWait renders a wait duration the way a learner reads it:
// minutes under an hour, then hours, then days and hours.
func formatWait(d time.Duration) string {
	minutes := int(d.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	if minutes < 60 {
		return fmt.Sprintf("%d minutes", minutes)
	}
	hours := (minutes + 30) / 60
	if hours <= 24 {
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%d days %d hours", hours/24, hours%24)
}
