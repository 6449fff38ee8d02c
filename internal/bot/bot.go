package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/kg-note/internal/models"
	"github.com/xaenox/kg-note/internal/notes"
	"go.uber.org/zap"
)

const historySize = 5

// sender is the part of the Telegram API the bot talks to.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api    *tgbotapi.BotAPI
	sender sender
	notes  *notes.Service
	logger *zap.Logger
}

func New(token string, svc *notes.Service, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := newBot(api, svc, logger)
	b.api = api
	return b, nil
}

func newBot(s sender, svc *notes.Service, logger *zap.Logger) *Bot {
	return &Bot{
		sender: s,
		notes:  svc,
		logger: logger,
	}
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Telegram bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

// userID maps a Telegram account onto the note owner id.
func userID(from *tgbotapi.User) string {
	return "telegram_" + strconv.FormatInt(from.ID, 10)
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}
	if strings.TrimSpace(content) == "" {
		return
	}

	created, err := b.notes.CreateNote(ctx, userID(message.From), notes.Input{Content: content})
	if err != nil {
		b.logger.Error("Failed to save note",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		if errors.Is(err, notes.ErrUnavailable) {
			b.sendErrorMessage(message.Chat.ID, "Notes are not available right now. Please try again later.")
			return
		}
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't save your note. Please try again.")
		return
	}

	b.sendCategorizationResponse(message.Chat.ID, message.MessageID, created.Categories)
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "categories":
		b.handleCategories(ctx, message)
	case "history":
		b.handleHistory(ctx, message)
	case "stats":
		b.handleStats(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Welcome to Knowledge Weaver! 📝
Send me anything worth remembering and I'll file it under the right categories.

Use /help to see all available commands.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Start the bot
/help - Show this help message
/categories - Show your categories
/history - Show your latest notes
/stats - Show how your notes are spread over categories

Any other message is saved as a note and categorized automatically.`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleCategories(ctx context.Context, message *tgbotapi.Message) {
	categories, err := b.notes.ListCategories(ctx, userID(message.From))
	if err != nil {
		b.logger.Error("Failed to get categories",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, failed to retrieve your categories. Please try again later.")
		return
	}

	if len(categories) == 0 {
		b.sendMessage(message.Chat.ID, "You don't have any categories yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("*Your categories:*\n")
	for _, c := range categories {
		sb.WriteString(escapeMarkdown(hashtag(c.Category)))
		if c.Definition != "" {
			sb.WriteString(" \\- " + escapeMarkdown(c.Definition))
		}
		sb.WriteString("\n")
	}
	b.sendMarkdown(message.Chat.ID, 0, sb.String())
}

func (b *Bot) handleHistory(ctx context.Context, message *tgbotapi.Message) {
	list, err := b.notes.ListNotes(ctx, userID(message.From), historySize, 0)
	if err != nil {
		b.logger.Error("Failed to get user notes",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't retrieve your note history.")
		return
	}

	if len(list) == 0 {
		b.sendMessage(message.Chat.ID, "You don't have any notes yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("*Your recent notes:*\n\n")
	for _, n := range list {
		sb.WriteString(fmt.Sprintf("_%s_\n", escapeMarkdown(n.Content)))
		if len(n.Categories) > 0 {
			sb.WriteString(formatCategories(n.Categories) + "\n")
		}
		sb.WriteString("\n")
	}
	b.sendMarkdown(message.Chat.ID, 0, sb.String())
}

func (b *Bot) handleStats(ctx context.Context, message *tgbotapi.Message) {
	stats, err := b.notes.Statistics(ctx, userID(message.From))
	if err != nil {
		b.logger.Error("Failed to get statistics",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't compute your statistics.")
		return
	}
	b.sendMarkdown(message.Chat.ID, 0, formatStatistics(stats))
}

func formatStatistics(stats models.Statistics) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*Notes:* %d\n", stats.TotalNotes))
	if len(stats.MostUsedCategories) > 0 {
		sb.WriteString("*Top categories:*\n")
		for _, c := range stats.MostUsedCategories {
			sb.WriteString(fmt.Sprintf("%s %d\n", escapeMarkdown(hashtag(c.Category)), c.Count))
		}
	}
	return sb.String()
}

func hashtag(name string) string {
	return "#" + strings.ReplaceAll(name, " ", "_")
}

func formatCategories(categories []string) string {
	tags := make([]string, len(categories))
	for i, c := range categories {
		tags[i] = escapeMarkdown(hashtag(c))
	}
	return "*Categories:* " + strings.Join(tags, " ")
}

// escapeMarkdown escapes the characters reserved by MarkdownV2.
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

func (b *Bot) sendCategorizationResponse(chatID int64, replyToID int, categories []string) {
	b.sendMarkdown(chatID, replyToID, "Saved\\!\n"+formatCategories(categories))
}

func (b *Bot) sendMarkdown(chatID int64, replyToID int, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.ReplyToMessageID = replyToID
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
