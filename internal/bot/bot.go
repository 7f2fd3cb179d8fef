// Package bot is the Telegram operator console. Each chat command maps onto
// one dashboard action against the operator's focus bot.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/botpanel/internal/dispatcher"
	"github.com/xaenox/botpanel/internal/identity"
	"github.com/xaenox/botpanel/internal/models"
	"github.com/xaenox/botpanel/internal/panel"
	"github.com/xaenox/botpanel/internal/presenter"
	"go.uber.org/zap"
)

// telegramAPI is the part of *tgbotapi.BotAPI the console uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Bot struct {
	api       telegramAPI
	service   *panel.Service
	sessions  *panel.Sessions
	operators map[int64]string
	logger    *zap.Logger
}

// New connects to Telegram. operators maps Telegram user ids onto panel owners;
// anyone else is turned away.
func New(token string, service *panel.Service, sessions *panel.Sessions, operators map[int64]string, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	logger.Info("Authorized on Telegram", zap.String("account", api.Self.UserName))
	return newBot(api, service, sessions, operators, logger), nil
}

func newBot(api telegramAPI, service *panel.Service, sessions *panel.Sessions, operators map[int64]string, logger *zap.Logger) *Bot {
	return &Bot{
		api:       api,
		service:   service,
		sessions:  sessions,
		operators: operators,
		logger:    logger,
	}
}

// Start long-polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
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

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}

	owner, ok := b.operators[message.From.ID]
	if !ok {
		b.logger.Warn("Message from unknown Telegram user", zap.Int64("user_id", message.From.ID))
		b.sendMessage(message.Chat.ID, "You are not registered as an operator of this panel.")
		return
	}
	ctx = identity.Operator(ctx, owner)

	if !message.IsCommand() {
		b.sendMessage(message.Chat.ID, "Use /help to see available commands.")
		return
	}
	b.handleCommand(ctx, message)
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "status":
		b.handleStatus(ctx, message)
	case "bots":
		b.handleBots(ctx, message)
	case "join":
		b.dispatch(ctx, message, models.JoinRoom{TargetRoom: message.CommandArguments()})
	case "stop":
		b.dispatch(ctx, message, models.Stop{})
	case "testai":
		b.dispatch(ctx, message, models.TestAI{})
	case "say":
		b.dispatch(ctx, message, models.SendMessage{Text: message.CommandArguments()})
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Welcome to the bot control panel!
I relay your commands to your chat bots and show what they are doing.

Use /help to see all available commands.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Start the console
/help - Show this help message
/status - Show your focus bot
/bots - List your bots
/join <room> - Send the focus bot to a room
/stop - Stop the focus bot
/testai - Ask the focus bot to test its AI providers
/say <text> - Make the focus bot say something

Commands act on your most recently created bot.`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleStatus(ctx context.Context, message *tgbotapi.Message) {
	sess, err := b.sessions.Get(ctx)
	if err != nil {
		b.logger.Error("Failed to open session", zap.Error(err), zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't load your bots. Please try again later.")
		return
	}
	if _, err := sess.Refresh(ctx); err != nil {
		b.logger.Warn("Refresh failed, showing last known state", zap.Error(err))
	}

	b.sendMarkdown(message.Chat.ID, formatSummary(sess.Summary()))
}

func (b *Bot) handleBots(ctx context.Context, message *tgbotapi.Message) {
	sess, err := b.sessions.Get(ctx)
	if err != nil {
		b.logger.Error("Failed to open session", zap.Error(err), zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't load your bots. Please try again later.")
		return
	}

	records := sess.Snapshot().Records
	if len(records) == 0 {
		b.sendMessage(message.Chat.ID, "You don't have any bots yet.")
		return
	}
	b.sendMarkdown(message.Chat.ID, formatBots(records))
}

func (b *Bot) dispatch(ctx context.Context, message *tgbotapi.Message, cmd models.Command) {
	sess, err := b.sessions.Get(ctx)
	if err != nil {
		b.logger.Error("Failed to open session", zap.Error(err), zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't load your bots. Please try again later.")
		return
	}

	focus := sess.Summary().FocusBot
	if focus == nil {
		b.sendMessage(message.Chat.ID, "You don't have any bots yet.")
		return
	}

	ack, err := b.service.Command(ctx, focus.ID, cmd, sess)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			b.sendErrorMessage(message.Chat.ID, verr.Reason)
			return
		}
		b.logger.Error("Failed to send command",
			zap.Error(err),
			zap.String("bot_id", focus.ID),
			zap.String("command", string(cmd.Kind())))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't send the command. Please try again.")
		return
	}

	b.sendMessage(message.Chat.ID, formatAck(ack))
}

func formatSummary(s presenter.Summary) string {
	if s.FocusBot == nil {
		return escapeMarkdown("You don't have any bots yet.")
	}
	text := fmt.Sprintf("*%s*\n", escapeMarkdown(s.FocusBot.ID))
	text += fmt.Sprintf("*Status:* %s\n", escapeMarkdown(s.DisplayStatus))
	text += fmt.Sprintf("*Activity:* %s\n", escapeMarkdown(s.DisplayActivity))
	text += fmt.Sprintf("*Last seen:* %s\n", escapeMarkdown(s.LastSeen))
	text += fmt.Sprintf("*Bots:* %d", s.ActiveBotCount)
	return text
}

func formatBots(records []*models.BotRecord) string {
	text := "*Your bots:*\n"
	for _, rec := range records {
		status := string(rec.Status)
		if status == "" {
			status = presenter.FallbackStatus
		}
		line := fmt.Sprintf("%s %s", rec.ID, status)
		if rec.CurrentActivity != "" {
			line += " - " + rec.CurrentActivity
		}
		text += escapeMarkdown(line) + "\n"
	}
	return text
}

func formatAck(ack *dispatcher.Ack) string {
	text := fmt.Sprintf("Sent %s to %s (#%d).", ack.Kind, ack.BotID, ack.Seq)
	if ack.Superseded {
		text += fmt.Sprintf(" It replaced a pending %s command the bot had not picked up.", ack.SupersededKind)
	}
	return text
}

// escapeMarkdown escapes the characters MarkdownV2 reserves.
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "MarkdownV2"
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
