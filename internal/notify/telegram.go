// Package notify delivers analysis reports to a Telegram chat.
package notify

import (
	"context"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MaxMessageLength is the Telegram limit for one text message
const MaxMessageLength = 4096

// sendDelay keeps bursts under the Telegram bot rate limit
const sendDelay = 50 * time.Millisecond

// Sender is the part of tgbotapi.BotAPI the notifier uses
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts reports and charts to one chat
type Telegram struct {
	sender Sender
	chatID int64
	delay  time.Duration
	logger zerolog.Logger
}

// NewTelegram authorizes a bot and targets chatID
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if token == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN not set")
	}
	if chatID == 0 {
		return nil, errors.New("TELEGRAM_CHAT_ID not set")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "initialize Telegram bot")
	}
	t := NewWithSender(bot, chatID)
	t.logger.Info().Str("bot", bot.Self.UserName).Msg("Telegram bot authorized")
	return t, nil
}

// NewWithSender builds a notifier on an existing sender
func NewWithSender(sender Sender, chatID int64) *Telegram {
	return &Telegram{
		sender: sender,
		chatID: chatID,
		delay:  sendDelay,
		logger: log.With().Str("component", "telegram").Logger(),
	}
}

// SendReport posts the text, split into chunks when needed, followed by each chart
func (t *Telegram) SendReport(ctx context.Context, text string, charts ...string) error {
	n, err := sendTo(ctx, t.sender, t.chatID, t.delay, text, charts)
	if err != nil {
		return err
	}
	t.logger.Debug().Int("items", n).Int64("chat_id", t.chatID).Msg("Report delivered")
	return nil
}

// sendTo delivers text chunks and photos to one chat and returns the item count
func sendTo(ctx context.Context, sender Sender, chatID int64, delay time.Duration, text string, charts []string) (int, error) {
	var items []tgbotapi.Chattable
	for _, chunk := range SplitMessage(text, MaxMessageLength) {
		items = append(items, tgbotapi.NewMessage(chatID, chunk))
	}
	for _, path := range charts {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(path))
		photo.Caption = filepath.Base(path)
		items = append(items, photo)
	}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if _, err := sender.Send(item); err != nil {
			return i, errors.Wrapf(err, "send Telegram item %d/%d", i+1, len(items))
		}
		if i < len(items)-1 && delay > 0 {
			select {
			case <-ctx.Done():
				return i + 1, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return len(items), nil
}

// SplitMessage cuts text into pieces of at most limit bytes, preferring line
// breaks and never splitting a UTF-8 rune. A rune longer than limit is kept whole.
func SplitMessage(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				_, cut = utf8.DecodeRuneInString(text)
			}
		}
		chunks = append(chunks, strings.TrimRight(text[:cut], "\n"))
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
