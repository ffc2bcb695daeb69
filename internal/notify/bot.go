package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Command answers one bot command. args is the text after the command.
type Command func(ctx context.Context, args string) (text string, attachments []string, err error)

type command struct {
	description string
	run         Command
}

// Bot dispatches chat commands to handlers
type Bot struct {
	api      *tgbotapi.BotAPI
	sender   Sender
	commands map[string]command
	allowed  map[int64]bool // empty allows every chat
	logger   zerolog.Logger
}

// NewBot authorizes a bot for serving commands
func NewBot(token string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	b := newBot(api)
	b.api = api
	b.logger.Info().Str("username", api.Self.UserName).Msg("Authorized on Telegram")
	return b, nil
}

func newBot(sender Sender) *Bot {
	return &Bot{
		sender:   sender,
		commands: make(map[string]command),
		allowed:  make(map[int64]bool),
		logger:   log.With().Str("component", "telegram_bot").Logger(),
	}
}

// Handle registers a command under name, without the leading slash
func (b *Bot) Handle(name, description string, run Command) {
	b.commands[name] = command{description: description, run: run}
}

// AllowChat restricts the bot to the given chats
func (b *Bot) AllowChat(ids ...int64) {
	for _, id := range ids {
		if id != 0 {
			b.allowed[id] = true
		}
	}
}

// Help lists the registered commands
func (b *Bot) Help() string {
	names := make([]string, 0, len(b.commands))
	for name := range b.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("Available commands:\n")
	for _, name := range names {
		fmt.Fprintf(&sb, "/%s - %s\n", name, b.commands[name].description)
	}
	return sb.String()
}

// Serve handles updates until ctx is cancelled. Each message runs in its own goroutine.
func (b *Bot) Serve(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer wg.Done()
				b.HandleMessage(ctx, msg)
			}(update.Message)
		}
	}
}

// HandleMessage answers a single message
func (b *Bot) HandleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message == nil || message.Chat == nil {
		return
	}
	chatID := message.Chat.ID
	logger := b.logger.With().Int64("chat_id", chatID).Logger()

	if len(b.allowed) > 0 && !b.allowed[chatID] {
		logger.Warn().Msg("Ignoring message from unknown chat")
		return
	}

	reply := func(text string, attachments []string) {
		if _, err := sendTo(ctx, b.sender, chatID, sendDelay, text, attachments); err != nil {
			logger.Error().Err(err).Msg("Failed to reply")
		}
	}

	if !message.IsCommand() {
		reply(b.Help(), nil)
		return
	}

	name := message.Command()
	if name == "start" || name == "help" {
		reply(b.Help(), nil)
		return
	}

	cmd, ok := b.commands[name]
	if !ok {
		reply(fmt.Sprintf("Unknown command /%s\n\n%s", name, b.Help()), nil)
		return
	}

	logger.Info().Str("command", name).Str("args", message.CommandArguments()).Msg("Running command")
	text, attachments, err := cmd.run(ctx, strings.TrimSpace(message.CommandArguments()))
	if err != nil {
		logger.Error().Err(err).Str("command", name).Msg("Command failed")
		reply(fmt.Sprintf("Sorry, /%s failed: %v", name, err), nil)
		return
	}
	reply(text, attachments)
}
