package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"spendbot/internal/bot"
	"spendbot/internal/log"
)

// Handler receives the events of one user. *bot.Machine implements it.
type Handler interface {
	Start(ctx context.Context, userID int64)
	HandleText(ctx context.Context, userID int64, messageID int, text string)
	HandleAction(ctx context.Context, userID int64, messageID int, action bot.Action)
}

// Dispatcher feeds updates to the handler one at a time, so events of the
// same user are never processed concurrently.
type Dispatcher struct {
	api     API
	handler Handler
	logger  *log.Logger
}

func NewDispatcher(api API, handler Handler, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Discard()
	}
	return &Dispatcher{
		api:     api,
		handler: handler,
		logger:  logger.WithComponent(log.ComponentTelegram),
	}
}

// Run consumes updates until ctx is cancelled or the channel is closed.
func (d *Dispatcher) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	d.logger.Info("Dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Dispatcher stopping")
			return nil
		case upd, ok := <-updates:
			if !ok {
				d.logger.Info("Update channel closed")
				return nil
			}
			d.Handle(ctx, upd)
		}
	}
}

// Handle routes a single update.
func (d *Dispatcher) Handle(ctx context.Context, upd tgbotapi.Update) {
	logger := d.logger.With(log.FieldEventID, uuid.NewString())
	ctx = log.IntoContext(ctx, logger)

	switch {
	case upd.CallbackQuery != nil:
		d.handleCallback(ctx, logger, upd.CallbackQuery)
	case upd.Message != nil:
		d.handleMessage(ctx, logger, upd.Message)
	default:
		logger.Debug("Ignoring update", "update_id", upd.UpdateID)
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, logger *log.Logger, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return
	}
	userID := msg.From.ID

	if msg.IsCommand() && msg.Command() == "start" {
		logger.Debug("Start command", log.FieldUserID, userID)
		d.handler.Start(ctx, userID)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		logger.Debug("Ignoring non-text message", log.FieldUserID, userID, log.FieldMessageID, msg.MessageID)
		return
	}
	d.handler.HandleText(ctx, userID, msg.MessageID, text)
}

func (d *Dispatcher) handleCallback(ctx context.Context, logger *log.Logger, q *tgbotapi.CallbackQuery) {
	if _, err := d.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		logger.Warn("Failed to answer callback query",
			log.FieldOperation, log.OpSend,
			log.FieldError, err)
	}
	if q.From == nil {
		return
	}

	messageID := 0
	if q.Message != nil {
		messageID = q.Message.MessageID
	}
	action := bot.ParseAction(q.Data)
	if action == bot.ActionUnknown {
		logger.Warn("Unknown callback data",
			log.FieldUserID, q.From.ID,
			log.FieldAction, q.Data)
	}
	d.handler.HandleAction(ctx, q.From.ID, messageID, action)
}
