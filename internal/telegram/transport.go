// Package telegram connects the conversation machine to the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"spendbot/internal/bot"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Transport implements bot.Transport. Users talk to the bot in private
// chats, so a user id doubles as the chat id.
type Transport struct {
	api API
}

func NewTransport(api API) *Transport {
	return &Transport{api: api}
}

func (t *Transport) Send(ctx context.Context, userID int64, screen bot.Screen) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(userID, screen.Text)
	if kb, ok := keyboard(screen.Buttons); ok {
		msg.ReplyMarkup = kb
	}
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return sent.MessageID, nil
}

func (t *Transport) Edit(ctx context.Context, userID int64, messageID int, screen bot.Screen) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(userID, messageID, screen.Text)
	if kb, ok := keyboard(screen.Buttons); ok {
		edit.ReplyMarkup = &kb
	}
	if _, err := t.api.Request(edit); err != nil && !isNotModified(err) {
		return fmt.Errorf("edit message %d: %w", messageID, err)
	}
	return nil
}

func (t *Transport) Delete(ctx context.Context, userID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.api.Request(tgbotapi.NewDeleteMessage(userID, messageID)); err != nil {
		return fmt.Errorf("delete message %d: %w", messageID, err)
	}
	return nil
}

func keyboard(rows [][]bot.Button) (tgbotapi.InlineKeyboardMarkup, bool) {
	if len(rows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Action.Data()))
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...), true
}

// Telegram rejects an edit that would leave the message unchanged.
func isNotModified(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return strings.Contains(apiErr.Message, "message is not modified")
	}
	return strings.Contains(err.Error(), "message is not modified")
}
