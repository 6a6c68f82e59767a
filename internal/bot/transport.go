package bot

import "context"

// Button is an inline button bound to an action.
type Button struct {
	Text   string
	Action Action
}

// Screen is what the bot shows: text plus rows of buttons.
type Screen struct {
	Text    string
	Buttons [][]Button
}

// Transport delivers screens to a chat. Send returns the id of the new
// message; that id is what later edits target.
type Transport interface {
	Send(ctx context.Context, userID int64, screen Screen) (int, error)
	Edit(ctx context.Context, userID int64, messageID int, screen Screen) error
	Delete(ctx context.Context, userID int64, messageID int) error
}
