package port

import "context"

// MessageSender delivers a text message to a user on the messaging platform.
type MessageSender interface {
	SendMessage(ctx context.Context, openID string, content string) error
}
