package transport

import "context"

// ChatTarget addresses a chat (and optional forum thread) on the
// notification platform.
type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Sender is the outbound-only messaging surface cfpbot needs.
// The crawler never consumes inbound updates, so there is no polling API.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) error
	Stop(ctx context.Context) error
}
