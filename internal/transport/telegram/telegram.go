package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "cfpbot/internal/transport"
	logx "cfpbot/pkg/logx"
)

type Config struct {
	Token string
	// HTTPTimeout bounds each Bot API call.
	HTTPTimeout time.Duration
}

// Sender is a send-only Telegram adapter. cfpbot uses it for run summaries
// and as a log sink; it never long-polls for updates.
type Sender struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

func New(cfg Config, log logx.Logger) (*Sender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Client: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sender{cfg: cfg, log: log, bot: b}, nil
}

func (s *Sender) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) error {
	if s == nil || s.bot == nil {
		return errors.New("telegram sender not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	sendOpt := &tele.SendOptions{ThreadID: to.ThreadID}
	if opt != nil {
		sendOpt.ParseMode = opt.ParseMode
		sendOpt.DisableWebPagePreview = opt.DisablePreview
	}
	_, err := s.bot.Send(&tele.Chat{ID: to.ChatID}, text, sendOpt)
	return err
}

func (s *Sender) Stop(ctx context.Context) error {
	_ = ctx
	// No pollers or background goroutines to tear down.
	return nil
}
