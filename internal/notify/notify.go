// Package notify turns crawl events into Telegram messages.
package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"cfpbot/internal/eventbus"
	"cfpbot/internal/pipeline"
	"cfpbot/internal/transport"
	logx "cfpbot/pkg/logx"
)

type Config struct {
	Enabled    bool
	ChatID     int64
	ThreadID   int
	RatePerSec float64
	QueueSize  int
}

// Notifier listens on the event bus and pushes run summaries to a chat.
// Sends are queued and rate limited; when the queue is full the oldest
// pending message is dropped.
type Notifier struct {
	cfg     Config
	sender  transport.Sender
	bus     eventbus.Bus
	log     logx.Logger
	limiter *rate.Limiter

	queue chan string

	mu      sync.Mutex
	unsub   func()
	stopped chan struct{}
}

func New(cfg Config, sender transport.Sender, bus eventbus.Bus, log logx.Logger) *Notifier {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 0.5
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{
		cfg:     cfg,
		sender:  sender,
		bus:     bus,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		queue:   make(chan string, cfg.QueueSize),
	}
}

// Start subscribes to the bus and runs the send loop until ctx is done.
func (n *Notifier) Start(ctx context.Context) {
	if !n.cfg.Enabled || n.sender == nil || n.bus == nil {
		return
	}
	n.mu.Lock()
	if n.stopped != nil {
		n.mu.Unlock()
		return
	}
	events, unsub := n.bus.Subscribe(64)
	n.unsub = unsub
	n.stopped = make(chan struct{})
	stopped := n.stopped
	n.mu.Unlock()

	go n.consume(ctx, events)
	go func() {
		defer close(stopped)
		n.sendLoop(ctx)
	}()
}

func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.unsub != nil {
		n.unsub()
		n.unsub = nil
	}
}

func (n *Notifier) consume(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			msg := n.format(e)
			if msg == "" {
				continue
			}
			n.enqueue(msg)
		}
	}
}

func (n *Notifier) enqueue(msg string) {
	for {
		select {
		case n.queue <- msg:
			return
		default:
		}
		// Full: drop the oldest pending message.
		select {
		case old := <-n.queue:
			n.log.Debug("notify queue full, dropped message",
				logx.Int("len", len(old)))
		default:
		}
	}
}

func (n *Notifier) sendLoop(ctx context.Context) {
	to := transport.ChatTarget{ChatID: n.cfg.ChatID, ThreadID: n.cfg.ThreadID}
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-n.queue:
			if err := n.limiter.Wait(ctx); err != nil {
				return
			}
			sendCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := n.sender.SendText(sendCtx, to, msg, &transport.SendOptions{DisablePreview: true})
			cancel()
			if err != nil {
				n.log.Warn("notify send failed", logx.Err(err))
			}
		}
	}
}

// format renders an event to a message; unknown event types map to "".
func (n *Notifier) format(e eventbus.Event) string {
	switch e.Type {
	case eventbus.TypeRunFinished:
		res, ok := e.Data.(pipeline.Result)
		if !ok {
			return ""
		}
		// Quiet runs are not worth a ping.
		if !res.Changed && len(res.ProviderErrors) == 0 {
			return ""
		}
		var b strings.Builder
		fmt.Fprintf(&b, "✅ CFP crawl (%s): %d entries, %d new", res.Source, res.Entries, res.NewEntries)
		if res.Committed {
			b.WriteString(", committed")
		} else if res.Changed {
			b.WriteString(", updated")
		}
		fmt.Fprintf(&b, " in %s", res.Duration.Round(time.Second))
		if len(res.ProviderErrors) > 0 {
			names := make([]string, 0, len(res.ProviderErrors))
			for name := range res.ProviderErrors {
				names = append(names, name)
			}
			sort.Strings(names)
			fmt.Fprintf(&b, "\n⚠️ failed providers: %s", strings.Join(names, ", "))
		}
		return b.String()
	case eventbus.TypeRunFailed:
		data, ok := e.Data.(map[string]any)
		if !ok {
			return "❌ CFP crawl failed"
		}
		return fmt.Sprintf("❌ CFP crawl (%v) failed: %v", data["source"], data["error"])
	default:
		return ""
	}
}
