package notify

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"cfpbot/internal/eventbus"
	"cfpbot/internal/pipeline"
	"cfpbot/internal/transport"
	logx "cfpbot/pkg/logx"
)

type captureSender struct {
	mu   sync.Mutex
	sent []string
}

var _ transport.Sender = (*captureSender)(nil)

func (c *captureSender) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return nil
}

func (c *captureSender) Stop(ctx context.Context) error { return nil }

func (c *captureSender) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func TestFormatRunFinished(t *testing.T) {
	t.Parallel()
	n := New(Config{Enabled: true}, nil, nil, logx.Nop())

	msg := n.format(eventbus.Event{
		Type: eventbus.TypeRunFinished,
		Data: pipeline.Result{
			Source:     "schedule",
			Entries:    12,
			NewEntries: 3,
			Changed:    true,
			Committed:  true,
			Duration:   4200 * time.Millisecond,
			ProviderErrors: map[string]string{
				"wiley": "timeout",
			},
		},
	})
	for _, want := range []string{"12 entries", "3 new", "committed", "wiley"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q: %q", want, msg)
		}
	}
}

func TestFormatQuietRunSuppressed(t *testing.T) {
	t.Parallel()
	n := New(Config{Enabled: true}, nil, nil, logx.Nop())
	msg := n.format(eventbus.Event{
		Type: eventbus.TypeRunFinished,
		Data: pipeline.Result{Source: "schedule", Entries: 12, ProviderErrors: map[string]string{}},
	})
	if msg != "" {
		t.Fatalf("unchanged run should not notify, got %q", msg)
	}
}

func TestFormatIgnoresOtherEvents(t *testing.T) {
	t.Parallel()
	n := New(Config{Enabled: true}, nil, nil, logx.Nop())
	if msg := n.format(eventbus.Event{Type: eventbus.TypeRunStarted}); msg != "" {
		t.Fatalf("run.started should be silent, got %q", msg)
	}
}

func TestNotifierDeliversRunFailed(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := eventbus.New()
	sender := &captureSender{}
	n := New(Config{Enabled: true, ChatID: 1, RatePerSec: 1000}, sender, bus, logx.Nop())
	n.Start(ctx)
	defer n.Stop()

	bus.Publish(eventbus.Event{
		Type: eventbus.TypeRunFailed,
		Data: map[string]any{"source": "manual", "error": "no entries collected"},
	})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		got := sender.messages()
		if len(got) == 1 {
			if !strings.Contains(got[0], "no entries collected") {
				t.Fatalf("unexpected message: %q", got[0])
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("message was not delivered")
}
