package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "cfpbot/pkg/logx"
)

func TestRunNowSingleFlight(t *testing.T) {
	t.Parallel()
	started := make(chan struct{})
	release := make(chan struct{})
	var runs atomic.Int32

	s, err := New(Config{}, func(ctx context.Context, source string) error {
		runs.Add(1)
		close(started)
		<-release
		return nil
	}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}

	if !s.RunNow("manual") {
		t.Fatal("first RunNow should fire")
	}
	<-started
	if s.RunNow("manual") {
		t.Fatal("overlapping RunNow should be dropped")
	}
	if !s.Running() {
		t.Fatal("Running should report in-flight run")
	}
	close(release)

	waitFor(t, func() bool { return !s.Running() })
	if got := runs.Load(); got != 1 {
		t.Fatalf("runs = %d, want 1", got)
	}
	if h := s.History(); len(h) != 1 || h[0].Source != "manual" || h[0].Error != "" {
		t.Fatalf("unexpected history: %+v", h)
	}
}

func TestRunFailureRecordedInHistory(t *testing.T) {
	t.Parallel()
	s, err := New(Config{HistorySize: 2}, func(ctx context.Context, source string) error {
		return errors.New("boom")
	}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if !s.RunNow("manual") {
			// Previous run still draining, wait and retry once.
			waitFor(t, func() bool { return !s.Running() })
			s.RunNow("manual")
		}
		waitFor(t, func() bool { return !s.Running() })
	}

	h := s.History()
	if len(h) != 2 {
		t.Fatalf("history should be capped at 2, got %d", len(h))
	}
	for _, item := range h {
		if item.Error == "" {
			t.Fatalf("expected recorded error: %+v", item)
		}
	}
}

func TestStartDisabled(t *testing.T) {
	t.Parallel()
	s, err := New(Config{Enabled: false}, func(ctx context.Context, source string) error { return nil }, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start (disabled): %v", err)
	}
	s.Stop()
}

func TestStartRejectsBadSchedule(t *testing.T) {
	t.Parallel()
	s, err := New(Config{Enabled: true, Schedule: "nonsense"}, func(ctx context.Context, source string) error { return nil }, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
