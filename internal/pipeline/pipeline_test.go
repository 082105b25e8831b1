package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cfpbot/internal/cfp"
	"cfpbot/internal/eventbus"
	"cfpbot/internal/export"
	"cfpbot/internal/provider"
	"cfpbot/internal/storage"
	logx "cfpbot/pkg/logx"
)

type fakeProvider struct {
	name    string
	entries []cfp.Entry
	err     error
}

func (f fakeProvider) Name() string { return f.name }

func (f fakeProvider) Fetch(ctx context.Context) ([]cfp.Entry, error) {
	return f.entries, f.err
}

func testWriter(t *testing.T) *export.Writer {
	t.Helper()
	w, err := export.NewWriter(filepath.Join(t.TempDir(), "data.json"), false, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestRunHappyPath(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()

	p, err := New(Options{
		Providers: provs(
			fakeProvider{name: "a", entries: []cfp.Entry{{Provider: "a", Journal: "J1", Title: "T1", Link: "https://x/1"}}},
			fakeProvider{name: "b", entries: []cfp.Entry{{Provider: "b", Journal: "J2", Title: "T2", Link: "https://x/2"}}},
		),
		Writer: testWriter(t),
		Bus:    bus,
		Logger: logx.Nop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := p.Run(context.Background(), "cli")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Entries != 2 || !res.Changed {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.NewEntries != 2 {
		t.Fatalf("without a store all entries are new, got %d", res.NewEntries)
	}

	types := drain(events)
	if types[0] != eventbus.TypeRunStarted || types[len(types)-1] != eventbus.TypeRunFinished {
		t.Fatalf("unexpected event sequence: %v", types)
	}
}

func TestRunToleratesPartialProviderFailure(t *testing.T) {
	t.Parallel()
	p, err := New(Options{
		Providers: provs(
			fakeProvider{name: "broken", err: errors.New("boom")},
			fakeProvider{name: "ok", entries: []cfp.Entry{{Provider: "ok", Journal: "J", Title: "T", Link: "https://x/1"}}},
		),
		Writer: testWriter(t),
		Logger: logx.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Run(context.Background(), "schedule")
	if err != nil {
		t.Fatalf("Run should tolerate one broken provider: %v", err)
	}
	if res.Entries != 1 {
		t.Fatalf("entries = %d, want 1", res.Entries)
	}
	if res.ProviderErrors["broken"] == "" {
		t.Fatal("expected recorded provider error")
	}
}

func TestRunFailsWithZeroEntries(t *testing.T) {
	t.Parallel()
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "store")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	p, err := New(Options{
		Providers: provs(fakeProvider{name: "broken", err: errors.New("boom")}),
		Writer:    testWriter(t),
		Store:     st,
		Logger:    logx.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(context.Background(), "manual"); err == nil {
		t.Fatal("zero entries must fail the run")
	}
}

func TestRunCountsNewAgainstStore(t *testing.T) {
	t.Parallel()
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "store")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	entries := []cfp.Entry{
		{Provider: "a", Journal: "J1", Title: "T1", Link: "https://x/1"},
		{Provider: "a", Journal: "J2", Title: "T2", Link: "https://x/2"},
	}
	p, err := New(Options{
		Providers: provs(fakeProvider{name: "a", entries: entries}),
		Writer:    testWriter(t),
		Store:     st,
		Logger:    logx.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.Run(context.Background(), "cli")
	if err != nil {
		t.Fatal(err)
	}
	if res.NewEntries != 2 {
		t.Fatalf("first run: new = %d, want 2", res.NewEntries)
	}

	res, err = p.Run(context.Background(), "cli")
	if err != nil {
		t.Fatal(err)
	}
	if res.NewEntries != 0 {
		t.Fatalf("second run: new = %d, want 0", res.NewEntries)
	}
	if res.Changed {
		t.Fatal("identical second run should not change the export")
	}
}

type countingPublisher struct {
	calls int
}

func (c *countingPublisher) Publish(ctx context.Context, paths ...string) (bool, error) {
	c.calls++
	return true, nil
}

func TestRunPublishesOnlyWhenChanged(t *testing.T) {
	t.Parallel()
	pub := &countingPublisher{}
	p, err := New(Options{
		Providers: provs(fakeProvider{name: "a", entries: []cfp.Entry{
			{Provider: "a", Journal: "J", Title: "T", Link: "https://x/1"},
		}}),
		Writer:    testWriter(t),
		Publisher: pub,
		Logger:    logx.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	res, err := p.Run(ctx, "cli")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Changed || !res.Committed || pub.calls != 1 {
		t.Fatalf("first run: changed=%v committed=%v publishes=%d", res.Changed, res.Committed, pub.calls)
	}

	// Identical crawl: export reports no change, publish must not run.
	res, err = p.Run(ctx, "cli")
	if err != nil {
		t.Fatal(err)
	}
	if res.Changed || res.Committed {
		t.Fatalf("second run should be a no-op: %+v", res)
	}
	if pub.calls != 1 {
		t.Fatalf("publish ran on an unchanged export: %d calls", pub.calls)
	}
}

func TestRunCountsExpiredSeenKeyAsNew(t *testing.T) {
	t.Parallel()
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "store")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	ctx := context.Background()
	// Stale marker that the store has not pruned yet.
	if err := st.PutSeen(ctx, "cfp:https://x/1", time.Now().Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	p, err := New(Options{
		Providers: provs(fakeProvider{name: "a", entries: []cfp.Entry{
			{Provider: "a", Journal: "J", Title: "T", Link: "https://x/1"},
		}}),
		Writer: testWriter(t),
		Store:  st,
		Logger: logx.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Run(ctx, "cli")
	if err != nil {
		t.Fatal(err)
	}
	if res.NewEntries != 1 {
		t.Fatalf("expired key should count as new, got %d", res.NewEntries)
	}
}

func provs(ps ...fakeProvider) []provider.Provider {
	out := make([]provider.Provider, len(ps))
	for i, p := range ps {
		out[i] = p
	}
	return out
}

func drain(ch <-chan eventbus.Event) []string {
	var types []string
	for {
		select {
		case e := <-ch:
			types = append(types, e.Type)
		default:
			return types
		}
	}
}
