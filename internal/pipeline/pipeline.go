// Package pipeline runs a single crawl end to end:
// fetch from every provider, merge, enrich, export, publish.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cfpbot/internal/cfp"
	"cfpbot/internal/eventbus"
	"cfpbot/internal/export"
	"cfpbot/internal/provider"
	"cfpbot/internal/publish"
	"cfpbot/internal/sjr"
	"cfpbot/internal/storage"
	logx "cfpbot/pkg/logx"
)

// seenTTL bounds how long an entry key counts as already-seen.
// CFPs that reappear after this window are reported as new again.
const seenTTL = 180 * 24 * time.Hour

// Result summarizes one crawl run.
type Result struct {
	Started        time.Time
	Duration       time.Duration
	Source         string
	Entries        int
	NewEntries     int
	Changed        bool
	Committed      bool
	ProviderErrors map[string]string
}

// Publisher records a changed export; *publish.Publisher is the real one.
type Publisher interface {
	Publish(ctx context.Context, paths ...string) (bool, error)
}

var _ Publisher = (*publish.Publisher)(nil)

// Pipeline owns the crawl steps. Providers, enricher, writer and
// publisher are fixed at construction; the store and bus may be nil.
type Pipeline struct {
	providers []provider.Provider
	enricher  *sjr.Enricher
	writer    *export.Writer
	publisher Publisher
	store     storage.Store
	bus       eventbus.Bus
	log       logx.Logger
}

type Options struct {
	Providers []provider.Provider
	Enricher  *sjr.Enricher
	Writer    *export.Writer
	Publisher Publisher
	Store     storage.Store
	Bus       eventbus.Bus
	Logger    logx.Logger
}

func New(opt Options) (*Pipeline, error) {
	if len(opt.Providers) == 0 {
		return nil, errors.New("pipeline needs at least one provider")
	}
	if opt.Writer == nil {
		return nil, errors.New("pipeline needs an export writer")
	}
	log := opt.Logger
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Pipeline{
		providers: opt.Providers,
		enricher:  opt.Enricher,
		writer:    opt.Writer,
		publisher: opt.Publisher,
		store:     opt.Store,
		bus:       opt.Bus,
		log:       log,
	}, nil
}

// Run executes one crawl. source labels who triggered it
// ("schedule", "manual", "cli").
//
// Provider failures are tolerated as long as at least one provider
// yields entries; a run that ends with zero entries is an error, so a
// broken crawl can never publish an empty snapshot.
func (p *Pipeline) Run(ctx context.Context, source string) (Result, error) {
	res := Result{
		Started:        time.Now(),
		Source:         source,
		ProviderErrors: map[string]string{},
	}
	p.publishEvent(eventbus.TypeRunStarted, map[string]any{"source": source})

	err := p.run(ctx, &res)
	res.Duration = time.Since(res.Started)

	// The record must land even when the run context timed out.
	p.record(context.WithoutCancel(ctx), res, err)
	if err != nil {
		p.publishEvent(eventbus.TypeRunFailed, map[string]any{
			"source": source,
			"error":  err.Error(),
		})
		return res, err
	}
	p.publishEvent(eventbus.TypeRunFinished, res)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, res *Result) error {
	var lists [][]cfp.Entry
	for _, prov := range p.providers {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries, err := prov.Fetch(ctx)
		if err != nil {
			res.ProviderErrors[prov.Name()] = err.Error()
			p.log.Warn("provider failed",
				logx.String("provider", prov.Name()),
				logx.Err(err))
			p.publishEvent(eventbus.TypeProviderFailed, map[string]any{
				"provider": prov.Name(),
				"error":    err.Error(),
			})
			continue
		}
		p.log.Info("provider done",
			logx.String("provider", prov.Name()),
			logx.Int("entries", len(entries)))
		lists = append(lists, entries)
	}

	merged := cfp.Merge(lists...)
	if len(merged) == 0 {
		return fmt.Errorf("no entries collected (%d provider failures)", len(res.ProviderErrors))
	}
	res.Entries = len(merged)
	res.NewEntries = p.countNew(ctx, merged)

	if p.enricher != nil {
		merged = p.enricher.Enrich(ctx, merged)
	}

	changed, err := p.writer.Write(merged)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	res.Changed = changed

	if changed && p.publisher != nil {
		committed, err := p.publisher.Publish(ctx, p.writer.Path)
		if err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		res.Committed = committed
	}
	return nil
}

// countNew marks merged entries against the seen-key store and returns
// how many were not seen before. With no store every entry counts as new.
func (p *Pipeline) countNew(ctx context.Context, entries []cfp.Entry) int {
	if p.store == nil {
		return len(entries)
	}
	now := time.Now()
	until := now.Add(seenTTL)
	fresh := 0
	for _, e := range entries {
		key := "cfp:" + e.Key()
		seenUntil, seen, err := p.store.GetSeen(ctx, key)
		if err != nil {
			p.log.Debug("seen lookup failed", logx.Err(err))
			continue
		}
		// An expired key may linger until the store prunes; it still
		// counts as new.
		if !seen || !now.Before(seenUntil) {
			fresh++
		}
		if err := p.store.PutSeen(ctx, key, until); err != nil {
			p.log.Debug("seen write failed", logx.Err(err))
		}
	}
	return fresh
}

func (p *Pipeline) record(ctx context.Context, res Result, runErr error) {
	if p.store == nil {
		return
	}
	rec := storage.RunRecord{
		At:         res.Started,
		Source:     res.Source,
		OK:         runErr == nil,
		Entries:    res.Entries,
		NewEntries: res.NewEntries,
		Changed:    res.Changed,
		Committed:  res.Committed,
		TookMS:     res.Duration.Milliseconds(),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if err := p.store.AppendRun(ctx, rec); err != nil {
		p.log.Warn("run record write failed", logx.Err(err))
	}
}

func (p *Pipeline) publishEvent(typ string, data any) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: data})
}
