// Package sjr enriches entries with SCImago Journal Rank scores.
package sjr

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"cfpbot/internal/cfp"
	"cfpbot/internal/provider"
	"cfpbot/internal/storage"

	logx "cfpbot/pkg/logx"
)

const rankAPI = "https://www.scimagojr.com/journalrank.php?out=json&search=%s"

// missTTL suppresses repeated lookups for journals SCImago doesn't know.
// Hits are cached in memory for the process lifetime; misses are the
// expensive repeat offenders across scheduled runs, so they go to storage.
const missTTL = 7 * 24 * time.Hour

type Enricher struct {
	c     *provider.Client
	log   logx.Logger
	store storage.Store // may be nil

	// API is overridable for tests; %s receives the escaped journal name.
	API string

	mu    sync.Mutex
	cache map[string]*float64
}

func New(c *provider.Client, store storage.Store, log logx.Logger) *Enricher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Enricher{c: c, log: log, store: store, API: rankAPI, cache: map[string]*float64{}}
}

// Enrich fills in SJR for entries that don't have one yet. Lookup failures
// leave the field null; they never fail the run.
func (e *Enricher) Enrich(ctx context.Context, entries []cfp.Entry) []cfp.Entry {
	for i := range entries {
		if entries[i].SJR != nil {
			continue
		}
		journal := strings.TrimSpace(entries[i].Journal)
		if journal == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return entries
		}
		entries[i].SJR = e.lookup(ctx, journal)
	}
	return entries
}

func (e *Enricher) lookup(ctx context.Context, journal string) *float64 {
	key := strings.ToLower(journal)

	e.mu.Lock()
	v, ok := e.cache[key]
	e.mu.Unlock()
	if ok {
		return v
	}

	if e.knownMiss(ctx, key) {
		return nil
	}

	v, err := e.fetch(ctx, journal)
	if err != nil {
		e.log.Debug("sjr lookup failed", logx.String("journal", journal), logx.Any("err", err))
		return nil
	}

	e.mu.Lock()
	e.cache[key] = v
	e.mu.Unlock()

	if v == nil {
		e.recordMiss(ctx, key)
	}
	return v
}

func (e *Enricher) fetch(ctx context.Context, journal string) (*float64, error) {
	var rows []struct {
		SJR string `json:"SJR"`
	}
	u := fmt.Sprintf(e.API, url.QueryEscape(journal))
	if err := e.c.GetJSON(ctx, u, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	// SCImago uses comma decimals ("1,234").
	raw := strings.ReplaceAll(strings.TrimSpace(rows[0].SJR), ",", ".")
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("parse SJR %q: %w", rows[0].SJR, err)
	}
	return &f, nil
}

func (e *Enricher) knownMiss(ctx context.Context, key string) bool {
	if e.store == nil {
		return false
	}
	until, ok, err := e.store.GetSeen(ctx, "sjr-miss:"+key)
	if err != nil || !ok {
		return false
	}
	return time.Now().Before(until)
}

func (e *Enricher) recordMiss(ctx context.Context, key string) {
	if e.store == nil {
		return
	}
	_ = e.store.PutSeen(ctx, "sjr-miss:"+key, time.Now().Add(missTTL))
}
