package provider

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"cfpbot/internal/cfp"
	"cfpbot/internal/config"
)

// SelectorSite scrapes a CFP listing page declared entirely through
// selectors: one selector picks the cards, the rest pick fields within each
// card. This covers publisher pages that render listings server-side
// without needing a per-site provider.
type SelectorSite struct {
	c    *Client
	site config.SelectorSite

	list, title, journal, link, deadline selector
	hasTitle, hasJournal, hasLink, hasDeadline bool
}

func NewSelectorSite(c *Client, site config.SelectorSite) (*SelectorSite, error) {
	p := &SelectorSite{c: c, site: site}

	var err error
	if p.list, err = parseSelector(site.ListSelector); err != nil {
		return nil, fmt.Errorf("site %s: list_selector: %w", site.Name, err)
	}
	for _, f := range []struct {
		raw string
		sel *selector
		has *bool
	}{
		{site.TitleSelector, &p.title, &p.hasTitle},
		{site.JournalSelector, &p.journal, &p.hasJournal},
		{site.LinkSelector, &p.link, &p.hasLink},
		{site.DeadlineSelector, &p.deadline, &p.hasDeadline},
	} {
		if strings.TrimSpace(f.raw) == "" {
			continue
		}
		if *f.sel, err = parseSelector(f.raw); err != nil {
			return nil, fmt.Errorf("site %s: %w", site.Name, err)
		}
		*f.has = true
	}
	return p, nil
}

func (p *SelectorSite) Name() string { return p.site.Name }

func (p *SelectorSite) Fetch(ctx context.Context) ([]cfp.Entry, error) {
	b, err := p.c.Get(ctx, p.site.URL)
	if err != nil {
		return nil, err
	}
	root, err := html.Parse(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", p.site.URL, err)
	}

	base, _ := url.Parse(p.site.URL)

	cards := findAll(root, p.list)
	out := make([]cfp.Entry, 0, len(cards))
	for _, card := range cards {
		e := cfp.Entry{Provider: p.site.Name}
		if p.hasTitle {
			e.Title = nodeText(findFirst(card, p.title))
		}
		if p.hasJournal {
			e.Journal = nodeText(findFirst(card, p.journal))
		}
		if p.hasLink {
			if a := findFirst(card, p.link); a != nil {
				e.Link = resolveLink(base, attrVal(a, "href"))
			}
		}
		if p.hasDeadline {
			e.Deadline = cfp.ParseDeadline(nodeText(findFirst(card, p.deadline)))
		}
		if e.Title == "" && e.Link == "" {
			continue
		}
		e.Title = orDefault(e.Title, fallbackTitle)
		out = append(out, e)
	}
	return out, nil
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || base == nil {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(u).String()
}
