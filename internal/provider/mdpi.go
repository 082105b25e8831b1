package provider

import (
	"context"
	"fmt"
	"strings"

	"cfpbot/internal/cfp"

	logx "cfpbot/pkg/logx"
)

const mdpiFeedFormat = "https://www.mdpi.com/journal/%s?format=cfp&limit=100"

// defaultMDPIJournals matches the journal slugs the exporter originally
// tracked; override via crawl.mdpi_journals.
var defaultMDPIJournals = []string{"foods", "nutrients", "metabolites"}

type MDPI struct {
	c        *Client
	log      logx.Logger
	journals []string
	// FeedFormat is overridable for tests; %s receives the journal slug.
	FeedFormat string
}

func NewMDPI(c *Client, journals []string, log logx.Logger) *MDPI {
	if len(journals) == 0 {
		journals = defaultMDPIJournals
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &MDPI{c: c, log: log, journals: journals, FeedFormat: mdpiFeedFormat}
}

func (p *MDPI) Name() string { return "MDPI" }

// Fetch pulls each configured journal feed. A failing journal is skipped so
// one broken feed doesn't hide the rest; Fetch only errors when every
// journal failed.
func (p *MDPI) Fetch(ctx context.Context) ([]cfp.Entry, error) {
	var out []cfp.Entry
	failures := 0
	var lastErr error
	for _, j := range p.journals {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		var body struct {
			SpecialIssues []struct {
				Title       string `json:"title"`
				Description string `json:"description"`
				Deadline    string `json:"deadline"`
				URL         string `json:"url"`
			} `json:"specialIssues"`
		}
		if err := p.c.GetJSON(ctx, fmt.Sprintf(p.FeedFormat, j), &body); err != nil {
			p.log.Warn("mdpi journal skipped", logx.String("journal", j), logx.Any("err", err))
			failures++
			lastErr = err
			continue
		}
		for _, it := range body.SpecialIssues {
			out = append(out, cfp.Entry{
				Provider:    p.Name(),
				Journal:     capitalize(j),
				Title:       orDefault(it.Title, fallbackTitle),
				Description: it.Description,
				Deadline:    cfp.ParseDeadline(it.Deadline),
				Link:        it.URL,
			})
		}
	}
	if failures == len(p.journals) && failures > 0 {
		return nil, fmt.Errorf("all %d mdpi journals failed: %w", failures, lastErr)
	}
	return out, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
