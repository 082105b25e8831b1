package provider

import (
	"context"

	"cfpbot/internal/cfp"
)

// wileyFeed is a static JSON export, not an API.
const wileyFeed = "https://wol-prod-cfp-files.s3.amazonaws.com/v2/calls.json"

type Wiley struct {
	c *Client
	// Feed is overridable for tests.
	Feed string
}

func NewWiley(c *Client) *Wiley {
	return &Wiley{c: c, Feed: wileyFeed}
}

func (p *Wiley) Name() string { return "Wiley" }

func (p *Wiley) Fetch(ctx context.Context) ([]cfp.Entry, error) {
	var body []struct {
		JournalTitle string `json:"journalTitle"`
		Title        string `json:"title"`
		Description  string `json:"description"`
		Deadline     string `json:"deadline"`
		URL          string `json:"url"`
	}
	if err := p.c.GetJSON(ctx, p.Feed, &body); err != nil {
		return nil, err
	}

	out := make([]cfp.Entry, 0, len(body))
	for _, it := range body {
		out = append(out, cfp.Entry{
			Provider:    p.Name(),
			Journal:     orDefault(it.JournalTitle, "Wiley Journal"),
			Title:       orDefault(it.Title, fallbackTitle),
			Description: it.Description,
			Deadline:    cfp.ParseDeadline(it.Deadline),
			Link:        it.URL,
		})
	}
	return out, nil
}
