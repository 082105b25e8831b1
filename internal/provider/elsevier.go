package provider

import (
	"context"

	"cfpbot/internal/cfp"
)

const elsevierFeed = "https://api.journals.elsevier.com/special-issues?limit=100"

type Elsevier struct {
	c *Client
	// Feed is overridable for tests.
	Feed string
}

func NewElsevier(c *Client) *Elsevier {
	return &Elsevier{c: c, Feed: elsevierFeed}
}

func (p *Elsevier) Name() string { return "Elsevier" }

func (p *Elsevier) Fetch(ctx context.Context) ([]cfp.Entry, error) {
	var body struct {
		SpecialIssues []struct {
			JournalTitle       string `json:"journalTitle"`
			Title              string `json:"title"`
			Description        string `json:"description"`
			SubmissionDeadline string `json:"submissionDeadline"`
			URL                string `json:"url"`
		} `json:"specialIssues"`
	}
	if err := p.c.GetJSON(ctx, p.Feed, &body); err != nil {
		return nil, err
	}

	out := make([]cfp.Entry, 0, len(body.SpecialIssues))
	for _, it := range body.SpecialIssues {
		out = append(out, cfp.Entry{
			Provider:    p.Name(),
			Journal:     orDefault(it.JournalTitle, "Elsevier Journal"),
			Title:       orDefault(it.Title, fallbackTitle),
			Description: it.Description,
			Deadline:    cfp.ParseDeadline(it.SubmissionDeadline),
			Link:        it.URL,
		})
	}
	return out, nil
}
