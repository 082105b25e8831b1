// Package provider implements the CFP sources the crawler pulls from.
//
// Each provider maps one publisher feed to []cfp.Entry. Providers share a
// rate-limited fetch client so the crawler stays polite regardless of how
// many sources are enabled.
package provider

import (
	"context"

	"cfpbot/internal/cfp"
)

type Provider interface {
	Name() string
	Fetch(ctx context.Context) ([]cfp.Entry, error)
}

const (
	fallbackTitle = "Untitled"
)

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
