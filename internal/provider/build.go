package provider

import (
	"fmt"
	"strings"

	"cfpbot/internal/config"

	logx "cfpbot/pkg/logx"
)

// Build assembles the enabled provider set from config. Selector sites are
// always included; the named feed providers default to all three when
// crawl.providers is omitted.
func Build(cfg config.CrawlConfig, c *Client, log logx.Logger) ([]Provider, error) {
	names := cfg.Providers
	if len(names) == 0 {
		names = []string{"elsevier", "wiley", "mdpi"}
	}

	var out []Provider
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "elsevier":
			out = append(out, NewElsevier(c))
		case "wiley":
			out = append(out, NewWiley(c))
		case "mdpi":
			out = append(out, NewMDPI(c, cfg.MDPIJournals, log))
		default:
			return nil, fmt.Errorf("unknown provider %q", name)
		}
	}
	for _, site := range cfg.SelectorSites {
		p, err := NewSelectorSite(c, site)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
