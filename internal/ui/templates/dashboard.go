// Package templates renders the dashboard shell. Data arrives afterwards over
// the /sse/snapshot stream.
package templates

import (
	"context"
	"io"
	"net/url"

	"github.com/a-h/templ"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"

// DashboardParams is the filter the page opens with.
type DashboardParams struct {
	ShopID string
	From   string
	To     string
}

// StreamURL is the SSE endpoint the page subscribes to.
func (p DashboardParams) StreamURL() string {
	q := url.Values{}
	if p.ShopID != "" {
		q.Set("shop", p.ShopID)
	}
	if p.From != "" {
		q.Set("from", p.From)
	}
	if p.To != "" {
		q.Set("to", p.To)
	}
	if len(q) == 0 {
		return "/sse/snapshot"
	}
	return "/sse/snapshot?" + q.Encode()
}

// ExportURL is the CSV download link for the same filter.
func (p DashboardParams) ExportURL() string {
	stream := p.StreamURL()
	return "/api/export.csv" + stream[len("/sse/snapshot"):]
}

func Dashboard(p DashboardParams) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		parts := []string{
			`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`,
			`<meta name="viewport" content="width=device-width, initial-scale=1">`,
			`<title>Creator Analytics</title>`,
			`<script type="module" src="` + templ.EscapeString(datastarScript) + `"></script>`,
			`</head><body>`,
			`<header><h1>Creator Analytics</h1>`,
			`<form method="get" action="/" class="filters">`,
			`<label>Shop <input name="shop" value="` + templ.EscapeString(p.ShopID) + `" required></label>`,
			`<label>From <input type="date" name="from" value="` + templ.EscapeString(p.From) + `"></label>`,
			`<label>To <input type="date" name="to" value="` + templ.EscapeString(p.To) + `"></label>`,
			`<button type="submit">Apply</button>`,
			`<a href="` + templ.EscapeString(p.ExportURL()) + `">Export CSV</a>`,
			`</form></header>`,
			`<main data-init="@get('` + templ.EscapeString(p.StreamURL()) + `')">`,
			`<div id="snapshot-status" class="status">Loading snapshot…</div>`,
			`<section><h2>Key metrics</h2><div id="kpi-content"></div></section>`,
			`<section><h2>Customer segments</h2><div id="segments-content"></div></section>`,
			`<section><h2>Monthly revenue and forecast</h2>`,
			`<pre data-text="JSON.stringify($forecast, null, 2)"></pre></section>`,
			`<section><h2>Cohort retention</h2>`,
			`<pre data-text="JSON.stringify($cohorts, null, 2)"></pre></section>`,
			`</main></body></html>`,
		}
		for _, part := range parts {
			if _, err := io.WriteString(w, part); err != nil {
				return err
			}
		}
		return nil
	})
}
